package build

import (
	"fmt"
	"os"
	"path/filepath"
)

// stagingDir returns the sibling directory an atomic build writes into.
func stagingDir(outputDir string) string {
	return filepath.Join(filepath.Dir(outputDir), "."+filepath.Base(outputDir)+".staging")
}

// swapInto replaces outputDir with stagingDir. Between the two renames the
// output path briefly does not exist; no request observes a partially
// written tree.
func swapInto(staging, outputDir string) error {
	previous := filepath.Join(filepath.Dir(outputDir), "."+filepath.Base(outputDir)+".previous")
	if err := os.RemoveAll(previous); err != nil {
		return fmt.Errorf("clearing %s: %w", previous, err)
	}

	hadOutput := true
	if err := os.Rename(outputDir, previous); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("moving old output aside: %w", err)
		}
		hadOutput = false
	}

	if err := os.Rename(staging, outputDir); err != nil {
		if hadOutput {
			_ = os.Rename(previous, outputDir)
		}
		return fmt.Errorf("moving staged output into place: %w", err)
	}

	if hadOutput {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("removing old output: %w", err)
		}
	}

	return nil
}
