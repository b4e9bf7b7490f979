// Package validation provides checks that keep destructive operations
// (output regeneration, subprocess execution, file serving) inside the
// directories they are meant to touch.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// shellOperators are tokens that only make sense to a shell. Commands run
// without one, so their presence means the configuration is wrong.
var shellOperators = []string{";", "&&", "||", "|", "`", "$(", ">", "<"}

// ValidateArgument validates a command argument.
func ValidateArgument(arg string) error {
	if strings.ContainsRune(arg, 0) {
		return fmt.Errorf("argument contains NUL byte")
	}

	for _, op := range shellOperators {
		if strings.Contains(arg, op) {
			return fmt.Errorf("argument %q contains shell operator %q; commands are not run through a shell", arg, op)
		}
	}

	return nil
}

// ValidateCommand validates a command line split into argv form.
func ValidateCommand(argv []string) error {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return fmt.Errorf("command cannot be empty")
	}

	for _, arg := range argv {
		if err := ValidateArgument(arg); err != nil {
			return err
		}
	}

	return nil
}

// ValidateOutputDir rejects output directories whose regeneration would
// delete the project itself: the working directory, any of its ancestors,
// or the filesystem root.
func ValidateOutputDir(workDir, outputDir string) error {
	if strings.TrimSpace(outputDir) == "" {
		return fmt.Errorf("output directory cannot be empty")
	}

	absWork, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}

	absOut := outputDir
	if !filepath.IsAbs(absOut) {
		absOut = filepath.Join(absWork, outputDir)
	}
	absOut = filepath.Clean(absOut)

	if absOut == filepath.Dir(absOut) {
		return fmt.Errorf("output directory %s is a filesystem root", outputDir)
	}

	if absOut == absWork || WithinRoot(absOut, absWork) {
		return fmt.Errorf("output directory %s contains the working directory", outputDir)
	}

	return nil
}

// WithinRoot reports whether path is root or lies beneath it. Both paths
// must be absolute and clean.
func WithinRoot(root, path string) bool {
	if path == root {
		return true
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
