package watcher

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"

	"github.com/conneroisu/ssg/internal/validation"
)

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// TempFileFilter rejects editor swap files, hidden files and other
// temporaries that never affect the generated site.
func TempFileFilter(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, "~") || strings.HasPrefix(base, ".") {
		return false
	}

	if strings.HasSuffix(cases.Fold().String(base), ".tmp") {
		return false
	}

	if strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swo") {
		return false
	}

	return !strings.Contains(base, "~RF")
}

// OutputDirFilter rejects everything under outputDir, which the build
// pipeline rewrites on every run.
func OutputDirFilter(outputDir string) FileFilter {
	outputDir = filepath.Clean(outputDir)

	return func(path string) bool {
		return !validation.WithinRoot(outputDir, filepath.Clean(path))
	}
}
