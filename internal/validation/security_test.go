package validation

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		wantErr bool
	}{
		{"default build command", []string{"dotnet-ssg", "build"}, false},
		{"npm script", []string{"npm", "run", "css:build"}, false},
		{"empty", nil, true},
		{"blank program", []string{"  "}, true},
		{"chained", []string{"make", "&&", "rm"}, true},
		{"piped", []string{"cat", "x|y"}, true},
		{"subshell", []string{"echo", "$(id)"}, true},
		{"redirect", []string{"build", ">out.log"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommand(tt.argv)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOutputDir(t *testing.T) {
	work := t.TempDir()

	assert.NoError(t, ValidateOutputDir(work, "output"))
	assert.NoError(t, ValidateOutputDir(work, filepath.Join(work, "public")))
	assert.NoError(t, ValidateOutputDir(work, filepath.Join(filepath.Dir(work), "elsewhere")))

	assert.Error(t, ValidateOutputDir(work, ""))
	assert.Error(t, ValidateOutputDir(work, "."))
	assert.Error(t, ValidateOutputDir(work, ".."))
	assert.Error(t, ValidateOutputDir(work, string(filepath.Separator)))
}

func TestWithinRoot(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "srv", "site")

	assert.True(t, WithinRoot(root, root))
	assert.True(t, WithinRoot(root, filepath.Join(root, "output", "index.html")))
	assert.True(t, WithinRoot(root, filepath.Join(root, "..dotted")))
	assert.False(t, WithinRoot(root, filepath.Join(root, "..", "other")))
	assert.False(t, WithinRoot(root, filepath.Join(string(filepath.Separator), "srv", "site2")))
}
