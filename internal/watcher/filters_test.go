package watcher

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTempFileFilter(t *testing.T) {
	tests := []struct {
		name string
		keep bool
	}{
		{"post.md", true},
		{"index.html", true},
		{"site.css", true},
		{"~post.md", false},
		{".post.md.swx", false},
		{".DS_Store", false},
		{"post.md.tmp", false},
		{"post.md.TMP", false},
		{"post.md.Tmp", false},
		{"post.tmp.md", true},
		{"post.md.swp", false},
		{"post.md.swo", false},
		{"post~RF1a2b.TMP", false},
		{"Doc~RF123.md", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join("/site", "content", tt.name)
			assert.Equal(t, tt.keep, TempFileFilter(path))
		})
	}
}

func TestOutputDirFilter(t *testing.T) {
	filter := OutputDirFilter(filepath.Join("/site", "output"))

	assert.False(t, filter(filepath.Join("/site", "output")))
	assert.False(t, filter(filepath.Join("/site", "output", "index.html")))
	assert.False(t, filter(filepath.Join("/site", "output", "posts", "a", "index.html")))
	assert.True(t, filter(filepath.Join("/site", "output-notes", "a.md")))
	assert.True(t, filter(filepath.Join("/site", "content", "a.md")))
}
