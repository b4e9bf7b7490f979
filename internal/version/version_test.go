package version

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildInfoShort(t *testing.T) {
	tests := []struct {
		name string
		info BuildInfo
		want string
	}{
		{"unknown commit", BuildInfo{Version: "v1.0.0", GitCommit: "unknown"}, "v1.0.0"},
		{"short commit", BuildInfo{Version: "v1.0.0", GitCommit: "abc"}, "v1.0.0"},
		{"full commit", BuildInfo{Version: "v1.0.0", GitCommit: "0123456789abcdef"}, "v1.0.0 (0123456)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Short())
		})
	}
}

func TestBuildInfoIsRelease(t *testing.T) {
	assert.True(t, BuildInfo{Version: "v0.3.1"}.IsRelease())
	assert.False(t, BuildInfo{Version: "dev"}.IsRelease())
	assert.False(t, BuildInfo{Version: "dev-0123456"}.IsRelease())
}

func TestBuildInfoString(t *testing.T) {
	info := BuildInfo{
		Version:   "v1.0.0",
		GitCommit: "0123456789",
		BuildTime: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
		Dirty:     true,
	}

	out := info.String()
	assert.Contains(t, out, "Version: v1.0.0")
	assert.Contains(t, out, "Commit: 0123456789 (dirty)")
	assert.Contains(t, out, "Built: 2024-05-01T12:00:00Z")
	assert.Contains(t, out, "Platform: linux/amd64")

	assert.NotContains(t, BuildInfo{Version: "dev", GitCommit: "unknown"}.String(), "Commit:")
}

func TestGetBuildInfoStamped(t *testing.T) {
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime })

	Version = "v2.0.0"
	GitCommit = "fedcba9876543210"
	BuildTime = "2024-01-02T03:04:05Z"

	info := GetBuildInfo()
	assert.Equal(t, "v2.0.0", info.Version)
	assert.Equal(t, "fedcba9876543210", info.GitCommit)
	assert.Equal(t, 2024, info.BuildTime.Year())
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}
