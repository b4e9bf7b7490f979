package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ssgerrors "github.com/conneroisu/ssg/internal/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	return out.String(), err
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()

	path := filepath.Join(dir, ".ssg.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--format", "json")
	require.NoError(t, err)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "go_version")

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ssg ")

	_, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "server:\n  port: 6000\nbuild:\n  output: public\n")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 6000")
	assert.Contains(t, out, "output: public")
	assert.Contains(t, out, "debounce: 300ms")
}

func TestConfigShowEnvironmentOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SSG_SERVER_PORT", "7000")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 7000")
}

func TestConfigShowExplicitFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(t.TempDir())
	path := filepath.Join(dir, "custom.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  host: 127.0.0.1\n"), 0o644))

	out, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "host: 127.0.0.1")

	_, err = execute(t, "--config", filepath.Join(dir, "missing.yml"), "config", "show")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	writeConfig(t, dir, "server:\n  port: 70000\nlogging:\n  level: loud\n")
	out, err = execute(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "server.port")
	assert.Contains(t, out, "logging.level")
}

func TestBuildCommand(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}

	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "build:\n  command: \"true\"\nassets:\n  enabled: false\n")

	out, err := execute(t, "build")
	require.NoError(t, err)
	assert.Contains(t, out, "Built ")
}

func TestBuildCommandFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}

	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "build:\n  command: \"false\"\nassets:\n  enabled: false\n")

	_, err := execute(t, "build")
	require.Error(t, err)
	assert.ErrorIs(t, err, ssgerrors.ErrBuild)
}

func TestBuildRejectsUnsafeOutput(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, "build", "--output", ".")
	require.Error(t, err)
	assert.ErrorIs(t, err, ssgerrors.ErrConfig)
}

func TestServeRejectsArguments(t *testing.T) {
	_, err := execute(t, "serve", "extra")
	assert.Error(t, err)
}
