package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/ssg/internal/config"
	ssgerrors "github.com/conneroisu/ssg/internal/errors"
)

// sitePipeline writes a one-page site, numbering each build.
type sitePipeline struct {
	calls  atomic.Int32
	drafts atomic.Bool
	err    error
}

func (p *sitePipeline) Build(ctx context.Context, workDir, outputPath string, includeDrafts bool) error {
	n := p.calls.Add(1)
	p.drafts.Store(includeDrafts)
	if p.err != nil {
		return p.err
	}
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return err
	}
	page := fmt.Sprintf(`<html><head><base href="/docs/"></head><body>build %d</body></html>`, n)
	return os.WriteFile(filepath.Join(outputPath, "index.html"), []byte(page), 0o644)
}

type countingAssets struct {
	calls atomic.Int32
}

func (a *countingAssets) Run(ctx context.Context, workDir string) error {
	a.calls.Add(1)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Decode(viper.New())
	require.NoError(t, err)

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Assets.Enabled = false
	cfg.Watch.Debounce = 50 * time.Millisecond
	cfg.Watch.Roots = []config.WatchRoot{{Path: "content", Pattern: "*.md", Recursive: true}}

	return cfg
}

func siteDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "content"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "a.md"), []byte("# a"), 0o644))

	return dir
}

type session struct {
	cancel context.CancelFunc
	info   ServerInfo
	done   chan struct{}
	result *ServeResult
	err    error
}

func startServe(t *testing.T, cfg *config.Config, opts ServeOptions) *session {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan ServerInfo, 1)
	opts.Ready = func(info ServerInfo) { ready <- info }
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}

	s := &session{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		s.result, s.err = NewServeService(cfg, nil).Serve(ctx, opts)
	}()

	select {
	case s.info = <-ready:
	case <-s.done:
		t.Fatalf("serve exited early: %v", s.err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("server did not become ready")
	}

	t.Cleanup(func() { s.stop(t) })

	return s
}

func (s *session) stop(t *testing.T) {
	t.Helper()

	s.cancel()
	select {
	case <-s.done:
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestServeInjectsClientAndReloadsOnChange(t *testing.T) {
	dir := siteDir(t)
	pipeline := &sitePipeline{}
	assets := &countingAssets{}

	s := startServe(t, testConfig(t), ServeOptions{WorkDir: dir, Pipeline: pipeline, Assets: assets})
	assert.True(t, s.info.Watching)
	assert.Equal(t, int32(1), pipeline.calls.Load())
	assert.Equal(t, int32(1), assets.calls.Load())

	resp, err := http.Get(s.info.LocalURL + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `<base href="/">`)
	assert.Contains(t, string(body), "/livereload")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(s.info.LocalURL, "http") + "/livereload"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// Give the hub a moment to register the connection.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "a.md"), []byte("# changed"), 0o644))

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	assert.Equal(t, "reload", string(data))

	assert.GreaterOrEqual(t, pipeline.calls.Load(), int32(2))
	assert.GreaterOrEqual(t, assets.calls.Load(), int32(2))

	resp, err = http.Get(s.info.LocalURL + "/")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.NotContains(t, string(body), "build 1<")

	s.stop(t)
	require.NoError(t, s.err)
	require.NotNil(t, s.result)
	assert.GreaterOrEqual(t, s.result.Metrics.SuccessfulBuilds, int64(2))
}

func TestServeCoalescesRapidEdits(t *testing.T) {
	dir := siteDir(t)
	cfg := testConfig(t)
	cfg.Watch.Debounce = 300 * time.Millisecond
	pipeline := &sitePipeline{}

	s := startServe(t, cfg, ServeOptions{WorkDir: dir, Pipeline: pipeline, Assets: &countingAssets{}})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(s.info.LocalURL, "http") + "/livereload"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()
	time.Sleep(100 * time.Millisecond)

	page := filepath.Join(dir, "content", "a.md")
	require.NoError(t, os.WriteFile(page, []byte("# one"), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(page, []byte("# two"), 0o644))

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reload", string(data))

	quiet, cancelQuiet := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancelQuiet()
	_, _, err = conn.Read(quiet)
	assert.Error(t, err, "a second reload was sent")

	assert.Equal(t, int32(2), pipeline.calls.Load(), "startup build plus one rebuild")

	s.stop(t)
	require.NoError(t, s.err)
	assert.Equal(t, int64(2), s.result.Metrics.TotalBuilds)
	assert.Zero(t, s.result.Metrics.DroppedTriggers)
}

func TestServeIgnoresTempFiles(t *testing.T) {
	dir := siteDir(t)
	pipeline := &sitePipeline{}

	startServe(t, testConfig(t), ServeOptions{WorkDir: dir, Pipeline: pipeline, Assets: &countingAssets{}})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "a.md.swp"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", ".hidden.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "notes.txt"), []byte("x"), 0o644))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), pipeline.calls.Load())
}

func TestServeWithoutWatching(t *testing.T) {
	dir := siteDir(t)
	cfg := testConfig(t)
	cfg.Watch.Enabled = false
	pipeline := &sitePipeline{}

	var out bytes.Buffer
	s := startServe(t, cfg, ServeOptions{WorkDir: dir, Pipeline: pipeline, Assets: &countingAssets{}, Stdout: &out})
	assert.False(t, s.info.Watching)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "content", "a.md"), []byte("# changed"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), pipeline.calls.Load())

	s.stop(t)
	assert.Contains(t, out.String(), "Local:")
	assert.Contains(t, out.String(), s.info.LocalURL)
}

func TestServeInitialBuildFailure(t *testing.T) {
	dir := siteDir(t)
	pipeline := &sitePipeline{err: errors.New("compiler exploded")}

	_, err := NewServeService(testConfig(t), nil).Serve(context.Background(), ServeOptions{
		WorkDir:  dir,
		Pipeline: pipeline,
		Assets:   &countingAssets{},
		Stdout:   io.Discard,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ssgerrors.ErrBuild)
	assert.Contains(t, err.Error(), "compiler exploded")
}

func TestServePortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig(t)
	cfg.Server.Port = busy.Addr().(*net.TCPAddr).Port

	_, err = NewServeService(cfg, nil).Serve(context.Background(), ServeOptions{
		WorkDir:  siteDir(t),
		Pipeline: &sitePipeline{},
		Assets:   &countingAssets{},
		Stdout:   io.Discard,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ssgerrors.ErrServer)
	assert.True(t, ssgerrors.IsFatal(err))
}

func TestServeRejectsUnsafeOutputDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Build.OutputDir = "."

	_, err := NewServeService(cfg, nil).Serve(context.Background(), ServeOptions{
		WorkDir:  siteDir(t),
		Pipeline: &sitePipeline{},
		Stdout:   io.Discard,
	})
	require.Error(t, err)
}

func TestGetServerInfo(t *testing.T) {
	info := GetServerInfo("0.0.0.0", 5000)
	assert.Equal(t, "http://localhost:5000", info.LocalURL)
	assert.Equal(t, 5000, info.Port)
	if info.NetworkURL != "" {
		assert.True(t, strings.HasPrefix(info.NetworkURL, "http://"))
		assert.True(t, strings.HasSuffix(info.NetworkURL, ":5000"))
	}

	info = GetServerInfo("127.0.0.1", 8080)
	assert.Equal(t, "http://127.0.0.1:8080", info.LocalURL)
	assert.Empty(t, info.NetworkURL)
}

func TestBuildService(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		dir := siteDir(t)
		pipeline := &sitePipeline{}
		assets := &countingAssets{}

		var out bytes.Buffer
		result, err := NewBuildService(testConfig(t), nil).Build(context.Background(), BuildOptions{
			WorkDir:  dir,
			Stdout:   &out,
			Pipeline: pipeline,
			Assets:   assets,
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, filepath.Join(dir, "output"), result.OutputDir)
		assert.FileExists(t, filepath.Join(dir, "output", "index.html"))
		assert.False(t, pipeline.drafts.Load())
		assert.Equal(t, int32(1), assets.calls.Load())
		assert.Contains(t, out.String(), "Built ")
	})

	t.Run("drafts", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Build.IncludeDrafts = true
		pipeline := &sitePipeline{}

		_, err := NewBuildService(cfg, nil).Build(context.Background(), BuildOptions{
			WorkDir:  siteDir(t),
			Stdout:   io.Discard,
			Pipeline: pipeline,
		})
		require.NoError(t, err)
		assert.True(t, pipeline.drafts.Load())
	})

	t.Run("failure", func(t *testing.T) {
		result, err := NewBuildService(testConfig(t), nil).Build(context.Background(), BuildOptions{
			WorkDir:  siteDir(t),
			Stdout:   io.Discard,
			Pipeline: &sitePipeline{err: errors.New("bad front matter")},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ssgerrors.ErrBuild)
		require.NotNil(t, result)
		assert.False(t, result.Success)
	})
}
