package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/conneroisu/ssg/internal/build"
	"github.com/conneroisu/ssg/internal/config"
	ssgerrors "github.com/conneroisu/ssg/internal/errors"
	"github.com/conneroisu/ssg/internal/livereload"
	"github.com/conneroisu/ssg/internal/logging"
	"github.com/conneroisu/ssg/internal/server"
	"github.com/conneroisu/ssg/internal/watcher"
)

// ShutdownTimeout bounds each step of graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// ServeService runs the preview server.
type ServeService struct {
	config *config.Config
	logger logging.Logger
}

// NewServeService creates a new serve service
func NewServeService(cfg *config.Config, logger logging.Logger) *ServeService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ServeService{
		config: cfg,
		logger: logger.WithComponent("serve"),
	}
}

// ServeOptions contains options for the serve command
type ServeOptions struct {
	WorkDir string
	// Stdout receives the startup banner. Defaults to os.Stdout.
	Stdout io.Writer

	// Pipeline and Assets replace the configured commands when set.
	Pipeline build.Pipeline
	Assets   build.AssetProcessor

	// Ready is called once the server is accepting connections.
	Ready func(info ServerInfo)
}

// ServerInfo contains information about the running server
type ServerInfo struct {
	LocalURL   string
	NetworkURL string
	Port       int
	OutputDir  string
	Watching   bool
}

// ServeResult contains the result of a serve session
type ServeResult struct {
	Info    ServerInfo
	Metrics build.BuildStats
}

// Serve builds the site once, then serves it with live reload until ctx is
// cancelled or the process receives SIGINT or SIGTERM. A failed initial
// build or an unusable port is returned as an error.
func (s *ServeService) Serve(ctx context.Context, opts ServeOptions) (*ServeResult, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	workDir, err := resolveWorkDir(opts.WorkDir)
	if err != nil {
		return nil, err
	}

	hub := livereload.NewHub(livereload.HubOptions{Logger: s.logger})

	coordinator, err := newCoordinator(s.config, workDir, opts.Pipeline, opts.Assets, hub, s.logger)
	if err != nil {
		_ = hub.Close()
		return nil, err
	}

	serverOpts := server.Options{
		Root:           coordinator.OutputDir(),
		LiveReload:     http.HandlerFunc(hub.HandleWebSocket),
		MaxRewriteSize: s.config.Development.MaxRewriteSize,
		CacheEntries:   s.config.Development.HTMLCacheEntries,
		Logger:         s.logger,
	}
	if s.config.Development.ErrorOverlay {
		serverOpts.Status = coordinator
	}
	content, err := server.NewContentServer(serverOpts)
	if err != nil {
		_ = hub.Close()
		return nil, err
	}
	coordinator.AddCallback(func(result build.BuildResult) {
		content.PurgeCache()
	})

	fmt.Fprintln(out, "Building site...")
	if err := coordinator.ForceBuild(ctx); err != nil {
		_ = coordinator.Close(context.Background())
		_ = hub.Close()
		return nil, err
	}

	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = coordinator.Close(context.Background())
		_ = hub.Close()
		return nil, ssgerrors.NewServerFatalError(s.config.Server.Host, s.config.Server.Port, err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	info := GetServerInfo(s.config.Server.Host, port)
	info.OutputDir = coordinator.OutputDir()

	var pathWatcher *watcher.PathWatcher
	if s.config.Watch.Enabled {
		pathWatcher, err = s.startWatching(ctx, workDir, coordinator)
		if err != nil {
			s.logger.Warn(ctx, err, "File watching unavailable, serving without rebuilds")
		}
	}
	info.Watching = pathWatcher != nil

	httpServer := &http.Server{
		Handler:           content.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	fmt.Fprintf(out, "Serving %s\n", info.OutputDir)
	fmt.Fprintf(out, "  Local:   %s\n", info.LocalURL)
	if info.NetworkURL != "" {
		fmt.Fprintf(out, "  Network: %s\n", info.NetworkURL)
	}
	if info.Watching {
		fmt.Fprintln(out, "Watching for changes")
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	s.logger.Info(ctx, "Server started", "addr", listener.Addr().String(), "watching", info.Watching)

	if opts.Ready != nil {
		opts.Ready(info)
	}

	var runErr error
	select {
	case <-ctx.Done():
		fmt.Fprintln(out, "Shutting down...")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = ssgerrors.NewServerFatalError(s.config.Server.Host, port, err)
		}
	}

	s.shutdown(coordinator, pathWatcher, hub, httpServer)

	return &ServeResult{Info: info, Metrics: coordinator.Metrics()}, runErr
}

// startWatching wires watcher, debouncer and coordinator together.
func (s *ServeService) startWatching(ctx context.Context, workDir string, coordinator *build.Coordinator) (*watcher.PathWatcher, error) {
	roots := make([]watcher.Root, 0, len(s.config.Watch.Roots))
	for _, r := range s.config.Watch.Roots {
		roots = append(roots, watcher.Root{Path: r.Path, Pattern: r.Pattern, Recursive: r.Recursive})
	}

	pathWatcher, err := watcher.NewPathWatcher(watcher.Options{
		WorkDir:   workDir,
		OutputDir: coordinator.OutputDir(),
		Roots:     roots,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, err
	}

	if err := pathWatcher.Start(ctx); err != nil {
		_ = pathWatcher.Stop()
		return nil, err
	}

	debouncer := watcher.NewDebouncer(s.config.Watch.Debounce, workDir)
	go coordinator.Run(ctx, debouncer.Run(ctx, pathWatcher.Events()))

	return pathWatcher, nil
}

// shutdown stops the build pipeline first so that no reload is broadcast to
// a closing hub, then the watcher, the hub and finally the HTTP server.
func (s *ServeService) shutdown(coordinator *build.Coordinator, pathWatcher *watcher.PathWatcher,
	hub *livereload.Hub, httpServer *http.Server) {
	ctx := context.Background()

	closeCtx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	if err := coordinator.Close(closeCtx); err != nil {
		s.logger.Warn(ctx, err, "Cancelled in-flight build")
	}
	cancel()

	if pathWatcher != nil {
		if err := pathWatcher.Stop(); err != nil {
			s.logger.Warn(ctx, err, "Stopping watcher failed")
		}
	}

	if err := hub.Close(); err != nil {
		s.logger.Warn(ctx, err, "Closing live reload connections failed")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, err, "HTTP server shutdown failed")
	}

	s.logger.Info(ctx, "Server stopped")
}

// GetServerInfo returns the URLs a server bound to host:port is reachable
// at. NetworkURL is empty when no non-loopback address is found.
func GetServerInfo(host string, port int) ServerInfo {
	info := ServerInfo{Port: port}

	switch host {
	case "", "0.0.0.0", "::":
		info.LocalURL = fmt.Sprintf("http://localhost:%d", port)
		if ip := networkAddress(); ip != "" {
			info.NetworkURL = "http://" + net.JoinHostPort(ip, strconv.Itoa(port))
		}
	default:
		info.LocalURL = "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	}

	return info
}

func networkAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}

	return ""
}
