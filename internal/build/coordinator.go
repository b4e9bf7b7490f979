package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	ssgerrors "github.com/conneroisu/ssg/internal/errors"
	"github.com/conneroisu/ssg/internal/livereload"
	"github.com/conneroisu/ssg/internal/logging"
	"github.com/conneroisu/ssg/internal/watcher"
)

// State is the coordinator's build state.
type State int

const (
	StateIdle State = iota
	StateBuilding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	default:
		return "unknown"
	}
}

// Notifier pushes a message to every connected browser and reports how many
// received it.
type Notifier interface {
	Broadcast(ctx context.Context, msg string) int
}

// BuildResult represents the result of a build operation
type BuildResult struct {
	Reason   string
	Error    error
	Duration time.Duration
	FollowUp bool
	Time     time.Time
}

// BuildCallback is called when a build completes, before browsers are
// notified.
type BuildCallback func(result BuildResult)

// Options configures a Coordinator.
type Options struct {
	WorkDir       string
	OutputDir     string
	IncludeDrafts bool

	// AtomicSwap builds into a staging directory and renames it over
	// OutputDir on success.
	AtomicSwap bool
	// RebuildOnDropped runs exactly one extra build after the in-flight
	// one when triggers were dropped in the meantime.
	RebuildOnDropped bool

	Pipeline Pipeline
	Assets   AssetProcessor // optional
	Notifier Notifier       // optional
	Logger   logging.Logger
}

// Coordinator serializes rebuilds. It is Idle or Building; a trigger that
// arrives while Building is dropped, never queued.
type Coordinator struct {
	workDir          string
	outputDir        string
	includeDrafts    bool
	atomicSwap       bool
	rebuildOnDropped bool

	pipeline Pipeline
	assets   AssetProcessor
	notifier Notifier
	logger   logging.Logger
	metrics  *BuildMetrics

	// builds run under buildCtx so that Close can cancel them.
	buildCtx    context.Context
	cancelBuild context.CancelFunc
	inflight    sync.WaitGroup

	mutex     sync.Mutex
	state     State
	dirty     bool
	closed    bool
	lastErr   error
	callbacks []BuildCallback
}

// NewCoordinator creates a coordinator in the Idle state.
func NewCoordinator(opts Options) (*Coordinator, error) {
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("build pipeline is required")
	}

	workDir, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	outputDir := opts.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(workDir, outputDir)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		workDir:          workDir,
		outputDir:        filepath.Clean(outputDir),
		includeDrafts:    opts.IncludeDrafts,
		atomicSwap:       opts.AtomicSwap,
		rebuildOnDropped: opts.RebuildOnDropped,
		pipeline:         opts.Pipeline,
		assets:           opts.Assets,
		notifier:         opts.Notifier,
		logger:           logger.WithComponent("build"),
		metrics:          NewBuildMetrics(),
		buildCtx:         ctx,
		cancelBuild:      cancel,
	}, nil
}

// OutputDir returns the absolute directory the site is generated into.
func (c *Coordinator) OutputDir() string {
	return c.outputDir
}

// AddCallback registers a function run after every build.
func (c *Coordinator) AddCallback(cb BuildCallback) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.callbacks = append(c.callbacks, cb)
}

// State returns the current build state.
func (c *Coordinator) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.state
}

// LastError returns the error of the most recent build, or nil when it
// succeeded.
func (c *Coordinator) LastError() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.lastErr
}

// Metrics returns a snapshot of the build metrics.
func (c *Coordinator) Metrics() BuildStats {
	return c.metrics.GetSnapshot()
}

// ForceBuild runs a build synchronously and returns its error. It fails
// immediately when another build is in flight.
func (c *Coordinator) ForceBuild(ctx context.Context) error {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return fmt.Errorf("coordinator is closed")
	}
	if c.state == StateBuilding {
		c.mutex.Unlock()
		return fmt.Errorf("build already in progress")
	}
	c.state = StateBuilding
	c.inflight.Add(1)
	c.mutex.Unlock()

	// Either cancellation stops the build.
	buildCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.buildCtx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	err := c.build(buildCtx, "initial build", false)
	c.finish()

	return err
}

// TriggerRebuild starts a build on a new goroutine when Idle and reports
// whether it did. While Building the trigger is counted and dropped.
func (c *Coordinator) TriggerRebuild(reason string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false
	}

	if c.state == StateBuilding {
		c.metrics.RecordDropped()
		if c.rebuildOnDropped {
			c.dirty = true
		}
		c.logger.Info(c.buildCtx, "Build already in progress, change dropped", "reason", reason)
		return false
	}

	c.state = StateBuilding
	c.inflight.Add(1)
	go c.run(reason, false)

	return true
}

// Run triggers one rebuild per signal until signals is closed or ctx is
// done.
func (c *Coordinator) Run(ctx context.Context, signals <-chan watcher.Signal) {
	title := cases.Title(language.English)

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			c.logger.Info(ctx, title.String(sig.Type.String())+" "+sig.RelPath)
			c.TriggerRebuild(sig.RelPath)
		}
	}
}

func (c *Coordinator) run(reason string, followUp bool) {
	_ = c.build(c.buildCtx, reason, followUp)
	c.finish()
}

// finish returns to Idle, or starts the single follow-up build owed for
// dropped triggers.
func (c *Coordinator) finish() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.dirty && !c.closed {
		c.dirty = false
		go c.run("changes during previous build", true)
		return
	}

	c.dirty = false
	c.state = StateIdle
	c.inflight.Done()
}

// build runs the pipeline, then on success the swap, the asset step,
// callbacks and the reload broadcast, in that order.
func (c *Coordinator) build(ctx context.Context, reason string, followUp bool) error {
	start := time.Now()

	target := c.outputDir
	if c.atomicSwap {
		target = stagingDir(c.outputDir)
		if err := os.RemoveAll(target); err != nil {
			return c.failed(ctx, reason, followUp, start, fmt.Errorf("clearing staging directory: %w", err))
		}
	}

	if err := c.pipeline.Build(ctx, c.workDir, target, c.includeDrafts); err != nil {
		if c.atomicSwap {
			_ = os.RemoveAll(target)
		}
		return c.failed(ctx, reason, followUp, start, err)
	}

	if c.atomicSwap {
		if err := swapInto(target, c.outputDir); err != nil {
			return c.failed(ctx, reason, followUp, start, err)
		}
	}

	if c.assets != nil {
		if err := c.assets.Run(ctx, c.workDir); err != nil {
			c.logger.Warn(ctx, err, "Asset step failed")
		}
	}

	result := BuildResult{Reason: reason, Duration: time.Since(start), FollowUp: followUp, Time: time.Now()}
	c.complete(ctx, result)

	c.logger.Info(ctx, "Rebuilt", "reason", reason, "duration_ms", result.Duration.Milliseconds())

	if c.notifier != nil {
		delivered := c.notifier.Broadcast(ctx, livereload.ReloadMessage)
		c.logger.Debug(ctx, "Reload sent", "clients", delivered)
	}

	return nil
}

func (c *Coordinator) failed(ctx context.Context, reason string, followUp bool, start time.Time, cause error) error {
	err := ssgerrors.NewBuildPipelineError(reason, cause)
	result := BuildResult{Reason: reason, Error: err, Duration: time.Since(start), FollowUp: followUp, Time: time.Now()}
	c.complete(ctx, result)

	c.logger.Error(ctx, err, "Build failed", "reason", reason, "duration_ms", result.Duration.Milliseconds())

	return err
}

func (c *Coordinator) complete(_ context.Context, result BuildResult) {
	c.metrics.RecordBuild(result)

	c.mutex.Lock()
	c.lastErr = result.Error
	callbacks := append([]BuildCallback(nil), c.callbacks...)
	c.mutex.Unlock()

	for _, cb := range callbacks {
		cb(result)
	}
}

// Close stops accepting triggers and waits for the in-flight build. When
// ctx expires first the build is cancelled and ctx's error returned.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mutex.Lock()
	c.closed = true
	c.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancelBuild()
		return nil
	case <-ctx.Done():
		c.cancelBuild()
		<-done
		return ctx.Err()
	}
}
