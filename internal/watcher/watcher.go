// Package watcher turns filesystem notifications for the site's sources into
// a stream of change events and debounces them into rebuild signals.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	ssgerrors "github.com/conneroisu/ssg/internal/errors"
	"github.com/conneroisu/ssg/internal/logging"
	"github.com/conneroisu/ssg/internal/validation"
)

// Root is a directory or single file to observe.
type Root struct {
	Path      string
	Pattern   string
	Recursive bool
}

// Options configures a PathWatcher.
type Options struct {
	// WorkDir anchors relative root and output paths.
	WorkDir   string
	OutputDir string
	Roots     []Root
	Logger    logging.Logger
}

type watchRoot struct {
	path      string
	pattern   string
	matcher   glob.Glob // nil matches every name
	recursive bool
	file      bool
}

// PathWatcher watches the configured roots and reports relevant changes on
// Events.
type PathWatcher struct {
	watcher *fsnotify.Watcher
	roots   []watchRoot
	filters []FileFilter
	logger  logging.Logger

	events chan ChangeEvent
	done   chan struct{}

	mutex    sync.RWMutex
	started  bool
	stopOnce sync.Once
	regErrs  []error
}

// NewPathWatcher creates a watcher and registers every root. Roots that do
// not exist are skipped; roots that fail to register are logged and skipped.
// An error is returned only when the notification backend is unavailable.
func NewPathWatcher(opts Options) (*PathWatcher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("watcher")

	workDir, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	pw := &PathWatcher{
		watcher: fsw,
		logger:  logger,
		events:  make(chan ChangeEvent, 100),
		done:    make(chan struct{}),
	}

	pw.AddFilter(TempFileFilter)
	if opts.OutputDir != "" {
		pw.AddFilter(OutputDirFilter(absolute(workDir, opts.OutputDir)))
	}

	for _, root := range opts.Roots {
		pw.register(workDir, root)
	}

	return pw, nil
}

func absolute(workDir, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workDir, path)
}

// register adds one root. Failures are logged and recorded, never returned.
func (pw *PathWatcher) register(workDir string, root Root) {
	ctx := context.Background()
	path := absolute(workDir, root.Path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			pw.logger.Warn(ctx, nil, "Watch root does not exist, skipping", "path", root.Path)
			return
		}
		pw.registrationFailed(ctx, path, root.Pattern, err)
		return
	}

	wr := watchRoot{path: path, pattern: root.Pattern, recursive: root.Recursive}

	if !info.IsDir() {
		wr.file = true
		if err := pw.watcher.Add(filepath.Dir(path)); err != nil {
			pw.registrationFailed(ctx, path, root.Pattern, err)
			return
		}
		pw.addRoot(wr)
		return
	}

	if root.Pattern != "" && root.Pattern != "*" {
		matcher, err := glob.Compile(root.Pattern)
		if err != nil {
			pw.registrationFailed(ctx, path, root.Pattern, err)
			return
		}
		wr.matcher = matcher
	}

	if err := pw.addDirs(path, root.Recursive); err != nil {
		pw.registrationFailed(ctx, path, root.Pattern, err)
		return
	}

	pw.addRoot(wr)
	pw.logger.Debug(ctx, "Watching", "path", root.Path, "pattern", root.Pattern, "recursive", root.Recursive)
}

func (pw *PathWatcher) registrationFailed(ctx context.Context, path, pattern string, cause error) {
	err := ssgerrors.NewWatchRegistrationError(path, pattern, cause)
	pw.logger.Warn(ctx, err, "Watch registration failed, continuing with remaining roots")

	pw.mutex.Lock()
	pw.regErrs = append(pw.regErrs, err)
	pw.mutex.Unlock()
}

func (pw *PathWatcher) addRoot(wr watchRoot) {
	pw.mutex.Lock()
	pw.roots = append(pw.roots, wr)
	pw.mutex.Unlock()
}

// addDirs watches dir and, when recursive, every directory beneath it that
// passes the filters.
func (pw *PathWatcher) addDirs(dir string, recursive bool) error {
	if !recursive {
		return pw.watcher.Add(dir)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && !pw.passesFilters(path) {
			return filepath.SkipDir
		}
		return pw.watcher.Add(path)
	})
}

// AddFilter adds a file filter
func (pw *PathWatcher) AddFilter(filter FileFilter) {
	pw.mutex.Lock()
	defer pw.mutex.Unlock()
	pw.filters = append(pw.filters, filter)
}

// RegistrationErrors returns the registration failures seen so far.
func (pw *PathWatcher) RegistrationErrors() []error {
	pw.mutex.RLock()
	defer pw.mutex.RUnlock()

	return append([]error(nil), pw.regErrs...)
}

// Events returns the channel of filtered change events. It is closed after
// Stop.
func (pw *PathWatcher) Events() <-chan ChangeEvent {
	return pw.events
}

// Start begins asynchronous delivery. Calling Start more than once has no
// further effect.
func (pw *PathWatcher) Start(ctx context.Context) error {
	pw.mutex.Lock()
	defer pw.mutex.Unlock()

	select {
	case <-pw.done:
		return fmt.Errorf("watcher already stopped")
	default:
	}

	if pw.started {
		return nil
	}
	pw.started = true

	go pw.watchLoop(ctx)

	return nil
}

// Stop unregisters every watch. It is idempotent and safe to call without a
// prior Start.
func (pw *PathWatcher) Stop() error {
	var err error

	pw.stopOnce.Do(func() {
		pw.mutex.Lock()
		started := pw.started
		close(pw.done)
		pw.mutex.Unlock()

		err = pw.watcher.Close()

		if !started {
			close(pw.events)
		}
	})

	return err
}

func (pw *PathWatcher) watchLoop(ctx context.Context) {
	defer close(pw.events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-pw.done:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (pw *PathWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	// The old name of a rename is dropped; the new name arrives as Create.
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) == 0 {
		return
	}

	path := filepath.Clean(event.Name)
	if !pw.passesFilters(path) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			pw.handleNewDir(ctx, path)
			return
		}
	}

	if !pw.matches(path) {
		return
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	default:
		eventType = EventTypeModified
	}

	pw.emit(ctx, ChangeEvent{Type: eventType, Path: path, Time: time.Now()})
}

// handleNewDir starts watching a directory created under a recursive root
// and reports files that appeared before the watch was in place.
func (pw *PathWatcher) handleNewDir(ctx context.Context, dir string) {
	if !pw.underRecursiveRoot(dir) {
		return
	}

	if err := pw.addDirs(dir, true); err != nil {
		pw.registrationFailed(ctx, dir, "", err)
		return
	}

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if pw.passesFilters(path) && pw.matches(path) {
			pw.emit(ctx, ChangeEvent{Type: EventTypeCreated, Path: path, Time: time.Now()})
		}
		return nil
	})
}

func (pw *PathWatcher) emit(ctx context.Context, ev ChangeEvent) {
	select {
	case pw.events <- ev:
	case <-ctx.Done():
	case <-pw.done:
	}
}

func (pw *PathWatcher) passesFilters(path string) bool {
	pw.mutex.RLock()
	filters := pw.filters
	pw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(path) {
			return false
		}
	}

	return true
}

// matches reports whether path belongs to at least one root.
func (pw *PathWatcher) matches(path string) bool {
	pw.mutex.RLock()
	defer pw.mutex.RUnlock()

	for _, root := range pw.roots {
		if root.file {
			if path == root.path {
				return true
			}
			continue
		}

		if path == root.path || !validation.WithinRoot(root.path, path) {
			continue
		}
		if !root.recursive && filepath.Dir(path) != root.path {
			continue
		}
		if root.matcher == nil || root.matcher.Match(filepath.Base(path)) {
			return true
		}
	}

	return false
}

func (pw *PathWatcher) underRecursiveRoot(dir string) bool {
	pw.mutex.RLock()
	defer pw.mutex.RUnlock()

	for _, root := range pw.roots {
		if !root.file && root.recursive && validation.WithinRoot(root.path, dir) {
			return true
		}
	}

	return false
}
