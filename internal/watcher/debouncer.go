package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"
)

// DefaultDebounce is the minimum spacing between two delivered signals for
// the same path.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces bursts of change events per path. An event for path P
// is delivered when P has never been delivered or the previous delivery is
// at least the window old; anything else is dropped.
//
// The ledger of last delivery times is never pruned. It grows with the
// number of distinct paths touched during a session.
type Debouncer struct {
	window  time.Duration
	workDir string

	mutex  sync.Mutex
	ledger map[string]time.Time
}

// NewDebouncer creates a debouncer. Relative paths in delivered signals are
// computed against workDir.
func NewDebouncer(window time.Duration, workDir string) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}

	return &Debouncer{
		window:  window,
		workDir: workDir,
		ledger:  make(map[string]time.Time),
	}
}

// Accept decides whether ev is delivered and records the delivery.
func (d *Debouncer) Accept(ev ChangeEvent) (Signal, bool) {
	d.mutex.Lock()
	last, seen := d.ledger[ev.Path]
	if seen && ev.Time.Sub(last) < d.window {
		d.mutex.Unlock()
		return Signal{}, false
	}
	d.ledger[ev.Path] = ev.Time
	d.mutex.Unlock()

	return Signal{
		Path:    ev.Path,
		RelPath: d.relative(ev.Path),
		Type:    ev.Type,
		Time:    ev.Time,
	}, true
}

// Run feeds events from in through Accept and emits delivered signals. The
// returned channel is closed when in is closed or ctx is done.
func (d *Debouncer) Run(ctx context.Context, in <-chan ChangeEvent) <-chan Signal {
	out := make(chan Signal, 16)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					return
				}

				signal, deliver := d.Accept(ev)
				if !deliver {
					continue
				}

				select {
				case out <- signal:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Len returns the number of paths in the ledger.
func (d *Debouncer) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return len(d.ledger)
}

func (d *Debouncer) relative(path string) string {
	if d.workDir == "" {
		return filepath.ToSlash(path)
	}

	rel, err := filepath.Rel(d.workDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}

	return filepath.ToSlash(rel)
}
