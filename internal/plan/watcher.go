package plan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the plans directory with fsnotify and signals the UI when
// plans are created, regenerated, or removed, so the plan list refreshes
// without a manual action.
type Watcher struct {
	dir      string
	watcher  *fsnotify.Watcher
	refreshC chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// debounceWindow coalesces rapid file events (a save touches the markdown,
// the description, and plan.toml in quick succession).
const debounceWindow = 250 * time.Millisecond

// NewWatcher creates a watcher for the plans directory. The directory is
// created if missing so the watch can be established before the first plan.
func NewWatcher(dir string) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plans dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		dir:      dir,
		watcher:  fsw,
		refreshC: make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins watching. Must be called in a goroutine; blocks until Stop().
func (w *Watcher) Start() {
	if err := w.watcher.Add(w.dir); err != nil {
		planLog.Warn("plan_watcher_add_failed",
			slog.String("dir", w.dir),
			slog.String("error", err.Error()),
		)
		return
	}

	var debounce *time.Timer
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceWindow, w.notify)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			planLog.Warn("plan_watcher_error", slog.String("error", err.Error()))
		}
	}
}

// notify delivers a refresh signal without blocking; a pending signal is enough.
func (w *Watcher) notify() {
	select {
	case w.refreshC <- struct{}{}:
	default:
	}
}

// RefreshChannel returns the channel that receives refresh signals.
func (w *Watcher) RefreshChannel() <-chan struct{} {
	return w.refreshC
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() {
	w.cancel()
	w.watcher.Close()
}
