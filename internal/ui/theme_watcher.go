package ui

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"
)

// ThemeWatcher follows OS dark-mode changes so a "system" theme_name tracks
// the desktop live. Sessions configured with an explicit theme never start
// one.
type ThemeWatcher struct {
	changeCh  chan Theme
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching. Returns nil when the platform cannot
// report dark mode; callers fall back to the startup theme.
func NewThemeWatcher(parentCtx context.Context) *ThemeWatcher {
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changeCh: make(chan Theme, 1),
		closeCh:  make(chan struct{}),
	}
	go tw.watch(cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) watch(cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			theme := ThemeLight
			if isDark {
				theme = ThemeDark
			}
			// Drop the update if the consumer has not read the last one.
			select {
			case tw.changeCh <- theme:
			default:
			}
		case err, ok := <-errs:
			if ok && err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// Changes returns the channel delivering resolved themes.
func (tw *ThemeWatcher) Changes() <-chan Theme {
	return tw.changeCh
}

// Close stops the watcher. Safe to call more than once.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(func() {
		close(tw.closeCh)
	})
}
