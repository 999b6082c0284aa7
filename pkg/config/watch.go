package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions controls the debounce window for Watch.
type WatchOptions struct {
	DebounceInterval time.Duration
}

// DefaultWatchOptions returns the default debounce window.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{DebounceInterval: 200 * time.Millisecond}
}

// Watch watches path for writes and calls onReload after each debounced
// burst of changes, until ctx is cancelled. A single fsnotify write burst
// (editors often emit several events per save) yields exactly one
// onReload call. Errors from onReload are logged, not returned — a bad
// edit to the config file should not kill the watcher, only skip that
// reload (the previous config stays live, matching ReloadConfig's
// fail-closed semantics).
func Watch(ctx context.Context, path string, opts WatchOptions, onReload func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(path)

	var debounceTimer *time.Timer
	debounceC := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(opts.DebounceInterval, func() {
				select {
				case debounceC <- struct{}{}:
				default:
				}
			})

		case <-debounceC:
			if err := onReload(); err != nil {
				slog.Warn("config watch: reload failed, keeping previous config", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("config watch: watcher error", "error", err)
		}
	}
}
