package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

type watchConfig struct {
	debounce time.Duration
}

// WithDebounce sets how long Watch waits for events to settle before
// reloading.
func WithDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// Watch calls fn with the result of Load(path) every time the file changes,
// until ctx is done. The parent directory is watched so that atomic
// rename-over saves are seen. Watch blocks; it returns nil when ctx ends.
func Watch(ctx context.Context, path string, fn func(Config, error), opts ...WatchOption) error {
	cfg := watchConfig{debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(&cfg)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}
	log.Debugw("watching config", "path", abs)

	// Stopped timer; armed on the first relevant event.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(cfg.debounce)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnw("config watcher error", "error", err)

		case <-timer.C:
			c, err := Load(abs)
			if err != nil {
				log.Warnw("config reload failed", "path", abs, "error", err)
			} else {
				log.Infow("config reloaded", "path", abs)
			}
			fn(c, err)
		}
	}
}
