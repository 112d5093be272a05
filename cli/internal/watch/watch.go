// Package watch re-runs a report whenever usage logs change.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/logger"
)

// DefaultDebounce is how long the logs must be quiet before a re-run
const DefaultDebounce = 2 * time.Second

const refreshKey = "refresh"

// Options configures a watch loop
type Options struct {
	Dir      string        // Directory tree to watch
	Debounce time.Duration // Quiet period before a re-run; 0 uses DefaultDebounce
	Interval time.Duration // Minimum time between runs
	Run      func(ctx context.Context) error
}

// Watch runs opts.Run once, then again after every settled burst of
// .jsonl changes under opts.Dir. It returns when ctx is cancelled. Errors
// from Run are logged and do not stop the loop.
func Watch(ctx context.Context, opts Options) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Interval <= 0 {
		return apperr.Newf(apperr.KindConfig, "watch", "interval must be positive, got %s", opts.Interval)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperr.New(apperr.KindIO, "start watcher", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
	}()

	if err := addTree(watcher, opts.Dir); err != nil {
		return apperr.WithPath(apperr.KindIO, "watch directory", opts.Dir, err)
	}

	limiter := rate.NewLimiter(rate.Every(opts.Interval), 1)
	triggers := make(chan struct{}, 1)
	debouncer := NewDebouncer(opts.Debounce, func(string) {
		select {
		case triggers <- struct{}{}:
		default:
		}
	})

	run := func() bool {
		if err := limiter.Wait(ctx); err != nil {
			return false
		}
		if err := opts.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("refresh failed", "error", err)
		}
		return true
	}

	if !run() {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					// Files may have landed before the watch was added
					debouncer.Schedule(refreshKey)
					continue
				}
			}
			if relevant(event) {
				logger.Debug("usage log changed", "path", event.Name, "op", event.Op.String())
				debouncer.Schedule(refreshKey)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)

		case <-triggers:
			if !run() {
				return nil
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(strings.ToLower(event.Name), ".jsonl") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// addTree watches dir and every directory below it
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// The root must be watchable; vanished subdirectories are skipped
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}
