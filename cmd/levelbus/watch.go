package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the bursts of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

// watchScript runs fn once, then again after every change to path, until
// ctx is done. The directory is watched rather than the file so that
// editors which replace the file on save keep triggering reruns.
func watchScript(ctx context.Context, path string, logger *slog.Logger, fn func() int) int {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("creating watcher", "error", err)
		return 1
	}
	defer w.Close()

	target := filepath.Clean(path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		logger.Error("watching script directory", "script", path, "error", err)
		return 1
	}

	code := fn()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return code

		case ev, ok := <-w.Events:
			if !ok {
				return code
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return code
			}
			logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			logger.Info("script changed, rerunning", "script", path)
			code = fn()
		}
	}
}
