package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	surface "github.com/surfacehq/surface"
)

// debounceWindow coalesces the burst of write events editors emit when
// saving a file.
const debounceWindow = 250 * time.Millisecond

// Watch reloads the config file on change and passes each valid new
// config to onChange. Invalid configs are logged and skipped; the running
// service keeps its last good config. Watch blocks until ctx is canceled.
func Watch(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return surface.NewInternalError("config.Watch", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return surface.NewConfigurationError("config.Watch", err)
	}

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}
		case <-timerC:
			cfg, err := Load(path)
			if err != nil {
				logger.Warn("config reload failed, keeping previous config",
					"path", path, "error", err)
				continue
			}
			logger.Info("config reloaded", "path", path)
			onChange(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
