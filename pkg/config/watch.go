package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadSettle coalesces the burst of events editors produce on save.
const reloadSettle = 250 * time.Millisecond

// Watch reloads the configuration at path whenever it changes and passes
// the result to onChange until ctx is cancelled. Parse failures are passed
// as a non-nil error with a nil config.
//
// The parent directory is watched rather than the file itself so that
// editors which replace the file by rename are still observed.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				settle = time.After(reloadSettle)
			}

		case <-settle:
			settle = nil
			if !Exists(abs) {
				continue
			}
			cfg, err := Load(abs)
			if err == nil {
				err = cfg.Validate()
				if err != nil {
					cfg = nil
				}
			}
			onChange(cfg, err)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onChange(nil, fmt.Errorf("config watcher: %w", err))
		}
	}
}
