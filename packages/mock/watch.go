package mock

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/abdul-hamid-achik/hitwire/packages/logger"
)

// WatchDebounceDelay groups the bursts of events editors produce on save.
const WatchDebounceDelay = 100 * time.Millisecond

// Watch reloads the routes file whenever it changes, until ctx is done.
// onReload, if set, is called after every reload attempt. A file that fails
// to load keeps the previous routes.
func (e *Engine) Watch(ctx context.Context, onReload func(error)) error {
	e.mu.RLock()
	path := e.path
	e.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("no routes file loaded")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// editors often replace the file, so the directory is watched
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(WatchDebounceDelay, func() {
				err := e.Reload()
				if err != nil {
					logger.Error("mock_reload_failed", "path", path, "error", err)
				}
				if onReload != nil {
					onReload(err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("mock_watch_error", "path", path, "error", err)
		}
	}
}
