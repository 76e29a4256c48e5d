package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events editors emit on save.
const reloadDelay = 250 * time.Millisecond

// Watch reloads path into store whenever the file changes, until ctx is
// done. The parent directory is watched so atomic rename-on-save is seen.
// A file that fails to parse leaves the previous snapshot in place.
func Watch(ctx context.Context, path string, store *Memory, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("knowledge: watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("knowledge: watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("knowledge: watch %s: %w", filepath.Dir(abs), err)
	}

	reload := make(chan struct{}, 1)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			c, err := LoadFile(abs)
			if err != nil {
				logger.Warn("knowledge: reload failed, keeping previous catalog", "path", abs, "err", err)
				continue
			}
			store.Replace(c)
			logger.Info("knowledge: catalog reloaded", "path", abs, "issues", len(c.Issues))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("knowledge: watcher error", "err", err)
		}
	}
}
