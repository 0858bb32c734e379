package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounceInterval = 100 * time.Millisecond

// Watch calls onChange whenever the state file is modified by someone other
// than this store. Bursts of events are debounced. Watch blocks until ctx is
// done.
func (s *Store) Watch(ctx context.Context, log *zap.Logger, onChange func()) error {
	dir, name := filepath.Dir(s.path), filepath.Base(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("state_watch_started", zap.String("dir", dir), zap.String("file", name))

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		var debounceC <-chan time.Time
		if debounce != nil {
			debounceC = debounce.C
		}

		select {
		case <-ctx.Done():
			log.Info("state_watch_stopped")
			return nil

		case <-debounceC:
			debounce = nil
			if !s.changedExternally() {
				continue
			}
			log.Info("state_file_changed", zap.String("file", s.path))
			onChange()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(debounceInterval)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("state_watch_error", zap.Error(err))
		}
	}
}
