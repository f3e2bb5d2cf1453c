package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"streamcast/internal/infrastructure/logger"
)

// debounceDelay absorbs the multiple write events editors produce for one
// save, and partial writes.
const debounceDelay = 250 * time.Millisecond

// Watcher re-parses the config file on change and hands each valid result to
// onChange. Parse failures keep the previous configuration.
type Watcher struct {
	path     string
	logger   logger.Logger
	onChange func(*Config)
}

func NewWatcher(path string, log logger.Logger, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		logger:   log.WithField("component", "config-watcher"),
		onChange: onChange,
	}
}

// Run watches until ctx is cancelled. The parent directory is watched rather
// than the file itself so rename-based saves keep working.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		cfg, err := Load(w.path)
		if err != nil {
			w.logger.Warnf("config reload skipped: %v", err)
			return
		}
		w.logger.Info("config reloaded")
		w.onChange(cfg)
	}
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, reload)
	}

	file := filepath.Base(w.path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				schedule()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnf("watch error: %v", err)

		case <-ctx.Done():
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			return ctx.Err()
		}
	}
}
