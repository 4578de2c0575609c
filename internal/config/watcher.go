package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stwalsh4118/playerctl/internal/logger"
)

const debounceWindow = 500 * time.Millisecond

// Watcher reloads a config file when it changes on disk and hands every valid
// new configuration to onChange. Invalid edits are logged and skipped.
type Watcher struct {
	path     string
	onChange func(*Config)
	debounce time.Duration

	fsnotifyWatcher *fsnotify.Watcher
	stopChan        chan struct{}
	watchDone       chan struct{}

	mu      sync.Mutex
	pending *time.Timer
	started bool
	stopped bool
}

// NewWatcher creates a watcher for the config file at path
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if onChange == nil {
		return nil, fmt.Errorf("change handler cannot be nil")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &Watcher{
		path:      abs,
		onChange:  onChange,
		debounce:  debounceWindow,
		stopChan:  make(chan struct{}),
		watchDone: make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched so that editors
// replacing the file by rename are noticed.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return fmt.Errorf("watcher has been stopped")
	}
	if w.started {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.fsnotifyWatcher = watcher
	w.started = true
	go w.run()

	logger.Log.Info().Str("path", w.path).Msg("Config watcher started")
	return nil
}

// Stop stops watching and drops any pending reload
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	started := w.started
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	if !started {
		return nil
	}

	close(w.stopChan)
	err := w.fsnotifyWatcher.Close()
	<-w.watchDone

	logger.Log.Debug().Str("path", w.path).Msg("Config watcher stopped")
	return err
}

func (w *Watcher) run() {
	defer close(w.watchDone)

	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsnotifyWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-w.fsnotifyWatcher.Errors:
			if !ok {
				return
			}
			logger.Log.Warn().Err(err).Str("path", w.path).Msg("Config watcher error")
		}
	}
}

// schedule coalesces bursts of events into one reload
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := LoadFile(w.path)

	w.mu.Lock()
	w.pending = nil
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return
	}

	if err != nil {
		logger.Log.Warn().Err(err).Str("path", w.path).Msg("Ignoring invalid config change")
		return
	}

	logger.Log.Info().Str("path", w.path).Msg("Config reloaded")
	w.onChange(cfg)
}
