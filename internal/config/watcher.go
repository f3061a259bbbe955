package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/KilimcininKorOglu/adnotify/internal/logging"
)

const defaultDebounce = 200 * time.Millisecond

// ConfigWatcher watches a config file for changes and triggers reload.
type ConfigWatcher struct {
	filePath   string
	debounce   time.Duration
	logger     logging.Logger
	watcher    *fsnotify.Watcher
	onChange   func(oldCfg, newCfg *Config)
	resolve    func(*Config) error
	lastConfig *Config

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherConfig holds config watcher configuration.
type WatcherConfig struct {
	FilePath string
	Debounce time.Duration // Default: 200ms
	OnChange func(oldCfg, newCfg *Config)
	// Resolve, when set, completes every loaded file before validation,
	// for example with command line overrides the file does not carry.
	Resolve func(*Config) error
	Logger  logging.Logger
}

// NewConfigWatcher creates a new config file watcher. The directory holding
// the file is watched so that editors that replace the file on save are
// followed.
func NewConfigWatcher(cfg *WatcherConfig) (*ConfigWatcher, error) {
	if cfg.FilePath == "" {
		return nil, ErrMissingConfigFile
	}
	if cfg.OnChange == nil {
		return nil, ErrMissingOnChange
	}

	debounce := cfg.Debounce
	if debounce == 0 {
		debounce = defaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	path, err := filepath.Abs(cfg.FilePath)
	if err != nil {
		return nil, err
	}

	initialConfig, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if cfg.Resolve != nil {
		if err := cfg.Resolve(initialConfig); err != nil {
			return nil, err
		}
	}

	ws, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := ws.Add(filepath.Dir(path)); err != nil {
		ws.Close()
		return nil, err
	}

	return &ConfigWatcher{
		filePath:   path,
		debounce:   debounce,
		logger:     logger.Named("config-watcher"),
		watcher:    ws,
		onChange:   cfg.OnChange,
		resolve:    cfg.Resolve,
		lastConfig: initialConfig,
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching. Calling Start more than once is a no-op.
func (w *ConfigWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	go w.watchLoop(ctx)
}

// Stop stops watching and releases the underlying watcher. It is safe to
// call more than once and without a prior Start.
func (w *ConfigWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		cancel := w.cancel
		w.mu.Unlock()
		if cancel != nil {
			cancel()
			<-w.done
		}
		err = w.watcher.Close()
	})
	return err
}

func (w *ConfigWatcher) watchLoop(ctx context.Context) {
	defer close(w.done)

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("config file event", "op", event.Op.String())
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.debounce)
			debounceCh = debounceTimer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-debounceCh:
			debounceTimer = nil
			debounceCh = nil
			w.triggerReload()
		}
	}
}

// triggerReload loads the new config and calls onChange. Invalid files are
// logged and ignored; the previous configuration stays in effect.
func (w *ConfigWatcher) triggerReload() {
	newConfig, err := LoadConfig(w.filePath)
	if err != nil {
		w.logger.Warn("config reload failed", "error", err)
		return
	}
	if w.resolve != nil {
		if err := w.resolve(newConfig); err != nil {
			w.logger.Warn("config reload failed", "error", err)
			return
		}
	}
	if err := newConfig.Validate(); err != nil {
		w.logger.Warn("reloaded config is invalid", "error", err)
		return
	}

	w.mu.Lock()
	oldConfig := w.lastConfig
	w.lastConfig = newConfig
	w.mu.Unlock()

	w.logger.Info("config reloaded", "file", w.filePath)
	w.onChange(oldConfig, newConfig)
}

// GetCurrentConfig returns the last loaded config.
func (w *ConfigWatcher) GetCurrentConfig() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastConfig
}
