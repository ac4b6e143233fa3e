package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"greenbot/pkg/logger"
)

// ChangeHandler is called with the reloaded configuration.
type ChangeHandler func(*Config) error

// Watcher monitors the configuration file and reloads it on change.
type Watcher struct {
	loader   *Loader
	log      *logger.Logger
	config   *Config
	handlers []ChangeHandler
	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(loader *Loader, config *Config, log *logger.Logger) *Watcher {
	return &Watcher{
		loader:   loader,
		log:      log,
		config:   config,
		handlers: make([]ChangeHandler, 0),
	}
}

// AddHandler registers a handler to be called when configuration changes.
func (w *Watcher) AddHandler(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching the configuration file.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.watching = true
	w.mu.Unlock()

	w.loader.viper.OnConfigChange(func(e fsnotify.Event) {
		w.handleChange(e.Name)
	})
	w.loader.viper.WatchConfig()

	return nil
}

// Stop stops delivering changes. Viper keeps its watch goroutine until exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watching = false
}

// GetConfig returns the most recently loaded configuration.
func (w *Watcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *Watcher) handleChange(file string) {
	w.mu.RLock()
	watching := w.watching
	w.mu.RUnlock()
	if !watching {
		return
	}

	newConfig, err := w.loader.Reload()
	if err != nil {
		w.log.Warn("Failed to reload config", zap.String("file", file), zap.Error(err))
		return
	}
	if err := ValidateConfig(newConfig); err != nil {
		w.log.Warn("Ignoring invalid config change", zap.String("file", file), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.config = newConfig
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(newConfig); err != nil {
			w.log.Warn("Config change handler failed", zap.Error(err))
		}
	}
}
