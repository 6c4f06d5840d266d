package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"folio/internal/logger"
)

// ConfigUpdateCallback receives a reloaded, validated configuration
type ConfigUpdateCallback func(*Config) error

// ConfigWatcher polls the config file and reloads it when it changes.
// Only settings read after startup (such as the log level) take effect.
type ConfigWatcher struct {
	configPath    string
	checkInterval time.Duration
	lastModTime   time.Time
	callbacks     []ConfigUpdateCallback
	mu            sync.RWMutex
	running       bool
}

// NewConfigWatcher creates a new configuration watcher
func NewConfigWatcher(configPath string, checkInterval time.Duration) *ConfigWatcher {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}

	w := &ConfigWatcher{
		configPath:    configPath,
		checkInterval: checkInterval,
	}
	if stat, err := os.Stat(configPath); err == nil {
		w.lastModTime = stat.ModTime()
	}
	return w
}

// OnChange adds a callback for configuration updates
func (w *ConfigWatcher) OnChange(callback ConfigUpdateCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start blocks until ctx is done
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	logger.Info("Starting configuration watcher", "path", w.configPath)

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			logger.Info("Configuration watcher stopped")
			return ctx.Err()

		case <-ticker.C:
			if err := w.checkAndReload(); err != nil {
				logger.Warn("Error checking configuration", "error", err)
			}
		}
	}
}

func (w *ConfigWatcher) checkAndReload() error {
	stat, err := os.Stat(w.configPath)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	modTime := stat.ModTime()
	if !modTime.After(w.lastModTime) {
		return nil
	}

	// a broken file is reported once, not on every tick
	w.lastModTime = modTime

	newConfig, err := Load(w.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	NewEnvManager(EnvPrefix).Apply(newConfig)

	if err := ValidateConfig(newConfig); err != nil {
		return err
	}

	w.mu.RLock()
	callbacks := make([]ConfigUpdateCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(newConfig); err != nil {
			logger.Warn("Configuration update callback error", "error", err)
		}
	}

	logger.Info("Configuration reloaded", "path", w.configPath)
	return nil
}

// IsRunning returns whether the watcher is currently running
func (w *ConfigWatcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}
