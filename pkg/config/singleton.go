package config

import (
	"fmt"
	"sync"
)

var (
	globalConfig *Config
	configMutex  sync.RWMutex
	initOnce     sync.Once
)

// Initialize loads the process configuration from providersPath and stores
// it as the global singleton. Intended to be called once from main; the
// Fallback Controller never reads this singleton directly (see §9 "Global
// config singleton" in SPEC_FULL.md) — it is a convenience for the admin
// handlers and the CLI only.
func Initialize(providersPath string) error {
	var initErr error
	initOnce.Do(func() {
		cfg, err := LoadConfig(providersPath)
		if err != nil {
			initErr = err
			return
		}
		configMutex.Lock()
		globalConfig = cfg
		configMutex.Unlock()
	})
	return initErr
}

// GetConfig returns the global configuration, or nil if Initialize has not
// run successfully.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig installs cfg as the global singleton. Intended for tests.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// ReloadConfig reloads providersPath and swaps the global singleton only if
// loading succeeds; a failed reload leaves the previous config in place.
func ReloadConfig(providersPath string) (*Config, error) {
	cfg, err := LoadConfig(providersPath)
	if err != nil {
		return nil, fmt.Errorf("config: reload: %w", err)
	}
	configMutex.Lock()
	globalConfig = cfg
	configMutex.Unlock()
	return cfg, nil
}

// MustGetConfig panics if Initialize has not run successfully.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("config: not initialized")
	}
	return cfg
}
