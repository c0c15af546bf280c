// Package config provides configuration management for tabdeck with Viper
// integration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// File permission constants
const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Config is the complete configuration for the tabdeck host.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Logging  LoggingConfig  `mapstructure:"logging" toml:"logging"`
	Engine   EngineConfig   `mapstructure:"engine" toml:"engine"`
	Host     HostConfig     `mapstructure:"host" toml:"host"`
}

// DatabaseConfig holds state-database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// LoggingConfig holds logging configuration. Logs always go to stderr;
// stdout carries the native messaging wire.
type LoggingConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// EngineConfig holds tunables for the state engine.
type EngineConfig struct {
	// ReopenLoadTimeout bounds the wait for a reopened tab to finish
	// loading before scroll restore gives up.
	ReopenLoadTimeout time.Duration `mapstructure:"reopen_load_timeout" toml:"reopen_load_timeout"`
	// UndoWindow is how long an unpinned tab can be brought back.
	UndoWindow time.Duration `mapstructure:"undo_window" toml:"undo_window"`
}

// HostConfig holds native messaging channel settings.
type HostConfig struct {
	// MaxMessageBytes caps a single inbound frame.
	MaxMessageBytes int `mapstructure:"max_message_bytes" toml:"max_message_bytes"`
	// BrowserCallTimeout bounds one outbound browser API call.
	BrowserCallTimeout time.Duration `mapstructure:"browser_call_timeout" toml:"browser_call_timeout"`
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	v := viper.New()

	v.SetConfigName("config") // finds config.toml, config.yaml, config.json

	configDir, err := GetConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // current directory for development

	v.SetEnvPrefix("TABDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"database.path":             "DATABASE_PATH",
		"logging.level":             "LOG_LEVEL",
		"logging.format":            "LOG_FORMAT",
		"engine.reopen_load_timeout": "REOPEN_LOAD_TIMEOUT",
		"engine.undo_window":         "UNDO_WINDOW",
		"host.max_message_bytes":     "MAX_MESSAGE_BYTES",
		"host.browser_call_timeout":  "BROWSER_CALL_TIMEOUT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "TABDECK_"+env); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", env, err)
		}
	}

	return &Manager{
		viper:     v,
		callbacks: make([]func(*Config), 0),
	}, nil
}

// Load loads the configuration from file and environment variables.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			if err := m.createDefaultConfig(); err != nil {
				return fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config, err := m.unmarshal()
	if err != nil {
		return err
	}
	m.config = config
	return nil
}

// unmarshal decodes viper state into a Config and fills derived defaults.
func (m *Manager) unmarshal() (*Config, error) {
	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Database.Path == "" {
		dbPath, err := GetDatabaseFile()
		if err != nil {
			return nil, fmt.Errorf("failed to get database path: %w", err)
		}
		config.Database.Path = dbPath
	}

	// Zero or negative timeouts would wedge the engine; fall back.
	defaults := DefaultConfig()
	if config.Engine.ReopenLoadTimeout <= 0 {
		config.Engine.ReopenLoadTimeout = defaults.Engine.ReopenLoadTimeout
	}
	if config.Engine.UndoWindow <= 0 {
		config.Engine.UndoWindow = defaults.Engine.UndoWindow
	}
	if config.Host.MaxMessageBytes <= 0 {
		config.Host.MaxMessageBytes = defaults.Host.MaxMessageBytes
	}
	if config.Host.BrowserCallTimeout <= 0 {
		config.Host.BrowserCallTimeout = defaults.Host.BrowserCallTimeout
	}

	return config, nil
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configCopy := *m.config
	return &configCopy
}

// Watch starts watching the config file for changes and reloads automatically.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return nil
	}

	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(_ fsnotify.Event) {
		if err := m.reload(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to reload config: %v\n", err)
			return
		}

		m.mu.RLock()
		config := m.config
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()

		for _, callback := range callbacks {
			callback(config)
		}
	})

	m.watching = true
	return nil
}

// OnConfigChange registers a callback for configuration changes.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}

func (m *Manager) reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.viper.ReadInConfig(); err != nil {
		return err
	}
	config, err := m.unmarshal()
	if err != nil {
		return err
	}
	m.config = config
	return nil
}

// setDefaults sets default configuration values in Viper.
func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("engine.reopen_load_timeout", defaults.Engine.ReopenLoadTimeout)
	m.viper.SetDefault("engine.undo_window", defaults.Engine.UndoWindow)
	m.viper.SetDefault("host.max_message_bytes", defaults.Host.MaxMessageBytes)
	m.viper.SetDefault("host.browser_call_timeout", defaults.Host.BrowserCallTimeout)
}

// createDefaultConfig writes a default configuration file.
func (m *Manager) createDefaultConfig() error {
	configFile, err := GetConfigFile()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configFile), dirPerm); err != nil {
		return err
	}

	configData, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(configFile, configData, filePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created default configuration file: %s\n", configFile)
	return nil
}

// GetConfigFile returns the path to the configuration file being used.
func (m *Manager) GetConfigFile() string {
	return m.viper.ConfigFileUsed()
}

// Global configuration manager instance
var globalManager *Manager
var globalManagerOnce sync.Once

// Init initializes the global configuration manager.
func Init() error {
	var err error
	globalManagerOnce.Do(func() {
		globalManager, err = NewManager()
		if err != nil {
			return
		}
		err = globalManager.Load()
	})
	return err
}

// Get returns the global configuration.
func Get() *Config {
	if globalManager == nil {
		return DefaultConfig()
	}
	return globalManager.Get()
}

// Watch starts watching the global configuration for changes.
func Watch() error {
	if globalManager == nil {
		return fmt.Errorf("configuration not initialized")
	}
	return globalManager.Watch()
}

// OnConfigChange registers a callback for global configuration changes.
func OnConfigChange(callback func(*Config)) {
	if globalManager == nil {
		return
	}
	globalManager.OnConfigChange(callback)
}
