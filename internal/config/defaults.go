package config

import "time"

// DefaultConfig returns the built-in configuration. The database path is
// left empty here and resolved against XDG at load time.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Engine: EngineConfig{
			ReopenLoadTimeout: 10 * time.Second,
			UndoWindow:        10 * time.Second,
		},
		Host: HostConfig{
			// One megabyte is far beyond any real snapshot or tab list and
			// catches desynced length prefixes early.
			MaxMessageBytes:    1 << 20,
			BrowserCallTimeout: 15 * time.Second,
		},
	}
}
