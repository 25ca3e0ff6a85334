package config

import (
	"time"
)

// Default values for configuration options.
const (
	// DefaultInterval is the default time between samples (1 second).
	DefaultInterval = time.Second
	// DefaultWatchDebounce is the default quiet period for config reloads.
	DefaultWatchDebounce = 500 * time.Millisecond
	// DefaultCommandTimeout bounds one remote dump read.
	DefaultCommandTimeout = 5 * time.Second
	// DefaultLogLevel keeps stderr quiet unless something goes wrong.
	DefaultLogLevel = "warn"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		PerCore:  false,
		Format:   FormatPlain,
		Source: SourceConfig{
			Kind:           SourceFile,
			CommandTimeout: DefaultCommandTimeout,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		WatchDebounce: DefaultWatchDebounce,
	}
}
