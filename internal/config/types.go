// Package config provides configuration loading for cpuload: built-in
// defaults, a Lua configuration file, .env files and CPULOAD_* environment
// variables, validated before use.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Format selects how samples are written to the terminal.
type Format string

const (
	// FormatPlain prints the bare numbers, per-core loads joined by ';'.
	FormatPlain Format = "plain"
	// FormatPretty prints a styled line with load bars.
	FormatPretty Format = "pretty"
	// FormatJSON prints one JSON object per sample.
	FormatJSON Format = "json"
)

// ParseFormat converts a string to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPlain, FormatPretty, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// SourceKind selects where the counter dump comes from.
type SourceKind string

const (
	// SourceFile reads a local procfs file.
	SourceFile SourceKind = "file"
	// SourceSSH reads /proc/stat of a remote host over SSH.
	SourceSSH SourceKind = "ssh"
	// SourceHost reads the local counters through gopsutil.
	SourceHost SourceKind = "host"
)

// ParseSourceKind converts a string to a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	switch k := SourceKind(strings.ToLower(strings.TrimSpace(s))); k {
	case SourceFile, SourceSSH, SourceHost:
		return k, nil
	default:
		return "", fmt.Errorf("unknown source %q", s)
	}
}

// Config is the complete runtime configuration.
type Config struct {
	// Interval is the time between two samples.
	Interval time.Duration `validate:"gt=0"`
	// PerCore reports every core instead of the average.
	PerCore bool
	Format  Format `validate:"oneof=plain pretty json"`

	Source SourceConfig
	Log    LogConfig

	// Listen is the HTTP address serving the latest sample. Empty disables it.
	Listen string `validate:"omitempty,hostname_port"`

	// WatchDebounce is the quiet period before a changed config file is reloaded.
	WatchDebounce time.Duration `validate:"gte=0"`
}

// SourceConfig describes the counter source.
type SourceConfig struct {
	Kind SourceKind `validate:"oneof=file ssh host"`

	// Path is the dump file for the file source. Empty means /proc/stat.
	Path string

	// Remote is user@host[:port] for the ssh source.
	Remote          string `validate:"required_if=Kind ssh"`
	Identity        string
	Password        string
	KnownHosts      string
	InsecureHostKey bool
	UseAgent        bool
	CommandTimeout  time.Duration `validate:"gte=0"`
}

// LogConfig controls diagnostic output on stderr.
type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
	JSON  bool
}
