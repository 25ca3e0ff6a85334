package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaults(t *testing.T) {
	cfg := DefaultConfig()
	result := Validate(&cfg)
	assert.True(t, result.IsValid(), "%v", result.Error())
	assert.Empty(t, result.Warnings)
	assert.NoError(t, ValidateConfig(&cfg))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }, "interval"},
		{"negative interval", func(c *Config) { c.Interval = -time.Second }, "interval"},
		{"unknown format", func(c *Config) { c.Format = "xml" }, "format"},
		{"unknown source", func(c *Config) { c.Source.Kind = "snmp" }, "source.kind"},
		{"ssh without remote", func(c *Config) { c.Source.Kind = SourceSSH }, "source.remote"},
		{"bad listen", func(c *Config) { c.Listen = "nonsense" }, "listen"},
		{"bad port", func(c *Config) { c.Listen = ":70000" }, "listen"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"negative debounce", func(c *Config) { c.WatchDebounce = -time.Second }, "watchDebounce"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			result := Validate(&cfg)
			require.False(t, result.IsValid())
			require.Len(t, result.Errors, 1)
			assert.Equal(t, tt.field, result.Errors[0].Field)
			assert.True(t, strings.HasPrefix(result.Error().Error(), "validation failed: "+tt.field+": "))
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen = "localhost:8080"
	cfg.Source.Kind = SourceSSH
	cfg.Source.Remote = "ops@db1"
	cfg.Format = FormatJSON
	cfg.Log.Level = "debug"
	assert.NoError(t, ValidateConfig(&cfg))

	cfg.Listen = ":9100"
	assert.NoError(t, ValidateConfig(&cfg))
}

func TestValidateWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.Source.Kind = SourceSSH
	cfg.Source.Remote = "ops@db1"
	cfg.Source.InsecureHostKey = true
	cfg.Source.Path = "/tmp/stat"

	result := Validate(&cfg)
	assert.True(t, result.IsValid())

	fields := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		fields = append(fields, w.Field)
	}
	assert.ElementsMatch(t, []string{"interval", "source.insecureHostKey", "source.path"}, fields)
}

func TestValidationResultAdd(t *testing.T) {
	var r ValidationResult
	assert.NoError(t, r.Error())

	r.AddWarning("a", "careful")
	assert.True(t, r.IsValid())

	r.AddError("b", "broken")
	r.AddError("c", "also broken")
	assert.EqualError(t, r.Error(), "validation failed: b: broken; c: also broken")
	assert.Equal(t, "b: broken", r.Errors[0].Error())
}
