package config

import (
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Loader assembles a Config from its layers: defaults, then the Lua file,
// then .env files and CPULOAD_* variables. Command-line flags are applied by
// the caller on top of the result.
type Loader struct {
	lua *LuaParser

	// DotEnv lists the .env files to load. Nil means ".env" in the
	// working directory.
	DotEnv []string
}

// NewLoader creates a Loader with its own Lua runtime.
func NewLoader() *Loader {
	return &Loader{lua: NewLuaParser()}
}

// Load reads the configuration. An empty path skips the Lua layer.
func (l *Loader) Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		var err error
		if cfg, err = l.ParseFile(path, cfg); err != nil {
			return cfg, err
		}
	}

	if err := LoadDotEnv(l.DotEnv...); err != nil {
		return cfg, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	ExpandEnvConfig(&cfg)
	return cfg, nil
}

// ParseFile reads a Lua configuration file and overlays it on base.
func (l *Loader) ParseFile(path string, base Config) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.lua.Parse(content, base)
}

// ParseFromFS reads a Lua configuration from fsys and overlays it on base.
func (l *Loader) ParseFromFS(fsys fs.FS, path string, base Config) (Config, error) {
	content, err := fs.ReadFile(fsys, path)
	if err != nil {
		return base, fmt.Errorf("failed to read config from FS %s: %w", path, err)
	}
	return l.lua.Parse(content, base)
}

// ParseReader reads a Lua configuration from r and overlays it on base.
func (l *Loader) ParseReader(r io.Reader, base Config) (Config, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return base, fmt.Errorf("failed to read config: %w", err)
	}
	return l.lua.Parse(content, base)
}

// Close releases the Lua runtime.
func (l *Loader) Close() error {
	if l.lua != nil {
		return l.lua.Close()
	}
	return nil
}
