package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "CPULOAD_"

// envVarPattern matches environment variable references in configuration values.
// Supports formats:
//   - ${VAR_NAME} - standard shell-like format
//   - ${VAR_NAME:-default} - with default value if unset or empty
//   - $VAR_NAME - simple format (word characters only)
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([a-zA-Z_][a-zA-Z0-9_]*)`)

// ExpandEnv expands environment variable references in a string.
// Unset variables without defaults are replaced with the empty string.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") && strings.HasSuffix(match, "}") {
			inner := match[2 : len(match)-1]

			if name, def, ok := strings.Cut(inner, ":-"); ok {
				if val := os.Getenv(name); val != "" {
					return val
				}
				return def
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}

// ExpandEnvConfig expands environment variable references in the string
// settings that name paths or endpoints.
func ExpandEnvConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Listen = ExpandEnv(cfg.Listen)
	cfg.Source.Path = ExpandEnv(cfg.Source.Path)
	cfg.Source.Remote = ExpandEnv(cfg.Source.Remote)
	cfg.Source.Identity = ExpandEnv(cfg.Source.Identity)
	cfg.Source.KnownHosts = ExpandEnv(cfg.Source.KnownHosts)
	cfg.Source.Password = ExpandEnv(cfg.Source.Password)
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables that are already set win. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays CPULOAD_* environment variables on cfg.
func ApplyEnv(cfg *Config) error {
	var errs []error

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			return
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: invalid boolean %q", EnvPrefix, name, v))
			return
		}
		*dst = b
	}

	if v, ok := os.LookupEnv(EnvPrefix + "INTERVAL"); ok {
		d, err := ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sINTERVAL: %w", EnvPrefix, err))
		} else {
			cfg.Interval = d
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "FORMAT"); ok {
		f, err := ParseFormat(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sFORMAT: %w", EnvPrefix, err))
		} else {
			cfg.Format = f
		}
	}
	if v, ok := os.LookupEnv(EnvPrefix + "SOURCE"); ok {
		k, err := ParseSourceKind(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSOURCE: %w", EnvPrefix, err))
		} else {
			cfg.Source.Kind = k
		}
	}

	boolean("PER_CORE", &cfg.PerCore)
	str("LISTEN", &cfg.Listen)
	str("STAT_PATH", &cfg.Source.Path)
	str("REMOTE", &cfg.Source.Remote)
	str("IDENTITY", &cfg.Source.Identity)
	str("SSH_PASSWORD", &cfg.Source.Password)
	str("KNOWN_HOSTS", &cfg.Source.KnownHosts)
	boolean("INSECURE_HOST_KEY", &cfg.Source.InsecureHostKey)
	boolean("SSH_AGENT", &cfg.Source.UseAgent)
	str("LOG_LEVEL", &cfg.Log.Level)
	boolean("LOG_JSON", &cfg.Log.JSON)

	return errors.Join(errs...)
}
