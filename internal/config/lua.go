package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/arnodel/golua/lib"
	rt "github.com/arnodel/golua/runtime"
)

// LuaParser executes a Lua configuration file and reads the cpuload.config
// table it leaves behind:
//
//	cpuload.config = {
//	    interval = "2s",
//	    per_core = true,
//	    format = "json",
//	}
type LuaParser struct {
	runtime *rt.Runtime
	cleanup func()
	mu      sync.Mutex
}

// NewLuaParser creates a LuaParser with a fresh Lua runtime. Output of Lua
// print calls is discarded.
func NewLuaParser() *LuaParser {
	return NewLuaParserWithOutput(io.Discard)
}

// NewLuaParserWithOutput creates a LuaParser whose print output goes to stdout.
func NewLuaParserWithOutput(stdout io.Writer) *LuaParser {
	if stdout == nil {
		stdout = os.Stdout
	}

	runtime := rt.New(stdout)
	cleanup := lib.LoadAll(runtime)

	return &LuaParser{
		runtime: runtime,
		cleanup: cleanup,
	}
}

// Parse runs content and overlays the values found in cpuload.config on base.
// Keys that are absent keep the value from base.
func (p *LuaParser) Parse(content []byte, base Config) (Config, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.initGlobal()

	closure, err := p.runtime.CompileAndLoadLuaChunk(
		"config",
		content,
		rt.TableValue(p.runtime.GlobalEnv()),
	)
	if err != nil {
		return base, fmt.Errorf("failed to compile Lua configuration: %w", err)
	}

	ctx := rt.RuntimeContextDef{
		HardLimits: rt.RuntimeResources{
			Cpu:    10_000_000,
			Memory: 50 * 1024 * 1024,
		},
	}
	p.runtime.PushContext(ctx)
	defer p.runtime.PopContext()

	if _, err := rt.Call1(p.runtime.MainThread(), rt.FunctionValue(closure)); err != nil {
		return base, fmt.Errorf("failed to execute Lua configuration: %w", err)
	}

	return p.extract(base)
}

func (p *LuaParser) initGlobal() {
	root := rt.NewTable()
	root.Set(rt.StringValue("config"), rt.TableValue(rt.NewTable()))
	p.runtime.GlobalEnv().Set(rt.StringValue("cpuload"), rt.TableValue(root))
}

func (p *LuaParser) extract(cfg Config) (Config, error) {
	rootVal := p.runtime.GlobalEnv().Get(rt.StringValue("cpuload"))
	if rootVal == rt.NilValue {
		return cfg, nil
	}
	root, ok := rootVal.TryTable()
	if !ok {
		return cfg, fmt.Errorf("cpuload is not a table")
	}

	tableVal := root.Get(rt.StringValue("config"))
	if tableVal == rt.NilValue {
		return cfg, nil
	}
	table, ok := tableVal.TryTable()
	if !ok {
		return cfg, fmt.Errorf("cpuload.config is not a table")
	}

	if err := applyTable(&cfg, table); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyTable(cfg *Config, table *rt.Table) error {
	if d, err := getTableDuration(table, "interval"); err != nil {
		return err
	} else if d != nil {
		cfg.Interval = *d
	}
	if d, err := getTableDuration(table, "watch_debounce"); err != nil {
		return err
	} else if d != nil {
		cfg.WatchDebounce = *d
	}
	if d, err := getTableDuration(table, "command_timeout"); err != nil {
		return err
	} else if d != nil {
		cfg.Source.CommandTimeout = *d
	}

	if val := getTableBool(table, "per_core"); val != nil {
		cfg.PerCore = *val
	}
	if val := getTableString(table, "format"); val != nil {
		f, err := ParseFormat(*val)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		cfg.Format = f
	}
	if val := getTableString(table, "listen"); val != nil {
		cfg.Listen = *val
	}

	if val := getTableString(table, "source"); val != nil {
		k, err := ParseSourceKind(*val)
		if err != nil {
			return fmt.Errorf("source: %w", err)
		}
		cfg.Source.Kind = k
	}
	if val := getTableString(table, "stat_path"); val != nil {
		cfg.Source.Path = *val
	}
	if val := getTableString(table, "remote"); val != nil {
		cfg.Source.Remote = *val
	}
	if val := getTableString(table, "identity"); val != nil {
		cfg.Source.Identity = *val
	}
	if val := getTableString(table, "known_hosts"); val != nil {
		cfg.Source.KnownHosts = *val
	}
	if val := getTableBool(table, "insecure_host_key"); val != nil {
		cfg.Source.InsecureHostKey = *val
	}
	if val := getTableBool(table, "ssh_agent"); val != nil {
		cfg.Source.UseAgent = *val
	}

	if val := getTableString(table, "log_level"); val != nil {
		cfg.Log.Level = strings.ToLower(*val)
	}
	if val := getTableBool(table, "log_json"); val != nil {
		cfg.Log.JSON = *val
	}
	return nil
}

// Close releases resources associated with the parser's Lua runtime.
func (p *LuaParser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cleanup != nil {
		p.cleanup()
		p.cleanup = nil
	}
	return nil
}

// getTableBool retrieves a boolean value from a Lua table.
// Returns nil if the key doesn't exist or is not a boolean.
func getTableBool(table *rt.Table, key string) *bool {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if b, ok := val.TryBool(); ok {
		return &b
	}

	// "yes"/"true"/"1"
	if s, ok := val.TryString(); ok {
		b := parseBool(s)
		return &b
	}

	return nil
}

func getTableString(table *rt.Table, key string) *string {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if s, ok := val.TryString(); ok {
		return &s
	}

	return nil
}

func getTableFloat(table *rt.Table, key string) *float64 {
	val := table.Get(rt.StringValue(key))
	if val == rt.NilValue {
		return nil
	}

	if n, ok := val.TryFloat(); ok {
		return &n
	}
	if n, ok := val.TryInt(); ok {
		f := float64(n)
		return &f
	}

	return nil
}

// getTableDuration reads a duration given either as a string ("500ms") or
// as a number of seconds.
func getTableDuration(table *rt.Table, key string) (*time.Duration, error) {
	if f := getTableFloat(table, key); f != nil {
		d := time.Duration(*f * float64(time.Second))
		return &d, nil
	}
	if s := getTableString(table, key); s != nil {
		d, err := ParseDuration(*s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return &d, nil
	}
	return nil, nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1":
		return true
	default:
		return false
	}
}
