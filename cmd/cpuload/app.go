package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/user"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/go-cpuload/internal/config"
	"github.com/opd-ai/go-cpuload/internal/cpustat"
	"github.com/opd-ai/go-cpuload/internal/logging"
	"github.com/opd-ai/go-cpuload/internal/poller"
	"github.com/opd-ai/go-cpuload/internal/profiling"
	"github.com/opd-ai/go-cpuload/internal/report"
	"github.com/opd-ai/go-cpuload/internal/server"
	"github.com/opd-ai/go-cpuload/internal/source"
	"github.com/opd-ai/go-cpuload/internal/watch"
)

// app wires one invocation of the root command.
type app struct {
	opts   *options
	flags  *pflag.FlagSet
	stdout io.Writer
	stderr io.Writer

	loader *config.Loader
	log    logging.Logger
}

func (a *app) run(ctx context.Context) error {
	if a.opts.watch && a.opts.configPath == "" {
		return errors.New("--watch requires --config")
	}

	a.loader = config.NewLoader()
	a.loader.DotEnv = a.opts.envFiles
	defer a.loader.Close()

	cfg, warnings, err := a.loadConfig()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.log = logging.New(a.stderr, level, cfg.Log.JSON)
	a.logWarnings(warnings)

	prof, err := profiling.Start(profiling.Config{
		CPUProfilePath: a.opts.cpuProfile,
		MemProfilePath: a.opts.memProfile,
	})
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := prof.Stop(); stopErr != nil {
			a.log.Warn("failed to stop profiling", "error", stopErr)
		}
	}()

	src, closeSrc, err := newSource(cfg.Source, a.log)
	if err != nil {
		return err
	}
	defer closeSrc()
	a.log.Debug("counter source ready", "source", fmt.Sprint(src))

	tracker, err := cpustat.NewTracker(ctx, src)
	if err != nil {
		return err
	}

	out := report.New(a.stdout, cfg.Format)
	p := poller.New(tracker, poller.Options{
		Interval: cfg.Interval,
		PerCore:  cfg.PerCore,
		Sinks:    []poller.Sink{out},
		Logger:   a.log,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.Run(gctx); err != nil {
			return err
		}
		// Stop the server and watcher as well when the loop ends.
		return context.Canceled
	})

	if cfg.Listen != "" {
		srv := server.New(p, a.log)
		g.Go(func() error { return srv.Serve(gctx, cfg.Listen) })
	}

	if a.opts.watch {
		current := cfg
		w, err := watch.New(a.opts.configPath, cfg.WatchDebounce, func(ctx context.Context) error {
			next, warnings, err := a.loadConfig()
			if err != nil {
				return err
			}
			a.logWarnings(warnings)
			if next.Source != current.Source || next.Listen != current.Listen {
				a.log.Warn("source and listen changes take effect after a restart")
			}
			p.SetInterval(next.Interval)
			p.SetPerCore(next.PerCore)
			out.SetFormat(next.Format)
			current = next
			return nil
		}, a.log)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(gctx) })
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		return err
	}
	return out.Finish()
}

// loadConfig layers defaults, the Lua file, the environment and the flags,
// then validates the result.
func (a *app) loadConfig() (config.Config, []config.ValidationError, error) {
	cfg, err := a.loader.Load(a.opts.configPath)
	if err != nil {
		return cfg, nil, err
	}
	if err := applyFlags(a.flags, a.opts, &cfg); err != nil {
		return cfg, nil, err
	}

	result := config.Validate(&cfg)
	return cfg, result.Warnings, result.Error()
}

func (a *app) logWarnings(warnings []config.ValidationError) {
	for _, w := range warnings {
		a.log.Warn("config warning", "field", w.Field, "message", w.Message)
	}
}

// newSource builds the counter source selected by cfg. The returned
// function releases it.
func newSource(cfg config.SourceConfig, log logging.Logger) (cpustat.Source, func(), error) {
	switch cfg.Kind {
	case config.SourceSSH:
		s, err := newSSHSource(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				log.Debug("closing ssh source", "error", err)
			}
		}, nil
	case config.SourceHost:
		return source.NewHost(), func() {}, nil
	default:
		return source.NewFile(cfg.Path), func() {}, nil
	}
}

func newSSHSource(cfg config.SourceConfig, log logging.Logger) (*source.SSH, error) {
	username, host, port, err := source.ParseTarget(cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("--remote: %w", err)
	}
	if username == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("determining remote user: %w", err)
		}
		username = u.Username
	}

	var auth source.AuthMethod
	switch {
	case cfg.Identity != "":
		auth = source.KeyAuth{PrivateKeyPath: cfg.Identity, Passphrase: cfg.Password}
	case cfg.Password != "" && !cfg.UseAgent:
		auth = source.PasswordAuth{Password: cfg.Password}
	default:
		auth = source.AgentAuth{}
	}

	return source.NewSSH(source.SSHConfig{
		Host:                  host,
		Port:                  port,
		User:                  username,
		Auth:                  auth,
		KnownHostsPath:        cfg.KnownHosts,
		InsecureIgnoreHostKey: cfg.InsecureHostKey,
		CommandTimeout:        cfg.CommandTimeout,
	}, log)
}
