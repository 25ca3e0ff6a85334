package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/opd-ai/go-cpuload/internal/config"
)

// options holds the raw command-line values. Only flags the user actually
// set are applied on top of the file and environment configuration.
type options struct {
	configPath string
	envFiles   []string
	watch      bool

	interval string
	perCore  bool
	format   string

	source          string
	statPath        string
	remote          string
	identity        string
	knownHosts      string
	insecureHostKey bool
	sshAgent        bool

	listen   string
	logLevel string
	logJSON  bool

	cpuProfile string
	memProfile string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "cpuload",
		Short: "Report CPU utilization",
		Long: `cpuload samples the kernel's cumulative CPU counters at a fixed interval
and prints the busy percentage of the machine, or of every core.

Counters are read from /proc/stat by default, from a remote host over SSH
(--source ssh), or through the portable host API (--source host).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := &app{
				opts:   opts,
				flags:  cmd.Flags(),
				stdout: stdout,
				stderr: stderr,
			}
			return a.run(cmd.Context())
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	bindFlags(cmd.Flags(), opts)
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// bindFlags registers the command-line flags on f, storing values in opts.
func bindFlags(f *pflag.FlagSet, opts *options) {
	f.StringVarP(&opts.interval, "interval", "i", "1s", `sampling interval, format "[0-9]+(ns|us|ms|[smhdwy])"`)
	f.BoolVarP(&opts.perCore, "per-core", "c", false, "report each core separately")
	f.StringVar(&opts.format, "format", string(config.FormatPlain), "output format: plain | pretty | json")

	f.StringVar(&opts.configPath, "config", "", "Lua configuration file")
	f.StringSliceVar(&opts.envFiles, "env-file", nil, "dotenv files to load (default .env)")
	f.BoolVar(&opts.watch, "watch", false, "reload the configuration file when it changes")

	f.StringVar(&opts.source, "source", string(config.SourceFile), "counter source: file | ssh | host")
	f.StringVar(&opts.statPath, "stat-path", "", "counter file for the file source (default /proc/stat)")
	f.StringVar(&opts.remote, "remote", "", "remote host for the ssh source, user@host[:port]")
	f.StringVar(&opts.identity, "identity", "", "private key for the ssh source")
	f.StringVar(&opts.knownHosts, "known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	f.BoolVar(&opts.insecureHostKey, "insecure-host-key", false, "do not verify the remote host key")
	f.BoolVar(&opts.sshAgent, "ssh-agent", false, "authenticate through SSH_AUTH_SOCK")

	f.StringVar(&opts.listen, "listen", "", "serve the latest sample over HTTP on this address")
	f.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "log level: debug | info | warn | error")
	f.BoolVar(&opts.logJSON, "log-json", false, "log in JSON")

	f.StringVar(&opts.cpuProfile, "cpuprofile", "", "write a CPU profile to file")
	f.StringVar(&opts.memProfile, "memprofile", "", "write a memory profile to file")
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cpuload version %s\n", Version)
		},
	}
}

// applyFlags overlays the flags that were set explicitly on cfg.
func applyFlags(fs *pflag.FlagSet, opts *options, cfg *config.Config) error {
	set := func(name string) bool { return fs.Changed(name) }

	if set("interval") {
		d, err := config.ParseDuration(opts.interval)
		if err != nil {
			return fmt.Errorf("--interval: %w", err)
		}
		cfg.Interval = d
	}
	if set("per-core") {
		cfg.PerCore = opts.perCore
	}
	if set("format") {
		f, err := config.ParseFormat(opts.format)
		if err != nil {
			return fmt.Errorf("--format: %w", err)
		}
		cfg.Format = f
	}
	if set("source") {
		k, err := config.ParseSourceKind(opts.source)
		if err != nil {
			return fmt.Errorf("--source: %w", err)
		}
		cfg.Source.Kind = k
	}
	if set("stat-path") {
		cfg.Source.Path = opts.statPath
	}
	if set("remote") {
		cfg.Source.Remote = opts.remote
	}
	if set("identity") {
		cfg.Source.Identity = opts.identity
	}
	if set("known-hosts") {
		cfg.Source.KnownHosts = opts.knownHosts
	}
	if set("insecure-host-key") {
		cfg.Source.InsecureHostKey = opts.insecureHostKey
	}
	if set("ssh-agent") {
		cfg.Source.UseAgent = opts.sshAgent
	}
	if set("listen") {
		cfg.Listen = opts.listen
	}
	if set("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if set("log-json") {
		cfg.Log.JSON = opts.logJSON
	}

	if cfg.Source.Kind == config.SourceSSH && cfg.Source.KnownHosts == "" && !cfg.Source.InsecureHostKey {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Source.KnownHosts = filepath.Join(home, ".ssh", "known_hosts")
		}
	}
	return nil
}
