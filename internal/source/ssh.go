package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/opd-ai/go-cpuload/internal/logging"
)

// DefaultRemoteCommand prints the counter dump on a Linux host.
const DefaultRemoteCommand = "cat /proc/stat"

// AuthMethod defines SSH authentication methods.
type AuthMethod interface {
	isAuthMethod()
}

// PasswordAuth authenticates using a password.
type PasswordAuth struct {
	Password string
}

func (PasswordAuth) isAuthMethod() {}

// KeyAuth authenticates using an SSH private key.
type KeyAuth struct {
	PrivateKeyPath string
	Passphrase     string // optional, for encrypted keys
}

func (KeyAuth) isAuthMethod() {}

// AgentAuth authenticates through the agent listening on SSH_AUTH_SOCK.
type AgentAuth struct{}

func (AgentAuth) isAuthMethod() {}

// SSHConfig describes how to reach the remote host.
type SSHConfig struct {
	Host string
	// Port is the SSH port (default: 22).
	Port int
	User string
	Auth AuthMethod

	// KnownHostsPath is the known_hosts file used to verify the host key.
	// Required unless InsecureIgnoreHostKey is set.
	KnownHostsPath        string
	InsecureIgnoreHostKey bool

	// DialTimeout bounds the TCP connect and handshake (default: 10s).
	DialTimeout time.Duration
	// CommandTimeout bounds each dump read (default: 5s).
	CommandTimeout time.Duration
	// Command overrides DefaultRemoteCommand.
	Command string
}

// SSH reads the counter dump of a remote host by running a command over an
// SSH session. The connection is established lazily and re-dialed on the
// next read after it breaks.
type SSH struct {
	cfg          SSHConfig
	clientConfig *ssh.ClientConfig
	log          logging.Logger

	mu     sync.Mutex
	client *ssh.Client
}

// NewSSH validates cfg and prepares the client configuration. No connection
// is made until Connect or the first ReadStat.
func NewSSH(cfg SSHConfig, log logging.Logger) (*SSH, error) {
	if cfg.Host == "" {
		return nil, errors.New("host is required")
	}
	if cfg.User == "" {
		return nil, errors.New("user is required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("authentication method is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.CommandTimeout == 0 {
		cfg.CommandTimeout = 5 * time.Second
	}
	if cfg.Command == "" {
		cfg.Command = DefaultRemoteCommand
	}
	if log == nil {
		log = logging.Nop()
	}

	clientConfig, err := buildClientConfig(cfg)
	if err != nil {
		return nil, err
	}

	return &SSH{cfg: cfg, clientConfig: clientConfig, log: log}, nil
}

// Address returns the host:port the source dials.
func (s *SSH) Address() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// String identifies the source in logs.
func (s *SSH) String() string {
	return "ssh:" + s.cfg.User + "@" + s.Address()
}

func buildClientConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	auth, err := authMethods(cfg.Auth)
	if err != nil {
		return nil, err
	}

	var hostKeyCallback ssh.HostKeyCallback
	switch {
	case cfg.InsecureIgnoreHostKey:
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	case cfg.KnownHostsPath != "":
		hostKeyCallback, err = knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}
	default:
		return nil, errors.New("known hosts file is required unless host key checking is disabled")
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         cfg.DialTimeout,
	}, nil
}

func authMethods(method AuthMethod) ([]ssh.AuthMethod, error) {
	switch auth := method.(type) {
	case PasswordAuth:
		return []ssh.AuthMethod{ssh.Password(auth.Password)}, nil
	case KeyAuth:
		key, err := os.ReadFile(auth.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		var signer ssh.Signer
		if auth.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(auth.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(key)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case AgentAuth:
		socket := os.Getenv("SSH_AUTH_SOCK")
		if socket == "" {
			return nil, errors.New("SSH_AUTH_SOCK not set")
		}
		// Defer the agent connection until the handshake asks for keys.
		return []ssh.AuthMethod{ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
			conn, err := net.Dial("unix", socket)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to SSH agent: %w", err)
			}
			defer conn.Close()
			return agent.NewClient(conn).Signers()
		})}, nil
	default:
		return nil, fmt.Errorf("unsupported auth method type: %T", method)
	}
}

// Connect dials the remote host if no connection is open.
func (s *SSH) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.connectLocked(ctx)
	return err
}

func (s *SSH) connectLocked(ctx context.Context) (*ssh.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	addr := s.Address()
	dialer := net.Dialer{Timeout: s.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, s.clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})

	s.client = ssh.NewClient(c, chans, reqs)
	s.log.Info("ssh connected", "addr", addr, "user", s.cfg.User)
	return s.client, nil
}

// ReadStat runs the dump command on the remote host and returns its output.
func (s *SSH) ReadStat(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CommandTimeout)
	defer cancel()

	s.mu.Lock()
	client, err := s.connectLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	out, err := s.run(ctx, client)
	if err != nil && isConnectionError(err) {
		s.log.Warn("ssh connection lost", "addr", s.Address(), "err", err)
		s.dropClient(client)
	}
	return out, err
}

func (s *SSH) run(ctx context.Context, client *ssh.Client) (string, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(s.cfg.Command)
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		}
		return stdout.String(), nil
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", fmt.Errorf("command %q: %w", s.cfg.Command, ctx.Err())
	}
}

// dropClient closes client if it is still the active connection.
func (s *SSH) dropClient(client *ssh.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == client {
		_ = s.client.Close()
		s.client = nil
	}
}

// Close closes the connection.
func (s *SSH) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// isConnectionError determines if an error indicates a broken connection
// rather than a failing remote command.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"eof",
		"use of closed network connection",
		"no route to host",
		"network is unreachable",
		"failed to create session",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// ParseTarget splits "user@host[:port]" into its parts. A missing user
// yields "", a missing port yields 0.
func ParseTarget(target string) (user, host string, port int, err error) {
	if target == "" {
		return "", "", 0, errors.New("empty remote target")
	}
	if at := strings.LastIndex(target, "@"); at >= 0 {
		user, target = target[:at], target[at+1:]
	}

	host = target
	if h, p, splitErr := net.SplitHostPort(target); splitErr == nil {
		host = h
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid port %q", p)
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("missing host in %q", target)
	}
	return user, host, port, nil
}
