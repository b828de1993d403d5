// Package sshsession provides the remote shell transport: dialing with a
// bounded retry policy, host-key caching, and single-command execution.
// Grounded in core/ssh_client.py's create_ssh_client and core/runners.py's
// _execute_ssh_command, reimplemented over golang.org/x/crypto/ssh.
package sshsession

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"github.com/ttone18/gpu-inspector/internal/models"
)

// Policy controls the dial retry loop.
type Policy struct {
	Retries      int
	RetryDelay   time.Duration
	DialTimeout  time.Duration
	CommandTimeout time.Duration
}

// DefaultPolicy mirrors the original's retries=3, delay=5s, connect timeout=10s.
func DefaultPolicy() Policy {
	return Policy{
		Retries:        3,
		RetryDelay:     5 * time.Second,
		DialTimeout:    10 * time.Second,
		CommandTimeout: 15 * time.Second,
	}
}

// Session wraps one open SSH client connection to a single node.
type Session struct {
	client *ssh.Client
	host   string
	policy Policy
}

// Dial opens a session to node, retrying per policy. Authentication
// failures abort immediately without consuming remaining retries, matching
// the original's "break on AuthenticationException" behavior.
func Dial(ctx context.Context, node models.NodeSpec, hostKeys *KnownHostsManager, policy Policy) (*Session, error) {
	addr := fmt.Sprintf("%s:%d", node.Host, node.EffectivePort())

	if err := hostKeys.Ensure(ctx, node.Host, node.EffectivePort()); err != nil {
		log.Warn().Str("host", node.Host).Err(err).Msg("known_hosts keyscan failed, continuing with best effort")
	}
	hostKeyCallback, err := hostKeys.Callback()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSSHInternal, err)
	}

	cfg := &ssh.ClientConfig{
		User:            node.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(node.Password)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         policy.DialTimeout,
	}

	var lastErr error
	for attempt := 1; attempt <= policy.Retries; attempt++ {
		client, dialErr := dialOnce(ctx, addr, cfg)
		if dialErr == nil {
			log.Debug().Str("host", node.Host).Int("attempt", attempt).Msg("ssh connected")
			return &Session{client: client, host: node.DisplayHost(), policy: policy}, nil
		}

		classified := classifyDialError(dialErr)
		lastErr = classified
		log.Error().Str("host", node.Host).Int("attempt", attempt).Int("retries", policy.Retries).Err(dialErr).Msg("ssh dial failed")

		if classified == ErrAuth {
			break
		}
		if attempt < policy.Retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(policy.RetryDelay):
			}
		}
	}
	return nil, lastErr
}

func dialOnce(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

func classifyDialError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unable to authenticate"):
		return ErrAuth
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "i/o timeout"):
		return ErrTimeout
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no route to host"), strings.Contains(msg, "network is unreachable"):
		return ErrNoValidConnection
	case strings.Contains(msg, "ssh:"):
		return ErrSSHInternal
	default:
		return ErrUnknown
	}
}

// Close releases the underlying connection.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Run executes one command and returns its normalized payload. It never
// returns a Go error for command failure — non-zero exit and transport
// errors both become a RawPayload with Success=false, matching
// core/runners.py's _execute_ssh_command contract.
func (s *Session) Run(ctx context.Context, command string) models.RawPayload {
	sess, err := s.client.NewSession()
	if err != nil {
		return models.RawPayload{Success: false, Error: fmt.Sprintf("command execution exception: %v", err)}
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(command) }()

	select {
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return models.RawPayload{Success: false, Error: "command execution exception: context cancelled"}
	case runErr := <-done:
		if runErr == nil {
			return models.RawPayload{Success: true, Output: stdout.String()}
		}
		exitCode := -1
		if exitErr, ok := runErr.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
		}
		return models.RawPayload{
			Success: false,
			Error:   fmt.Sprintf("ExitCode:%d, Stderr:'%s', Stdout:'%s'", exitCode, strings.TrimSpace(stderr.String()), strings.TrimSpace(stdout.String())),
		}
	}
}

// RunQuiet runs a command and returns trimmed stdout on success, or an
// empty string on any failure. Implements profile.CommandRunner, mirroring
// discover.py's _execute_simple_command which swallows all errors.
func (s *Session) RunQuiet(ctx context.Context, command string) string {
	payload := s.Run(ctx, command)
	if !payload.Success {
		return ""
	}
	return strings.TrimSpace(payload.Output)
}

// Host returns the display host this session is bound to.
func (s *Session) Host() string { return s.host }
