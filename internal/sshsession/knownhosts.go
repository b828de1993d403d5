package sshsession

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// KnownHostsManager trust-on-first-use caches host keys to a local
// known_hosts file; once a keyscan of a host has succeeded, that host is
// not scanned again for the rest of the process lifetime.
// Adapted from the teacher's internal/ssh/knownhosts manager, trimmed to
// the single responsibility this inspector needs: produce a
// ssh.HostKeyCallback for Dial.
type KnownHostsManager struct {
	path string

	mu      sync.Mutex
	scanned map[string]bool

	keyscanFn func(ctx context.Context, host string, port int, timeout time.Duration) ([]byte, error)
	timeout   time.Duration
}

// NewKnownHostsManager returns a manager backed by path, creating the file
// if absent.
func NewKnownHostsManager(path string) (*KnownHostsManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sshsession: known_hosts path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sshsession: create known_hosts dir: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
		if createErr != nil {
			return nil, fmt.Errorf("sshsession: create known_hosts file: %w", createErr)
		}
		_ = f.Close()
	}
	return &KnownHostsManager{
		path:      path,
		scanned:   make(map[string]bool),
		keyscanFn: defaultKeyscan,
		timeout:   10 * time.Second,
	}, nil
}

// Ensure keyscans host:port into the known_hosts file. After one successful
// scan of a host, later calls for it are no-ops; a failed scan is tried
// again on the next call.
func (m *KnownHostsManager) Ensure(ctx context.Context, host string, port int) error {
	m.mu.Lock()
	if m.scanned[host] {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	out, err := m.keyscanFn(ctx, host, port, m.timeout)
	if err != nil {
		return fmt.Errorf("sshsession: keyscan %s: %w", host, err)
	}
	if len(strings.TrimSpace(string(out))) == 0 {
		return fmt.Errorf("sshsession: keyscan %s: no host keys returned", host)
	}

	f, err := os.OpenFile(m.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("sshsession: open known_hosts: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(out); err != nil {
		return fmt.Errorf("sshsession: write known_hosts: %w", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		return fmt.Errorf("sshsession: write known_hosts: %w", err)
	}

	m.mu.Lock()
	m.scanned[host] = true
	m.mu.Unlock()
	return nil
}

// Callback builds the ssh.HostKeyCallback backed by the cached file.
func (m *KnownHostsManager) Callback() (ssh.HostKeyCallback, error) {
	return knownhosts.New(m.path)
}

func defaultKeyscan(ctx context.Context, host string, port int, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-T", "5"}
	if port != 0 && port != 22 {
		args = append(args, "-p", fmt.Sprintf("%d", port))
	}
	args = append(args, host)

	cmd := exec.CommandContext(ctx, "ssh-keyscan", args...)
	return cmd.Output()
}
