package sshsession

import "errors"

// Sentinel errors classifying why a session could not be established,
// mirroring the exception taxonomy in core/ssh_client.py.
var (
	// ErrAuth means the remote rejected the credentials. Retrying is
	// pointless; the caller should fail the node immediately.
	ErrAuth = errors.New("sshsession: authentication failed")

	// ErrNoValidConnection means the TCP dial itself never succeeded
	// (host down, port closed, network unreachable).
	ErrNoValidConnection = errors.New("sshsession: no valid connection")

	// ErrTimeout means the dial or handshake exceeded its deadline.
	ErrTimeout = errors.New("sshsession: connection timed out")

	// ErrSSHInternal covers protocol-level failures that are not auth or
	// plain connectivity (key exchange failure, unexpected disconnect).
	ErrSSHInternal = errors.New("sshsession: internal ssh error")

	// ErrUnknown is the catch-all for anything not otherwise classified.
	ErrUnknown = errors.New("sshsession: unknown error")
)
