package sshsession

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// startTestSSHServer listens on loopback and, for every exec request, runs a
// trivial handler keyed off the requested command string, so Session.Run can
// be exercised without a real remote host.
func startTestSSHServer(t *testing.T) (addr string, closeFn func()) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{NoClientAuth: true}
	cfg.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go handleTestConn(conn, cfg)
		}
	}()

	return listener.Addr().String(), func() { listener.Close() }
}

func handleTestConn(conn net.Conn, cfg *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" {
			newChan.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		channel, requests, err := newChan.Accept()
		if err != nil {
			return
		}
		go func() {
			defer channel.Close()
			for req := range requests {
				if req.Type == "exec" {
					cmd := string(req.Payload[4:])
					req.Reply(true, nil)
					if cmd == "fail_me" {
						channel.Write([]byte("partial output"))
						channel.SendRequest("exit-status", false, []byte{0, 0, 0, 1})
					} else {
						channel.Write([]byte("hello from " + cmd))
						channel.SendRequest("exit-status", false, []byte{0, 0, 0, 0})
					}
					return
				}
				req.Reply(false, nil)
			}
		}()
	}
}

func dialTestSession(t *testing.T, addr string) *Session {
	t.Helper()
	cfg := &ssh.ClientConfig{
		User:            "test",
		Auth:            []ssh.AuthMethod{ssh.Password("")},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         2 * time.Second,
	}
	client, err := ssh.Dial("tcp", addr, cfg)
	require.NoError(t, err)
	return &Session{client: client, host: addr, policy: Policy{CommandTimeout: 2 * time.Second}}
}

func TestSessionRunSucceeds(t *testing.T) {
	addr, closeFn := startTestSSHServer(t)
	defer closeFn()

	sess := dialTestSession(t, addr)
	defer sess.Close()

	payload := sess.Run(context.Background(), "echo hi")
	require.True(t, payload.Success)
	require.Contains(t, payload.Output, "echo hi")
}

func TestSessionRunNonZeroExit(t *testing.T) {
	addr, closeFn := startTestSSHServer(t)
	defer closeFn()

	sess := dialTestSession(t, addr)
	defer sess.Close()

	payload := sess.Run(context.Background(), "fail_me")
	require.False(t, payload.Success)
	require.Contains(t, payload.Error, "ExitCode:1")
}

func TestSessionRunQuietSwallowsFailure(t *testing.T) {
	addr, closeFn := startTestSSHServer(t)
	defer closeFn()

	sess := dialTestSession(t, addr)
	defer sess.Close()

	out := sess.RunQuiet(context.Background(), "fail_me")
	require.Empty(t, out)
}

func TestSessionRunQuietReturnsTrimmedOutput(t *testing.T) {
	addr, closeFn := startTestSSHServer(t)
	defer closeFn()

	sess := dialTestSession(t, addr)
	defer sess.Close()

	out := sess.RunQuiet(context.Background(), "whoami")
	require.Equal(t, "hello from whoami", out)
}

func TestSessionHost(t *testing.T) {
	sess := &Session{host: "gpu-01"}
	require.Equal(t, "gpu-01", sess.Host())
}

func TestSessionCloseNilClientIsSafe(t *testing.T) {
	sess := &Session{}
	require.NoError(t, sess.Close())
}
