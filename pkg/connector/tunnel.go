package connector

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"

	"github.com/aperture-array/obsdb/pkg/errorx"
	"github.com/aperture-array/obsdb/pkg/logx"
)

// probeTimeout - TCP dial budget when checking whether a forward is live.
const probeTimeout = 500 * time.Millisecond

// sshTimeout - budget for the SSH handshake with the tunnel host.
const sshTimeout = 10 * time.Second

// upTimeout - how long to wait for a freshly bound forward to accept.
const upTimeout = 5 * time.Second

// TunnelState - lifecycle of one forwarding session.
type TunnelState int

const (
	TunnelDown TunnelState = iota
	TunnelStarting
	TunnelUp
	TunnelFailed
)

// String - state label for logs.
func (s TunnelState) String() string {
	switch s {
	case TunnelDown:
		return "down"
	case TunnelStarting:
		return "starting"
	case TunnelUp:
		return "up"
	case TunnelFailed:
		return "failed"
	}

	return "unknown"
}

// Tunnel - one SSH port-forward standing in for a remote database endpoint.
//
// A Tunnel belongs to exactly one Tunneled connector and is never pooled,
// even when two connectors target the same remote endpoint.
type Tunnel struct {
	host     string
	user     string
	identity string
	remote   string

	hostKeys ssh.HostKeyCallback

	mu        sync.Mutex
	state     TunnelState
	localPort int
	client    *ssh.Client
	ln        net.Listener
}

// NewTunnel - Tunnel constructor. host may carry an explicit ssh port;
// without one, 22 is assumed. remote is the database endpoint as seen from
// the tunnel host. identity names a private key file; when empty, the ssh
// agent at SSH_AUTH_SOCK is the only authentication option.
func NewTunnel(host, user, identity, remote string) *Tunnel {
	return &Tunnel{
		host:     host,
		user:     user,
		identity: identity,
		remote:   remote,
		// The legacy forwarder never verified tunnel-host keys; keep that
		// posture unless a callback is installed.
		hostKeys: ssh.InsecureIgnoreHostKey(), //nolint:gosec
		state:    TunnelDown,
	}
}

// SetHostKeyCallback - install tunnel-host key verification.
func (t *Tunnel) SetHostKeyCallback(cb ssh.HostKeyCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.hostKeys = cb
}

// Host - the tunnel host name.
func (t *Tunnel) Host() string { return t.host }

// State - current lifecycle state.
func (t *Tunnel) State() TunnelState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// LocalPort - the bound local port, 0 unless the tunnel is up.
func (t *Tunnel) LocalPort() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.localPort
}

// Alive - probe the bound local port with a short TCP dial.
func (t *Tunnel) Alive() bool {
	return portAlive(t.LocalPort())
}

// EnsureRoute - make sure a live forward to the remote endpoint exists.
//
// Idempotent: if the previously bound port still accepts within the probe
// budget the call returns immediately. Non-designated ranks no-op. Auth
// problems surface as NoRouteError, forwarding setup problems as
// ConnectionError; either way the state is left Failed for the next attempt
// to start over.
func (t *Tunnel) EnsureRoute() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.localPort != 0 && portAlive(t.localPort) {
		t.state = TunnelUp

		return nil
	}

	if !ConnectThisRank() {
		return nil
	}

	// A stale session cannot be revived, drop it before redialing.
	t.teardownLocked()
	t.state = TunnelStarting

	auth, err := t.authMethods()
	if err != nil {
		t.state = TunnelFailed

		return err
	}

	addr := t.host
	if _, _, splitErr := net.SplitHostPort(addr); splitErr != nil {
		addr = net.JoinHostPort(addr, "22")
	}

	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            t.user,
		Auth:            auth,
		HostKeyCallback: t.hostKeys,
		Timeout:         sshTimeout,
	})
	if err != nil {
		t.state = TunnelFailed

		return errorx.NewNoRouteErrorWrapper(err, "could not tunnel through %s", t.host)
	}

	ln, err := net.Listen("tcp", Localhost+":0")
	if err != nil {
		client.Close()
		t.state = TunnelFailed

		return errorx.NewConnectionErrorWrapper(err, "could not bind a local port for the tunnel to %s", t.host)
	}

	go t.serve(client, ln)

	port := ln.Addr().(*net.TCPAddr).Port
	if !waitUp(port) {
		ln.Close()
		client.Close()
		t.state = TunnelFailed

		return errorx.NewConnectionError("forwarded port for %s did not come up", t.host)
	}

	t.client = client
	t.ln = ln
	t.localPort = port
	t.state = TunnelUp

	logx.GetLogger().LogInfo(context.TODO(),
		fmt.Sprintf("tunnel to %s up, forwarding %s:%d to %s", t.host, Localhost, port, t.remote))

	return nil
}

// Close - stop the forwarding session. Always safe, started or not.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.teardownLocked()
	t.state = TunnelDown

	return nil
}

func (t *Tunnel) teardownLocked() {
	if t.ln != nil {
		t.ln.Close()
		t.ln = nil
	}

	if t.client != nil {
		t.client.Close()
		t.client = nil
	}

	t.localPort = 0
}

// serve - accept local connections and splice each onto an SSH channel to
// the remote endpoint. Exits when the listener closes.
func (t *Tunnel) serve(client *ssh.Client, ln net.Listener) {
	for {
		local, err := ln.Accept()
		if err != nil {
			return
		}

		go func() {
			remote, err := client.Dial("tcp", t.remote)
			if err != nil {
				logx.GetLogger().LogDebug(context.TODO(),
					fmt.Sprintf("tunnel to %s: remote dial %s failed: %v", t.host, t.remote, err))
				local.Close()

				return
			}

			splice(local, remote)
		}()
	}
}

// splice - copy both directions until either side closes.
func splice(a, b net.Conn) {
	go func() {
		io.Copy(a, b) //nolint:errcheck
		a.Close()
		b.Close()
	}()

	io.Copy(b, a) //nolint:errcheck
	a.Close()
	b.Close()
}

// authMethods - key file first, then the ssh agent; with neither available
// there is no route to the database.
func (t *Tunnel) authMethods() ([]ssh.AuthMethod, error) {
	if t.identity != "" {
		key, err := os.ReadFile(t.identity)
		if err != nil {
			return nil, errorx.NewNoRouteErrorWrapper(
				errors.Wrap(err, "reading identity file"), "no authentication option for %s", t.host)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errorx.NewNoRouteErrorWrapper(
				errors.Wrap(err, "parsing identity file"), "no authentication option for %s", t.host)
		}

		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		conn, err := net.Dial("unix", sock)
		if err == nil {
			return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(conn).Signers)}, nil
		}
	}

	return nil, errorx.NewNoRouteError("no authentication option for %s", t.host)
}

// portAlive - short TCP probe of a local port.
func portAlive(port int) bool {
	if port == 0 {
		return false
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(Localhost, strconv.Itoa(port)), probeTimeout)
	if err != nil {
		return false
	}

	conn.Close()

	return true
}

// waitUp - bounded wait for a freshly bound forward to accept.
func waitUp(port int) bool {
	deadline := time.Now().Add(upTimeout)
	for time.Now().Before(deadline) {
		if portAlive(port) {
			return true
		}

		time.Sleep(100 * time.Millisecond)
	}

	return false
}
