// Package connector describes the ways a database endpoint can be reached
// and turns each description into a live database/sql handle.
//
// There are exactly three kinds of connector: Direct (plain TCP to a
// networked server), Tunneled (TCP through an SSH port-forward), and
// Embedded (a file-backed or in-memory SQLite store). The set is closed;
// resolution code switches over these three and nothing else.
package connector

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/aperture-array/obsdb/pkg/errorx"
)

// Localhost - used instead of "localhost" because the MySQL driver treats
// the literal name as a request for a unix socket.
const Localhost = "127.0.0.1"

// connectTimeout bounds the TCP/TLS handshake of a single connection attempt.
const connectTimeout = time.Second

// Backend - networked database flavor.
type Backend string

const (
	// MySQL - the collaboration's production backend.
	MySQL Backend = "mysql"
	// Postgres - networked alternative used by some deployments.
	Postgres Backend = "postgres"
)

// Connector - one way to reach a database endpoint.
//
// A Connector is immutable once built, except for the tunnel state owned by
// a Tunneled value. Open may be called more than once; each call dials a
// fresh handle and verifies it before returning.
type Connector interface {
	// Open dials the endpoint and returns a verified handle. The handle is
	// capped at one underlying connection; this library brokers connections,
	// it does not pool them. Failures are ConnectionError, or NoRouteError
	// when no path to the endpoint exists at all.
	Open(ctx context.Context) (*sql.DB, error)

	// Description identifies the endpoint in log lines and error messages.
	Description() string

	// Close releases endpoint resources held outside any handle, such as a
	// forwarding session. Safe to call on a connector that never opened.
	Close() error

	// sealed keeps the variant set closed.
	sealed()
}

// DIRECT:

// Direct - plain TCP endpoint of a networked server.
type Direct struct {
	Backend  Backend
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

func (d *Direct) sealed() {}

// driverAndDSN - map the endpoint onto a registered database/sql driver.
func (d *Direct) driverAndDSN() (string, string) {
	if d.Backend == Postgres {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(d.User, d.Password),
			Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:     d.Database,
			RawQuery: "connect_timeout=1",
		}

		return "pgx", u.String()
	}

	return "mysql", fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?timeout=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, connectTimeout)
}

// Open - dial the server and verify the handle with a short ping.
func (d *Direct) Open(ctx context.Context) (*sql.DB, error) {
	driver, dsn := d.driverAndDSN()

	return openHandle(ctx, driver, dsn, d.Description())
}

// Description - endpoint label for logs.
func (d *Direct) Description() string {
	return fmt.Sprintf("%s database %s at %s:%d", d.Backend, d.Database, d.Host, d.Port)
}

// Close - nothing to release for a direct endpoint.
func (d *Direct) Close() error { return nil }

// TUNNELED:

// Tunneled - a networked endpoint reached through an SSH port-forward. The
// embedded Direct value describes the endpoint as seen from the tunnel host.
type Tunneled struct {
	Direct

	tunnel *Tunnel
}

// NewTunneled - build a tunneled connector with its own private tunnel.
func NewTunneled(direct Direct, tunnelHost, tunnelUser, identity string) *Tunneled {
	remote := net.JoinHostPort(direct.Host, strconv.Itoa(direct.Port))

	return &Tunneled{
		Direct: direct,
		tunnel: NewTunnel(tunnelHost, tunnelUser, identity, remote),
	}
}

// Tunnel - the forwarding session owned by this connector.
func (t *Tunneled) Tunnel() *Tunnel { return t.tunnel }

// Open - ensure the forward is live, then dial through the bound local port.
func (t *Tunneled) Open(ctx context.Context) (*sql.DB, error) {
	if err := t.tunnel.EnsureRoute(); err != nil {
		return nil, err
	}

	port := t.tunnel.LocalPort()
	if port == 0 {
		return nil, errorx.NewNoRouteError("tunnel to %s is not established", t.tunnel.Host())
	}

	local := t.Direct
	local.Host = Localhost
	local.Port = port

	driver, dsn := local.driverAndDSN()

	db, err := openHandle(ctx, driver, dsn, t.Description())
	if err != nil {
		// A dead forward is not worth keeping around for the next candidate.
		t.tunnel.Close()

		return nil, err
	}

	return db, nil
}

// Description - endpoint label naming the tunnel host too.
func (t *Tunneled) Description() string {
	return fmt.Sprintf("%s via tunnel %s", t.Direct.Description(), t.tunnel.Host())
}

// Close - stop the forwarding session.
func (t *Tunneled) Close() error {
	return t.tunnel.Close()
}

// EMBEDDED:

// Embedded - a SQLite store, either a plain file path or a full file: URI.
// URIs pass through untouched so callers can carry their own options; plain
// paths are wrapped, read-only opens adding mode=ro.
type Embedded struct {
	Path      string
	ReadWrite bool
}

// NewEmbedded - Embedded constructor.
func NewEmbedded(path string, readWrite bool) *Embedded {
	return &Embedded{Path: path, ReadWrite: readWrite}
}

func (e *Embedded) sealed() {}

// URI - the sqlite connection string for this store.
func (e *Embedded) URI() string {
	if strings.HasPrefix(e.Path, "file:") {
		return e.Path
	}

	if e.ReadWrite {
		return "file:" + e.Path
	}

	return "file:" + e.Path + "?mode=ro"
}

// Open - open the store and verify it.
func (e *Embedded) Open(ctx context.Context) (*sql.DB, error) {
	return openHandle(ctx, "sqlite3", e.URI(), e.Description())
}

// Description - store label for logs.
func (e *Embedded) Description() string {
	role := "read-only"
	if e.ReadWrite {
		role = "read-write"
	}

	return fmt.Sprintf("sqlite database %s (%s)", e.Path, role)
}

// Close - nothing to release for an embedded store.
func (e *Embedded) Close() error { return nil }

// openHandle - shared open-and-verify step. The handle is capped at a single
// underlying connection per role.
func openHandle(ctx context.Context, driver, dsn, description string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errorx.NewConnectionErrorWrapper(err, "could not open %s", description)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()

		return nil, errorx.NewConnectionErrorWrapper(err, "could not connect to %s", description)
	}

	return db, nil
}
