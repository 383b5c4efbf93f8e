// Package db brokers database connections for one worker at a time.
//
// A Session owns one read-only and one read-write connection slot. Connect
// resolves configuration, tries the candidate connectors in order, and
// caches the first one per role that yields a live handle; Atomic wraps a
// unit of work in a transaction with guaranteed commit-or-rollback
// resolution. Construct one Session per worker goroutine; a Session is not
// safe for concurrent use and never shares handles with another Session.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aperture-array/obsdb/pkg/connector"
	"github.com/aperture-array/obsdb/pkg/errorx"
	"github.com/aperture-array/obsdb/pkg/logx"
)

// AllRanks - see connector.AllRanks.
const AllRanks = connector.AllRanks

// SetConnectRank - designate the connecting rank for this process's job.
func SetConnectRank(rank int) { connector.SetConnectRank(rank) }

// slot - per-role holder of a live connector and its handle.
type slot struct {
	conn connector.Connector
	db   *sql.DB
}

func (sl *slot) live() bool { return sl.db != nil }

func (sl *slot) close() error {
	var errs []error

	if sl.db != nil {
		errs = append(errs, sl.db.Close())
	}

	if sl.conn != nil {
		errs = append(errs, sl.conn.Close())
	}

	sl.conn, sl.db = nil, nil

	return errors.Join(errs...)
}

// Session - per-worker connection state.
//
// The zero value is not usable; construct with NewSession.
type Session struct {
	id string

	ro slot
	rw slot

	tx      *sql.Tx
	txDepth int
}

// NewSession - Session constructor. The id tags this worker's log lines.
func NewSession() *Session {
	return &Session{id: uuid.NewString()[:8]}
}

// Connect - populate the connection slots.
//
// No-op when this process is not the designated connecting rank, and when
// both slots are already live and reconnect is false. Otherwise the
// configuration is resolved and, for each role still in need of a
// connector, the candidates are tried strictly in order: the first one that
// yields a live handle is cached and the rest are never consulted.
// Individual candidate failures are logged at debug level only; if at the
// end either role has no live connector, the whole call fails with one
// aggregate ConnectionError.
//
// Both roles are resolved and connected together; readWrite only names the
// role the caller is about to use.
func (s *Session) Connect(ctx context.Context, readWrite bool, reconnect bool) error {
	if !connector.ConnectThisRank() {
		return nil
	}

	if s.ro.live() && s.rw.live() && !reconnect {
		return nil
	}

	if s.txDepth > 0 {
		return errorx.NewInconsistencyError("cannot reconnect session %s inside an open transaction scope", s.id)
	}

	ro, rw, provenance, err := resolve()
	if err != nil {
		return err
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("session %s: database configuration from %s", s.id, provenance))

	if !s.ro.live() || reconnect {
		s.fill(ctx, &s.ro, ro)
	}

	if !s.rw.live() || reconnect {
		s.fill(ctx, &s.rw, rw)
	}

	if !s.ro.live() || !s.rw.live() {
		return errorx.NewConnectionError("connection data found, but no connection could be established")
	}

	return nil
}

// fill - first-success-wins iteration over one role's candidates.
func (s *Session) fill(ctx context.Context, sl *slot, candidates []connector.Connector) {
	sl.close() //nolint:errcheck

	for _, cand := range candidates {
		handle, err := cand.Open(ctx)
		if err != nil {
			logx.GetLogger().LogDebug(ctx,
				fmt.Sprintf("session %s: %s unreachable: %v", s.id, cand.Description(), err))

			continue
		}

		sl.conn, sl.db = cand, handle

		logx.GetLogger().LogInfo(ctx, fmt.Sprintf("session %s: connected to %s", s.id, cand.Description()))

		return
	}
}

// CurrentConnector - the live connector for a role, nil before any
// successful Connect and after Close.
func (s *Session) CurrentConnector(readWrite bool) connector.Connector {
	if readWrite {
		return s.rw.conn
	}

	return s.ro.conn
}

// DB - the query-capable handle for a role, for hand-off to an ORM or plain
// database/sql use. Nil before any successful Connect and after Close.
func (s *Session) DB(readWrite bool) *sql.DB {
	if readWrite {
		return s.rw.db
	}

	return s.ro.db
}

// Close - release both slots, closing each handle and stopping any tunnel.
//
// Closing while a transaction scope is open is a contract violation and
// fails with InconsistencyError; the scope holds the only valid handle for
// its duration. Safe on a session that never connected.
func (s *Session) Close() error {
	if s.txDepth > 0 {
		return errorx.NewInconsistencyError("session %s closed inside an open transaction scope", s.id)
	}

	return errors.Join(s.ro.close(), s.rw.close())
}
