package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/aperture-array/obsdb/pkg/errorx"
	"github.com/aperture-array/obsdb/pkg/logx"
)

const retryBackoff = 50 * time.Millisecond

// IsRetryable - true when err looks like a transient driver failure that a
// repeated statement could survive: a dropped or stale connection, a lock
// wait, a deadlock victim, a serialization failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1205 lock wait timeout, 1213 deadlock victim.
		return myErr.Number == 1205 || myErr.Number == 1213
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization failure, 40P01 deadlock detected.
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}

	msg := err.Error()

	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "bad connection")
}

// WithRetry - run fn up to attempts times, retrying only on retryable
// errors, with a short backoff between tries.
//
// Retry is always explicit in this library, and never happens inside a
// transaction scope: a statement that already ran once in an open
// transaction must not silently run again, so calling WithRetry from an
// Atomic body fails with InconsistencyError.
func (s *Session) WithRetry(ctx context.Context, attempts int, fn func() error) error {
	if s.txDepth > 0 {
		return errorx.NewInconsistencyError("retry is forbidden inside a transaction scope")
	}

	var err error

	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}

		if attempt < attempts {
			logx.GetLogger().LogDebug(ctx,
				fmt.Sprintf("session %s: transient database error, retrying: %v", s.id, err))
			time.Sleep(retryBackoff)
		}
	}

	return err
}
