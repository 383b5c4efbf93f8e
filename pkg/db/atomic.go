package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/aperture-array/obsdb/pkg/errorx"
	"github.com/aperture-array/obsdb/pkg/logx"
)

// Atomic - run body inside a transaction on the role's cached handle.
//
// The connection is ensured first. Then:
//
//   - body returns nil: the transaction commits.
//   - body returns an ordinary error: the transaction rolls back and the
//     error is propagated unchanged.
//   - body returns an *ExitError: a non-zero code rolls back, a zero code
//     commits; the ExitError is returned only after the transaction has
//     settled, so the caller may exit knowing the data fate.
//   - body panics: the transaction rolls back and the panic resumes.
//
// Calling Atomic again from inside body joins the open transaction instead
// of opening a second one: the inner body runs against the same *sql.Tx and
// commit/rollback happen only at the outermost boundary. Closing the
// session from inside body is forbidden and fails loudly.
func (s *Session) Atomic(ctx context.Context, readWrite bool, body func(tx *sql.Tx) error) error {
	if err := s.Connect(ctx, readWrite, false); err != nil {
		return err
	}

	if s.txDepth > 0 {
		s.txDepth++
		defer func() { s.txDepth-- }()

		return body(s.tx)
	}

	handle := s.DB(readWrite)
	if handle == nil {
		return errorx.NewConnectionError("no %s connection in session %s", roleName(readWrite), s.id)
	}

	tx, err := handle.BeginTx(ctx, nil)
	if err != nil {
		return errorx.NewConnectionErrorWrapper(err, "could not begin transaction")
	}

	scope := uuid.NewString()[:8]
	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("session %s: transaction scope %s open (%s)", s.id, scope, roleName(readWrite)))

	s.tx = tx
	s.txDepth = 1

	err = func() (bodyErr error) {
		defer func() {
			if r := recover(); r != nil {
				s.tx = nil
				s.txDepth = 0
				s.rollback(ctx, tx, scope)
				panic(r)
			}
		}()

		return body(tx)
	}()

	s.tx = nil
	s.txDepth = 0

	var exit *ExitError

	switch {
	case err == nil:
		return s.commit(ctx, tx, scope)

	case errors.As(err, &exit):
		if exit.Code != 0 {
			s.rollback(ctx, tx, scope)

			return err
		}

		if commitErr := s.commit(ctx, tx, scope); commitErr != nil {
			return commitErr
		}

		return err

	default:
		s.rollback(ctx, tx, scope)

		return err
	}
}

func (s *Session) commit(ctx context.Context, tx *sql.Tx, scope string) error {
	if err := tx.Commit(); err != nil {
		return errorx.NewConnectionErrorWrapper(err, "transaction scope %s commit failed", scope)
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("session %s: transaction scope %s committed", s.id, scope))

	return nil
}

func (s *Session) rollback(ctx context.Context, tx *sql.Tx, scope string) {
	if err := tx.Rollback(); err != nil {
		logx.GetLogger().LogWarning(ctx, fmt.Sprintf("session %s: transaction scope %s rollback failed", s.id, scope), err)

		return
	}

	logx.GetLogger().LogDebug(ctx, fmt.Sprintf("session %s: transaction scope %s rolled back", s.id, scope))
}
