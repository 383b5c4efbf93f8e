package errorx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aperture-array/obsdb/pkg/errorx"
	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"connection", errorx.NewConnectionError("handshake failed"), errorx.ErrConnection},
		{"no route", errorx.NewNoRouteError("no configuration found"), errorx.ErrNoRoute},
		{"invalid config", errorx.NewInvalidConfigError("bad rc file"), errorx.ErrInvalidConfig},
		{"not found", errorx.NewNotFoundError("no such instrument"), errorx.ErrNotFound},
		{"already exists", errorx.NewAlreadyExistsError("duplicate key"), errorx.ErrAlreadyExists},
		{"inconsistency", errorx.NewInconsistencyError("two canonical rows"), errorx.ErrInconsistency},
		{"validation", errorx.NewValidationError("bad hash format"), errorx.ErrValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.sentinel)
		})
	}
}

func TestNoRouteIsAConnectionError(t *testing.T) {
	err := errorx.NewNoRouteError("could not tunnel through %s", "gateway.example.com")

	assert.ErrorIs(t, err, errorx.ErrNoRoute)
	assert.ErrorIs(t, err, errorx.ErrConnection, "NoRoute must match the ConnectionError sentinel too")
}

func TestConnectionErrorIsNotNoRoute(t *testing.T) {
	err := errorx.NewConnectionError("connection refused")

	assert.ErrorIs(t, err, errorx.ErrConnection)
	assert.NotErrorIs(t, err, errorx.ErrNoRoute)
}

func TestWrapperKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:3306: connection refused")
	err := errorx.NewConnectionErrorWrapper(cause, "could not connect to %s", "db.example.com")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "db.example.com")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestMatchingThroughOuterWrap(t *testing.T) {
	inner := errorx.NewNotFoundError("instrument %q not found", "pf-7")
	outer := fmt.Errorf("cache fill: %w", inner)

	assert.ErrorIs(t, outer, errorx.ErrNotFound)

	var nf *errorx.NotFoundError
	assert.ErrorAs(t, outer, &nf)
	assert.Contains(t, nf.Error(), "pf-7")
}

func TestMessageFormatting(t *testing.T) {
	err := errorx.NewInvalidConfigError("section %q missing from %s", "obsdb", "/etc/aperture/obsdbrc")

	assert.Equal(t, `section "obsdb" missing from /etc/aperture/obsdbrc`, err.Error())
}
