package db_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aperture-array/obsdb/pkg/connector"
	"github.com/aperture-array/obsdb/pkg/db"
	"github.com/aperture-array/obsdb/pkg/errorx"
)

// clearDBEnv unsets every variable the resolver consults. Presence is what
// matters for these, so they are removed, not blanked. HOME is pointed at an
// empty directory to keep a stray ~/.obsdbrc on the build host out of the
// search path.
func clearDBEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{
		db.EnvSQLite,
		db.EnvRC,
		db.EnvTestEnable,
		db.EnvTestSQLite,
		db.EnvTestRC,
	} {
		if prev, ok := os.LookupEnv(name); ok {
			require.NoError(t, os.Unsetenv(name))
			t.Cleanup(func() { os.Setenv(name, prev) }) //nolint:errcheck
		}
	}

	t.Setenv("HOME", t.TempDir())
}

// createSQLiteStore creates an empty file usable as a sqlite store; a
// zero-length file is a valid empty database even for read-only opens.
func createSQLiteStore(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "observations.db")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	return path
}

// closedPort reserves a port and closes it again, yielding an endpoint that
// refuses connections.
func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	return port
}

func TestSessionBeforeConnect(t *testing.T) {
	sess := db.NewSession()

	assert.Nil(t, sess.CurrentConnector(false))
	assert.Nil(t, sess.CurrentConnector(true))
	assert.Nil(t, sess.DB(false))
	assert.Nil(t, sess.DB(true))

	// Closing a session that never connected is safe.
	assert.NoError(t, sess.Close())
}

func TestConnectEmbedded(t *testing.T) {
	clearDBEnv(t)
	t.Setenv(db.EnvSQLite, createSQLiteStore(t))

	sess := db.NewSession()
	require.NoError(t, sess.Connect(context.Background(), true, false))

	ro, ok := sess.CurrentConnector(false).(*connector.Embedded)
	require.True(t, ok)
	assert.False(t, ro.ReadWrite)

	rw, ok := sess.CurrentConnector(true).(*connector.Embedded)
	require.True(t, ok)
	assert.True(t, rw.ReadWrite)

	assert.NotNil(t, sess.DB(false))
	assert.NotNil(t, sess.DB(true))

	require.NoError(t, sess.Close())
	assert.Nil(t, sess.CurrentConnector(true))
	assert.Nil(t, sess.DB(true))
}

func TestConnectIsIdempotent(t *testing.T) {
	clearDBEnv(t)
	t.Setenv(db.EnvSQLite, createSQLiteStore(t))

	ctx := context.Background()
	sess := db.NewSession()
	require.NoError(t, sess.Connect(ctx, true, false))
	defer sess.Close()

	roDB, rwDB := sess.DB(false), sess.DB(true)

	// A second connect with live slots is a no-op.
	require.NoError(t, sess.Connect(ctx, false, false))
	assert.Same(t, roDB, sess.DB(false))
	assert.Same(t, rwDB, sess.DB(true))

	// reconnect tears the slots down and dials fresh handles.
	require.NoError(t, sess.Connect(ctx, true, true))
	assert.NotSame(t, roDB, sess.DB(false))
	assert.NotSame(t, rwDB, sess.DB(true))
}

func TestConnectFirstSuccessWins(t *testing.T) {
	clearDBEnv(t)

	port := closedPort(t)
	unreachable := func(user string) connector.Connector {
		return &connector.Direct{
			Backend:  connector.MySQL,
			Host:     connector.Localhost,
			Port:     port,
			Database: "observations",
			User:     user,
			Password: "secret",
		}
	}

	store := createSQLiteStore(t)

	db.RegisterSiteConfig(func() (ro, rw []connector.Connector, provenance string, err error) {
		ro = []connector.Connector{unreachable("reader"), connector.NewEmbedded(store, false)}
		rw = []connector.Connector{unreachable("writer"), connector.NewEmbedded(store, true)}

		return ro, rw, "test site configuration", nil
	})
	t.Cleanup(func() { db.RegisterSiteConfig(nil) })

	sess := db.NewSession()
	require.NoError(t, sess.Connect(context.Background(), true, false))
	defer sess.Close()

	// The unreachable candidate is skipped, the embedded fallback wins.
	_, ok := sess.CurrentConnector(false).(*connector.Embedded)
	assert.True(t, ok)
	_, ok = sess.CurrentConnector(true).(*connector.Embedded)
	assert.True(t, ok)
}

func TestConnectExhaustion(t *testing.T) {
	clearDBEnv(t)

	port := closedPort(t)

	db.RegisterSiteConfig(func() (ro, rw []connector.Connector, provenance string, err error) {
		cand := &connector.Direct{
			Backend:  connector.MySQL,
			Host:     connector.Localhost,
			Port:     port,
			Database: "observations",
			User:     "reader",
			Password: "secret",
		}

		return []connector.Connector{cand}, []connector.Connector{cand}, "test site configuration", nil
	})
	t.Cleanup(func() { db.RegisterSiteConfig(nil) })

	sess := db.NewSession()

	err := sess.Connect(context.Background(), false, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errorx.ErrConnection)
	assert.Contains(t, err.Error(), "no connection could be established")
	assert.Nil(t, sess.CurrentConnector(false))
}

func TestConnectRankGate(t *testing.T) {
	clearDBEnv(t)
	db.SetConnectRank(7)
	t.Cleanup(func() { db.SetConnectRank(0) })

	// A non-connecting rank neither consults sources nor raises.
	sess := db.NewSession()
	require.NoError(t, sess.Connect(context.Background(), true, false))
	assert.Nil(t, sess.CurrentConnector(true))
}

func TestEmbeddedStoreEndToEnd(t *testing.T) {
	variants := []struct {
		name      string
		configure func(t *testing.T, store string)
		// A caller-supplied file: URI carries its own options, so the
		// read-only role is not forced onto mode=ro for that variant.
		roProtected bool
	}{
		{
			name: "env path",
			configure: func(t *testing.T, store string) {
				t.Setenv(db.EnvSQLite, store)
			},
			roProtected: true,
		},
		{
			name: "env file URI",
			configure: func(t *testing.T, store string) {
				t.Setenv(db.EnvSQLite, "file:"+store)
			},
			roProtected: false,
		},
		{
			name: "rc file",
			configure: func(t *testing.T, store string) {
				rc := fmt.Sprintf("obsdb:\n    db_type: sqlite\n    db: %q\n", store)
				t.Setenv(db.EnvRC, writeRCFile(t, rc))
			},
			roProtected: true,
		},
	}

	for _, tc := range variants {
		t.Run(tc.name, func(t *testing.T) {
			clearDBEnv(t)
			tc.configure(t, createSQLiteStore(t))

			ctx := context.Background()
			sess := db.NewSession()
			require.NoError(t, sess.Connect(ctx, true, false))
			defer sess.Close() //nolint:errcheck

			rw := sess.DB(true)

			_, err := rw.ExecContext(ctx, "CREATE TABLE datum (id INTEGER PRIMARY KEY, value INTEGER NOT NULL)")
			require.NoError(t, err)

			_, err = rw.ExecContext(ctx, "INSERT INTO datum (value) VALUES (83)")
			require.NoError(t, err)

			// The read-only role sees the committed row but cannot write.
			var value int
			require.NoError(t, sess.DB(false).QueryRowContext(ctx, "SELECT value FROM datum").Scan(&value))
			assert.Equal(t, 83, value)

			if tc.roProtected {
				_, err = sess.DB(false).ExecContext(ctx, "UPDATE datum SET value = 0")
				require.Error(t, err)
			}

			require.NoError(t, sess.WithRetry(ctx, 3, func() error {
				_, execErr := rw.ExecContext(ctx, "UPDATE datum SET value = value * 2")

				return execErr
			}))

			require.NoError(t, sess.Close())

			// Reread through a fresh read-only session.
			fresh := db.NewSession()
			require.NoError(t, fresh.Connect(ctx, false, false))
			defer fresh.Close() //nolint:errcheck

			require.NoError(t, fresh.DB(false).QueryRowContext(ctx, "SELECT value FROM datum").Scan(&value))
			assert.Equal(t, 166, value)
		})
	}
}
