package db

import (
	"os"
	"sync/atomic"
)

var testMode atomic.Bool

// TestEnable - switch this process into test-source mode. One-way and
// idempotent: once enabled, production configuration sources are never
// consulted again, no matter what the environment holds.
func TestEnable() {
	testMode.Store(true)
}

// TestEnabled - true when test mode is on, via TestEnable or the
// OBSDB_TEST_ENABLE environment variable (presence counts, not value).
func TestEnabled() bool {
	if testMode.Load() {
		return true
	}

	_, ok := os.LookupEnv(EnvTestEnable)

	return ok
}
