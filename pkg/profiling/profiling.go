// Package profiling captures cpu and heap profiles of long-running ingest
// and backfill jobs.
package profiling

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/pkg/errors"
)

// StartCPUProfile - begin writing a cpu profile to filename. The returned
// stop function flushes and closes the file.
func StartCPUProfile(filename string) (func(), error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, errors.Wrap(err, "creating cpu profile")
	}

	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()

		return nil, errors.Wrap(err, "starting cpu profile")
	}

	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}

// CaptureMemoryProfile - write a heap profile to filename.
func CaptureMemoryProfile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating memory profile")
	}
	defer f.Close()

	// Collect garbage first so the profile carries up-to-date statistics.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return errors.Wrap(err, "writing memory profile")
	}

	return nil
}
