// Package shutdown blocks a process until it is told to stop, then runs
// cleanup under a deadline. Long-running users of this library hook their
// session teardown in here so tunnels and handles close before exit.
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aperture-array/obsdb/pkg/logx"
)

// WaitForShutdown waits for SIGINT or SIGTERM, then runs cleanupCallback
// within a context bounded by timeoutMilli milliseconds.
//
// Usage:
//
//	shutdown.WaitForShutdown(context.Background(), 5000, func(timeoutCtx context.Context) {
//	    session.Close()
//	})
func WaitForShutdown(rootCtx context.Context, timeoutMilli int64, cleanupCallback func(timeoutCtx context.Context)) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	signalCaptured := <-signals
	logx.GetLogger().LogDebug(rootCtx, fmt.Sprintf("interrupt signal captured: %s", signalCaptured.String()))

	timeoutCtx, cancel := context.WithTimeout(rootCtx, time.Duration(timeoutMilli)*time.Millisecond)
	defer cancel()

	cleanUp(timeoutCtx, cleanupCallback)
}

// cleanUp executes the cleanup callback, waiting for it to finish or for
// the deadline to pass, whichever comes first.
func cleanUp(timeoutCtx context.Context, cleanupCallback func(timeoutCtx context.Context)) {
	logx.GetLogger().LogInfo(timeoutCtx, "cleaning up resources")

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		if cleanupCallback != nil {
			cleanupCallback(timeoutCtx)
		}
		ch <- "all resources cleaned up"
	}()

	select {
	case <-timeoutCtx.Done():
		logx.GetLogger().LogError(timeoutCtx, "deadline exceeded while cleaning up", timeoutCtx.Err())
	case result := <-ch:
		logx.GetLogger().LogInfo(timeoutCtx, result)
	}
}
