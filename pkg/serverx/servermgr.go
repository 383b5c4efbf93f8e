// Package serverx defines the minimal contract a transport server must meet
// to take part in coordinated startup and shutdown. A Fiber implementation
// lives in the fibersrv subpackage.
package serverx

import (
	"context"
)

// Server - a transport server generic over its underlying engine.
type Server[T any] interface {
	// RunSync starts the server and blocks until it stops.
	RunSync()
	// RunAsync starts the server in a background goroutine.
	RunAsync()
	// GetServer exposes the underlying engine.
	GetServer() T
	// Setup hands the engine to setupFunc for route registration.
	Setup(ctx context.Context, setupFunc func(server T))
	// Shutdown stops the server, honoring ctx's deadline.
	Shutdown(ctx context.Context)
}
