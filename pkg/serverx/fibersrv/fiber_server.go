package fibersrv

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/aperture-array/obsdb/pkg/logx"
	"github.com/aperture-array/obsdb/pkg/serverx"
)

// Config - the server knobs a service built on this library cares about.
type Config struct {
	AppName               string
	Port                  string
	Concurrency           int
	DisableStartupMessage bool
}

var (
	once     sync.Once
	instance serverx.Server[*fiber.App]
)

// FiberServer - Fiber server.
type FiberServer struct {
	Server *fiber.App
	config Config
}

// NewFiberServer - Fiber server constructor (singleton).
func NewFiberServer(config Config) serverx.Server[*fiber.App] {
	once.Do(func() {
		app := fiber.New(fiber.Config{
			AppName:               config.AppName,
			Concurrency:           config.Concurrency,
			DisableStartupMessage: config.DisableStartupMessage,
			Prefork:               false,
			CaseSensitive:         true,
			StrictRouting:         true,
			JSONEncoder:           json.Marshal,
			JSONDecoder:           json.Unmarshal,
		})
		instance = &FiberServer{Server: app, config: config}
	})

	return instance
}

// GetServer - return the fiber app.
func (srv *FiberServer) GetServer() *fiber.App {
	return srv.Server
}

// RunSync - run the server sync.
func (srv *FiberServer) RunSync() {
	if srv.Server != nil {
		runServer(srv)
	}
}

// RunAsync - run the server async.
func (srv *FiberServer) RunAsync() {
	if srv.Server != nil {
		go func() {
			runServer(srv)
		}()
	}
}

// Setup - hand the app to setupFunc for route registration.
func (srv *FiberServer) Setup(ctx context.Context, setupFunc func(fiber *fiber.App)) {
	if srv.Server != nil {
		setupFunc(srv.Server)
	}
}

// Shutdown - shutdown the server.
func (srv *FiberServer) Shutdown(ctx context.Context) {
	if srv.Server != nil {
		if err := srv.Server.Server().ShutdownWithContext(ctx); err != nil {
			logx.GetLogger().LogError(ctx, "Error shutting down the server", err)
		} else {
			logx.GetLogger().LogInfo(ctx, "Server shut down")
		}
	}
}

func runServer(srv *FiberServer) {
	serverAddr := fmt.Sprintf(":%s", srv.config.Port)
	if err := srv.Server.Listen(serverAddr); err != nil {
		logx.GetLogger().LogPanic(context.TODO(), "server stopped listening", err)
	}
}
