package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/frizbank/frizbank/internal/config"
	"github.com/frizbank/frizbank/internal/middleware"
	"github.com/frizbank/frizbank/internal/notification"
	"github.com/frizbank/frizbank/internal/routes"
)

// Server wraps the Fiber application and the background earnings scheduler.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	runtime *routes.Runtime
	logger  *slog.Logger
}

// Options carries the optional backends; nil fields fall back to memory.
type Options struct {
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Notifier notification.Notifier
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
func New(cfg config.Config, opts Options, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	rt, err := routes.Setup(app, routes.Deps{
		Cfg:      cfg,
		DB:       opts.DB,
		Cache:    opts.Cache,
		Logger:   logger,
		Notifier: opts.Notifier,
	})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, runtime: rt, logger: logger}, nil
}

// App exposes the underlying Fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the earnings scheduler and then the HTTP server.
func (s *Server) Listen() error {
	if err := s.runtime.Scheduler.Start(); err != nil {
		return err
	}
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server and waits for a running
// earnings tick to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.app.ShutdownWithContext(ctx)
	select {
	case <-s.runtime.Scheduler.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("earnings scheduler did not stop in time")
		return errors.Join(httpErr, ctx.Err())
	}
	return httpErr
}
