// Package server exposes the latest CPU loads over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/opd-ai/go-cpuload/internal/cpustat"
	"github.com/opd-ai/go-cpuload/internal/logging"
	"github.com/opd-ai/go-cpuload/internal/poller"
)

// ShutdownTimeout bounds how long in-flight requests may take once the
// server is asked to stop.
const ShutdownTimeout = 5 * time.Second

// LoadProvider returns the most recent reading.
type LoadProvider interface {
	Latest() (poller.Reading, bool)
}

// Server represents the API server
type Server struct {
	app     *fiber.App
	loads   LoadProvider
	log     logging.Logger
	started time.Time
}

// New creates a Server reading from loads.
func New(loads LoadProvider, log logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		AppName:               "cpuload",
	})

	s := &Server{
		app:     app,
		loads:   loads,
		log:     log,
		started: time.Now(),
	}

	app.Use(recover.New())
	app.Use(s.logRequest)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	api.Get("/load", s.getLoad)
	api.Get("/cores/:index", s.getCore)
	api.Get("/health", s.healthCheck)
}

func (s *Server) logRequest(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.log.Debug("http request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.log.Info("http server listening", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- s.app.Listener(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(ShutdownTimeout); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) getLoad(c *fiber.Ctx) error {
	r, ok := s.loads.Latest()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no sample yet"})
	}
	return c.JSON(r)
}

func (s *Server) getCore(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "core index must be an integer"})
	}

	r, ok := s.loads.Latest()
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no sample yet"})
	}
	if index < 0 || index >= len(r.Cores) {
		ie := &cpustat.IndexError{Index: index, Count: len(r.Cores)}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": ie.Error()})
	}

	return c.JSON(fiber.Map{
		"time":  r.Time,
		"index": index,
		"load":  r.Cores[index],
	})
}

func (s *Server) healthCheck(c *fiber.Ctx) error {
	_, ok := s.loads.Latest()
	return c.JSON(fiber.Map{
		"status":     "ok",
		"has_sample": ok,
		"uptime":     time.Since(s.started).Round(time.Second).String(),
		"timestamp":  time.Now().Unix(),
	})
}
