// Package api serves the session pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"gameforge/pkg/session"
	"gameforge/pkg/sessionlock"
)

// HeaderOwnerID identifies the caller. Authentication happens upstream.
const HeaderOwnerID = "X-Owner-ID"

// Store is the subset of the session store the API needs.
type Store interface {
	CreateSession(ctx context.Context, ownerID, prompt string) (*session.Session, error)
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListSessions(ctx context.Context, ownerID string) ([]session.Summary, error)
	DeleteOwnerSessions(ctx context.Context, ownerID string) (int64, error)
}

// Advancer moves a session one phase forward.
type Advancer interface {
	Advance(ctx context.Context, sessionID, userMessage string) (session.Outcome, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Addr string
	// GuestOwner keeps at most one session; its older sessions are deleted
	// when it starts a new one.
	GuestOwner string
}

// Server provides the chat and session endpoints.
type Server struct {
	echo     *echo.Echo
	store    Store
	advancer Advancer
	locks    *sessionlock.Locks
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	config   Config
}

// NewServer creates the HTTP server. A nil gatherer serves the default registry.
func NewServer(store Store, advancer Advancer, gatherer prometheus.Gatherer, logger *zap.Logger, cfg Config) (*Server, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if advancer == nil {
		return nil, errors.New("advancer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger is required for request tracking")
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:     e,
		store:    store,
		advancer: advancer,
		locks:    sessionlock.New(),
		gatherer: gatherer,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.echo.Group("/api", s.requireOwner)
	api.POST("/chat", s.handleChat)
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:id", s.handleGetSession)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting http server", zap.String("addr", s.config.Addr))
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx) //nolint:wrapcheck
}

const ownerKey = "owner"

func (s *Server) requireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner := c.Request().Header.Get(HeaderOwnerID)
		if owner == "" {
			return errorJSON(c, http.StatusUnauthorized, "Unauthorized")
		}
		c.Set(ownerKey, owner)
		return next(c)
	}
}

func ownerOf(c echo.Context) string {
	owner, _ := c.Get(ownerKey).(string)
	return owner
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, ErrorResponse{Error: msg})
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
