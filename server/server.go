// Package server exposes the chat service over HTTP: a JSON API for talk
// sessions, an SSE stream of run events, and an embedded single-page chat UI.
package server

import (
	"context"
	"embed"
	"fmt"
	"net/http"

	"github.com/effective-security/xlog"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/ohtaman/planchat/service"
)

var logger = xlog.NewPackageLogger("github.com/ohtaman/planchat", "server")

//go:embed static
var staticFS embed.FS

// DefaultUserID is used when the request does not identify the user.
const DefaultUserID = "default"

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr" yaml:"addr"`
	// ExamplesDir is the directory holding example prompts, organized as
	// <dir>/<lang>/*.md.
	ExamplesDir string `json:"examples_dir,omitempty" yaml:"examples_dir,omitempty"`
}

// Server is the HTTP front end.
type Server struct {
	cfg Config
	svc *service.AgentService
	e   *echo.Echo
}

// New creates the server and registers its routes.
func New(cfg Config, svc *service.AgentService) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		e:   echo.New(),
	}

	e := s.e
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	api := e.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id/events", s.getEvents)
	api.DELETE("/sessions/:id/events", s.resetEvents)
	api.POST("/sessions/:id/messages", s.postMessage)
	api.GET("/sessions/:id/stream", s.stream)
	api.GET("/examples", s.getExamples)

	e.GET("/", func(c echo.Context) error {
		data, err := staticFS.ReadFile("static/index.html")
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "chat page not available")
		}
		return c.HTMLBlob(http.StatusOK, data)
	})

	return s
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.KV(xlog.INFO, "status", "listening", "addr", s.cfg.Addr)
	err := s.e.Start(s.cfg.Addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	logger.ContextKV(req.Context(), xlog.WARNING,
		"status", code,
		"method", req.Method,
		"path", req.URL.Path,
		"err", err.Error(),
	)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]any{"error": msg})
	}
}

// userID identifies the caller. There is no auth layer; the UI passes a
// stable ID in the X-User-ID header.
func userID(c echo.Context) string {
	if id := c.Request().Header.Get("X-User-ID"); id != "" {
		return id
	}
	return DefaultUserID
}
