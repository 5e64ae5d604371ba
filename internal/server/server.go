package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/bobmcallan/snaptrail/internal/app"
	"github.com/bobmcallan/snaptrail/internal/common"
)

// signalsTTL bounds how long computed signals are served from memory.
const signalsTTL = 5 * time.Minute

// Server wraps the HTTP server and application reference.
type Server struct {
	app    *app.App
	server *http.Server
	cache  *cache.Cache
	logger *common.Logger
}

// NewServer creates a new read-only HTTP API server.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		cache:  cache.New(signalsTTL, 2*signalsTTL),
		logger: a.Logger,
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// InvalidateCache drops cached responses, e.g. after a run wrote new data.
func (s *Server) InvalidateCache() {
	s.cache.Flush()
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
