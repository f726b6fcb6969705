// Package server owns the HTTP server lifecycle.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/api"
	"github.com/scandukuri/basic-tool-calling-agent-v1/internal/infra/config"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns default HTTP server configuration.
// WriteTimeout is disabled: a completion run holds the response open for
// the full tool loop, which can outlive any fixed write deadline.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:         addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
}

// Server wraps the HTTP server and database.
type Server struct {
	config Config
	db     *sql.DB
	http   *http.Server
	logger *slog.Logger
}

// NewServer creates the HTTP server with the full route graph attached.
func NewServer(db *sql.DB, appCfg config.Config, srvCfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	router, err := api.NewRouter(db, appCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("server: build router: %w", err)
	}

	httpServer := &http.Server{
		Addr:         srvCfg.Addr,
		Handler:      router,
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
		IdleTimeout:  srvCfg.IdleTimeout,
	}

	return &Server{
		config: srvCfg,
		db:     db,
		http:   httpServer,
		logger: logger,
	}, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("database close error: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}
