// Package server constructs and starts the chat HTTP service with helpers
// that apply the configured timeouts.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/Tyrowin/hellochat/internal/logger"
)

// CreateServer creates and configures an HTTP server with the specified
// address, handler and timeouts. A zero WriteTimeout leaves long responses
// unbounded.
func CreateServer(cfg *Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// StartServer starts the HTTP server and blocks until it exits. A server
// closed through ShutdownServer returns nil.
func StartServer(server *http.Server, log *logger.Logger) error {
	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "failed to start HTTP server")
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
// Hijacked WebSocket connections are not tracked by the server; close them
// through ConnectionManager.Shutdown.
func ShutdownServer(server *http.Server, timeout time.Duration, log *logger.Logger) error {
	log.Info().Msg("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
		return errors.Wrap(err, "failed to shut down HTTP server")
	}

	log.Info().Msg("HTTP server shutdown completed")
	return nil
}
