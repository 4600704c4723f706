// Package server provides HTTP server construction for calendar-diary.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Session    http.Handler
	MCPHandler http.Handler
	Version    string
}

// NewMux builds the HTTP mux with the session websocket, the optional
// MCP endpoint and a health check.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/session", cfg.Session)
	if cfg.MCPHandler != nil {
		mux.Handle("/mcp", cfg.MCPHandler)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": cfg.Version})
	})

	return mux
}

// Serve runs handler on ln until ctx is cancelled, then shuts down
// gracefully. Websocket sessions are long-lived, so only header reads
// are bounded.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info("starting session server", slog.String("listen", ln.Addr().String()))

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down session server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("session server error: %w", err)
	}

	return nil
}
