// Package web exposes the heliostat control panel: a single page to start
// tracking runs with per-run overrides, and an SSE stream of tracking
// telemetry (solved joint angles, actuator positions, sun position).
package web

import (
	"context"
	"io/fs"
	"log"
	"net/http"
	"time"
)

// Server wraps the HTTP server and handlers of the control panel.
type Server struct {
	addr     string
	handlers *Handlers
}

// NewServer creates a control panel server for the given address and
// dependencies.
func NewServer(addr string, broadcaster *StatusBroadcaster, runTrack RunTrackFunc, formDefaults FormConfig) *Server {
	subFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("web: failed to sub static fs: %v", err)
	}

	handlers := NewHandlers(broadcaster, runTrack, formDefaults, subFS)

	return &Server{
		addr:     addr,
		handlers: handlers,
	}
}

// Mux returns an http.Handler with all control panel routes registered.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /run", s.handlers.HandleRun)
	mux.HandleFunc("GET /config", s.handlers.HandleConfig)
	mux.HandleFunc("GET /status/stream", s.handlers.HandleStatusStream)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(s.handlers.staticFS))))
	mux.HandleFunc("GET /{$}", s.handlers.ServeIndex) // exact match for root only

	return mux
}

// newHTTPServer builds the underlying http.Server. Only the header read is
// bounded: a write timeout would kill the long-lived telemetry stream.
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ListenAndServe starts the control panel server.
func (s *Server) ListenAndServe() error {
	log.Printf("heliostat control panel listening on %s", s.addr)
	return s.newHTTPServer().ListenAndServe()
}

// Run starts the server and blocks until ctx is cancelled, then shuts down
// gracefully so connected telemetry clients get a clean close.
func (s *Server) Run(ctx context.Context) error {
	srv := s.newHTTPServer()
	errCh := make(chan error, 1)
	go func() {
		log.Printf("heliostat control panel listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
