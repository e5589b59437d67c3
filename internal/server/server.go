// Package server provides the connector's status HTTP surface: health,
// a JSON status snapshot, a server-sent event stream of decoded messages,
// and a small dashboard.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/logger"
	"github.com/Guliveer/livetiming-connector/internal/model"
	"github.com/Guliveer/livetiming-connector/internal/stats"
	"github.com/Guliveer/livetiming-connector/internal/supervisor"
)

// HubState reports the hub connection state.
type HubState interface {
	ConnectionState() model.ConnectionState
	Operational() model.OperationalState
	IsConnected() bool
}

// SessionState reports the supervisor's session view.
type SessionState interface {
	Status() supervisor.Status
}

// MessageStats reports recent messages and message rates.
type MessageStats interface {
	Recent() []model.LiveTimingMessage
	PerSecond() []stats.RatePoint
	PerMinute() []stats.RatePoint
}

// StatusServer serves the status endpoints.
type StatusServer struct {
	addr    string
	log     *logger.Logger
	srv     *http.Server
	handler http.Handler

	hub      HubState
	session  SessionState
	stats    MessageStats
	messages *Broadcaster
	now      func() time.Time
}

// NewStatusServer creates a StatusServer bound to addr. messages may be nil,
// which disables the event stream.
func NewStatusServer(addr string, hub HubState, session SessionState, st MessageStats, messages *Broadcaster, log *logger.Logger) *StatusServer {
	s := &StatusServer{
		addr:     addr,
		log:      log,
		hub:      hub,
		session:  session,
		stats:    st,
		messages: messages,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleDashboard)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/messages", s.handleMessages)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticFS)))

	s.handler = withLogging(log, mux)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *StatusServer) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until the context is cancelled.
// It performs graceful shutdown when the context is done.
func (s *StatusServer) Run(ctx context.Context) error {
	s.log.Info("Status server starting", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("status server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Status server shutting down")
		if s.messages != nil {
			s.messages.Close()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func withLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration", time.Since(start).String(),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code before writing it.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
