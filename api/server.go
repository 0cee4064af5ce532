// Package api provides the HTTP REST API for the aula chatbot.
//
// Endpoints:
//
//	POST /api/chat                      one chat turn
//	GET  /api/threads/{id}/documents    sources used so far in a thread
//	GET  /health                        liveness probe
//	GET  /ready                         readiness probe (pings the database)
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: HTTP middleware (recovery, logging)
//   - health.go: health check endpoints
//   - chat.go: chat endpoint
//   - threads.go: thread document listing
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to stop slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Chat
	// turns run several model calls, so this is generous.
	WriteTimeout = 2 * time.Minute

	// IdleTimeout applies to keep-alive connections between requests.
	IdleTimeout = 2 * time.Minute
)

// ServerConfig collects the server's dependencies.
type ServerConfig struct {
	Engine        ChatEngine
	Conversations ConversationStore
	Pool          *pgxpool.Pool
	Logger        *slog.Logger

	// MaxHistoryMessages bounds the history loaded per turn when the
	// client does not supply one.
	MaxHistoryMessages int32

	// IsDev controls error surfacing: development returns the error
	// string, production returns a single generic message.
	IsDev bool
}

// Server is the HTTP server for the chat API.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	health  *HealthHandler
	chat    *ChatHandler
	threads *ThreadsHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("chat engine is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:     mux,
		logger:  logger,
		health:  NewHealthHandler(cfg.Pool, logger),
		chat:    NewChatHandler(cfg.Engine, cfg.Conversations, logger, cfg.MaxHistoryMessages, cfg.IsDev),
		threads: NewThreadsHandler(cfg.Conversations, logger),
	}

	s.health.RegisterRoutes(mux)
	s.chat.RegisterRoutes(mux)
	s.threads.RegisterRoutes(mux)

	return s, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, then logging, then the mux.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
