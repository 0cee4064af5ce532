// Package app provides application initialization and dependency injection.
//
// Setup wires every component explicitly: tracing, database pool, migrations,
// Genkit, the model client and the chat pipeline. App is the container the
// commands and the HTTP server pull their dependencies from; Close releases
// everything in reverse order.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aula0/aula/internal/config"
	"github.com/aula0/aula/internal/conversation"
	"github.com/aula0/aula/internal/retrieval"
	"github.com/aula0/aula/internal/router"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	// Chat pipeline and persistence
	Router        *router.Router
	Conversations *conversation.Store
	Passages      *retrieval.Store

	// Lifecycle
	cancel      context.CancelFunc
	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.logger().Info("shutting down application")

	if a.cancel != nil {
		a.cancel()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.logger().Debug("database pool closed")
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
