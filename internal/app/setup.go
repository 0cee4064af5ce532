package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/aula0/aula/db"
	"github.com/aula0/aula/internal/analyzer"
	"github.com/aula0/aula/internal/config"
	"github.com/aula0/aula/internal/conversation"
	"github.com/aula0/aula/internal/grounding"
	"github.com/aula0/aula/internal/llm"
	"github.com/aula0/aula/internal/observability"
	"github.com/aula0/aula/internal/retrieval"
	"github.com/aula0/aula/internal/router"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be ready before genkit.Init creates the first span.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	client, err := llm.NewClient(g, llm.Config{
		ModelName:         cfg.FullModelName(),
		Timeout:           cfg.LLMTimeout,
		RequestsPerMinute: cfg.LLMRequestsPerMinute,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	a.Passages = retrieval.NewStore(pool, embedder, logger)
	a.Conversations = conversation.New(pool, logger)

	rtr, err := providePipeline(cfg, client, a.Passages, logger)
	if err != nil {
		return nil, err
	}
	a.Router = rtr

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit initialization.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, logger)
	if err != nil {
		logger.Warn("tracing setup failed, continuing without it", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
// Every connection registers the pgvector codec so vector columns scan into
// pgvector.Vector without manual casts.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The plugin
// reads GEMINI_API_KEY from the environment.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with googleai provider")
	}
	logger.Info("initialized Genkit", "model", cfg.ModelName, "embedder", cfg.EmbedderModel)
	return g, nil
}

// providePipeline assembles the chat pipeline: classifier, analyzer,
// multi-query retriever, grounded answerer and stylistic responder, all
// behind the Router.
func providePipeline(cfg *config.Config, client *llm.Client, store *retrieval.Store, logger *slog.Logger) (*router.Router, error) {
	retriever := retrieval.NewRetriever(store, retrieval.DefaultRetryConfig(), logger,
		retrieval.WithTopK(cfg.RetrievalK),
		retrieval.WithFetchK(cfg.RetrievalFetchK),
		retrieval.WithEFSearch(cfg.RetrievalEF),
		retrieval.WithTimeout(cfg.RetrievalTimeout),
	)

	rtr, err := router.New(router.Config{
		Classifier: router.NewClassifier(client, logger),
		Analyzer:   analyzer.New(client, logger),
		Retriever:  retrieval.NewMultiRetriever(retriever, logger),
		Answerer:   grounding.New(client, logger),
		Responder:  router.NewResponder(client),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("assembling chat pipeline: %w", err)
	}
	return rtr, nil
}
