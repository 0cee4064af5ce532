package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Store performs vector search over the passages table.
// It handles embedding generation and HNSW similarity search with MMR
// re-ranking using PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder ai.Embedder
	logger   *slog.Logger
}

// NewStore creates a Store instance.
// A nil logger falls back to slog.Default().
func NewStore(pool *pgxpool.Pool, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:     pool,
		embedder: embedder,
		logger:   logger,
	}
}

// Search embeds the query, fetches a candidate pool via the HNSW index and
// re-ranks it with maximal marginal relevance.
//
// Each call acquires a fresh connection from the pool, so retrying a failed
// Search never reuses a possibly broken connection.
//
// Example:
//
//	results, err := store.Search(ctx, "peer instruction",
//	    retrieval.WithTopK(4), retrieval.WithFetchK(20))
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	queryVec, err := s.embed(queryCtx, query)
	if err != nil {
		return nil, err
	}

	candidates, embeddings, err := s.fetchCandidates(queryCtx, queryVec, cfg)
	if err != nil {
		return nil, err
	}

	selected := maximalMarginalRelevance(queryVec, embeddings, cfg.topK, cfg.lambda)

	results := make([]Result, 0, len(selected))
	for _, idx := range selected {
		results = append(results, candidates[idx])
	}

	s.logger.Debug("search completed",
		"query_length", len(query),
		"candidates", len(candidates),
		"selected", len(results))
	return results, nil
}

// embed generates the query embedding.
func (s *Store) embed(ctx context.Context, query string) ([]float32, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(query)}},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("embedding generation timeout: %w", err)
		}
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned for query")
	}
	return resp.Embeddings[0].Embedding, nil
}

// fetchCandidates runs the approximate nearest-neighbor query inside a
// transaction so SET LOCAL hnsw.ef_search only affects this search.
func (s *Store) fetchCandidates(ctx context.Context, queryVec []float32, cfg *searchConfig) ([]Result, [][]float32, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin search transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			s.logger.Debug("search transaction rollback (may be already committed)", "error", err)
		}
	}()

	// SET LOCAL does not accept bind parameters; ef_search is a validated
	// integer, never user input.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", cfg.efSearch)); err != nil {
		return nil, nil, fmt.Errorf("failed to set hnsw.ef_search: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT passage_key, source_id, title, author, year, content, embedding,
		        1 - (embedding <=> $1) AS similarity
		 FROM passages
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(queryVec), cfg.fetchK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var candidates []Result
	var embeddings [][]float32
	for rows.Next() {
		var r Result
		var embedding pgvector.Vector
		if err := rows.Scan(
			&r.Passage.Key, &r.Passage.SourceID, &r.Passage.Title,
			&r.Passage.Author, &r.Passage.Year, &r.Passage.Content,
			&embedding, &r.Similarity,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		candidates = append(candidates, r)
		embeddings = append(embeddings, embedding.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate candidate rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit search transaction: %w", err)
	}

	return candidates, embeddings, nil
}
