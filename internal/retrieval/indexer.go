package retrieval

import (
	"context"
	"fmt"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
)

// Add indexes a passage. The passage content is embedded with the configured
// embedder and upserted by passage key, so re-indexing a source is idempotent.
func (s *Store) Add(ctx context.Context, p Passage) error {
	if p.Key == "" {
		return fmt.Errorf("passage key must not be empty")
	}
	if p.Content == "" {
		return fmt.Errorf("passage %q has empty content", p.Key)
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(p.Content)}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to generate embedding for passage %q: %w", p.Key, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return fmt.Errorf("empty embedding returned for passage %q", p.Key)
	}
	embedding := resp.Embeddings[0].Embedding
	if len(embedding) != VectorDimension {
		return fmt.Errorf("embedding for passage %q has dimension %d, want %d", p.Key, len(embedding), VectorDimension)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO passages (passage_key, source_id, title, author, year, content, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (passage_key) DO UPDATE SET
		     source_id = EXCLUDED.source_id,
		     title = EXCLUDED.title,
		     author = EXCLUDED.author,
		     year = EXCLUDED.year,
		     content = EXCLUDED.content,
		     embedding = EXCLUDED.embedding`,
		p.Key, p.SourceID, p.Title, p.Author, p.Year, p.Content,
		pgvector.NewVector(embedding))
	if err != nil {
		return fmt.Errorf("failed to upsert passage %q: %w", p.Key, err)
	}

	s.logger.Debug("indexed passage", "key", p.Key, "source_id", p.SourceID, "content_length", len(p.Content))
	return nil
}

// Delete removes a passage by key.
func (s *Store) Delete(ctx context.Context, passageKey string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM passages WHERE passage_key = $1`, passageKey); err != nil {
		return fmt.Errorf("failed to delete passage %q: %w", passageKey, err)
	}

	s.logger.Debug("deleted passage", "key", passageKey)
	return nil
}

// DeleteSource removes all passages belonging to a source document.
// Returns the number of passages removed.
func (s *Store) DeleteSource(ctx context.Context, sourceID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM passages WHERE source_id = $1`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source %q: %w", sourceID, err)
	}

	removed := int(tag.RowsAffected())
	s.logger.Debug("deleted source", "source_id", sourceID, "passages", removed)
	return removed, nil
}

// Count returns the total number of indexed passages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM passages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}

	// Overflow protection for 32-bit systems.
	if count > math.MaxInt {
		return 0, fmt.Errorf("passage count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}
