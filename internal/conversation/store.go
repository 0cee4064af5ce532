package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store manages the append-only conversation log on PostgreSQL.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store backed by the given connection pool.
// A nil logger falls back to slog.Default().
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Append persists one message at the end of a thread, along with the source
// identifiers the assistant's answer drew from (empty for user messages and
// ungrounded replies).
func (s *Store) Append(ctx context.Context, threadID string, role Role, content string, usedSourceIDs []string) error {
	if _, err := uuid.Parse(threadID); err != nil {
		return fmt.Errorf("invalid thread id %q: %w", threadID, err)
	}
	if err := validateMessage(role, content); err != nil {
		return err
	}
	if usedSourceIDs == nil {
		usedSourceIDs = []string{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (thread_id, role, content, used_source_ids)
		 VALUES ($1, $2, $3, $4)`,
		threadID, string(role), content, usedSourceIDs)
	if err != nil {
		return fmt.Errorf("failed to append message to thread %s: %w", threadID, err)
	}

	s.logger.Debug("appended message",
		"thread_id", threadID,
		"role", role,
		"used_sources", len(usedSourceIDs))
	return nil
}

// History returns up to limit messages of a thread in conversation order,
// oldest first. When the thread holds more than limit messages, the oldest
// ones are dropped so the model always sees the most recent turns.
func (s *Store) History(ctx context.Context, threadID string, limit int32) ([]Message, error) {
	if _, err := uuid.Parse(threadID); err != nil {
		return nil, fmt.Errorf("invalid thread id %q: %w", threadID, err)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("history limit must be positive, got %d", limit)
	}

	// Select the newest messages, then restore conversation order.
	rows, err := s.pool.Query(ctx,
		`SELECT role, content FROM (
		     SELECT role, content, created_at, id
		     FROM messages
		     WHERE thread_id = $1
		     ORDER BY created_at DESC, id DESC
		     LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for thread %s: %w", threadID, err)
	}
	defer rows.Close()

	var history []Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		history = append(history, Message{Role: Role(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return history, nil
}

// ThreadDocuments returns the distinct source identifiers referenced by
// assistant messages in a thread, in first-use order.
func (s *Store) ThreadDocuments(ctx context.Context, threadID string) ([]string, error) {
	if _, err := uuid.Parse(threadID); err != nil {
		return nil, fmt.Errorf("invalid thread id %q: %w", threadID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT used_source_ids
		 FROM messages
		 WHERE thread_id = $1 AND role = 'assistant' AND cardinality(used_source_ids) > 0
		 ORDER BY created_at ASC, id ASC`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load used documents for thread %s: %w", threadID, err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var sourceIDs []string
	for rows.Next() {
		var ids []string
		if err := rows.Scan(&ids); err != nil {
			return nil, fmt.Errorf("failed to scan used_source_ids: %w", err)
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			sourceIDs = append(sourceIDs, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}

	return sourceIDs, nil
}
