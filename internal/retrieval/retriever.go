package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Searcher is the single-query search dependency of Retriever.
// Satisfied by *Store.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error)
}

// RetryConfig configures the retry behavior for searches.
type RetryConfig struct {
	MaxAttempts     int           // Total attempts including the first
	InitialInterval time.Duration // Initial backoff interval
	MaxInterval     time.Duration // Maximum backoff interval
}

// DefaultRetryConfig returns sensible defaults for vector search.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Retriever wraps a Searcher with retry on transient failures.
// Permanent errors fail immediately; transient ones are retried with
// exponential backoff until the attempt budget runs out, at which point a
// *RetrievalError is returned.
type Retriever struct {
	searcher Searcher
	retry    RetryConfig
	opts     []SearchOption
	logger   *slog.Logger
}

// NewRetriever creates a Retriever.
// The given search options are applied to every search; a nil logger falls
// back to slog.Default().
func NewRetriever(searcher Searcher, retry RetryConfig, logger *slog.Logger, opts ...SearchOption) *Retriever {
	if retry.MaxAttempts < 1 {
		retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		searcher: searcher,
		retry:    retry,
		opts:     opts,
		logger:   logger,
	}
}

// Retrieve searches for passages relevant to the query, retrying transient
// failures. Each attempt runs a full search on a fresh pooled connection.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	var lastErr error
	delay := r.retry.InitialInterval
	start := time.Now()

	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		results, err := r.searcher.Search(ctx, query, r.opts...)
		if err == nil {
			if attempt > 1 {
				r.logger.Debug("search succeeded after retry",
					"attempts", attempt,
					"elapsed", time.Since(start))
			}
			return results, nil
		}

		lastErr = err

		if !transientError(err) {
			return nil, &RetrievalError{Query: query, Attempts: attempt, Err: err}
		}

		if attempt == r.retry.MaxAttempts {
			break
		}

		r.logger.Debug("retrying search after transient error",
			"attempt", attempt,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during search retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.retry.MaxInterval)
		}
	}

	return nil, &RetrievalError{Query: query, Attempts: r.retry.MaxAttempts, Err: lastErr}
}
