package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// SubQueryRetriever is the per-query retrieval dependency of MultiRetriever.
// Satisfied by *Retriever.
type SubQueryRetriever interface {
	Retrieve(ctx context.Context, query string) ([]Result, error)
}

// MultiRetriever fans a set of sub-queries out over a SubQueryRetriever and
// merges the results without duplicates.
type MultiRetriever struct {
	retriever SubQueryRetriever
	logger    *slog.Logger
}

// NewMultiRetriever creates a MultiRetriever.
// A nil logger falls back to slog.Default().
func NewMultiRetriever(retriever SubQueryRetriever, logger *slog.Logger) *MultiRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiRetriever{retriever: retriever, logger: logger}
}

// RetrieveAll runs every sub-query concurrently and merges the results.
//
// A passage retrieved by several sub-queries appears exactly once, attributed
// to the earliest sub-query in the given order. Within one sub-query, hits
// keep their relevance order. Any sub-query failure fails the whole call.
func (m *MultiRetriever) RetrieveAll(ctx context.Context, subQueries []string) ([]Result, error) {
	if len(subQueries) == 0 {
		return nil, fmt.Errorf("no sub-queries to retrieve")
	}

	perQuery := make([][]Result, len(subQueries))

	g, gctx := errgroup.WithContext(ctx)
	for i, q := range subQueries {
		g.Go(func() error {
			results, err := m.retriever.Retrieve(gctx, q)
			if err != nil {
				return fmt.Errorf("sub-query %q: %w", q, err)
			}
			perQuery[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := merge(subQueries, perQuery)

	m.logger.Debug("multi-query retrieval completed",
		"sub_queries", len(subQueries),
		"passages", len(merged))
	return merged, nil
}

// merge deduplicates per-query results by passage key.
// Walks sub-queries in order so attribution is deterministic regardless of
// which fetch finished first.
func merge(subQueries []string, perQuery [][]Result) []Result {
	seen := make(map[string]struct{})
	var merged []Result

	for i, results := range perQuery {
		for _, r := range results {
			if _, ok := seen[r.Passage.Key]; ok {
				continue
			}
			seen[r.Passage.Key] = struct{}{}
			r.SubQuery = subQueries[i]
			merged = append(merged, r)
		}
	}

	return merged
}
