// Package retrieval implements vector search over the passage knowledge base
// using PostgreSQL + pgvector. Candidates are fetched with HNSW approximate
// nearest-neighbor search and re-ranked with maximal marginal relevance so the
// selected passages stay diverse. Multi-query retrieval fans out over the
// analyzer's sub-queries and merges the results without duplicates.
package retrieval

import "time"

// VectorDimension is the embedding size of the passages table.
// Must match the vector(768) column in db/migrations.
const VectorDimension = 768

// Passage is one retrievable chunk of a source document.
type Passage struct {
	Key      string // Unique passage identifier within the knowledge base
	SourceID string // Identifier of the source document (e.g. file path)
	Title    string
	Author   string
	Year     string
	Content  string
}

// Result is a single search hit with its similarity score.
// SubQuery records which sub-query first retrieved the passage; it is set by
// multi-query retrieval and empty for direct Store searches.
type Result struct {
	Passage    Passage
	Similarity float32 // Cosine similarity (0-1)
	SubQuery   string
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

// searchConfig holds internal search configuration.
type searchConfig struct {
	topK     int
	fetchK   int
	efSearch int
	lambda   float32
	timeout  time.Duration
}

// WithTopK sets the number of passages returned after re-ranking.
// Default is 4.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFetchK sets the size of the candidate pool fetched from the index
// before re-ranking. Default is 20.
func WithFetchK(k int) SearchOption {
	return func(c *searchConfig) {
		c.fetchK = k
	}
}

// WithEFSearch sets the HNSW ef_search parameter for the query.
// Higher values trade latency for recall. Default is 40.
func WithEFSearch(ef int) SearchOption {
	return func(c *searchConfig) {
		c.efSearch = ef
	}
}

// WithTimeout bounds the whole search including embedding generation.
// Default is 10 seconds.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		c.timeout = d
	}
}

// buildSearchConfig applies search options and returns the final
// configuration.
func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:     4,
		fetchK:   20,
		efSearch: 40,
		lambda:   0.5,
		timeout:  10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.fetchK < cfg.topK {
		cfg.fetchK = cfg.topK
	}
	return cfg
}
