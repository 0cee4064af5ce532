//go:build integration
// +build integration

package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula0/aula/internal/testutil"
)

func setupIntegrationTest(t *testing.T) (*Store, func()) {
	t.Helper()

	dbContainer, dbCleanup := testutil.SetupTestDB(t)
	setup := testutil.SetupGoogleAI(t)
	store := NewStore(dbContainer.Pool, setup.Embedder, setup.Logger)

	return store, dbCleanup
}

func TestStore_AddAndSearch_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationTest(t)
	defer cleanup()

	p := Passage{
		Key:      "golang#1",
		SourceID: "papers/golang.pdf",
		Title:    "The Go Programming Language",
		Author:   "Donovan, A.; Kernighan, B.",
		Year:     "2015",
		Content:  "Go is a statically typed, compiled programming language designed at Google.",
	}
	require.NoError(t, store.Add(ctx, p))

	results, err := store.Search(ctx, "Go programming language", WithTopK(1))
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, p.Key, results[0].Passage.Key)
	assert.Equal(t, p.SourceID, results[0].Passage.SourceID)
	assert.Equal(t, p.Content, results[0].Passage.Content)
	assert.Greater(t, results[0].Similarity, float32(0))
}

func TestStore_AddIsIdempotent_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationTest(t)
	defer cleanup()

	p := Passage{
		Key:      "dup#1",
		SourceID: "papers/dup.pdf",
		Content:  "Peer instruction improves conceptual understanding in physics courses.",
	}
	require.NoError(t, store.Add(ctx, p))

	p.Content = "Peer instruction improves conceptual understanding across disciplines."
	require.NoError(t, store.Add(ctx, p))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_SearchRespectsTopK_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationTest(t)
	defer cleanup()

	passages := []Passage{
		{Key: "a#1", SourceID: "a.pdf", Content: "Formative assessment gives students frequent feedback."},
		{Key: "b#1", SourceID: "b.pdf", Content: "Summative assessment evaluates learning at the end of a unit."},
		{Key: "c#1", SourceID: "c.pdf", Content: "Rubrics make grading criteria explicit for students."},
	}
	for _, p := range passages {
		require.NoError(t, store.Add(ctx, p))
	}

	results, err := store.Search(ctx, "assessment and feedback", WithTopK(2), WithFetchK(10))
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestStore_DeleteSource_Integration(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupIntegrationTest(t)
	defer cleanup()

	require.NoError(t, store.Add(ctx, Passage{Key: "s#1", SourceID: "s.pdf", Content: "chunk one of the source"}))
	require.NoError(t, store.Add(ctx, Passage{Key: "s#2", SourceID: "s.pdf", Content: "chunk two of the source"}))
	require.NoError(t, store.Add(ctx, Passage{Key: "other#1", SourceID: "other.pdf", Content: "an unrelated passage"}))

	removed, err := store.DeleteSource(ctx, "s.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
