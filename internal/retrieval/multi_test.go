package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// fakeSubQueryRetriever returns canned results per query.
type fakeSubQueryRetriever struct {
	mu      sync.Mutex
	results map[string][]Result
	errs    map[string]error
	delays  map[string]time.Duration
	calls   []string
}

func (f *fakeSubQueryRetriever) Retrieve(ctx context.Context, query string) ([]Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	delay := f.delays[query]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

func result(key, subQuery string, similarity float32) Result {
	return Result{
		Passage:    Passage{Key: key, SourceID: key + ".pdf", Content: "content of " + key},
		Similarity: similarity,
		SubQuery:   subQuery,
	}
}

func TestRetrieveAllMergesWithoutDuplicates(t *testing.T) {
	defer goleak.VerifyNone(t)

	fake := &fakeSubQueryRetriever{
		results: map[string][]Result{
			"query a": {result("p1", "", 0.9), result("p2", "", 0.8)},
			"query b": {result("p2", "", 0.85), result("p3", "", 0.7)},
		},
	}

	m := NewMultiRetriever(fake, nil)
	merged, err := m.RetrieveAll(context.Background(), []string{"query a", "query b"})
	if err != nil {
		t.Fatalf("RetrieveAll() error: %v", err)
	}

	keys := make(map[string]int)
	for _, r := range merged {
		keys[r.Passage.Key]++
	}
	for key, count := range keys {
		if count > 1 {
			t.Errorf("passage %q appears %d times, want 1", key, count)
		}
	}
	if len(merged) != 3 {
		t.Errorf("RetrieveAll() returned %d passages, want 3", len(merged))
	}
}

func TestRetrieveAllAttributesToFirstSubQuery(t *testing.T) {
	// p2 is found by both sub-queries; the slower first sub-query must still
	// win attribution because merging follows the given order.
	fake := &fakeSubQueryRetriever{
		results: map[string][]Result{
			"query a": {result("p1", "", 0.9), result("p2", "", 0.8)},
			"query b": {result("p2", "", 0.95), result("p3", "", 0.7)},
		},
		delays: map[string]time.Duration{
			"query a": 20 * time.Millisecond,
		},
	}

	m := NewMultiRetriever(fake, nil)
	merged, err := m.RetrieveAll(context.Background(), []string{"query a", "query b"})
	if err != nil {
		t.Fatalf("RetrieveAll() error: %v", err)
	}

	attribution := make(map[string]string)
	for _, r := range merged {
		attribution[r.Passage.Key] = r.SubQuery
	}

	if attribution["p2"] != "query a" {
		t.Errorf("p2 attributed to %q, want %q", attribution["p2"], "query a")
	}
	if attribution["p3"] != "query b" {
		t.Errorf("p3 attributed to %q, want %q", attribution["p3"], "query b")
	}
}

func TestRetrieveAllPreservesOrderWithinSubQuery(t *testing.T) {
	fake := &fakeSubQueryRetriever{
		results: map[string][]Result{
			"only": {result("p1", "", 0.9), result("p2", "", 0.8), result("p3", "", 0.7)},
		},
	}

	m := NewMultiRetriever(fake, nil)
	merged, err := m.RetrieveAll(context.Background(), []string{"only"})
	if err != nil {
		t.Fatalf("RetrieveAll() error: %v", err)
	}

	want := []string{"p1", "p2", "p3"}
	for i, r := range merged {
		if r.Passage.Key != want[i] {
			t.Fatalf("merged order = %v, want %v", merged, want)
		}
	}
}

func TestRetrieveAllPropagatesFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	cause := &RetrievalError{Query: "query b", Attempts: 3, Err: errors.New("timeout")}
	fake := &fakeSubQueryRetriever{
		results: map[string][]Result{
			"query a": {result("p1", "", 0.9)},
		},
		errs: map[string]error{
			"query b": cause,
		},
	}

	m := NewMultiRetriever(fake, nil)
	_, err := m.RetrieveAll(context.Background(), []string{"query a", "query b"})

	var retErr *RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("RetrieveAll() error = %v, want *RetrievalError in chain", err)
	}
}

func TestRetrieveAllRejectsEmptyInput(t *testing.T) {
	m := NewMultiRetriever(&fakeSubQueryRetriever{}, nil)
	if _, err := m.RetrieveAll(context.Background(), nil); err == nil {
		t.Error("RetrieveAll(nil) = nil error, want error")
	}
}

func TestMergeKeepsFirstOccurrence(t *testing.T) {
	subQueries := []string{"a", "b", "c"}
	perQuery := [][]Result{
		{result("p1", "", 0.5)},
		{result("p1", "", 0.9), result("p2", "", 0.8)},
		{result("p2", "", 0.99), result("p3", "", 0.1)},
	}

	merged := merge(subQueries, perQuery)
	if len(merged) != 3 {
		t.Fatalf("merge() returned %d results, want 3", len(merged))
	}

	// First occurrence wins: p1 keeps sub-query a's similarity.
	if merged[0].Passage.Key != "p1" || merged[0].Similarity != 0.5 || merged[0].SubQuery != "a" {
		t.Errorf("merged[0] = %+v, want p1 from sub-query a with similarity 0.5", merged[0])
	}
	if merged[1].SubQuery != "b" || merged[2].SubQuery != "c" {
		t.Errorf("attribution = %q, %q; want b, c", merged[1].SubQuery, merged[2].SubQuery)
	}
}
