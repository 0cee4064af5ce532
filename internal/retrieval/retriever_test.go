package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSearcher scripts a sequence of search outcomes.
type fakeSearcher struct {
	outcomes []searchOutcome
	calls    int
}

type searchOutcome struct {
	results []Result
	err     error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ ...SearchOption) ([]Result, error) {
	if f.calls >= len(f.outcomes) {
		return nil, errors.New("unexpected extra search call")
	}
	outcome := f.outcomes[f.calls]
	f.calls++
	return outcome.results, outcome.err
}

// fastRetry keeps test backoff negligible.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}
}

func TestRetrieveSucceedsFirstAttempt(t *testing.T) {
	want := []Result{{Passage: Passage{Key: "p1", Content: "text"}, Similarity: 0.9}}
	searcher := &fakeSearcher{outcomes: []searchOutcome{{results: want}}}

	r := NewRetriever(searcher, fastRetry(), nil)
	got, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got) != 1 || got[0].Passage.Key != "p1" {
		t.Errorf("Retrieve() = %+v, want %+v", got, want)
	}
	if searcher.calls != 1 {
		t.Errorf("search called %d times, want 1", searcher.calls)
	}
}

func TestRetrieveRetriesTransientErrors(t *testing.T) {
	want := []Result{{Passage: Passage{Key: "p1"}}}
	searcher := &fakeSearcher{outcomes: []searchOutcome{
		{err: errors.New("connection reset by peer")},
		{err: errors.New("503 service unavailable")},
		{results: want},
	}}

	r := NewRetriever(searcher, fastRetry(), nil)
	got, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Retrieve() returned %d results, want 1", len(got))
	}
	if searcher.calls != 3 {
		t.Errorf("search called %d times, want 3", searcher.calls)
	}
}

func TestRetrievePermanentErrorFailsImmediately(t *testing.T) {
	permanent := errors.New("relation \"passages\" does not exist")
	searcher := &fakeSearcher{outcomes: []searchOutcome{{err: permanent}}}

	r := NewRetriever(searcher, fastRetry(), nil)
	_, err := r.Retrieve(context.Background(), "query")

	var retErr *RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("Retrieve() error = %v, want *RetrievalError", err)
	}
	if retErr.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", retErr.Attempts)
	}
	if !errors.Is(err, permanent) {
		t.Errorf("error chain does not include the underlying cause: %v", err)
	}
	if searcher.calls != 1 {
		t.Errorf("search called %d times, want 1 (no retry on permanent error)", searcher.calls)
	}
}

func TestRetrieveExhaustsAttempts(t *testing.T) {
	transient := errors.New("timeout waiting for connection")
	searcher := &fakeSearcher{outcomes: []searchOutcome{
		{err: transient},
		{err: transient},
		{err: transient},
	}}

	r := NewRetriever(searcher, fastRetry(), nil)
	_, err := r.Retrieve(context.Background(), "query")

	var retErr *RetrievalError
	if !errors.As(err, &retErr) {
		t.Fatalf("Retrieve() error = %v, want *RetrievalError", err)
	}
	if retErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", retErr.Attempts)
	}
	if retErr.Query != "query" {
		t.Errorf("Query = %q, want %q", retErr.Query, "query")
	}
}

func TestRetrieveRespectsContextCancellation(t *testing.T) {
	searcher := &fakeSearcher{outcomes: []searchOutcome{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRetriever(searcher, RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Hour, // would hang without cancellation
		MaxInterval:     time.Hour,
	}, nil)
	_, err := r.Retrieve(ctx, "query")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retrieve() error = %v, want context.Canceled in chain", err)
	}
}

func TestTransientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", errors.New("Rate Limit exceeded"), true},
		{"quota", errors.New("quota exceeded for project"), true},
		{"http 429", errors.New("googleapi: Error 429"), true},
		{"http 503", errors.New("503 Service Unavailable"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"timeout", errors.New("context deadline exceeded (timeout)"), true},
		{"syntax error", errors.New("syntax error at or near SELECT"), false},
		{"missing table", errors.New("relation does not exist"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transientError(tt.err); got != tt.want {
				t.Errorf("transientError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
