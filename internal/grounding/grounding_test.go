package grounding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/aula0/aula/internal/llm"
	"github.com/aula0/aula/internal/retrieval"
)

func stubAnswerer(payload groundedPayload, err error) (*Answerer, *llm.Request) {
	var captured llm.Request
	a := &Answerer{
		logger: slog.New(slog.DiscardHandler),
		generate: func(_ context.Context, req llm.Request) (groundedPayload, error) {
			captured = req
			return payload, err
		},
	}
	return a, &captured
}

func passage(key string) retrieval.Result {
	return retrieval.Result{
		Passage: retrieval.Passage{
			Key:      key,
			SourceID: "papers/" + key + ".pdf",
			Content:  "content of " + key,
		},
		Similarity: 0.8,
	}
}

func TestGenerateGroundedAnswer(t *testing.T) {
	a, _ := stubAnswerer(groundedPayload{
		Answer:          "AI is the simulation of human intelligence by machines.",
		UsedPassageKeys: []string{"doc1#1", "doc2#3"},
	}, nil)

	supplied := []retrieval.Result{passage("doc1#1"), passage("doc2#3"), passage("doc3#1")}
	got, err := a.Generate(context.Background(), "what is AI?", supplied)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got.Text == Sentinel {
		t.Fatal("Generate() returned the sentinel for a grounded answer")
	}
	if len(got.Used) != 2 {
		t.Fatalf("Used has %d passages, want 2", len(got.Used))
	}
	if got.Used[0].Passage.Key != "doc1#1" || got.Used[1].Passage.Key != "doc2#3" {
		t.Errorf("Used = %+v", got.Used)
	}
}

func TestGenerateSentinelWithEmptyUsed(t *testing.T) {
	a, _ := stubAnswerer(groundedPayload{Answer: Sentinel}, nil)

	got, err := a.Generate(context.Background(), "quantum computing?", []retrieval.Result{passage("doc1#1")})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got.Text != Sentinel {
		t.Errorf("Text = %q, want the exact sentinel", got.Text)
	}
	if len(got.Used) != 0 {
		t.Errorf("Used = %v, want empty", got.Used)
	}
}

func TestGenerateSentinelWithCitationsIsContractError(t *testing.T) {
	a, _ := stubAnswerer(groundedPayload{
		Answer:          Sentinel,
		UsedPassageKeys: []string{"doc1#1"},
	}, nil)

	_, err := a.Generate(context.Background(), "q", []retrieval.Result{passage("doc1#1")})

	var contractErr *ContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("Generate() error = %v, want *ContractError", err)
	}
}

func TestGenerateUnknownCitationIsContractError(t *testing.T) {
	a, _ := stubAnswerer(groundedPayload{
		Answer:          "an answer",
		UsedPassageKeys: []string{"doc1#1", "made-up#9"},
	}, nil)

	_, err := a.Generate(context.Background(), "q", []retrieval.Result{passage("doc1#1")})

	var contractErr *ContractError
	if !errors.As(err, &contractErr) {
		t.Fatalf("Generate() error = %v, want *ContractError", err)
	}
	if !strings.Contains(contractErr.Reason, "made-up#9") {
		t.Errorf("Reason = %q, want it to name the unknown key", contractErr.Reason)
	}
}

func TestGenerateNonSentinelWithoutCitationsIsContractError(t *testing.T) {
	a, _ := stubAnswerer(groundedPayload{Answer: "an answer with no citations"}, nil)

	var contractErr *ContractError
	if _, err := a.Generate(context.Background(), "q", []retrieval.Result{passage("doc1#1")}); !errors.As(err, &contractErr) {
		t.Fatalf("Generate() error = %v, want *ContractError", err)
	}
}

func TestGenerateDeduplicatesCitedKeys(t *testing.T) {
	a, _ := stubAnswerer(groundedPayload{
		Answer:          "an answer",
		UsedPassageKeys: []string{"doc1#1", "doc1#1"},
	}, nil)

	got, err := a.Generate(context.Background(), "q", []retrieval.Result{passage("doc1#1")})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(got.Used) != 1 {
		t.Errorf("Used has %d passages, want 1", len(got.Used))
	}
}

func TestGeneratePropagatesModelFailure(t *testing.T) {
	cause := errors.New("model timeout")
	a, _ := stubAnswerer(groundedPayload{}, cause)

	if _, err := a.Generate(context.Background(), "q", nil); !errors.Is(err, cause) {
		t.Errorf("Generate() error = %v, want wrapped model error", err)
	}
}

func TestGeneratePromptContainsEvidence(t *testing.T) {
	a, captured := stubAnswerer(groundedPayload{Answer: Sentinel}, nil)

	p := passage("doc1#1")
	p.Passage.Title = "AI in Education"
	if _, err := a.Generate(context.Background(), "the question", []retrieval.Result{p}); err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	for _, want := range []string{"the question", "doc1#1", "content of doc1#1", "AI in Education"} {
		if !strings.Contains(captured.Prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestFormatPassages(t *testing.T) {
	p := retrieval.Result{Passage: retrieval.Passage{
		Key:      "doc1#2",
		SourceID: "papers/sub/doc1.pdf",
		Title:    "A Title",
		Author:   "Smith, J.",
		Year:     "2023",
		Content:  "the passage text",
	}}

	got := FormatPassages([]retrieval.Result{p})

	for _, want := range []string{
		"---- Context METADATA ----",
		"passage_key: doc1#2",
		"source: doc1.pdf", // basename only
		"title: A Title",
		"author: Smith, J.",
		"year: 2023",
		"---- Context Start ----",
		"the passage text",
		"---- Context End ----",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatPassages() missing %q in:\n%s", want, got)
		}
	}
}

func TestFormatPassagesOmitsEmptyMetadata(t *testing.T) {
	got := FormatPassages([]retrieval.Result{passage("doc1#1")})
	for _, absent := range []string{"title:", "author:", "year:"} {
		if strings.Contains(got, absent) {
			t.Errorf("FormatPassages() should omit empty field %q:\n%s", absent, got)
		}
	}
}
