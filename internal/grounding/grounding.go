// Package grounding generates answers constrained to supplied evidence
// passages. The model may only use information present in the passages; when
// none are relevant it must return the exact Sentinel text. The set of
// passages the answer draws from is verified against the supplied evidence,
// so hallucinated or missing citations surface as *ContractError instead of
// reaching the user.
package grounding

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aula0/aula/internal/llm"
	"github.com/aula0/aula/internal/retrieval"
)

// Sentinel is the exact answer text meaning no supplied passage was relevant
// to the question. It is a valid terminal outcome, not an error.
const Sentinel = "No information found"

// Answer is a grounded answer with the passages it actually draws from.
// If Text is not Sentinel, Used is non-empty and every entry comes from the
// passages supplied for this turn.
type Answer struct {
	Text string
	Used []retrieval.Result
}

// ContractError reports that the model violated the grounding contract:
// it cited a passage not present in the supplied evidence, or returned a
// non-sentinel answer without citing anything. Surfaced as a defect, never
// silently repaired.
type ContractError struct {
	Reason string
}

func (e *ContractError) Error() string {
	return "grounding contract violation: " + e.Reason
}

// groundedPayload is the structured output schema for the grounding call.
type groundedPayload struct {
	Answer          string   `json:"answer"`
	UsedPassageKeys []string `json:"used_passage_keys"`
	ReasoningSteps  string   `json:"reasoning_steps"`
}

const systemPrompt = `You are an assistant for question-answering tasks.
Below you will find information you can use to answer the question.
Use this information to provide a comprehensive answer.

Remember:
- Only use data from the provided information, never from your own knowledge
- Think step by step making sure your answer is grounded in the provided information
- If the information doesn't contain relevant data, return as your answer exactly "No information found" with an empty used_passage_keys list
- Never question the information's correctness since your knowledge might be wrong or outdated, assume it is real and use it if what's being asked is addressed by the information
- If pieces of information contradict each other on a point relevant to the question, acknowledge the contradiction in your answer instead of silently picking one side
- In used_passage_keys list the passage_key of every piece of information your answer actually draws from, and only those`

// Answerer produces grounded answers via a structured model call.
type Answerer struct {
	logger *slog.Logger

	// generate is the model call seam; tests replace it with a stub.
	generate func(ctx context.Context, req llm.Request) (groundedPayload, error)
}

// New creates an Answerer backed by the given model client.
// A nil logger falls back to slog.Default().
func New(client *llm.Client, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{
		logger: logger,
		generate: func(ctx context.Context, req llm.Request) (groundedPayload, error) {
			return llm.Generate[groundedPayload](ctx, client, req)
		},
	}
}

// Generate answers the query using only the supplied passages.
// Returns Sentinel with empty Used when nothing is relevant, and
// *ContractError when the model's citations fail verification.
func (a *Answerer) Generate(ctx context.Context, query string, passages []retrieval.Result) (Answer, error) {
	prompt := fmt.Sprintf("Question: %s\n\nInformation:\n%s", query, FormatPassages(passages))

	payload, err := a.generate(ctx, llm.Request{
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("grounded generation failed: %w", err)
	}

	answerText := strings.TrimSpace(payload.Answer)

	if answerText == Sentinel {
		if len(payload.UsedPassageKeys) > 0 {
			return Answer{}, &ContractError{
				Reason: fmt.Sprintf("sentinel answer cites %d passages", len(payload.UsedPassageKeys)),
			}
		}
		a.logger.Debug("no relevant information found", "passages_supplied", len(passages))
		return Answer{Text: Sentinel}, nil
	}

	if len(payload.UsedPassageKeys) == 0 {
		return Answer{}, &ContractError{Reason: "non-sentinel answer cites no passages"}
	}

	byKey := make(map[string]retrieval.Result, len(passages))
	for _, p := range passages {
		byKey[p.Passage.Key] = p
	}

	used := make([]retrieval.Result, 0, len(payload.UsedPassageKeys))
	seen := make(map[string]struct{}, len(payload.UsedPassageKeys))
	for _, key := range payload.UsedPassageKeys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		p, ok := byKey[key]
		if !ok {
			return Answer{}, &ContractError{
				Reason: fmt.Sprintf("cited passage %q is not in the supplied evidence", key),
			}
		}
		used = append(used, p)
	}

	a.logger.Debug("grounded answer generated",
		"passages_supplied", len(passages),
		"passages_used", len(used))

	return Answer{Text: answerText, Used: used}, nil
}

// FormatPassages renders passages into the evidence block format the
// grounding prompt expects.
func FormatPassages(passages []retrieval.Result) string {
	blocks := make([]string, 0, len(passages))
	for _, r := range passages {
		p := r.Passage
		var b strings.Builder
		b.WriteString("---- Context METADATA ----\n")
		fmt.Fprintf(&b, "passage_key: %s\n", p.Key)
		fmt.Fprintf(&b, "source: %s\n", filepath.Base(p.SourceID))
		if p.Title != "" {
			fmt.Fprintf(&b, "title: %s\n", p.Title)
		}
		if p.Author != "" {
			fmt.Fprintf(&b, "author: %s\n", p.Author)
		}
		if p.Year != "" {
			fmt.Fprintf(&b, "year: %s\n", p.Year)
		}
		b.WriteString("---- Context Start ----\n")
		b.WriteString(p.Content)
		b.WriteString("\n---- Context End ----")
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
