// Package analyzer turns a raw user utterance into retrievable search
// queries. Using the conversation history it resolves references ("it",
// "that", "they") into an updated restatement of the question, then
// decomposes the question into the minimal set of independent sub-queries,
// expanding familiar acronyms where that helps retrieval.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aula0/aula/internal/conversation"
	"github.com/aula0/aula/internal/llm"
)

// Analysis is the result of analyzing one user query.
type Analysis struct {
	// UpdatedQuery is the original question with references resolved
	// against the conversation history.
	UpdatedQuery string

	// SubQueries are independent search queries that together cover all
	// aspects of the question. Always at least one, in analyzer order;
	// downstream retrieval attributes shared passages to the earliest
	// sub-query in this order.
	SubQueries []string
}

// AnalysisError reports that analysis produced zero sub-queries or malformed
// output. Fatal for the turn; there is no silent fallback to the raw query.
type AnalysisError struct {
	Query string
	Err   error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query analysis failed for %q: %v", e.Query, e.Err)
	}
	return fmt.Sprintf("query analysis produced no sub-queries for %q", e.Query)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// analysisPayload is the structured output schema for the analysis call.
type analysisPayload struct {
	UpdatedQuery   string   `json:"updated_query"`
	Queries        []string `json:"queries"`
	ReasoningSteps string   `json:"reasoning_steps"`
}

const systemPrompt = `You are an expert at analyzing questions and converting them into optimal search queries.
Your task is to:
1. Use the conversation history to resolve any references in the query (e.g. "it", "that", "they")
2. Break down complex questions into simpler, independent search queries
3. Remove conversational language while preserving key search terms

Guidelines:
- If the question refers to previous context, include relevant terms from that context in the queries
- Each query should focus on a single specific aspect of the question to maximize the chances of finding relevant documents
- Remove filler words and conversational elements
- Generate queries with both the acronym and its expanded form if the acronym is familiar or its meaning can be inferred from the context (e.g., "AI" and "Artificial Intelligence")
- Always return at least one query
- Record your reference resolution, decomposition and expansion decisions in reasoning_steps

Example 1:
------------------------------------------------------------------------------------------------
... previous conversation history ...
AI: Los modelos de lenguaje de gran tamaño, también conocidos como LLMs, son capaces de comprender y generar texto en lenguaje natural...
User: "¿Podrían llegar a tener sesgo de información? Estoy preocupado por las implicaciones éticas de esta tecnología."
------------------------------------------------------------------------------------------------
Output queries:
- "Information bias in LLMs"
- "Ethical implications of Large Language Models"
- "Bias risks in LLM text generation"

Output updated query: "¿Los LLMs podrían llegar a tener sesgo de información? Estoy preocupado por las implicaciones éticas de esta tecnología."

Example 2:
------------------------------------------------------------------------------------------------
... previous conversation history ...
User: He leído que los modelos de lenguaje pueden producir información incorrecta e inventar contenido al generar texto.
AI: Es cierto, algunos modelos de lenguaje pueden generar información imprecisa o sesgada, lo cual puede deberse a varios factores relacionados con los datos, el diseño del modelo y su entrenamiento.
User: Entonces, ¿deberíamos desconfiar de la inteligencia artificial?
------------------------------------------------------------------------------------------------
Output queries:
- "Ethical concerns on AI trust"
- "Accuracy of AI-generated text"
- "Trustworthiness of language models in content generation"

Output updated query: "¿Deberíamos desconfiar de la inteligencia artificial debido a los riesgos de producir información incorrecta e inventar contenido al generar texto?"`

// Analyzer resolves and decomposes user queries via a structured model call.
type Analyzer struct {
	logger *slog.Logger

	// analyze is the model call seam; tests replace it with a stub.
	analyze func(ctx context.Context, req llm.Request) (analysisPayload, error)
}

// New creates an Analyzer backed by the given model client.
// A nil logger falls back to slog.Default().
func New(client *llm.Client, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		logger: logger,
		analyze: func(ctx context.Context, req llm.Request) (analysisPayload, error) {
			return llm.Generate[analysisPayload](ctx, client, req)
		},
	}
}

// Analyze resolves references in the query against the history and
// decomposes it into sub-queries. Guarantees at least one sub-query or an
// *AnalysisError.
func (a *Analyzer) Analyze(ctx context.Context, query string, history []conversation.Message) (Analysis, error) {
	payload, err := a.analyze(ctx, llm.Request{
		System:  systemPrompt,
		History: llm.Messages(history),
		Prompt:  query,
	})
	if err != nil {
		return Analysis{}, &AnalysisError{Query: query, Err: err}
	}

	subQueries := make([]string, 0, len(payload.Queries))
	for _, q := range payload.Queries {
		if q = strings.TrimSpace(q); q != "" {
			subQueries = append(subQueries, q)
		}
	}
	if len(subQueries) == 0 {
		return Analysis{}, &AnalysisError{Query: query}
	}

	updated := strings.TrimSpace(payload.UpdatedQuery)
	if updated == "" {
		updated = query
	}

	a.logger.Debug("query analyzed",
		"sub_queries", len(subQueries),
		"updated_length", len(updated))

	return Analysis{UpdatedQuery: updated, SubQueries: subQueries}, nil
}
