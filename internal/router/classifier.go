package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/aula0/aula/internal/conversation"
	"github.com/aula0/aula/internal/llm"
)

// classifierPayload is the structured output schema for the routing call.
type classifierPayload struct {
	DecisionPath   string `json:"decision_path"`
	ReasoningSteps string `json:"reasoning_steps"`
}

const classifierPrompt = `You are an expert at routing user questions to the most appropriate decision path based on the user's query and conversation history. Choose one of the following decision paths:

- 'no-retrieval reply': Use this when the user engages in casual conversation, greetings, or simple inquiries that do not require any retrieval of information, including asking you to restate or clarify something you just said.

- 'retrieve': Use this when the user's query involves AI or education, requiring retrieval of information from a vector store containing documents on these topics.

- 'cross-question': Use this path when asking a reflective question would help the user gain a deeper understanding. This approach should encourage the user to think critically rather than providing a direct answer immediately. Never use it at the start of a conversation, if you already asked a reflective question within the last three turns, or if the user failed to answer or said they did not know when you last asked one; in those cases prefer 'retrieve'.

- 'deny': Use this when the query is unrelated to AI or education and is not a request about prior conversation content. This path applies to questions outside the chatbot's scope.

Always choose one and only one decision path based on the user's query and context.`

// Classifier chooses the decision path for a turn with a single structured
// model call. It keeps no cross-turn state; every turn is re-evaluated from
// the query and history alone.
type Classifier struct {
	logger *slog.Logger

	// classify is the model call seam; tests replace it with a stub.
	classify func(ctx context.Context, req llm.Request) (classifierPayload, error)
}

// NewClassifier creates a Classifier backed by the given model client.
// A nil logger falls back to slog.Default().
func NewClassifier(client *llm.Client, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		logger: logger,
		classify: func(ctx context.Context, req llm.Request) (classifierPayload, error) {
			return llm.Generate[classifierPayload](ctx, client, req)
		},
	}
}

// Classify returns the decision path for the query. A label outside the
// closed path set yields a *ClassificationError.
func (c *Classifier) Classify(ctx context.Context, query string, history []conversation.Message) (DecisionPath, error) {
	payload, err := c.classify(ctx, llm.Request{
		System:  classifierPrompt,
		History: llm.Messages(history),
		Prompt:  query,
	})
	if err != nil {
		return 0, err
	}

	path, err := parsePath(strings.TrimSpace(payload.DecisionPath))
	if err != nil {
		return 0, err
	}

	c.logger.Debug("turn classified", "path", path.String())
	return path, nil
}
