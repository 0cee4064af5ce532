package router

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aula0/aula/internal/analyzer"
	"github.com/aula0/aula/internal/citation"
	"github.com/aula0/aula/internal/conversation"
	"github.com/aula0/aula/internal/grounding"
	"github.com/aula0/aula/internal/retrieval"
)

// PathClassifier chooses the decision path for a turn.
// Satisfied by *Classifier.
type PathClassifier interface {
	Classify(ctx context.Context, query string, history []conversation.Message) (DecisionPath, error)
}

// QueryAnalyzer resolves and decomposes the user query.
// Satisfied by *analyzer.Analyzer.
type QueryAnalyzer interface {
	Analyze(ctx context.Context, query string, history []conversation.Message) (analyzer.Analysis, error)
}

// PassageRetriever runs sub-queries against the knowledge base.
// Satisfied by *retrieval.MultiRetriever.
type PassageRetriever interface {
	RetrieveAll(ctx context.Context, subQueries []string) ([]retrieval.Result, error)
}

// GroundedAnswerer produces an evidence-constrained answer.
// Satisfied by *grounding.Answerer.
type GroundedAnswerer interface {
	Generate(ctx context.Context, query string, passages []retrieval.Result) (grounding.Answer, error)
}

// StyleResponder generates the user-facing reply per path.
// Satisfied by *Responder.
type StyleResponder interface {
	NoRetrieval(ctx context.Context, query string, history []conversation.Message) (string, error)
	CrossQuestion(ctx context.Context, query string, history []conversation.Message) (string, error)
	Deny(ctx context.Context, query string, history []conversation.Message) (string, error)
	Grounded(ctx context.Context, query, groundedContext string, history []conversation.Message) (string, error)
}

// Reply is the outcome of one routed turn.
type Reply struct {
	Path     DecisionPath
	Response string

	// Citations and UsedSourceIDs are populated only on the retrieve path
	// when the answer is grounded in at least one passage.
	Citations     []citation.Citation
	UsedSourceIDs []string
}

// Router dispatches each turn to the generator matching its decision path.
// History is read-only input; persisting the new turn is the caller's job.
type Router struct {
	classifier PathClassifier
	analyzer   QueryAnalyzer
	retriever  PassageRetriever
	answerer   GroundedAnswerer
	responder  StyleResponder
	logger     *slog.Logger
}

// Config collects the Router's dependencies.
type Config struct {
	Classifier PathClassifier
	Analyzer   QueryAnalyzer
	Retriever  PassageRetriever
	Answerer   GroundedAnswerer
	Responder  StyleResponder
	Logger     *slog.Logger
}

// New creates a Router. All dependencies except the logger are required.
func New(cfg Config) (*Router, error) {
	switch {
	case cfg.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case cfg.Analyzer == nil:
		return nil, fmt.Errorf("analyzer is required")
	case cfg.Retriever == nil:
		return nil, fmt.Errorf("retriever is required")
	case cfg.Answerer == nil:
		return nil, fmt.Errorf("answerer is required")
	case cfg.Responder == nil:
		return nil, fmt.Errorf("responder is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		classifier: cfg.Classifier,
		analyzer:   cfg.Analyzer,
		retriever:  cfg.Retriever,
		answerer:   cfg.Answerer,
		responder:  cfg.Responder,
		logger:     logger,
	}, nil
}

// minHistoryForCrossQuestion is the number of prior messages required before
// a reflective question is allowed; a conversation that just started always
// gets a direct answer.
const minHistoryForCrossQuestion = 2

// Respond processes one turn: classify, then dispatch to the path's
// generator. Only the retrieve path touches the retriever.
func (r *Router) Respond(ctx context.Context, query string, history []conversation.Message) (Reply, error) {
	if query == "" {
		return Reply{}, fmt.Errorf("query must not be empty")
	}

	path, err := r.classifier.Classify(ctx, query, history)
	if err != nil {
		return Reply{}, fmt.Errorf("classifying turn: %w", err)
	}

	// The classifier is instructed not to pick a cross-question at
	// conversation start, but the constraint is cheap to verify here and a
	// misfire would interrogate a user who has not said anything yet.
	if path == PathCrossQuestion && len(history) < minHistoryForCrossQuestion {
		r.logger.Debug("cross-question demoted to retrieve", "history_length", len(history))
		path = PathRetrieve
	}

	switch path {
	case PathNoRetrieval:
		response, err := r.responder.NoRetrieval(ctx, query, history)
		if err != nil {
			return Reply{}, fmt.Errorf("no-retrieval reply: %w", err)
		}
		return Reply{Path: path, Response: response}, nil

	case PathCrossQuestion:
		response, err := r.responder.CrossQuestion(ctx, query, history)
		if err != nil {
			return Reply{}, fmt.Errorf("cross-question reply: %w", err)
		}
		return Reply{Path: path, Response: response}, nil

	case PathDeny:
		response, err := r.responder.Deny(ctx, query, history)
		if err != nil {
			return Reply{}, fmt.Errorf("deny reply: %w", err)
		}
		return Reply{Path: path, Response: response}, nil

	case PathRetrieve:
		return r.respondGrounded(ctx, query, history)

	default:
		return Reply{}, &ClassificationError{Label: path.String()}
	}
}

// respondGrounded runs the retrieval pipeline: analyze, fan out sub-queries,
// ground the answer in the merged passages, assemble citations, then compose
// the final conversational reply.
func (r *Router) respondGrounded(ctx context.Context, query string, history []conversation.Message) (Reply, error) {
	analysis, err := r.analyzer.Analyze(ctx, query, history)
	if err != nil {
		return Reply{}, fmt.Errorf("analyzing query: %w", err)
	}

	passages, err := r.retriever.RetrieveAll(ctx, analysis.SubQueries)
	if err != nil {
		return Reply{}, fmt.Errorf("retrieving passages: %w", err)
	}

	answer, err := r.answerer.Generate(ctx, analysis.UpdatedQuery, passages)
	if err != nil {
		return Reply{}, fmt.Errorf("grounding answer: %w", err)
	}

	citations := citation.Assemble(answer.Used)

	response, err := r.responder.Grounded(ctx, query, answer.Text, history)
	if err != nil {
		return Reply{}, fmt.Errorf("grounded reply: %w", err)
	}

	r.logger.Debug("grounded turn completed",
		"sub_queries", len(analysis.SubQueries),
		"passages", len(passages),
		"used", len(answer.Used),
		"citations", len(citations))

	return Reply{
		Path:          PathRetrieve,
		Response:      response,
		Citations:     citations,
		UsedSourceIDs: usedSourceIDs(answer.Used),
	}, nil
}

// usedSourceIDs extracts distinct source identifiers from used passages,
// in first-use order.
func usedSourceIDs(used []retrieval.Result) []string {
	seen := make(map[string]struct{}, len(used))
	var ids []string
	for _, p := range used {
		if _, ok := seen[p.Passage.SourceID]; ok {
			continue
		}
		seen[p.Passage.SourceID] = struct{}{}
		ids = append(ids, p.Passage.SourceID)
	}
	return ids
}
