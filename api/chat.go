package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aula0/aula/internal/citation"
	"github.com/aula0/aula/internal/conversation"
	"github.com/aula0/aula/internal/router"
)

// genericFailureMessage is the only error detail production clients see.
const genericFailureMessage = "Lo siento, ha ocurrido un error al procesar tu pregunta. Por favor, inténtalo de nuevo."

// ChatEngine processes one chat turn. Satisfied by *router.Router.
type ChatEngine interface {
	Respond(ctx context.Context, query string, history []conversation.Message) (router.Reply, error)
}

// ConversationStore persists and loads conversation threads.
// Satisfied by *conversation.Store.
type ConversationStore interface {
	Append(ctx context.Context, threadID string, role conversation.Role, content string, usedSourceIDs []string) error
	History(ctx context.Context, threadID string, limit int32) ([]conversation.Message, error)
	ThreadDocuments(ctx context.Context, threadID string) ([]string, error)
}

// ChatHandler handles the chat endpoint.
type ChatHandler struct {
	engine     ChatEngine
	store      ConversationStore
	logger     *slog.Logger
	maxHistory int32
	isDev      bool
}

// NewChatHandler creates a chat handler.
func NewChatHandler(engine ChatEngine, store ConversationStore, logger *slog.Logger, maxHistory int32, isDev bool) *ChatHandler {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &ChatHandler{
		engine:     engine,
		store:      store,
		logger:     logger,
		maxHistory: maxHistory,
		isDev:      isDev,
	}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.handleChat)
}

// ChatMessage is one prior conversation turn supplied by the client.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat endpoint request body. History is optional; when a
// threadId is given and history is absent, it is loaded from the store.
type ChatRequest struct {
	Message  string        `json:"message"`
	ThreadID string        `json:"threadId,omitempty"`
	History  []ChatMessage `json:"history,omitempty"`
}

// ChatResponse is the chat endpoint response body.
type ChatResponse struct {
	Response     string              `json:"response"`
	DecisionPath string              `json:"decisionPath"`
	Citations    []citation.Citation `json:"citations,omitempty"`
	ThreadID     string              `json:"threadId,omitempty"`
}

func (h *ChatHandler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError{Code: "invalid_request", Message: "invalid request body"}.write(w, http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		apiError{Code: "missing_message", Message: "message is required"}.write(w, http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	history, err := h.resolveHistory(ctx, req)
	if err != nil {
		h.logger.Error("loading thread history", "error", err, "thread_id", req.ThreadID)
		apiError{Code: "invalid_thread", Message: "could not load thread history"}.write(w, http.StatusBadRequest)
		return
	}

	reply, err := h.engine.Respond(ctx, req.Message, history)
	if err != nil {
		h.logger.Error("chat turn failed", "error", err, "thread_id", req.ThreadID)
		h.turnError(err).write(w, http.StatusInternalServerError)
		return
	}

	// Persistence failures must not discard an already generated reply.
	if req.ThreadID != "" {
		h.persistTurn(ctx, req.ThreadID, req.Message, reply)
	}

	respond(w, http.StatusOK, ChatResponse{
		Response:     reply.Response,
		DecisionPath: reply.Path.String(),
		Citations:    reply.Citations,
		ThreadID:     req.ThreadID,
	})
}

// resolveHistory prefers client-supplied history; otherwise it loads the most
// recent turns of the thread from the store.
func (h *ChatHandler) resolveHistory(ctx context.Context, req ChatRequest) ([]conversation.Message, error) {
	if len(req.History) > 0 {
		history := make([]conversation.Message, 0, len(req.History))
		for _, m := range req.History {
			history = append(history, conversation.Message{
				Role:    conversation.Role(m.Role),
				Content: m.Content,
			})
		}
		return history, nil
	}
	if req.ThreadID == "" {
		return nil, nil
	}
	return h.store.History(ctx, req.ThreadID, h.maxHistory)
}

func (h *ChatHandler) persistTurn(ctx context.Context, threadID, message string, reply router.Reply) {
	if err := h.store.Append(ctx, threadID, conversation.RoleUser, message, nil); err != nil {
		h.logger.Error("persisting user message", "error", err, "thread_id", threadID)
		return
	}
	if err := h.store.Append(ctx, threadID, conversation.RoleAssistant, reply.Response, reply.UsedSourceIDs); err != nil {
		h.logger.Error("persisting assistant message", "error", err, "thread_id", threadID)
	}
}

// turnError shapes a failed turn for the client: the raw error in
// development, a single generic message in production.
func (h *ChatHandler) turnError(err error) apiError {
	if h.isDev {
		return apiError{Code: "chat_failed", Message: err.Error()}
	}
	return apiError{Code: "chat_failed", Message: genericFailureMessage}
}
