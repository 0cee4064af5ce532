package api

import (
	"log/slog"
	"net/http"
)

// ThreadsHandler handles thread inspection endpoints.
type ThreadsHandler struct {
	store  ConversationStore
	logger *slog.Logger
}

// NewThreadsHandler creates a threads handler.
func NewThreadsHandler(store ConversationStore, logger *slog.Logger) *ThreadsHandler {
	return &ThreadsHandler{store: store, logger: logger}
}

// RegisterRoutes registers thread routes on the given mux.
func (h *ThreadsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/threads/{id}/documents", h.handleDocuments)
}

// DocumentsResponse lists the source documents a thread has drawn from.
type DocumentsResponse struct {
	ThreadID  string   `json:"threadId"`
	Documents []string `json:"documents"`
}

// handleDocuments returns the distinct sources used by assistant replies in
// a thread, in first-use order.
func (h *ThreadsHandler) handleDocuments(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")

	docs, err := h.store.ThreadDocuments(r.Context(), threadID)
	if err != nil {
		h.logger.Error("loading thread documents", "error", err, "thread_id", threadID)
		apiError{Code: "invalid_thread", Message: "could not load thread documents"}.write(w, http.StatusBadRequest)
		return
	}
	if docs == nil {
		docs = []string{}
	}

	respond(w, http.StatusOK, DocumentsResponse{ThreadID: threadID, Documents: docs})
}
