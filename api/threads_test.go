package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func getDocuments(t *testing.T, h *ThreadsHandler, threadID string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(http.MethodGet, "/api/threads/"+threadID+"/documents", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestThreadDocuments(t *testing.T) {
	store := &stubStore{documents: []string{"papers/smith2020.pdf", "papers/lee2019.pdf"}}
	h := NewThreadsHandler(store, slog.New(slog.DiscardHandler))

	rec := getDocuments(t, h, "b8f6f851-9a28-4cf6-a2f0-1f6a3b7f3f10")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp DocumentsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(resp.Documents) != 2 || resp.Documents[0] != "papers/smith2020.pdf" {
		t.Errorf("Documents = %v", resp.Documents)
	}
}

func TestThreadDocumentsEmptyThread(t *testing.T) {
	h := NewThreadsHandler(&stubStore{}, slog.New(slog.DiscardHandler))

	rec := getDocuments(t, h, "b8f6f851-9a28-4cf6-a2f0-1f6a3b7f3f10")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	// An empty thread serializes as an empty array, not null.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if string(raw["documents"]) != "[]" {
		t.Errorf("documents = %s, want []", raw["documents"])
	}
}

func TestThreadDocumentsStoreError(t *testing.T) {
	store := &stubStore{err: errors.New("invalid thread id")}
	h := NewThreadsHandler(store, slog.New(slog.DiscardHandler))

	rec := getDocuments(t, h, "not-a-uuid")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
