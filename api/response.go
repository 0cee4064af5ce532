package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// respond writes data as JSON with the given status code. Encoding failures
// after WriteHeader cannot change the status on the wire; they are only
// logged.
func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// apiError is the JSON error envelope shared by all endpoints.
type apiError struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

// write sends the error with the given status code.
func (e apiError) write(w http.ResponseWriter, status int) {
	respond(w, status, e)
}
