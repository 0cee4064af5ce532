package retrieval

import (
	"fmt"
	"strings"
)

// RetrievalError reports that a search failed after exhausting all retry
// attempts. The caller decides how to surface it; the pipeline treats it as
// fatal for the current turn.
type RetrievalError struct {
	Query    string
	Attempts int
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed for %q after %d attempts: %v", e.Query, e.Attempts, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// transientError reports whether an error is worth retrying.
// Covers embedding API throttling and transient database failures.
func transientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// Rate limit errors
	if containsAny(errStr, "rate limit", "quota exceeded", "429") {
		return true
	}

	// Transient server errors
	if containsAny(errStr, "500", "502", "503", "504", "unavailable") {
		return true
	}

	// Network and connection errors
	if containsAny(errStr, "connection reset", "connection refused", "broken pipe", "timeout", "temporary") {
		return true
	}

	return false
}

// containsAny checks if s contains any of the substrings (case-insensitive).
func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
