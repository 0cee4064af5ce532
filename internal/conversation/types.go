// Package conversation provides the append-only message log backing chat
// threads. The pipeline reads prior turns as read-only history; after a turn
// completes, the boundary layer appends the new messages together with the
// source identifiers the answer drew from, so "all documents used in this
// conversation" stays queryable later.
package conversation

import "fmt"

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks messages written by the end user.
	RoleUser Role = "user"

	// RoleAssistant marks messages written by the assistant.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the recognized values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single conversation turn, oldest-first in a history slice.
// The pipeline treats history as read-only input; no turn mutates it.
type Message struct {
	Role    Role
	Content string
}

// validateMessage checks role and content before persisting.
func validateMessage(role Role, content string) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q (must be user or assistant)", role)
	}
	if content == "" {
		return fmt.Errorf("message content must not be empty")
	}
	return nil
}
