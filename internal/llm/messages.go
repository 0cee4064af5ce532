package llm

import (
	"github.com/firebase/genkit/go/ai"

	"github.com/aula0/aula/internal/conversation"
)

// Messages converts conversation history into Genkit messages.
// Unknown roles are skipped rather than failing the turn.
func Messages(history []conversation.Message) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case conversation.RoleUser:
			msgs = append(msgs, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		case conversation.RoleAssistant:
			msgs = append(msgs, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		}
	}
	return msgs
}
