package conversation

import (
	"encoding/json"
	"strings"
)

// RoleAgent is accepted on input as an alias for the assistant role.
const RoleAgent = "agent"

// Message is one entry of the conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NormalizeHistory returns a copy of history keyed to the chat roles.
// Entries with an unknown role or blank content are dropped; order is kept.
func NormalizeHistory(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, msg := range history {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case ChatRoleUser:
			out = append(out, Message{Role: ChatRoleUser, Content: content})
		case ChatRoleAssistant, RoleAgent:
			out = append(out, Message{Role: ChatRoleAssistant, Content: content})
		}
	}
	return out
}

// ParseHistory decodes a JSON history array. Anything that is not an array
// yields an empty history and malformed entries are skipped.
func ParseHistory(data []byte) []Message {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	history := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal(item, &msg); err != nil {
			continue
		}
		history = append(history, msg)
	}
	return NormalizeHistory(history)
}
