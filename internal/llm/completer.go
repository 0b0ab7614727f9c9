package llm

import (
	"context"
	"strings"
)

// Role tags a chat message with its author
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline image attached to a user message
type Image struct {
	MIMEType string
	Data     []byte
}

// Message is a single role-tagged chat message
type Message struct {
	Role    Role
	Content string
	Images  []Image
}

// System builds a system instruction message
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message, optionally carrying images
func User(content string, images ...Image) Message {
	return Message{Role: RoleUser, Content: content, Images: images}
}

// Assistant builds an assistant message
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Completer defines the interface for chat completion providers
type Completer interface {
	// Complete sends the ordered messages and returns the generated text
	Complete(ctx context.Context, messages []Message, temperature float64) (string, error)
	// Close releases provider resources
	Close() error
}

// splitSystem joins all system messages into one instruction and returns the rest in order
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if s := strings.TrimSpace(m.Content); s != "" {
				system = append(system, s)
			}
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// StripCodeFence removes a surrounding markdown code fence, including a json language tag
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
