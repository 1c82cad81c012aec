package entity

import "time"

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ChatMessage is one stored chat turn. Content is the text handed back to the
// model as history (chart markers stripped); Raw keeps the unstripped answer
// so the same turn can be rendered again later.
type ChatMessage struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Raw       string      `json:"raw,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Display returns the text that should be rendered for the message.
func (m ChatMessage) Display() string {
	if m.Raw != "" {
		return m.Raw
	}
	return m.Content
}
