package domain

import (
	"fmt"
	"time"
)

// MessageRole identifies who authored a conversation message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Conversation groups the messages exchanged with one agent.
type Conversation struct {
	ID        string
	AgentID   string
	VisitorID string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageMetadata records generation bookkeeping on a message. Model is set
// to "error" on degraded assistant replies, with Error holding the cause.
type MessageMetadata struct {
	Model            string `json:"model,omitempty"`
	KnowledgeCount   int    `json:"knowledge_count,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	SenderID         string `json:"sender_id,omitempty"`
	Error            string `json:"error,omitempty"`
}

// Message is one turn entry in a conversation, ordered by CreatedAt as
// assigned by the store.
type Message struct {
	ID             string
	ConversationID string
	Role           MessageRole
	Content        string
	Metadata       MessageMetadata
	CreatedAt      time.Time
}

// PromptMessage is the minimal role/content pair sent to the completion
// service. Internal message metadata never leaks into it.
type PromptMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt roles, aligned with the chat completion API.
const (
	PromptRoleSystem    = "system"
	PromptRoleUser      = "user"
	PromptRoleAssistant = "assistant"
)

// ValidateMessage validates a Message instance
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("message cannot be nil")
	}

	if m.ConversationID == "" {
		return fmt.Errorf("message ConversationID is required")
	}

	if m.Content == "" {
		return fmt.Errorf("message Content is required")
	}

	if !isValidMessageRole(m.Role) {
		return fmt.Errorf("message Role is invalid: %s", m.Role)
	}

	return nil
}

// isValidMessageRole checks if a MessageRole is valid
func isValidMessageRole(r MessageRole) bool {
	switch r {
	case MessageRoleUser, MessageRoleAssistant:
		return true
	}
	return false
}
