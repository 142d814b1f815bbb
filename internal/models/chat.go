package models

import "time"

// Message represents an individual entry in one panel's conversation. Content grows in place while a
// streamed response is in flight, and the message is finalized in place when the stream completes or
// errors; messages are never deleted individually, only the whole panel is cleared.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Method names the advanced technique that produced an assistant message. It stays empty for
	// user messages and for responses from the basic endpoint.
	Method Method `json:"method,omitempty"`

	// TokensPerSecond is only set once a response is complete.
	TokensPerSecond float64 `json:"tokens_per_second,omitempty"`

	// IsLoading marks an assistant placeholder that has not received any content yet.
	IsLoading bool `json:"is_loading,omitempty"`
}

// Role represents the author of a message.
type Role string

// Method identifies a backend chat technique.
type Method string

const (
	// RoleUser represents a user message.
	RoleUser Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant Role = "assistant"
	// RoleSystem represents a system prompt injected ahead of the conversation.
	RoleSystem Role = "system"

	// MethodBasic is the plain chat endpoint.
	MethodBasic Method = "basic"
	// MethodTuning routes to the fine-tuned model endpoint.
	MethodTuning Method = "tuning"
	// MethodRAG routes to the retrieval-augmented endpoint.
	MethodRAG Method = "rag"
	// MethodWebSearch routes to the web-search endpoint.
	MethodWebSearch Method = "websearch"
)

// Valid reports whether m is one of the four known methods.
func (m Method) Valid() bool {
	switch m {
	case MethodBasic, MethodTuning, MethodRAG, MethodWebSearch:
		return true
	}
	return false
}

// Session is a saved snapshot of both panels, persisted through the sessions API.
type Session struct {
	ID        string    `json:"id"`
	Method    Method    `json:"method"`
	CreatedAt time.Time `json:"created_at"`

	Basic    []Message `json:"basic"`
	Advanced []Message `json:"advanced"`
}
