package models

import "time"

// ChatRequest is the JSON body accepted by POST /api/chat/{method}.
type ChatRequest struct {
	Message     string   `json:"message"`
	Method      Method   `json:"method,omitempty"`
	Model       string   `json:"model,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

// ChatMessage is a single role/content pair sent to a provider. It carries conversation context
// upstream and is deliberately smaller than Message, which is a UI-side concern.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatOptions carries the per-request generation knobs forwarded to a provider. Zero values mean
// "use the provider's configured default".
type ChatOptions struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// ChatResponse is the JSON body returned by the non-streaming chat endpoints.
type ChatResponse struct {
	ID              string    `json:"id"`
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	Method          Method    `json:"method,omitempty"`
	Model           string    `json:"model,omitempty"`
	TokensPerSecond float64   `json:"tokens_per_second,omitempty"`
}

// ModelInfo describes a single model advertised by the provider.
type ModelInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MaxContext  int    `json:"max_context,omitempty"`
}

// ModelsResponse is the JSON body returned by GET /api/models.
type ModelsResponse struct {
	Models []ModelInfo `json:"models"`
	Count  int         `json:"count"`
}

// ExportRequest is the JSON body accepted by POST /api/export/pdf. The endpoint renders the
// transcript server-side; actual PDF conversion is delegated and not performed here.
type ExportRequest struct {
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}
