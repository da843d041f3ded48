// Package llm is the language model boundary of the coach. Question
// generation and answer grading each make one non-streaming completion whose
// reply is usually a JSON document described by a [Schema].
package llm

import "context"

// Usage is the token accounting a backend reports for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Schema asks for a reply that is a JSON document matching Definition.
// Backends with native structured output enforce it; others describe it in
// the prompt. Callers validate the decoded result in both cases.
type Schema struct {
	// Name must match ^[a-zA-Z0-9_-]+$.
	Name        string
	Description string
	// Definition is a JSON Schema object.
	Definition map[string]any
}

// CompletionRequest is one prompt. Messages must not be empty.
type CompletionRequest struct {
	// SystemPrompt is sent ahead of Messages with the system role.
	SystemPrompt string
	Messages     []Message

	// Temperature in [0, 2]. Zero keeps the backend default.
	Temperature float64

	// MaxTokens caps the reply length. Zero keeps the backend default.
	MaxTokens int

	Schema *Schema
}

// CompletionResponse is a finished reply.
type CompletionResponse struct {
	// Content is the reply text, or the raw JSON document when the request
	// carried a Schema.
	Content string

	// FinishReason is the backend's stop reason, such as "stop" or "length".
	FinishReason string

	Usage Usage
}

// Provider is a language model backend. It must be safe for concurrent use.
type Provider interface {
	// Complete waits for the whole reply. A nil error means a non-nil
	// response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities describes the configured model. It does not change over
	// the provider's lifetime.
	Capabilities() ModelCapabilities
}
