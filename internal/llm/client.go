// Package llm provides chat-completion clients for the Research Report Service.
//
// The orchestrator drives every pipeline phase (planning, keyword generation,
// section synthesis, summary, title generation) through the same Client
// interface: a system/user message list in, plain text out. Provider-specific
// request/response handling and transient-error retry live here; prompt
// content lives with the orchestrator.
package llm

import (
	"context"
	"errors"
)

// Message roles accepted in a chat exchange.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest contains the parameters for one chat completion.
type ChatRequest struct {
	// Model overrides the provider's configured model when non-empty.
	Model string

	// Messages is the ordered conversation, typically one system message
	// followed by one user message.
	Messages []Message

	// MaxTokens caps the completion length. Zero uses the provider default.
	MaxTokens int
}

// ChatResponse contains the completion and usage metadata.
type ChatResponse struct {
	// Content is the plain-text completion.
	Content string

	// Model is the model that produced the completion.
	Model string

	// InputTokens is the number of prompt tokens consumed.
	InputTokens int

	// OutputTokens is the number of completion tokens produced.
	OutputTokens int
}

// Client defines the interface for LLM chat providers.
//
// Implementations should respect context cancellation, retry transient API
// errors (429 and 5xx), and return wrapped errors with provider context.
type Client interface {
	// Chat sends one completion request and waits for the full response.
	// The orchestrator does not depend on streaming at this layer.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Provider returns the name of the LLM provider (e.g., "openai", "anthropic").
	Provider() string

	// Model returns the default model identifier configured for this client.
	Model() string
}

// splitSystem separates leading system messages from the conversational
// remainder, for providers that carry the system prompt out of band.
func splitSystem(messages []Message) (system string, rest []Message) {
	for i, m := range messages {
		if m.Role != RoleSystem {
			return system, messages[i:]
		}
		if system != "" {
			system += "\n\n"
		}
		system += m.Content
	}
	return system, nil
}

// isTransientError returns true if err is a transient API error worth retrying.
func isTransientError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsTransient()
	}
	return false
}
