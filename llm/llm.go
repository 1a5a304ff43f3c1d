// Package llm defines the provider-neutral language-model capability the
// agent core consumes. Concrete adapters live in the openai and gemini
// subpackages; the core only ever sees the Client interface.
package llm

import (
	"context"
	"strings"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// Request represents a complete completion request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature *float64 // optional override
}

// Usage represents token usage information from a completion response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response represents a completion response.
type Response struct {
	Text  string
	Usage *Usage
}

// Client provides a provider-neutral interface for completion calls.
// Implementations handle provider-specific details internally.
type Client interface {
	// Complete sends a request and returns a complete response.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// HasInput reports whether the request carries at least one non-empty
// message. Adapters reject requests without input; the agent loop filters
// empty turns before they ever reach a provider.
func (r *Request) HasInput() bool {
	if r == nil {
		return false
	}
	for _, m := range r.Messages {
		if strings.TrimSpace(m.Content) != "" {
			return true
		}
	}
	return false
}
