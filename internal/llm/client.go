// Package llm provides model backend clients.
package llm

import "context"

// Client is the interface the agent loop uses to talk to a model
// backend. One Chat call corresponds to one thinking step.
type Client interface {
	// Chat sends a completion request and returns the generated text.
	Chat(ctx context.Context, messages []Message, stop []string) (*ChatResponse, error)

	// Ping checks if the backend is reachable.
	Ping(ctx context.Context) error
}
