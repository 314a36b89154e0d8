// Package llm provides access to the text-generation service the agent
// pipeline consults. Output structure is never guaranteed; callers must parse
// responses defensively.
package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options configures a single generation call. It is a value type: each
// concurrent caller holds its own copy, so no call can mutate shared state.
type Options struct {
	Model       string
	Temperature float64
}

type Client interface {
	Generate(ctx context.Context, systemPrompt string, messages []Message, opts Options) (string, error)
}
