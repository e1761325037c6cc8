package domain

import "context"

// ChatCompleter sends one system+user prompt pair to an LLM and returns the raw text.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (Completion, error)
}

// Completion is the raw LLM answer with token usage.
type Completion struct {
	Content      string
	Model        string
	PromptTokens int
	TotalTokens  int
}
