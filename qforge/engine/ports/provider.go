package engineports

import (
	"context"
)

// Provider history roles. Adapters map these onto whatever role names the
// backing model expects.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// HistoryTurn is one prior exchange passed along with a prompt so the
// provider keeps narrative continuity.
type HistoryTurn struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Provider is the abstraction for all generative backends. Implementations
// normalize transport and API failures onto the engine error taxonomy
// before returning; the text comes back raw, parsing is the caller's job.
type Provider interface {
	Generate(ctx context.Context, prompt string, history []HistoryTurn) (string, error)
}
