package engine

import (
	"strings"

	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
	"github.com/ZanzyTHEbar/questforge/qforge/session"
)

// turnOverheadTokens accounts for role framing the provider adds per turn.
const turnOverheadTokens = 4

// Budget bounds how much conversation history accompanies a narrative turn
// prompt.
type Budget struct {
	MaxTokens int // hard cap for packed history
	MaxTurns  int // safety bound on number of turns
}

// Windower packs recent conversation turns into provider history within a
// token budget.
type Windower struct {
	defaultBudget Budget
	// TokenEstimator must be fast; it runs on every turn of the log.
	TokenEstimator func(s string) int
}

func NewWindower(b Budget, est func(s string) int) *Windower {
	if est == nil {
		est = func(s string) int { // rough heuristic: ~4 chars per token
			l := len(s)
			if l == 0 {
				return 0
			}
			return (l + 3) / 4
		}
	}
	return &Windower{defaultBudget: b, TokenEstimator: est}
}

// Window selects the most recent turns that fit the budget and returns them
// oldest first, mapped onto provider roles.
func (w *Windower) Window(log []session.Turn, b *Budget) []ports.HistoryTurn {
	if b == nil {
		b = &w.defaultBudget
	}
	if len(log) == 0 || b.MaxTokens <= 0 || b.MaxTurns <= 0 {
		return nil
	}

	norm := func(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) }

	remaining := b.MaxTokens
	start := len(log)
	for i := len(log) - 1; i >= 0; i-- {
		cost := w.TokenEstimator(log[i].Content) + turnOverheadTokens
		if cost > remaining || len(log)-i > b.MaxTurns {
			break
		}
		remaining -= cost
		start = i
	}

	out := make([]ports.HistoryTurn, 0, len(log)-start)
	for _, t := range log[start:] {
		out = append(out, ports.HistoryTurn{Role: providerRole(t.Role), Content: norm(t.Content)})
	}
	return out
}

// providerRole maps session log roles onto the roles providers understand.
// Character turns are the model's own prior output, so they go back as
// assistant.
func providerRole(role string) string {
	switch role {
	case session.RoleUser:
		return ports.RoleUser
	case session.RoleCharacter, session.RoleAssistant:
		return ports.RoleAssistant
	case session.RoleSystem:
		return ports.RoleSystem
	default:
		return ports.RoleUser
	}
}
