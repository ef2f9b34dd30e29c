package adapters

import (
	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
)

// LogTransport writes every outbound event to the log instead of delivering
// it anywhere. Useful for headless runs and debugging.
type LogTransport struct {
	logger zerolog.Logger
}

// NewLogTransport creates a transport that logs all events.
func NewLogTransport(logger zerolog.Logger) *LogTransport {
	return &LogTransport{logger: logger.With().Str("component", "transport").Logger()}
}

// EmitGameMessage logs a narrative message.
func (t *LogTransport) EmitGameMessage(msg ports.GameMessage) {
	t.logger.Info().
		Str("session_id", msg.SessionID).
		Str("role", msg.Role).
		Str("content", msg.Content).
		Msg("game message")
}

// EmitStateUpdate logs a state change.
func (t *LogTransport) EmitStateUpdate(update ports.StateUpdate) {
	evt := t.logger.Info().
		Str("session_id", update.SessionID).
		Str("status", update.Status)
	if update.Stage != "" {
		evt = evt.Str("stage", update.Stage)
	}
	if update.FailureStage != "" {
		evt = evt.Str("failure_stage", update.FailureStage).Str("failure_reason", update.FailureReason)
	}
	evt.Msg("state update")
}

// Ensure LogTransport implements the Transport interface.
var _ ports.Transport = (*LogTransport)(nil)
