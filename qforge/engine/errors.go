package engine

import (
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/questforge/qforge/content"
	ports "github.com/ZanzyTHEbar/questforge/qforge/engine/ports"
)

var (
	// ErrProviderUnavailable marks transient provider failures: network
	// errors, timeouts, throttling, 5xx responses. The gateway retries
	// these with backoff before giving up.
	ErrProviderUnavailable = ports.ErrUnavailable

	// ErrProviderRejected marks requests the provider refused outright,
	// such as safety blocks or auth failures. Retrying the same request
	// cannot help.
	ErrProviderRejected = ports.ErrRejected

	// ErrDependencyMissing marks a stage scheduled before its inputs
	// exist. This is a pipeline wiring bug, not a session failure.
	ErrDependencyMissing = errors.New("stage dependency missing")

	// ErrSessionFailed is returned by Run for sessions in the failed
	// status; Retry is the way back into the pipeline.
	ErrSessionFailed = errors.New("session is failed; retry it to resume setup")

	// ErrRunInProgress guards against two pipeline runs driving the same
	// session at once.
	ErrRunInProgress = errors.New("session setup already running")
)

// StageError is the terminal error of one stage after its attempts are
// spent. The orchestrator turns it into the session failure marker.
type StageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// retryable reports whether another generation attempt can help. Unusable
// content can be re-prompted with feedback; a rejected request or missing
// dependency cannot, and the gateway has already retried transient
// transport failures on its own.
func retryable(err error) bool {
	return errors.Is(err, content.ErrMalformed) || errors.Is(err, content.ErrInvalid)
}

// friendlyReason converts a stage error into the player-facing explanation
// stored on the failed session.
func friendlyReason(err error) string {
	switch {
	case errors.Is(err, ErrProviderUnavailable):
		return "The storyteller is unreachable right now. Try again in a few minutes."
	case errors.Is(err, ErrProviderRejected):
		return "The storyteller declined this request. Try different preferences."
	case errors.Is(err, content.ErrMalformed), errors.Is(err, content.ErrInvalid):
		return "The storyteller kept producing unusable content. Try again."
	default:
		return "Something went wrong while preparing the adventure. Try again."
	}
}
