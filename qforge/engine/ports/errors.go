package engineports

import "errors"

// Provider implementations normalize every transport and API failure onto
// one of these before returning, so callers retry on the class of failure
// rather than on backend-specific error shapes.
var (
	// ErrUnavailable marks transient failures: network errors, timeouts,
	// throttling, 5xx responses. Worth retrying with backoff.
	ErrUnavailable = errors.New("provider unavailable")

	// ErrRejected marks requests the provider refused outright, such as
	// safety blocks or auth failures. Retrying the same request cannot
	// help.
	ErrRejected = errors.New("provider rejected request")
)
