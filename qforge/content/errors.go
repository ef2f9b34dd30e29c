package content

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformed marks provider output that yielded no decodable JSON
	// payload. Callers retry generation with stricter format hints.
	ErrMalformed = errors.New("content malformed")

	// ErrInvalid marks a payload that decoded but violated the schema for
	// its kind. Callers retry generation quoting the violations.
	ErrInvalid = errors.New("content invalid")
)

// ValidationError carries the individual schema violations for a payload so
// retry prompts can quote them back to the provider.
type ValidationError struct {
	Kind       Kind
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s payload invalid: %s", e.Kind, strings.Join(e.Violations, "; "))
}

// Unwrap makes errors.Is(err, ErrInvalid) hold for validation errors.
func (e *ValidationError) Unwrap() error { return ErrInvalid }
