package content

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Validator checks extracted payloads against the schema for their kind.
// Schemas are compiled once at construction.
type Validator struct {
	schemas map[Kind]*gojsonschema.Schema
}

// NewValidator compiles every artifact schema and returns a ready Validator.
func NewValidator() (*Validator, error) {
	schemas := make(map[Kind]*gojsonschema.Schema, len(schemaSources))
	for kind, src := range schemaSources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", kind, err)
		}
		schemas[kind] = schema
	}
	return &Validator{schemas: schemas}, nil
}

// Validate checks payload against the schema for kind. Schema violations are
// returned as a *ValidationError wrapping ErrInvalid; a payload that does not
// even decode is reported as ErrMalformed.
func (v *Validator) Validate(kind Kind, payload json.RawMessage) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("no schema registered for kind %q", kind)
	}

	if !json.Valid(payload) {
		return fmt.Errorf("payload for %s is not valid JSON: %w", kind, ErrMalformed)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("validate %s payload: %w", kind, err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		violations = append(violations, resultErr.String())
	}
	return &ValidationError{Kind: kind, Violations: violations}
}
