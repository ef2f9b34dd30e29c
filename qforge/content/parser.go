package content

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Parser extracts the JSON payload from raw model output. Providers wrap
// payloads in prose, markdown fences, or both; the parser tolerates that and
// applies a bounded repair pass for common JSON mistakes before giving up.
type Parser struct {
	fenceRegex    *regexp.Regexp
	trailingComma *regexp.Regexp
	bareKey       *regexp.Regexp
}

// NewParser returns a Parser with its patterns compiled.
func NewParser() *Parser {
	return &Parser{
		fenceRegex:    regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```"),
		trailingComma: regexp.MustCompile(`,\s*([}\]])`),
		bareKey:       regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`),
	}
}

// Extract locates the JSON payload inside raw model text and returns it as a
// raw message. Returns an error wrapping ErrMalformed when no decodable
// payload can be recovered.
func (p *Parser) Extract(raw string) (json.RawMessage, error) {
	candidate := p.locate(raw)
	if candidate == "" {
		return nil, fmt.Errorf("no JSON payload in output: %w", ErrMalformed)
	}

	if json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), nil
	}

	fixed := p.repair(candidate)
	if json.Valid([]byte(fixed)) {
		return json.RawMessage(fixed), nil
	}

	return nil, fmt.Errorf("payload is not decodable JSON: %w", ErrMalformed)
}

// locate returns the best JSON candidate substring: a fenced block when one
// exists, otherwise the outermost object or array.
func (p *Parser) locate(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	if m := p.fenceRegex.FindStringSubmatch(text); len(m) == 2 {
		if inner := strings.TrimSpace(m[1]); inner != "" {
			text = inner
		}
	}

	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			return text[start : end+1]
		}
	}
	if start := strings.Index(text, "["); start >= 0 {
		if end := strings.LastIndex(text, "]"); end > start {
			return text[start : end+1]
		}
	}
	return ""
}

// repair applies one pass of fixes for the failure modes providers actually
// produce: trailing commas, unquoted keys, single-quoted strings.
func (p *Parser) repair(input string) string {
	fixed := p.trailingComma.ReplaceAllString(input, "$1")
	fixed = p.bareKey.ReplaceAllString(fixed, `$1"$2"$3`)
	if !strings.Contains(fixed, `"`) {
		fixed = strings.ReplaceAll(fixed, "'", `"`)
	}
	return fixed
}
