// Package redact scrubs sensitive values out of API tool parameters,
// responses, and traced MCP messages before they reach a security log or
// the message-trace ring buffer.
package redact

import "strings"

// defaultSensitiveKeys are scanned for at any nesting depth, case-insensitive,
// in addition to any keys an operator configures.
var defaultSensitiveKeys = []string{
	"password", "token", "apikey", "authorization", "secret",
}

// trailingVisible is how many trailing characters of a masked string
// survive redaction, so an operator can still recognise which credential
// rotated without recovering it.
const trailingVisible = 4

// mask is the literal replacement for a string value that does not carry
// enough length to preserve any trailing characters.
const mask = "****"

// Scrubber redacts sensitive values out of arbitrary JSON-shaped data
// (maps, slices, scalars) built from a fixed sensitive-key set plus any
// operator-configured additions.
type Scrubber struct {
	sensitive map[string]struct{}
}

// New builds a Scrubber over the default sensitive-key set plus any extra
// keys supplied (e.g. from a group's or API tool's security config).
func New(extraKeys ...string) *Scrubber {
	s := &Scrubber{sensitive: make(map[string]struct{}, len(defaultSensitiveKeys)+len(extraKeys))}
	for _, k := range defaultSensitiveKeys {
		s.sensitive[k] = struct{}{}
	}
	for _, k := range extraKeys {
		s.sensitive[strings.ToLower(k)] = struct{}{}
	}
	return s
}

func (s *Scrubber) isSensitive(key string) bool {
	_, ok := s.sensitive[strings.ToLower(key)]
	return ok
}

// Redact returns a deep copy of v with every value reachable under a
// sensitive key masked. Non-sensitive structure is preserved verbatim so
// the redacted record is still useful for debugging shape mismatches.
func (s *Scrubber) Redact(v any) any {
	return s.walk(v, false)
}

// walk recurses through v. sensitiveCtx is true when v itself sits directly
// under a sensitive key and should be masked regardless of its own type.
func (s *Scrubber) walk(v any, sensitiveCtx bool) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = s.walk(child, s.isSensitive(k))
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = s.walk(child, sensitiveCtx)
		}
		return out
	case string:
		if sensitiveCtx {
			return maskString(val)
		}
		return val
	default:
		if sensitiveCtx {
			return mask
		}
		return val
	}
}

// maskString masks a string value, preserving up to trailingVisible
// trailing characters so the masked record remains distinguishable.
func maskString(s string) string {
	if s == "" {
		return s
	}
	if len(s) <= trailingVisible {
		return mask
	}
	return mask + s[len(s)-trailingVisible:]
}
