package observability

import (
	"regexp"
)

// Mask replaces the values of redacted keys.
const Mask = "***"

// DefaultSensitiveKeys matches common credential and personal data keys.
var DefaultSensitiveKeys = []string{`(?i)password`, `(?i)secret`, `(?i)token`, `(?i)^(cpf|ssn|card|pan)$`}

// Redactor masks the values of keys matching any of its patterns.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the patterns.
func NewRedactor(patterns ...string) (*Redactor, error) {
	r := &Redactor{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Redact returns a masked deep copy of m. m itself is never modified.
func (r *Redactor) Redact(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if r.sensitive(k) {
			out[k] = Mask
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			out[k] = r.Redact(sub)
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Redactor) sensitive(key string) bool {
	if r == nil {
		return false
	}
	for _, p := range r.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
