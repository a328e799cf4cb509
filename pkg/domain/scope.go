package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Scope is a mutable attribute map with a defined lifetime (flow, conversation or request).
// Values must be JSON-serializable to survive persistence between invocations.
type Scope map[string]any

// NewScope returns an empty scope.
func NewScope() Scope {
	return make(Scope)
}

// Get returns the value stored under key.
func (s Scope) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (s Scope) GetString(key string) string {
	v, _ := s[key].(string)
	return v
}

// Put stores value under key, replacing any previous value.
func (s Scope) Put(key string, value any) {
	s[key] = value
}

// PutAll copies every entry of m into the scope.
func (s Scope) PutAll(m map[string]any) {
	for k, v := range m {
		s[k] = v
	}
}

// Remove deletes key from the scope.
func (s Scope) Remove(key string) {
	delete(s, key)
}

// Contains reports whether key is present.
func (s Scope) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Decode converts the value under key into out (a pointer), following mapstructure rules.
func (s Scope) Decode(key string, out any) error {
	v, ok := s[key]
	if !ok {
		return fmt.Errorf("scope attribute '%s' not found", key)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode scope attribute '%s': %w", key, err)
	}
	return nil
}

// Clone returns a deep copy. Nested maps and slices are copied, other values are copied by value.
func (s Scope) Clone() Scope {
	if s == nil {
		return NewScope()
	}
	return Scope(CopyMap(s))
}

// CopyMap deep-copies nested map[string]any and []any values.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyMap(t)
	case Scope:
		return CopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
