// Package mapping copies attributes between scopes using gjson path expressions.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/aretw0/pergola/pkg/domain"
)

// ErrRequiredAttribute is matched by every *MissingAttributeError.
var ErrRequiredAttribute = errors.New("required attribute missing")

// MissingAttributeError names the source expression that yielded nothing.
type MissingAttributeError struct {
	Source string
	Target string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("required attribute '%s' (for '%s') is missing", e.Source, e.Target)
}

func (e *MissingAttributeError) Is(target error) bool {
	return target == ErrRequiredAttribute
}

// Rule maps one source expression to one target key.
type Rule struct {
	// Source is a gjson path evaluated against the source map, e.g. "order.items.#.sku".
	Source string `json:"source" yaml:"source" mapstructure:"source"`
	// Target is the key written in the target scope. Defaults to Source.
	Target string `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	// Required fails the mapping when Source yields nothing and there is no default.
	Required bool `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	// Default is a JSON literal used when Source yields nothing.
	Default string `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
}

func (r Rule) target() string {
	if r.Target != "" {
		return r.Target
	}
	return r.Source
}

// Map is shorthand for a rule copying source into target.
func Map(source, target string) Rule {
	return Rule{Source: source, Target: target}
}

// Require is shorthand for a required rule.
func Require(source, target string) Rule {
	return Rule{Source: source, Target: target, Required: true}
}

// Mapper is a domain.AttributeMapper applying rules in order.
// Values are decoded from a JSON rendering of the source, so targets never alias source values.
type Mapper struct {
	rules []Rule
}

// New creates a mapper from rules.
func New(rules ...Rule) *Mapper {
	return &Mapper{rules: append([]Rule(nil), rules...)}
}

// Pass creates a mapper copying the given keys unchanged.
func Pass(keys ...string) *Mapper {
	rules := make([]Rule, 0, len(keys))
	for _, k := range keys {
		rules = append(rules, Rule{Source: k})
	}
	return New(rules...)
}

// Rules returns the mapper's rules.
func (m *Mapper) Rules() []Rule {
	return append([]Rule(nil), m.rules...)
}

// MapAttributes implements domain.AttributeMapper.
func (m *Mapper) MapAttributes(_ domain.RequestContext, source map[string]any, target domain.Scope) error {
	if len(m.rules) == 0 {
		return nil
	}
	if source == nil {
		source = map[string]any{}
	}
	raw, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("failed to encode mapping source: %w", err)
	}

	for _, r := range m.rules {
		res := gjson.GetBytes(raw, r.Source)
		switch {
		case res.Exists():
			target.Put(r.target(), res.Value())
		case r.Default != "":
			if !gjson.Valid(r.Default) {
				return fmt.Errorf("default of '%s' is not valid JSON", r.Source)
			}
			target.Put(r.target(), gjson.Parse(r.Default).Value())
		case r.Required:
			return &MissingAttributeError{Source: r.Source, Target: r.target()}
		}
	}
	return nil
}

var _ domain.AttributeMapper = (*Mapper)(nil)
