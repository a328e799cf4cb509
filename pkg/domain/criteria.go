package domain

import (
	"path"
	"strings"
)

// WildcardEvent is the reserved event id matching any event.
const WildcardEvent = "*"

// TransitionCriteria is a side-effect free predicate over the triggering event id.
type TransitionCriteria interface {
	Matches(eventID string) bool
	String() string
}

type eventCriteria string

func (c eventCriteria) Matches(eventID string) bool { return string(c) == eventID }
func (c eventCriteria) String() string              { return string(c) }

// OnEvent matches a single event id by string equality.
func OnEvent(id string) TransitionCriteria {
	return eventCriteria(id)
}

type anyEventCriteria struct{}

func (anyEventCriteria) Matches(string) bool { return true }
func (anyEventCriteria) String() string      { return WildcardEvent }

// AnyEvent matches every event.
func AnyEvent() TransitionCriteria {
	return anyEventCriteria{}
}

type patternCriteria string

func (c patternCriteria) Matches(eventID string) bool {
	ok, err := path.Match(string(c), eventID)
	return err == nil && ok
}

func (c patternCriteria) String() string { return string(c) }

// OnPattern matches event ids against a shell glob such as "submit*" or "cancel?".
// A malformed pattern never matches.
func OnPattern(pattern string) TransitionCriteria {
	return patternCriteria(pattern)
}

// ParseCriteria picks the criteria variant for an expression written in a flow document:
// "*" is the wildcard, expressions with glob metacharacters are patterns, anything else is an event id.
func ParseCriteria(expr string) TransitionCriteria {
	switch {
	case expr == WildcardEvent:
		return AnyEvent()
	case strings.ContainsAny(expr, "*?["):
		return OnPattern(expr)
	default:
		return OnEvent(expr)
	}
}
