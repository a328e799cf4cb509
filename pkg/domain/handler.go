package domain

import "errors"

// ErrorMatcher decides whether an exception handler claims a failure.
type ErrorMatcher interface {
	MatchError(err error) bool
}

// ErrorMatcherFunc adapts a function to ErrorMatcher.
type ErrorMatcherFunc func(err error) bool

func (f ErrorMatcherFunc) MatchError(err error) bool { return f(err) }

// MatchType claims failures assignable to T anywhere in the error chain (errors.As).
func MatchType[T error]() ErrorMatcher {
	return ErrorMatcherFunc(func(err error) bool {
		var target T
		return errors.As(err, &target)
	})
}

// MatchSentinel claims failures wrapping target (errors.Is).
func MatchSentinel(target error) ErrorMatcher {
	return ErrorMatcherFunc(func(err error) bool {
		return errors.Is(err, target)
	})
}

// MatchAny claims every failure.
func MatchAny() ErrorMatcher {
	return ErrorMatcherFunc(func(error) bool { return true })
}

// ExceptionHandler maps a class of failures to a target state in the same flow.
type ExceptionHandler struct {
	// Name is informational (logs, graphs, documents).
	Name          string
	Matcher       ErrorMatcher
	TargetStateID string

	target State
}

// NewExceptionHandler creates a handler routing failures claimed by matcher to targetStateID.
func NewExceptionHandler(name string, matcher ErrorMatcher, targetStateID string) *ExceptionHandler {
	return &ExceptionHandler{Name: name, Matcher: matcher, TargetStateID: targetStateID}
}

// Handles reports whether the handler claims err.
func (h *ExceptionHandler) Handles(err error) bool {
	return err != nil && h.Matcher != nil && h.Matcher.MatchError(err)
}

// Target returns the resolved target state, nil until the flow is resolved.
func (h *ExceptionHandler) Target() State {
	return h.target
}

func firstHandler(handlers []*ExceptionHandler, err error) *ExceptionHandler {
	for _, h := range handlers {
		if h.Handles(err) {
			return h
		}
	}
	return nil
}
