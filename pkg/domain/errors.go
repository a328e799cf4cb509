package domain

import (
	"errors"
	"fmt"
)

// Configuration errors. Always fatal, never retried.
var (
	// ErrConfiguration is the umbrella for flow definition defects detected at build time.
	ErrConfiguration = errors.New("flow configuration error")

	// ErrFlowNotFound is returned by a FlowLocator when no flow is registered under an id.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrFlowNotResolved is returned when executing a flow whose target states were never resolved.
	ErrFlowNotResolved = errors.New("flow target states are not resolved")
)

// Navigation errors. Fatal to the current request.
var (
	// ErrNoMatchingTransition is matched by every *NoMatchingTransitionError.
	ErrNoMatchingTransition = errors.New("no matching transition")
)

// Execution precondition errors.
var (
	ErrExecutionNotActive      = errors.New("flow execution is not active")
	ErrExecutionAlreadyStarted = errors.New("flow execution has already been started")
	ErrNotPaused               = errors.New("flow execution is not paused at a view state")
)

// Repository errors. Adapters use IsRepositoryError to tell a stale or invalid key apart from a
// failure of the flow itself.
var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrContinuationNotFound = errors.New("continuation not found")
	ErrInvalidKeyFormat     = errors.New("invalid continuation key format")
	ErrSnapshotMismatch     = errors.New("snapshot does not match flow definition")
	ErrNoCurrentView        = errors.New("conversation has no current view selection")
	ErrCorruptContinuation  = errors.New("continuation data cannot be decoded")
)

// IsRepositoryError reports whether err is one of the repository error kinds.
func IsRepositoryError(err error) bool {
	return errors.Is(err, ErrConversationNotFound) ||
		errors.Is(err, ErrContinuationNotFound) ||
		errors.Is(err, ErrInvalidKeyFormat) ||
		errors.Is(err, ErrSnapshotMismatch) ||
		errors.Is(err, ErrNoCurrentView) ||
		errors.Is(err, ErrCorruptContinuation)
}

// ConfigurationError describes a defect in a flow definition.
type ConfigurationError struct {
	FlowID  string
	StateID string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.StateID == "" {
		return fmt.Sprintf("flow '%s': %s", e.FlowID, e.Reason)
	}
	return fmt.Sprintf("flow '%s' state '%s': %s", e.FlowID, e.StateID, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NoMatchingTransitionError is raised when no transition out of a state accepts an event.
type NoMatchingTransitionError struct {
	FlowID  string
	StateID string
	EventID string
}

func (e *NoMatchingTransitionError) Error() string {
	return fmt.Sprintf("no transition out of state '%s' in flow '%s' matches event '%s'", e.StateID, e.FlowID, e.EventID)
}

func (e *NoMatchingTransitionError) Is(target error) bool {
	return target == ErrNoMatchingTransition
}

// KeyNotFoundError carries the key that could not be resolved by a repository.
type KeyNotFoundError struct {
	Key ContinuationKey
	Err error
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Key)
}

func (e *KeyNotFoundError) Unwrap() error {
	return e.Err
}
