package domain

// Listener observes every lifecycle step of a flow execution.
// A returned error is treated exactly like a failure of the state being processed:
// it is never swallowed.
type Listener interface {
	// RequestSubmitted fires when Start or SignalEvent begins.
	RequestSubmitted(rc RequestContext) error
	// RequestProcessed fires when Start or SignalEvent completes, even on failure.
	RequestProcessed(rc RequestContext) error

	// SessionStarting fires before a session is pushed, once its input has been mapped.
	SessionStarting(rc RequestContext, flow *Flow, input map[string]any) error
	// SessionStarted fires once the session is on the stack, before its start state is entered.
	SessionStarted(rc RequestContext, session *FlowSession) error

	// EventSignaled fires for every signaled or emitted event, before its transition is
	// resolved. It also fires for events that turn out to match no transition.
	EventSignaled(rc RequestContext, event Event) error

	// StateEntering fires before the active session moves to state.
	StateEntering(rc RequestContext, state State) error
	// StateEntered fires after the move. previous is nil for a start state.
	StateEntered(rc RequestContext, previous, state State) error

	// Paused fires when the execution suspends at a view state.
	Paused(rc RequestContext, view ViewSelection) error
	// Resumed fires when a session becomes active again: at SignalEvent on the paused
	// session and on a parent session after its sub-flow ended.
	Resumed(rc RequestContext) error

	// SessionEnding fires at an end state, before the session is popped.
	SessionEnding(rc RequestContext, session *FlowSession, output map[string]any) error
	// SessionEnded fires after the session was popped.
	SessionEnded(rc RequestContext, session *FlowSession, output map[string]any) error

	// Created fires when a repository creates a new execution.
	Created(exec Execution) error
	// Loaded fires when a repository restores an execution from key.
	Loaded(exec Execution, key ContinuationKey) error
	// Saved fires when a repository stores an execution under key.
	Saved(exec Execution, key ContinuationKey) error
	// Removed fires when a repository invalidates the conversation of an ended execution.
	Removed(exec Execution, conversationID string) error
}
