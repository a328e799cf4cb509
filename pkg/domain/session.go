package domain

// SessionStatus tracks a FlowSession through its life.
type SessionStatus string

const (
	SessionCreated   SessionStatus = "created"
	SessionStarting  SessionStatus = "starting"
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionSuspended SessionStatus = "suspended" // parent of an active sub-flow session
	SessionEnded     SessionStatus = "ended"
)

// FlowSession is one activation record of a flow on an execution's session stack.
type FlowSession struct {
	flow   *Flow
	state  State
	scope  Scope
	parent *FlowSession
	status SessionStatus
}

// NewFlowSession creates a session for flow. parent is nil for the root session.
func NewFlowSession(flow *Flow, parent *FlowSession) *FlowSession {
	return &FlowSession{
		flow:   flow,
		scope:  NewScope(),
		parent: parent,
		status: SessionCreated,
	}
}

// Definition returns the flow this session runs.
func (s *FlowSession) Definition() *Flow { return s.flow }

// State returns the current state, nil before the start state is entered.
func (s *FlowSession) State() State { return s.state }

// SetState moves the session to state. It must belong to the session's flow.
func (s *FlowSession) SetState(state State) { s.state = state }

// Scope is the flow scope, private to this session.
func (s *FlowSession) Scope() Scope { return s.scope }

// SetScope replaces the flow scope, used when restoring a snapshot.
func (s *FlowSession) SetScope(scope Scope) { s.scope = scope }

// Parent returns the calling session, nil for the root.
func (s *FlowSession) Parent() *FlowSession { return s.parent }

// IsRoot reports whether the session has no parent.
func (s *FlowSession) IsRoot() bool { return s.parent == nil }

func (s *FlowSession) Status() SessionStatus { return s.status }

func (s *FlowSession) SetStatus(status SessionStatus) { s.status = status }

// StateID returns the current state id or "" before the session entered a state.
func (s *FlowSession) StateID() string {
	if s.state == nil {
		return ""
	}
	return s.state.ID()
}
