package domain

// State is a node in a flow graph. The set of variants is closed:
// *ActionState, *ViewState, *SubflowState and *EndState.
type State interface {
	ID() string
	Base() *StateBase
	isState()
}

// StateBase carries what every state variant has in common.
type StateBase struct {
	StateID string

	// EntryActions run each time the state is entered, before the variant behavior.
	EntryActions []Action

	// Transitions are evaluated in declaration order; the first match wins.
	Transitions []*Transition

	// ExceptionHandlers are consulted before the owning flow's handlers.
	ExceptionHandlers []*ExceptionHandler

	// Attributes is free-form metadata (descriptions, rendering hints).
	Attributes map[string]any

	flow *Flow
}

// ID returns the state identifier, unique within its flow.
func (b *StateBase) ID() string { return b.StateID }

// Base returns the common part of the state.
func (b *StateBase) Base() *StateBase { return b }

// Flow returns the owning flow, nil until the state is added to one.
func (b *StateBase) Flow() *Flow { return b.flow }

// TransitionFor returns the first of this state's own transitions matching eventID.
func (b *StateBase) TransitionFor(eventID string) *Transition {
	return firstMatching(b.Transitions, eventID)
}

// HandlerFor returns the first of this state's own exception handlers claiming err.
func (b *StateBase) HandlerFor(err error) *ExceptionHandler {
	return firstHandler(b.ExceptionHandlers, err)
}

// ActionState executes business logic and transitions on the outcome. It never pauses.
type ActionState struct {
	StateBase
	Actions []Action
}

// ViewState is a pause point. Execution suspends here until an event is signaled.
type ViewState struct {
	StateBase

	// ViewName defaults to the state id.
	ViewName string

	// Model restricts the view model to these flow scope keys. Empty exposes the whole scope.
	Model []string

	// Redirect asks the facade to answer with a conversation redirect instead of the view itself.
	Redirect bool
}

// View returns the effective view name.
func (s *ViewState) View() string {
	if s.ViewName != "" {
		return s.ViewName
	}
	return s.StateID
}

// SubflowState delegates to a nested flow.
type SubflowState struct {
	StateBase
	Subflow *Flow

	// InputMapper reads the parent flow scope and fills the sub-flow input. Nil passes nothing.
	InputMapper AttributeMapper

	// OutputMapper reads the sub-flow output and writes the parent flow scope. Nil passes nothing.
	OutputMapper AttributeMapper
}

// EndState terminates its session.
type EndState struct {
	StateBase

	// ViewName of the terminal view for a root flow. Defaults to the state id.
	ViewName string

	// OutputMapper builds the session output from the ending flow scope.
	OutputMapper AttributeMapper
}

// View returns the effective terminal view name.
func (s *EndState) View() string {
	if s.ViewName != "" {
		return s.ViewName
	}
	return s.StateID
}

func (*ActionState) isState()  {}
func (*ViewState) isState()    {}
func (*SubflowState) isState() {}
func (*EndState) isState()     {}

// NewActionState creates an action state running actions in order.
func NewActionState(id string, actions ...Action) *ActionState {
	return &ActionState{StateBase: StateBase{StateID: id}, Actions: actions}
}

// NewViewState creates a view state rendering viewName.
func NewViewState(id, viewName string) *ViewState {
	return &ViewState{StateBase: StateBase{StateID: id}, ViewName: viewName}
}

// NewSubflowState creates a state delegating to subflow.
func NewSubflowState(id string, subflow *Flow) *SubflowState {
	return &SubflowState{StateBase: StateBase{StateID: id}, Subflow: subflow}
}

// NewEndState creates a terminal state.
func NewEndState(id, viewName string) *EndState {
	return &EndState{StateBase: StateBase{StateID: id}, ViewName: viewName}
}

// StateKind names the variant of s, for logs, metrics and graphs.
func StateKind(s State) string {
	switch s.(type) {
	case *ActionState:
		return "action"
	case *ViewState:
		return "view"
	case *SubflowState:
		return "subflow"
	case *EndState:
		return "end"
	default:
		return "unknown"
	}
}
