package domain

import "fmt"

// Flow is an immutable graph of states once resolved. It is safe to share a resolved
// flow between any number of concurrent executions.
type Flow struct {
	FlowID       string
	StartStateID string

	// GlobalTransitions are consulted after the current state's own transitions.
	GlobalTransitions []*Transition

	// ExceptionHandlers apply flow-wide, after the state-level handlers.
	ExceptionHandlers []*ExceptionHandler

	// InputMapper fills the flow scope from the session input.
	// Nil copies the input into flow scope as is.
	InputMapper AttributeMapper

	Attributes map[string]any

	states   []State
	index    map[string]State
	resolved bool
}

// NewFlow creates an empty, unresolved flow.
func NewFlow(id string) *Flow {
	return &Flow{FlowID: id, index: make(map[string]State)}
}

// ID returns the flow identifier.
func (f *Flow) ID() string { return f.FlowID }

// AddState appends s to the flow. The first added state is the default start state.
func (f *Flow) AddState(s State) error {
	if f.resolved {
		return &ConfigurationError{FlowID: f.FlowID, StateID: s.ID(), Reason: "flow already resolved"}
	}
	if s.ID() == "" {
		return &ConfigurationError{FlowID: f.FlowID, Reason: "state id is empty"}
	}
	if f.index == nil {
		f.index = make(map[string]State)
	}
	if _, exists := f.index[s.ID()]; exists {
		return &ConfigurationError{FlowID: f.FlowID, StateID: s.ID(), Reason: "duplicate state id"}
	}
	s.Base().flow = f
	f.states = append(f.states, s)
	f.index[s.ID()] = s
	return nil
}

// States returns the states in declaration order.
func (f *Flow) States() []State {
	out := make([]State, len(f.states))
	copy(out, f.states)
	return out
}

// State looks up a state by id.
func (f *Flow) State(id string) (State, bool) {
	s, ok := f.index[id]
	return s, ok
}

// StartState returns the designated start state, nil for an empty flow.
func (f *Flow) StartState() State {
	if f.StartStateID != "" {
		return f.index[f.StartStateID]
	}
	if len(f.states) > 0 {
		return f.states[0]
	}
	return nil
}

// Resolved reports whether Resolve succeeded.
func (f *Flow) Resolved() bool { return f.resolved }

// TransitionFor returns the first transition out of state matching eventID, trying
// the state's transitions before the flow's global ones.
func (f *Flow) TransitionFor(state State, eventID string) *Transition {
	if t := state.Base().TransitionFor(eventID); t != nil {
		return t
	}
	return firstMatching(f.GlobalTransitions, eventID)
}

// HandlerFor returns the first exception handler claiming err, trying the state's
// handlers before the flow's.
func (f *Flow) HandlerFor(state State, err error) *ExceptionHandler {
	if state != nil {
		if h := state.Base().HandlerFor(err); h != nil {
			return h
		}
	}
	return firstHandler(f.ExceptionHandlers, err)
}

// Resolve binds every transition and exception handler target id to a state of this flow
// and resolves referenced sub-flows. It fails on the first unknown target.
func (f *Flow) Resolve() error {
	if f.resolved {
		return nil
	}
	if len(f.states) == 0 {
		return &ConfigurationError{FlowID: f.FlowID, Reason: "flow has no states"}
	}
	if f.StartState() == nil {
		return &ConfigurationError{FlowID: f.FlowID, StateID: f.StartStateID, Reason: "start state not found"}
	}

	for _, s := range f.states {
		base := s.Base()
		for _, t := range base.Transitions {
			if err := f.bindTransition(s.ID(), t); err != nil {
				return err
			}
		}
		for _, h := range base.ExceptionHandlers {
			if err := f.bindHandler(s.ID(), h); err != nil {
				return err
			}
		}
		switch st := s.(type) {
		case *ActionState:
			if len(st.Actions) == 0 && len(st.EntryActions) == 0 {
				return &ConfigurationError{FlowID: f.FlowID, StateID: st.StateID, Reason: "action state has no actions"}
			}
		case *SubflowState:
			if st.Subflow == nil {
				return &ConfigurationError{FlowID: f.FlowID, StateID: st.StateID, Reason: "sub-flow is nil"}
			}
		}
	}
	for _, t := range f.GlobalTransitions {
		if err := f.bindTransition("", t); err != nil {
			return err
		}
	}
	for _, h := range f.ExceptionHandlers {
		if err := f.bindHandler("", h); err != nil {
			return err
		}
	}

	// Marked before descending so that recursive sub-flow references terminate.
	f.resolved = true
	for _, s := range f.states {
		sub, ok := s.(*SubflowState)
		if !ok || sub.Subflow.resolved {
			continue
		}
		if err := sub.Subflow.Resolve(); err != nil {
			f.resolved = false
			return fmt.Errorf("sub-flow of state '%s' in flow '%s': %w", sub.StateID, f.FlowID, err)
		}
	}
	return nil
}

func (f *Flow) bindTransition(stateID string, t *Transition) error {
	if t.Criteria == nil {
		return &ConfigurationError{FlowID: f.FlowID, StateID: stateID, Reason: "transition has no criteria"}
	}
	target, ok := f.index[t.TargetStateID]
	if !ok {
		return &ConfigurationError{
			FlowID:  f.FlowID,
			StateID: stateID,
			Reason:  fmt.Sprintf("transition on '%s' targets unknown state '%s'", t.Criteria, t.TargetStateID),
		}
	}
	t.target = target
	return nil
}

func (f *Flow) bindHandler(stateID string, h *ExceptionHandler) error {
	if h.Matcher == nil {
		return &ConfigurationError{FlowID: f.FlowID, StateID: stateID, Reason: fmt.Sprintf("exception handler '%s' has no matcher", h.Name)}
	}
	target, ok := f.index[h.TargetStateID]
	if !ok {
		return &ConfigurationError{
			FlowID:  f.FlowID,
			StateID: stateID,
			Reason:  fmt.Sprintf("exception handler '%s' targets unknown state '%s'", h.Name, h.TargetStateID),
		}
	}
	h.target = target
	return nil
}
