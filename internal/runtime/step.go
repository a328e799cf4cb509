package runtime

import (
	"errors"

	"github.com/aretw0/pergola/pkg/domain"
)

// FailureAttribute is the request scope key holding the message of a handled failure.
const FailureAttribute = "failure"

// maxHandledFailures bounds exception handler transitions within one request, so that a
// handler target failing with the same error cannot loop forever.
const maxHandledFailures = 16

// step is the outcome of entering one state: either a next state to enter or a
// selection to return (pause or end).
type step struct {
	next domain.State
	view domain.ViewSelection
	done bool
}

// process runs begin and then enters states until the execution pauses or ends.
// begin returns the first state to enter.
func (e *FlowExecution) process(rc *requestContext, begin func() (domain.State, error)) (domain.ViewSelection, error) {
	handled := 0
	next, err := begin()
	for {
		if err != nil {
			next, err = e.handleFailure(rc, err, &handled)
			if err != nil {
				return domain.ViewSelection{}, err
			}
		}
		var s step
		s, err = e.enter(rc, next)
		if err != nil {
			continue
		}
		if s.done {
			return s.view, nil
		}
		next = s.next
	}
}

// handleFailure offers err to the active state's handlers, then to its flow's handlers.
// It returns the handler's target, or err unchanged when no handler claims it.
func (e *FlowExecution) handleFailure(rc *requestContext, err error, handled *int) (domain.State, error) {
	if errors.Is(err, domain.ErrNoMatchingTransition) || errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrFlowNotResolved) {
		return nil, err
	}
	session := e.ActiveSession()
	if session == nil || *handled >= maxHandledFailures {
		return nil, err
	}
	h := session.Definition().HandlerFor(session.State(), err)
	if h == nil || h.Target() == nil {
		return nil, err
	}
	*handled++
	e.logger.Warn("state failure handled",
		"flow", session.Definition().ID(),
		"state", session.StateID(),
		"handler", h.Name,
		"target", h.TargetStateID,
		"err", err)
	rc.request.Put(FailureAttribute, err.Error())
	return h.Target(), nil
}

// enter moves the active session to state and runs the state's behavior.
func (e *FlowExecution) enter(rc *requestContext, state domain.State) (step, error) {
	session := e.ActiveSession()
	if err := e.notify(func(l domain.Listener) error { return l.StateEntering(rc, state) }); err != nil {
		return step{}, err
	}
	previous := session.State()
	session.SetState(state)
	session.SetStatus(domain.SessionActive)
	e.logger.Debug("entered state", "flow", session.Definition().ID(), "state", state.ID(), "kind", domain.StateKind(state))
	if err := e.notify(func(l domain.Listener) error { return l.StateEntered(rc, previous, state) }); err != nil {
		return step{}, err
	}

	for _, action := range state.Base().EntryActions {
		if _, err := action.Execute(rc); err != nil {
			return step{}, err
		}
	}

	switch st := state.(type) {
	case *domain.ActionState:
		return e.enterAction(rc, session, st)
	case *domain.ViewState:
		return e.enterView(rc, session, st)
	case *domain.SubflowState:
		return e.enterSubflow(rc, session, st)
	case *domain.EndState:
		return e.enterEnd(rc, session, st)
	default:
		return step{}, &domain.ConfigurationError{FlowID: session.Definition().ID(), StateID: state.ID(), Reason: "unsupported state variant"}
	}
}

// enterAction runs the actions in order. The first outcome with a matching transition wins.
func (e *FlowExecution) enterAction(rc *requestContext, session *domain.FlowSession, st *domain.ActionState) (step, error) {
	var last string
	for _, action := range st.Actions {
		ev, err := action.Execute(rc)
		if err != nil {
			return step{}, err
		}
		if ev.ID == "" {
			continue
		}
		last = ev.ID
		rc.setLastEvent(ev)
		if err := e.notify(func(l domain.Listener) error { return l.EventSignaled(rc, ev) }); err != nil {
			return step{}, err
		}
		if t := session.Definition().TransitionFor(st, ev.ID); t != nil {
			return step{next: t.Target()}, nil
		}
	}
	return step{}, &domain.NoMatchingTransitionError{FlowID: session.Definition().ID(), StateID: st.ID(), EventID: last}
}

func (e *FlowExecution) enterView(rc *requestContext, session *domain.FlowSession, st *domain.ViewState) (step, error) {
	model := domain.NewScope()
	if len(st.Model) == 0 {
		model.PutAll(session.Scope())
	} else {
		for _, key := range st.Model {
			if v, ok := session.Scope()[key]; ok {
				model[key] = v
			}
		}
	}
	model.PutAll(rc.request)

	view := domain.ApplicationView(st.View(), model)
	session.SetStatus(domain.SessionPaused)
	e.logger.Debug("flow execution paused", "flow", session.Definition().ID(), "state", st.ID(), "view", view.ViewName)
	if err := e.notify(func(l domain.Listener) error { return l.Paused(rc, view) }); err != nil {
		return step{}, err
	}
	return step{view: view, done: true}, nil
}

func (e *FlowExecution) enterSubflow(rc *requestContext, session *domain.FlowSession, st *domain.SubflowState) (step, error) {
	input := domain.NewScope()
	if st.InputMapper != nil {
		if err := st.InputMapper.MapAttributes(rc, session.Scope(), input); err != nil {
			return step{}, err
		}
	}
	session.SetStatus(domain.SessionSuspended)
	next, err := e.spawn(rc, st.Subflow, input)
	if err != nil {
		return step{}, err
	}
	return step{next: next}, nil
}

// enterEnd ends the active session. A root end finishes the execution; a sub-flow end resumes
// the parent on the transition matching the end state id.
func (e *FlowExecution) enterEnd(rc *requestContext, session *domain.FlowSession, st *domain.EndState) (step, error) {
	output := domain.NewScope()
	if st.OutputMapper != nil {
		if err := st.OutputMapper.MapAttributes(rc, session.Scope(), output); err != nil {
			return step{}, err
		}
	} else {
		output = session.Scope().Clone()
	}

	if err := e.notify(func(l domain.Listener) error { return l.SessionEnding(rc, session, output) }); err != nil {
		return step{}, err
	}
	e.pop()
	session.SetStatus(domain.SessionEnded)
	e.logger.Debug("session ended", "flow", session.Definition().ID(), "state", st.ID(), "depth", e.Depth())
	if err := e.notify(func(l domain.Listener) error { return l.SessionEnded(rc, session, output) }); err != nil {
		return step{}, err
	}

	parent := e.ActiveSession()
	if parent == nil {
		model := output.Clone()
		model.PutAll(rc.request)
		return step{view: domain.EndView(st.View(), model), done: true}, nil
	}

	sub, ok := parent.State().(*domain.SubflowState)
	if !ok {
		return step{}, &domain.ConfigurationError{FlowID: parent.Definition().ID(), StateID: parent.StateID(), Reason: "parent session is not in a sub-flow state"}
	}
	parent.SetStatus(domain.SessionActive)
	if err := e.notify(func(l domain.Listener) error { return l.Resumed(rc) }); err != nil {
		return step{}, err
	}
	if sub.OutputMapper != nil {
		if err := sub.OutputMapper.MapAttributes(rc, output, parent.Scope()); err != nil {
			return step{}, err
		}
	}
	next, err := e.transitionOn(rc, parent, sub, domain.Event{ID: st.ID(), Attributes: domain.CopyMap(output)})
	if err != nil {
		return step{}, err
	}
	return step{next: next}, nil
}

// spawn pushes a session for flow and returns its start state.
// Without an input mapper the input is copied into the new flow scope. The input is mapped
// before the session is announced, so a mapping failure belongs to the caller's state and
// never leaves a session on the stack that was not started.
func (e *FlowExecution) spawn(rc *requestContext, flow *domain.Flow, input map[string]any) (domain.State, error) {
	if !flow.Resolved() {
		return nil, &domain.ConfigurationError{FlowID: flow.ID(), Reason: domain.ErrFlowNotResolved.Error()}
	}
	scope := domain.NewScope()
	if flow.InputMapper != nil {
		if err := flow.InputMapper.MapAttributes(rc, input, scope); err != nil {
			return nil, err
		}
	} else {
		scope.PutAll(domain.CopyMap(input))
	}

	if err := e.notify(func(l domain.Listener) error { return l.SessionStarting(rc, flow, input) }); err != nil {
		return nil, err
	}
	session := domain.NewFlowSession(flow, e.ActiveSession())
	session.SetStatus(domain.SessionStarting)
	session.Scope().PutAll(scope)
	e.push(session)
	e.logger.Debug("session started", "flow", flow.ID(), "depth", e.Depth())

	if err := e.notify(func(l domain.Listener) error { return l.SessionStarted(rc, session) }); err != nil {
		return nil, err
	}
	return flow.StartState(), nil
}

// transitionOn resolves the transition out of state for ev.
func (e *FlowExecution) transitionOn(rc *requestContext, session *domain.FlowSession, state domain.State, ev domain.Event) (domain.State, error) {
	rc.setLastEvent(ev)
	if err := e.notify(func(l domain.Listener) error { return l.EventSignaled(rc, ev) }); err != nil {
		return nil, err
	}
	t := session.Definition().TransitionFor(state, ev.ID)
	if t == nil {
		return nil, &domain.NoMatchingTransitionError{FlowID: session.Definition().ID(), StateID: state.ID(), EventID: ev.ID}
	}
	return t.Target(), nil
}

func (e *FlowExecution) push(session *domain.FlowSession) {
	e.sessions = append(e.sessions, session)
}

func (e *FlowExecution) pop() *domain.FlowSession {
	top := e.sessions[len(e.sessions)-1]
	e.sessions[len(e.sessions)-1] = nil
	e.sessions = e.sessions[:len(e.sessions)-1]
	return top
}
