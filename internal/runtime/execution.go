package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/pergola/internal/logging"
	"github.com/aretw0/pergola/pkg/domain"
)

// FlowExecution is the runtime state machine of one conversation.
// It is not safe for concurrent use; callers serialize access per conversation.
type FlowExecution struct {
	flow         *domain.Flow
	listeners    []domain.Listener
	sessions     []*domain.FlowSession
	conversation domain.Scope
	started      bool
	key          domain.ContinuationKey
	logger       *slog.Logger
}

// Option configures a FlowExecution.
type Option func(*FlowExecution)

// WithLogger sets the logger. Lifecycle steps are logged at Debug.
func WithLogger(logger *slog.Logger) Option {
	return func(e *FlowExecution) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithListeners sets the ordered listener set, frozen for the execution's lifetime.
func WithListeners(listeners ...domain.Listener) Option {
	return func(e *FlowExecution) {
		e.listeners = append([]domain.Listener(nil), listeners...)
	}
}

// NewFlowExecution creates an idle execution of flow.
func NewFlowExecution(flow *domain.Flow, opts ...Option) *FlowExecution {
	e := &FlowExecution{
		flow:         flow,
		conversation: domain.NewScope(),
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Definition returns the root flow.
func (e *FlowExecution) Definition() *domain.Flow { return e.flow }

// IsActive reports whether any session remains on the stack.
func (e *FlowExecution) IsActive() bool { return len(e.sessions) > 0 }

// Started reports whether Start was called successfully at least once.
func (e *FlowExecution) Started() bool { return e.started }

// ActiveSession returns the top of the session stack, nil when inactive.
func (e *FlowExecution) ActiveSession() *domain.FlowSession {
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[len(e.sessions)-1]
}

// RootSession returns the bottom of the session stack, nil when inactive.
func (e *FlowExecution) RootSession() *domain.FlowSession {
	if len(e.sessions) == 0 {
		return nil
	}
	return e.sessions[0]
}

// Depth is the number of sessions on the stack.
func (e *FlowExecution) Depth() int { return len(e.sessions) }

// ConversationScope is shared by every session of the execution.
func (e *FlowExecution) ConversationScope() domain.Scope { return e.conversation }

// Key returns the continuation key the execution was last stored under or loaded from.
// It is zero for an execution that was never stored.
func (e *FlowExecution) Key() domain.ContinuationKey { return e.key }

// SetKey records the key assigned by a repository.
func (e *FlowExecution) SetKey(key domain.ContinuationKey) { e.key = key }

// Listeners returns the execution's listeners in notification order.
func (e *FlowExecution) Listeners() []domain.Listener {
	return append([]domain.Listener(nil), e.listeners...)
}

// PausedView returns the view state the execution is paused at, if any.
func (e *FlowExecution) PausedView() (*domain.ViewState, bool) {
	s := e.ActiveSession()
	if s == nil {
		return nil, false
	}
	view, ok := s.State().(*domain.ViewState)
	return view, ok
}

// Start spawns the root session with input and runs until the first pause or the end.
// A nil external context is replaced by an empty one.
func (e *FlowExecution) Start(ctx context.Context, input map[string]any, ext domain.ExternalContext) (domain.ViewSelection, error) {
	if e.started || e.IsActive() {
		return domain.ViewSelection{}, domain.ErrExecutionAlreadyStarted
	}
	if e.flow == nil || !e.flow.Resolved() {
		return domain.ViewSelection{}, fmt.Errorf("cannot start flow: %w", domain.ErrFlowNotResolved)
	}

	cp := e.checkpoint()
	e.started = true
	rc := newRequestContext(ctx, e, ext)
	e.logger.Debug("starting flow execution", "flow", e.flow.ID())

	view, err := e.process(rc, func() (domain.State, error) {
		if err := e.notify(func(l domain.Listener) error { return l.RequestSubmitted(rc) }); err != nil {
			return nil, err
		}
		return e.spawn(rc, e.flow, input)
	})
	return e.complete(rc, cp, view, err)
}

// SignalEvent resumes a paused execution with eventID.
func (e *FlowExecution) SignalEvent(ctx context.Context, eventID string, ext domain.ExternalContext) (domain.ViewSelection, error) {
	if !e.IsActive() {
		return domain.ViewSelection{}, domain.ErrExecutionNotActive
	}
	view, ok := e.PausedView()
	if !ok {
		return domain.ViewSelection{}, domain.ErrNotPaused
	}

	cp := e.checkpoint()
	rc := newRequestContext(ctx, e, ext)
	session := e.ActiveSession()
	e.logger.Debug("signaling event", "flow", session.Definition().ID(), "state", view.ID(), "event", eventID)

	result, err := e.process(rc, func() (domain.State, error) {
		if err := e.notify(func(l domain.Listener) error { return l.RequestSubmitted(rc) }); err != nil {
			return nil, err
		}
		session.SetStatus(domain.SessionActive)
		if err := e.notify(func(l domain.Listener) error { return l.Resumed(rc) }); err != nil {
			return nil, err
		}
		return e.transitionOn(rc, session, view, domain.NewEvent(eventID))
	})
	return e.complete(rc, cp, result, err)
}

// complete fires RequestProcessed and rolls back on failure.
// A listener failure is joined with the primary failure when both occur.
func (e *FlowExecution) complete(rc *requestContext, cp checkpoint, view domain.ViewSelection, err error) (domain.ViewSelection, error) {
	if err != nil {
		e.rollback(cp)
		e.logger.Debug("flow execution request failed", "flow", e.flow.ID(), "err", err)
	}
	if lerr := e.notify(func(l domain.Listener) error { return l.RequestProcessed(rc) }); lerr != nil {
		if err == nil {
			e.rollback(cp)
			return domain.ViewSelection{}, lerr
		}
		return domain.ViewSelection{}, errors.Join(err, lerr)
	}
	if err != nil {
		return domain.ViewSelection{}, err
	}
	return view, nil
}

// Snapshot captures the execution for storage.
func (e *FlowExecution) Snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		FlowID:            e.flow.ID(),
		Sessions:          make([]domain.SessionSnapshot, 0, len(e.sessions)),
		ConversationScope: domain.CopyMap(e.conversation),
	}
	for _, s := range e.sessions {
		snap.Sessions = append(snap.Sessions, domain.SessionSnapshot{
			FlowID:  s.Definition().ID(),
			StateID: s.StateID(),
			Scope:   domain.CopyMap(s.Scope()),
			Status:  s.Status(),
		})
	}
	return snap
}

// Restore rebuilds an execution of flow from snap. Nested flows are found through the
// sub-flow state their parent session is in.
func Restore(flow *domain.Flow, snap domain.Snapshot, opts ...Option) (*FlowExecution, error) {
	if flow == nil || !flow.Resolved() {
		return nil, fmt.Errorf("cannot restore flow: %w", domain.ErrFlowNotResolved)
	}
	if snap.FlowID != flow.ID() {
		return nil, fmt.Errorf("%w: snapshot of flow '%s' restored into '%s'", domain.ErrSnapshotMismatch, snap.FlowID, flow.ID())
	}

	e := NewFlowExecution(flow, opts...)
	e.started = true
	if snap.ConversationScope != nil {
		e.conversation = domain.Scope(domain.CopyMap(snap.ConversationScope))
	}

	var parent *domain.FlowSession
	for i, ss := range snap.Sessions {
		def := flow
		if parent != nil {
			sub, ok := parent.State().(*domain.SubflowState)
			if !ok || sub.Subflow.ID() != ss.FlowID {
				return nil, fmt.Errorf("%w: session %d of flow '%s' has no calling sub-flow state", domain.ErrSnapshotMismatch, i, ss.FlowID)
			}
			def = sub.Subflow
		} else if ss.FlowID != flow.ID() {
			return nil, fmt.Errorf("%w: root session of flow '%s' restored into '%s'", domain.ErrSnapshotMismatch, ss.FlowID, flow.ID())
		}

		state, ok := def.State(ss.StateID)
		if !ok {
			return nil, fmt.Errorf("%w: flow '%s' has no state '%s'", domain.ErrSnapshotMismatch, def.ID(), ss.StateID)
		}
		session := domain.NewFlowSession(def, parent)
		session.SetState(state)
		if ss.Scope != nil {
			session.SetScope(domain.Scope(domain.CopyMap(ss.Scope)))
		}
		session.SetStatus(ss.Status)
		e.sessions = append(e.sessions, session)
		parent = session
	}
	return e, nil
}
