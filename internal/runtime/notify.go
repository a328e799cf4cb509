package runtime

import "github.com/aretw0/pergola/pkg/domain"

// notify calls fn for every listener in order and stops at the first error,
// which is returned unchanged.
func (e *FlowExecution) notify(fn func(domain.Listener) error) error {
	for _, l := range e.listeners {
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}

// checkpoint is a deep copy of the mutable execution state taken before a request.
type checkpoint struct {
	sessions     []*domain.FlowSession
	conversation domain.Scope
	started      bool
}

func (e *FlowExecution) checkpoint() checkpoint {
	cp := checkpoint{
		sessions:     make([]*domain.FlowSession, 0, len(e.sessions)),
		conversation: e.conversation.Clone(),
		started:      e.started,
	}
	var parent *domain.FlowSession
	for _, s := range e.sessions {
		c := domain.NewFlowSession(s.Definition(), parent)
		c.SetState(s.State())
		c.SetScope(s.Scope().Clone())
		c.SetStatus(s.Status())
		cp.sessions = append(cp.sessions, c)
		parent = c
	}
	return cp
}

// rollback discards everything a failed request did.
func (e *FlowExecution) rollback(cp checkpoint) {
	e.sessions = cp.sessions
	e.conversation = cp.conversation
	e.started = cp.started
}
