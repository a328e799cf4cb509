package runtime

import (
	"context"

	"github.com/aretw0/pergola/pkg/domain"
)

// requestContext lives for one Start or SignalEvent call.
type requestContext struct {
	ctx       context.Context
	exec      *FlowExecution
	ext       domain.ExternalContext
	request   domain.Scope
	lastEvent *domain.Event
}

func newRequestContext(ctx context.Context, exec *FlowExecution, ext domain.ExternalContext) *requestContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if ext == nil {
		ext = domain.EmptyExternalContext()
	}
	return &requestContext{
		ctx:     ctx,
		exec:    exec,
		ext:     ext,
		request: domain.NewScope(),
	}
}

func (rc *requestContext) Context() context.Context          { return rc.ctx }
func (rc *requestContext) Execution() domain.Execution        { return rc.exec }
func (rc *requestContext) ActiveSession() *domain.FlowSession { return rc.exec.ActiveSession() }
func (rc *requestContext) ConversationScope() domain.Scope    { return rc.exec.ConversationScope() }
func (rc *requestContext) RequestScope() domain.Scope         { return rc.request }
func (rc *requestContext) External() domain.ExternalContext   { return rc.ext }

func (rc *requestContext) CurrentState() domain.State {
	if s := rc.exec.ActiveSession(); s != nil {
		return s.State()
	}
	return nil
}

// FlowScope returns the active session's scope. Once the execution ended it is a
// throwaway empty scope.
func (rc *requestContext) FlowScope() domain.Scope {
	if s := rc.exec.ActiveSession(); s != nil {
		return s.Scope()
	}
	return domain.NewScope()
}

func (rc *requestContext) LastEvent() (domain.Event, bool) {
	if rc.lastEvent == nil {
		return domain.Event{}, false
	}
	return *rc.lastEvent, true
}

func (rc *requestContext) setLastEvent(ev domain.Event) {
	rc.lastEvent = &ev
}
