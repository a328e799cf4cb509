package listener

import "github.com/aretw0/pergola/pkg/domain"

// Adapter implements domain.Listener with no-ops. Embed it and override what you need.
type Adapter struct{}

func (Adapter) RequestSubmitted(domain.RequestContext) error { return nil }
func (Adapter) RequestProcessed(domain.RequestContext) error { return nil }
func (Adapter) SessionStarting(domain.RequestContext, *domain.Flow, map[string]any) error {
	return nil
}
func (Adapter) SessionStarted(domain.RequestContext, *domain.FlowSession) error { return nil }
func (Adapter) EventSignaled(domain.RequestContext, domain.Event) error        { return nil }
func (Adapter) StateEntering(domain.RequestContext, domain.State) error        { return nil }
func (Adapter) StateEntered(domain.RequestContext, domain.State, domain.State) error {
	return nil
}
func (Adapter) Paused(domain.RequestContext, domain.ViewSelection) error { return nil }
func (Adapter) Resumed(domain.RequestContext) error                      { return nil }
func (Adapter) SessionEnding(domain.RequestContext, *domain.FlowSession, map[string]any) error {
	return nil
}
func (Adapter) SessionEnded(domain.RequestContext, *domain.FlowSession, map[string]any) error {
	return nil
}
func (Adapter) Created(domain.Execution) error                               { return nil }
func (Adapter) Loaded(domain.Execution, domain.ContinuationKey) error        { return nil }
func (Adapter) Saved(domain.Execution, domain.ContinuationKey) error         { return nil }
func (Adapter) Removed(domain.Execution, string) error                       { return nil }

var _ domain.Listener = Adapter{}
