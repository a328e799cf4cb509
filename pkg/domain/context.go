package domain

import (
	"context"

	"github.com/mitchellh/mapstructure"
)

// Execution is the read-only view of a flow execution exposed to actions and listeners.
type Execution interface {
	Definition() *Flow
	IsActive() bool
	ActiveSession() *FlowSession
	Depth() int
	ConversationScope() Scope

	// Key is zero until a repository stores the execution.
	Key() ContinuationKey
}

// RequestContext is handed to actions, mappers and listeners for the duration of one
// Start or SignalEvent call.
type RequestContext interface {
	Context() context.Context
	Execution() Execution

	// ActiveSession is nil once the execution ended.
	ActiveSession() *FlowSession
	CurrentState() State

	FlowScope() Scope
	ConversationScope() Scope
	RequestScope() Scope

	External() ExternalContext

	// LastEvent is the last event signaled or emitted during this request.
	LastEvent() (Event, bool)
}

// SharedMap is a caller-owned attribute map shared beyond one conversation.
// Access always goes through WithLock; the engine never inspects it.
type SharedMap interface {
	WithLock(fn func(attrs Scope) error) error
}

// ExternalContext is the opaque per-invocation bag supplied by the transport adapter.
type ExternalContext interface {
	Parameters() map[string]any
	SharedScope() SharedMap
}

type externalContext struct {
	params map[string]any
	shared SharedMap
}

func (c *externalContext) Parameters() map[string]any { return c.params }
func (c *externalContext) SharedScope() SharedMap     { return c.shared }

// NewExternalContext wraps request parameters and an optional shared map (may be nil).
func NewExternalContext(params map[string]any, shared SharedMap) ExternalContext {
	if params == nil {
		params = map[string]any{}
	}
	return &externalContext{params: params, shared: shared}
}

// EmptyExternalContext is used when a caller supplies none.
func EmptyExternalContext() ExternalContext {
	return NewExternalContext(nil, nil)
}

// DecodeParameters decodes the external parameters into out (a pointer to a struct).
func DecodeParameters(ext ExternalContext, out any) error {
	if ext == nil {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "json",
	})
	if err != nil {
		return err
	}
	return dec.Decode(ext.Parameters())
}
