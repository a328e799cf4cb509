package domain

// Action is a unit of business logic run by action states and as entry actions.
// The returned event id drives the transition out of an action state; entry actions'
// events are ignored.
type Action interface {
	Execute(rc RequestContext) (Event, error)
}

// ActionFunc adapts a function to Action.
type ActionFunc func(rc RequestContext) (Event, error)

func (f ActionFunc) Execute(rc RequestContext) (Event, error) { return f(rc) }

// NamedAction is an action with a name, as registered in an action registry.
type NamedAction struct {
	Name   string
	Action Action
}

func (a *NamedAction) Execute(rc RequestContext) (Event, error) {
	return a.Action.Execute(rc)
}

// Named wraps action with a name.
func Named(name string, action Action) *NamedAction {
	return &NamedAction{Name: name, Action: action}
}

// ActionName returns the registered name of a, or "" for anonymous actions.
func ActionName(a Action) string {
	if n, ok := a.(*NamedAction); ok {
		return n.Name
	}
	return ""
}

// Succeed returns an action that always emits eventID.
func Succeed(eventID string) Action {
	return ActionFunc(func(RequestContext) (Event, error) {
		return NewEvent(eventID), nil
	})
}
