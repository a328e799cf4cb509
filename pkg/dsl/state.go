package dsl

import (
	"fmt"

	"github.com/aretw0/pergola/pkg/domain"
)

// StateBuilder provides a fluent API for configuring a state.
// Options that do not apply to the state variant are reported by Build.
type StateBuilder struct {
	state   domain.State
	builder *Builder
}

// On adds a transition. event may be an event id, "*" or a glob pattern.
func (s *StateBuilder) On(event string, target string) *StateBuilder {
	return s.Transition(domain.ParseCriteria(event), target)
}

// Otherwise adds a wildcard transition, usually declared last.
func (s *StateBuilder) Otherwise(target string) *StateBuilder {
	return s.Transition(domain.AnyEvent(), target)
}

// Transition adds a transition with explicit criteria.
func (s *StateBuilder) Transition(criteria domain.TransitionCriteria, target string) *StateBuilder {
	base := s.state.Base()
	base.Transitions = append(base.Transitions, domain.NewTransition(criteria, target))
	return s
}

// Catch adds a state-level exception handler.
func (s *StateBuilder) Catch(name string, matcher domain.ErrorMatcher, target string) *StateBuilder {
	base := s.state.Base()
	base.ExceptionHandlers = append(base.ExceptionHandlers, domain.NewExceptionHandler(name, matcher, target))
	return s
}

// Entry adds actions run every time the state is entered.
func (s *StateBuilder) Entry(actions ...domain.Action) *StateBuilder {
	base := s.state.Base()
	base.EntryActions = append(base.EntryActions, actions...)
	return s
}

// Do appends actions to an action state.
func (s *StateBuilder) Do(actions ...domain.Action) *StateBuilder {
	if st, ok := s.state.(*domain.ActionState); ok {
		st.Actions = append(st.Actions, actions...)
		return s
	}
	return s.invalid("Do")
}

// Render sets the view name of a view or end state.
func (s *StateBuilder) Render(viewName string) *StateBuilder {
	switch st := s.state.(type) {
	case *domain.ViewState:
		st.ViewName = viewName
	case *domain.EndState:
		st.ViewName = viewName
	default:
		return s.invalid("Render")
	}
	return s
}

// Model restricts the view model of a view state to the given flow scope keys.
func (s *StateBuilder) Model(keys ...string) *StateBuilder {
	if st, ok := s.state.(*domain.ViewState); ok {
		st.Model = append(st.Model, keys...)
		return s
	}
	return s.invalid("Model")
}

// Redirect flags a view state for redirect-after-pause.
func (s *StateBuilder) Redirect() *StateBuilder {
	if st, ok := s.state.(*domain.ViewState); ok {
		st.Redirect = true
		return s
	}
	return s.invalid("Redirect")
}

// Input sets the input mapper of a sub-flow state.
func (s *StateBuilder) Input(mapper domain.AttributeMapper) *StateBuilder {
	if st, ok := s.state.(*domain.SubflowState); ok {
		st.InputMapper = mapper
		return s
	}
	return s.invalid("Input")
}

// Output sets the output mapper of a sub-flow or end state.
func (s *StateBuilder) Output(mapper domain.AttributeMapper) *StateBuilder {
	switch st := s.state.(type) {
	case *domain.SubflowState:
		st.OutputMapper = mapper
	case *domain.EndState:
		st.OutputMapper = mapper
	default:
		return s.invalid("Output")
	}
	return s
}

// Attr sets a state attribute.
func (s *StateBuilder) Attr(key string, value any) *StateBuilder {
	base := s.state.Base()
	if base.Attributes == nil {
		base.Attributes = make(map[string]any)
	}
	base.Attributes[key] = value
	return s
}

// Build returns the underlying state.
// This is primarily used by the Builder, but exposed for advanced usage.
func (s *StateBuilder) Build() domain.State {
	return s.state
}

func (s *StateBuilder) invalid(option string) *StateBuilder {
	s.builder.errs = append(s.builder.errs, &domain.ConfigurationError{
		FlowID:  s.builder.flow.FlowID,
		StateID: s.state.ID(),
		Reason:  fmt.Sprintf("%s does not apply to a %s state", option, domain.StateKind(s.state)),
	})
	return s
}

// Builder returns the owning flow builder, to continue chaining.
func (s *StateBuilder) Builder() *Builder {
	return s.builder
}
