package dsl

import (
	"errors"
	"fmt"

	"github.com/aretw0/pergola/pkg/domain"
)

// Builder manages the construction of one flow.
type Builder struct {
	flow   *domain.Flow
	states []*StateBuilder
	byID   map[string]*StateBuilder
	errs   []error
}

// New creates a builder for the flow id.
func New(id string) *Builder {
	return &Builder{
		flow: domain.NewFlow(id),
		byID: make(map[string]*StateBuilder),
	}
}

// Start designates the start state. Defaults to the first state added.
func (b *Builder) Start(stateID string) *Builder {
	b.flow.StartStateID = stateID
	return b
}

// Global adds a flow-wide transition consulted after the state's own transitions.
func (b *Builder) Global(event string, target string) *Builder {
	b.flow.GlobalTransitions = append(b.flow.GlobalTransitions, domain.NewTransition(domain.ParseCriteria(event), target))
	return b
}

// Catch adds a flow-wide exception handler.
func (b *Builder) Catch(name string, matcher domain.ErrorMatcher, target string) *Builder {
	b.flow.ExceptionHandlers = append(b.flow.ExceptionHandlers, domain.NewExceptionHandler(name, matcher, target))
	return b
}

// Input sets the mapper filling the flow scope from the session input.
func (b *Builder) Input(mapper domain.AttributeMapper) *Builder {
	b.flow.InputMapper = mapper
	return b
}

// Attr sets a flow attribute.
func (b *Builder) Attr(key string, value any) *Builder {
	if b.flow.Attributes == nil {
		b.flow.Attributes = make(map[string]any)
	}
	b.flow.Attributes[key] = value
	return b
}

// View adds a view state. The view name defaults to the state id.
func (b *Builder) View(id string) *StateBuilder {
	return b.add(domain.NewViewState(id, ""))
}

// Action adds an action state running actions in order.
func (b *Builder) Action(id string, actions ...domain.Action) *StateBuilder {
	return b.add(domain.NewActionState(id, actions...))
}

// Subflow adds a state delegating to flow.
func (b *Builder) Subflow(id string, flow *domain.Flow) *StateBuilder {
	return b.add(domain.NewSubflowState(id, flow))
}

// End adds an end state. The terminal view name defaults to the state id.
func (b *Builder) End(id string) *StateBuilder {
	return b.add(domain.NewEndState(id, ""))
}

// State returns the builder of an already added state.
func (b *Builder) State(id string) (*StateBuilder, bool) {
	sb, ok := b.byID[id]
	return sb, ok
}

func (b *Builder) add(state domain.State) *StateBuilder {
	sb := &StateBuilder{state: state, builder: b}
	if _, exists := b.byID[state.ID()]; exists {
		b.errs = append(b.errs, &domain.ConfigurationError{FlowID: b.flow.FlowID, StateID: state.ID(), Reason: "duplicate state id"})
		return sb
	}
	b.byID[state.ID()] = sb
	b.states = append(b.states, sb)
	return sb
}

// Build adds the states to the flow and resolves every target state.
func (b *Builder) Build() (*domain.Flow, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	for _, sb := range b.states {
		if err := b.flow.AddState(sb.state); err != nil {
			return nil, err
		}
	}
	if err := b.flow.Resolve(); err != nil {
		return nil, fmt.Errorf("failed to resolve flow '%s': %w", b.flow.FlowID, err)
	}
	return b.flow, nil
}

// MustBuild is like Build but panics on error. Intended for tests and static definitions.
func (b *Builder) MustBuild() *domain.Flow {
	flow, err := b.Build()
	if err != nil {
		panic(err)
	}
	return flow
}
