package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/ports"
)

// Flows is an in-memory directory of resolved flow definitions.
type Flows struct {
	mu    sync.RWMutex
	flows map[string]*domain.Flow
}

// NewFlows creates a directory holding flows.
func NewFlows(flows ...*domain.Flow) (*Flows, error) {
	r := &Flows{flows: make(map[string]*domain.Flow)}
	for _, f := range flows {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds flow, resolving it first if needed.
// If a flow with the same id exists, it is overwritten.
func (r *Flows) Register(flow *domain.Flow) error {
	if flow == nil {
		return fmt.Errorf("cannot register nil flow")
	}
	if err := flow.Resolve(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[flow.ID()] = flow
	return nil
}

// GetFlow implements ports.FlowLocator.
func (r *Flows) GetFlow(id string) (*domain.Flow, error) {
	r.mu.RLock()
	flow, ok := r.flows[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrFlowNotFound, id)
	}
	return flow, nil
}

// FlowIDs implements ports.FlowLocator. Ids are sorted.
func (r *Flows) FlowIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.flows))
	for id := range r.flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var _ ports.FlowLocator = (*Flows)(nil)

// Actions manages named action implementations referenced by flow documents.
type Actions struct {
	mu      sync.RWMutex
	actions map[string]domain.Action
}

// NewActions creates an empty action registry.
func NewActions() *Actions {
	return &Actions{actions: make(map[string]domain.Action)}
}

// Register adds an action under name.
// If an action with the same name exists, it is overwritten.
func (r *Actions) Register(name string, action domain.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = action
}

// RegisterFunc is a shortcut for Register with a domain.ActionFunc.
func (r *Actions) RegisterFunc(name string, fn func(rc domain.RequestContext) (domain.Event, error)) {
	r.Register(name, domain.ActionFunc(fn))
}

// Lookup returns the action registered under name, wrapped with its name.
// Returns an error if the action is not found.
func (r *Actions) Lookup(name string) (domain.Action, error) {
	r.mu.RLock()
	action, ok := r.actions[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("action not found: %s", name)
	}
	return domain.Named(name, action), nil
}

// Names returns the registered action names, sorted.
func (r *Actions) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
