package listener

import (
	"errors"
	"reflect"
	"sync"

	"github.com/aretw0/pergola/pkg/domain"
)

// ErrNotComparable is returned for listeners whose dynamic type cannot serve as identity,
// such as func or map types. Use pointer receivers.
var ErrNotComparable = errors.New("listener type is not comparable")

type entry struct {
	listener domain.Listener
	criteria anyOf
}

// Loader holds listeners with the criteria selecting the flows they observe.
// Listeners are identified by value; adding the same listener again merges its criteria.
type Loader struct {
	mu      sync.RWMutex
	entries map[domain.Listener]*entry
	order   []*entry
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{entries: make(map[domain.Listener]*entry)}
}

// Add registers l for flows accepted by any of criteria; no criteria means all flows.
func (ld *Loader) Add(l domain.Listener, criteria ...Criteria) error {
	if l == nil {
		return errors.New("listener is nil")
	}
	if !reflect.TypeOf(l).Comparable() {
		return ErrNotComparable
	}
	if len(criteria) == 0 {
		criteria = []Criteria{AllFlows()}
	}

	ld.mu.Lock()
	defer ld.mu.Unlock()
	if e, ok := ld.entries[l]; ok {
		e.criteria = append(e.criteria, criteria...)
		return nil
	}
	e := &entry{listener: l, criteria: append(anyOf(nil), criteria...)}
	ld.entries[l] = e
	ld.order = append(ld.order, e)
	return nil
}

// MustAdd is like Add but panics on error.
func (ld *Loader) MustAdd(l domain.Listener, criteria ...Criteria) {
	if err := ld.Add(l, criteria...); err != nil {
		panic(err)
	}
}

// Remove unregisters l. It reports whether l was registered.
func (ld *Loader) Remove(l domain.Listener) bool {
	if l == nil || !reflect.TypeOf(l).Comparable() {
		return false
	}
	ld.mu.Lock()
	defer ld.mu.Unlock()
	e, ok := ld.entries[l]
	if !ok {
		return false
	}
	delete(ld.entries, l)
	for i, candidate := range ld.order {
		if candidate == e {
			ld.order = append(ld.order[:i], ld.order[i+1:]...)
			break
		}
	}
	return true
}

// Listeners returns the listeners observing flow, in registration order.
func (ld *Loader) Listeners(flow *domain.Flow) []domain.Listener {
	ld.mu.RLock()
	defer ld.mu.RUnlock()
	out := make([]domain.Listener, 0, len(ld.order))
	for _, e := range ld.order {
		if e.criteria.AppliesTo(flow) {
			out = append(out, e.listener)
		}
	}
	return out
}

// Len returns the number of distinct listeners.
func (ld *Loader) Len() int {
	ld.mu.RLock()
	defer ld.mu.RUnlock()
	return len(ld.order)
}
