package session

import (
	"sync"

	"github.com/aretw0/pergola/pkg/domain"
)

// SharedMap is a mutex-guarded attribute map shared between conversations,
// for example application-wide counters handed to actions through the external context.
type SharedMap struct {
	mu    sync.Mutex
	attrs domain.Scope
}

// NewSharedMap creates an empty shared map.
func NewSharedMap() *SharedMap {
	return &SharedMap{attrs: domain.NewScope()}
}

// WithLock runs fn with exclusive access to the attributes.
func (s *SharedMap) WithLock(fn func(attrs domain.Scope) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.attrs)
}

var _ domain.SharedMap = (*SharedMap)(nil)
