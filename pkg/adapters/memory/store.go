package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/ports"
)

// Store implements ports.ConversationStore in process memory.
// Records are kept serialized so callers never share state with the store, and expire after
// the configured TTL like a session-scoped store would. Safe for concurrent use.
type Store struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL expires conversations ttl after their last save. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	expiration := gocache.NoExpiration
	if s.ttl > 0 {
		expiration = s.ttl
	}
	s.cache = gocache.New(expiration, 10*time.Minute)
	return s
}

// Save persists the conversation in memory, refreshing its expiration.
func (s *Store) Save(_ context.Context, conv *domain.Conversation) error {
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	s.cache.Set(conv.ID, raw, gocache.DefaultExpiration)
	return nil
}

// Load retrieves a copy of the conversation.
func (s *Store) Load(_ context.Context, conversationID string) (*domain.Conversation, error) {
	v, ok := s.cache.Get(conversationID)
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	var conv domain.Conversation
	if err := json.Unmarshal(v.([]byte), &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

// Delete removes the conversation.
func (s *Store) Delete(_ context.Context, conversationID string) error {
	s.cache.Delete(conversationID)
	return nil
}

// List returns the ids of unexpired conversations, sorted.
func (s *Store) List(_ context.Context) ([]string, error) {
	items := s.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var _ ports.ConversationStore = (*Store)(nil)
