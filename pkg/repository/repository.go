package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/pergola/internal/logging"
	"github.com/aretw0/pergola/internal/runtime"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/aretw0/pergola/pkg/ports"
	"github.com/aretw0/pergola/pkg/session"
)

// DefaultMaxContinuations is the number of continuations kept per conversation.
// Older keys fail with domain.ErrContinuationNotFound.
const DefaultMaxContinuations = 5

// Repository creates, stores and restores flow executions under continuation keys.
//
// GetFlowExecution and PutFlowExecution do not lock: callers serialize a get/signal/put
// round trip with WithConversationLock.
type Repository struct {
	flows            ports.FlowLocator
	store            ports.ConversationStore
	listeners        *listener.Loader
	locks            *session.Manager
	keys             ports.KeyGenerator
	maxContinuations int
	now              func() time.Time
	logger           *slog.Logger
}

// Option configures the Repository.
type Option func(*Repository)

// WithListenerLoader sets the loader selecting listeners for new and restored executions.
func WithListenerLoader(loader *listener.Loader) Option {
	return func(r *Repository) {
		if loader != nil {
			r.listeners = loader
		}
	}
}

// WithLockManager shares a lock manager, e.g. one backed by a distributed locker.
func WithLockManager(locks *session.Manager) Option {
	return func(r *Repository) {
		if locks != nil {
			r.locks = locks
		}
	}
}

// WithKeyGenerator overrides UUIDKeys.
func WithKeyGenerator(keys ports.KeyGenerator) Option {
	return func(r *Repository) {
		if keys != nil {
			r.keys = keys
		}
	}
}

// WithMaxContinuations bounds the continuation history per conversation.
// 1 keeps only the latest continuation, so any older key is rejected.
func WithMaxContinuations(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.maxContinuations = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger configures a logger for the Repository and the executions it creates.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a repository over a flow locator and a conversation store.
func New(flows ports.FlowLocator, store ports.ConversationStore, opts ...Option) *Repository {
	r := &Repository{
		flows:            flows,
		store:            store,
		listeners:        listener.NewLoader(),
		locks:            session.NewManager(),
		keys:             UUIDKeys{},
		maxContinuations: DefaultMaxContinuations,
		now:              time.Now,
		logger:           logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying conversation store.
func (r *Repository) Store() ports.ConversationStore { return r.store }

// Flows returns the flow locator.
func (r *Repository) Flows() ports.FlowLocator { return r.flows }

// MaxContinuations returns the history bound.
func (r *Repository) MaxContinuations() int { return r.maxContinuations }

// CreateFlowExecution builds a fresh, unstarted execution of flowID with its listeners attached.
func (r *Repository) CreateFlowExecution(flowID string) (*runtime.FlowExecution, error) {
	flow, err := r.flows.GetFlow(flowID)
	if err != nil {
		return nil, err
	}
	exec := runtime.NewFlowExecution(flow,
		runtime.WithListeners(r.listeners.Listeners(flow)...),
		runtime.WithLogger(r.logger),
	)
	if err := notify(exec, func(l domain.Listener) error { return l.Created(exec) }); err != nil {
		return nil, err
	}
	r.logger.Debug("flow execution created", "flow", flowID)
	return exec, nil
}

// GenerateContinuationKey mints a key for exec. The conversation id of a stored or restored
// execution is kept; a new execution gets a fresh one.
func (r *Repository) GenerateContinuationKey(exec *runtime.FlowExecution) domain.ContinuationKey {
	conversationID := exec.Key().ConversationID
	if conversationID == "" {
		conversationID = r.keys.ConversationID()
	}
	return r.GenerateContinuationKeyFor(exec, conversationID)
}

// GenerateContinuationKeyFor mints a key in an explicit conversation.
func (r *Repository) GenerateContinuationKeyFor(_ *runtime.FlowExecution, conversationID string) domain.ContinuationKey {
	return domain.ContinuationKey{
		ConversationID: conversationID,
		ContinuationID: r.keys.ContinuationID(),
	}
}

// PutFlowExecution stores a snapshot of exec under key, appending it to the conversation's
// continuation history. Saved listeners run before the write; a failing listener leaves the
// stored record untouched.
func (r *Repository) PutFlowExecution(ctx context.Context, key domain.ContinuationKey, exec *runtime.FlowExecution) error {
	return r.put(ctx, key, exec, nil)
}

// PauseFlowExecution stores exec under key and caches view as the conversation's current
// view in the same write, so a pause is either fully stored or not at all.
func (r *Repository) PauseFlowExecution(ctx context.Context, key domain.ContinuationKey, exec *runtime.FlowExecution, view domain.ViewSelection) error {
	return r.put(ctx, key, exec, &view)
}

func (r *Repository) put(ctx context.Context, key domain.ContinuationKey, exec *runtime.FlowExecution, view *domain.ViewSelection) error {
	if err := key.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(exec.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to encode flow execution: %w", err)
	}

	conv, err := r.store.Load(ctx, key.ConversationID)
	switch {
	case errors.Is(err, domain.ErrConversationNotFound):
		conv = &domain.Conversation{
			ID:        key.ConversationID,
			FlowID:    exec.Definition().ID(),
			CreatedAt: r.now(),
		}
	case err != nil:
		return fmt.Errorf("failed to load conversation %s: %w", key.ConversationID, err)
	}

	previous := exec.Key()
	exec.SetKey(key)
	if err := notify(exec, func(l domain.Listener) error { return l.Saved(exec, key) }); err != nil {
		exec.SetKey(previous)
		return err
	}

	now := r.now()
	conv.Append(domain.Continuation{ID: key.ContinuationID, Data: data, CreatedAt: now}, r.maxContinuations)
	if view != nil {
		cached := view.Clone()
		conv.CurrentView = &cached
	}
	conv.Version++
	conv.UpdatedAt = now
	if err := r.store.Save(ctx, conv); err != nil {
		exec.SetKey(previous)
		return fmt.Errorf("failed to save conversation %s: %w", key.ConversationID, err)
	}

	r.logger.Debug("flow execution saved", "key", key.String(), "continuations", len(conv.Continuations))
	return nil
}

// GetFlowExecution restores the execution stored under key.
// Unknown conversations and continuations outside the history fail with *domain.KeyNotFoundError.
func (r *Repository) GetFlowExecution(ctx context.Context, key domain.ContinuationKey) (*runtime.FlowExecution, error) {
	conv, err := r.conversation(ctx, key)
	if err != nil {
		return nil, err
	}
	cont, ok := conv.Continuation(key.ContinuationID)
	if !ok {
		return nil, &domain.KeyNotFoundError{Key: key, Err: domain.ErrContinuationNotFound}
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(cont.Data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptContinuation, key, err)
	}
	flow, err := r.flows.GetFlow(snap.FlowID)
	if err != nil {
		return nil, err
	}
	exec, err := runtime.Restore(flow, snap,
		runtime.WithListeners(r.listeners.Listeners(flow)...),
		runtime.WithLogger(r.logger),
	)
	if err != nil {
		return nil, err
	}
	exec.SetKey(key)
	r.logger.Debug("flow execution loaded", "key", key.String())
	if err := notify(exec, func(l domain.Listener) error { return l.Loaded(exec, key) }); err != nil {
		return nil, err
	}
	return exec, nil
}

// InvalidateConversation removes every continuation of a conversation.
func (r *Repository) InvalidateConversation(ctx context.Context, conversationID string) error {
	if err := r.store.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to invalidate conversation %s: %w", conversationID, err)
	}
	r.logger.Debug("conversation invalidated", "conversation_id", conversationID)
	return nil
}

// RemoveFlowExecution invalidates the conversation of an ended execution and notifies its
// listeners. Executions that were never stored have nothing to remove.
func (r *Repository) RemoveFlowExecution(ctx context.Context, exec *runtime.FlowExecution) error {
	conversationID := exec.Key().ConversationID
	if conversationID == "" {
		return nil
	}
	if err := r.InvalidateConversation(ctx, conversationID); err != nil {
		return err
	}
	return notify(exec, func(l domain.Listener) error { return l.Removed(exec, conversationID) })
}

// CurrentContinuationKey returns the key of the latest continuation of a conversation.
func (r *Repository) CurrentContinuationKey(ctx context.Context, conversationID string) (domain.ContinuationKey, error) {
	conv, err := r.conversation(ctx, domain.ContinuationKey{ConversationID: conversationID})
	if err != nil {
		return domain.ContinuationKey{}, err
	}
	key, ok := conv.CurrentKey()
	if !ok {
		return domain.ContinuationKey{}, fmt.Errorf("%w: conversation %s", domain.ErrContinuationNotFound, conversationID)
	}
	return key, nil
}

// CurrentViewSelection replays the cached view of a conversation.
func (r *Repository) CurrentViewSelection(ctx context.Context, conversationID string) (domain.ViewSelection, error) {
	conv, err := r.conversation(ctx, domain.ContinuationKey{ConversationID: conversationID})
	if err != nil {
		return domain.ViewSelection{}, err
	}
	if conv.CurrentView == nil {
		return domain.ViewSelection{}, fmt.Errorf("%w: %s", domain.ErrNoCurrentView, conversationID)
	}
	return conv.CurrentView.Clone(), nil
}

// SetCurrentViewSelection caches view for redirect-after-pause. The conversation must exist.
func (r *Repository) SetCurrentViewSelection(ctx context.Context, conversationID string, view domain.ViewSelection) error {
	conv, err := r.conversation(ctx, domain.ContinuationKey{ConversationID: conversationID})
	if err != nil {
		return err
	}
	cached := view.Clone()
	conv.CurrentView = &cached
	conv.UpdatedAt = r.now()
	if err := r.store.Save(ctx, conv); err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", conversationID, err)
	}
	return nil
}

// WithConversationLock runs fn holding the conversation's lock.
func (r *Repository) WithConversationLock(ctx context.Context, conversationID string, fn func(context.Context) error) error {
	return r.locks.WithLock(ctx, conversationID, fn)
}

// Conversation returns the stored record, for tooling.
func (r *Repository) Conversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	return r.conversation(ctx, domain.ContinuationKey{ConversationID: conversationID})
}

// Conversations lists stored conversation ids, for tooling.
func (r *Repository) Conversations(ctx context.Context) ([]string, error) {
	return r.store.List(ctx)
}

func (r *Repository) conversation(ctx context.Context, key domain.ContinuationKey) (*domain.Conversation, error) {
	conv, err := r.store.Load(ctx, key.ConversationID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return nil, &domain.KeyNotFoundError{Key: key, Err: domain.ErrConversationNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", key.ConversationID, err)
	}
	return conv, nil
}

func notify(exec *runtime.FlowExecution, fn func(domain.Listener) error) error {
	for _, l := range exec.Listeners() {
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}
