package pergola

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/pergola/internal/logging"
	"github.com/aretw0/pergola/internal/runtime"
	"github.com/aretw0/pergola/pkg/adapters/memory"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/aretw0/pergola/pkg/ports"
	"github.com/aretw0/pergola/pkg/repository"
	"github.com/aretw0/pergola/pkg/session"
)

// Executor is the entry point for transports. It launches conversations, resumes them
// from continuation keys and replays the current view of a conversation.
type Executor struct {
	repo   *repository.Repository
	logger *slog.Logger

	store     ports.ConversationStore
	listeners *listener.Loader
	locker    ports.DistributedLocker
	repoOpts  []repository.Option
}

// Option configures the Executor.
type Option func(*Executor)

// WithStore sets the conversation store. Defaults to an in-memory store.
func WithStore(store ports.ConversationStore) Option {
	return func(e *Executor) {
		e.store = store
	}
}

// WithListenerLoader sets the listeners attached to executions.
func WithListenerLoader(loader *listener.Loader) Option {
	return func(e *Executor) {
		e.listeners = loader
	}
}

// WithDistributedLocker serializes conversations across replicas.
func WithDistributedLocker(locker ports.DistributedLocker) Option {
	return func(e *Executor) {
		e.locker = locker
	}
}

// WithMaxContinuations bounds how many earlier keys of a conversation stay resumable.
// 1 rejects every key but the latest, so a second resume from the same key fails.
func WithMaxContinuations(n int) Option {
	return func(e *Executor) {
		e.repoOpts = append(e.repoOpts, repository.WithMaxContinuations(n))
	}
}

// WithKeyGenerator overrides the default UUID keys.
func WithKeyGenerator(keys ports.KeyGenerator) Option {
	return func(e *Executor) {
		e.repoOpts = append(e.repoOpts, repository.WithKeyGenerator(keys))
	}
}

// WithLogger sets a structured logger for the executor and everything it builds.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// New creates an Executor resolving flows through flows.
func New(flows ports.FlowLocator, opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.listeners == nil {
		e.listeners = listener.NewLoader()
	}

	locks := session.NewManager(
		session.WithLocker(e.locker),
		session.WithLogger(e.logger),
	)
	repoOpts := append([]repository.Option{
		repository.WithListenerLoader(e.listeners),
		repository.WithLockManager(locks),
		repository.WithLogger(e.logger),
	}, e.repoOpts...)
	e.repo = repository.New(flows, e.store, repoOpts...)
	return e
}

// Repository exposes the continuation repository, for tooling.
func (e *Executor) Repository() *repository.Repository { return e.repo }

// Response is the outcome of Launch and SignalEvent.
type Response struct {
	// Key resumes the conversation. Zero once the flow ended.
	Key domain.ContinuationKey

	// ConversationID identifies the conversation, also after it ended.
	ConversationID string

	// View is the view to render, a terminal view, or a redirect to ConversationID.
	View domain.ViewSelection
}

// Active reports whether the conversation can be resumed.
func (r Response) Active() bool { return !r.Key.IsZero() }

// EncodedKey returns the transport form of Key, or "" once the flow ended.
func (r Response) EncodedKey() string {
	if r.Key.IsZero() {
		return ""
	}
	return r.Key.String()
}

// Launch starts a new conversation of flowID.
// Failures leave nothing stored.
func (e *Executor) Launch(ctx context.Context, flowID string, input map[string]any, ext domain.ExternalContext) (Response, error) {
	exec, err := e.repo.CreateFlowExecution(flowID)
	if err != nil {
		return Response{}, err
	}
	view, err := exec.Start(ctx, input, ext)
	if err != nil {
		return Response{}, err
	}
	if !exec.IsActive() {
		e.logger.Debug("flow ended on launch", "flow", flowID)
		return Response{View: view}, nil
	}

	key := e.repo.GenerateContinuationKey(exec)
	var resp Response
	err = e.repo.WithConversationLock(ctx, key.ConversationID, func(ctx context.Context) error {
		resp, err = e.pause(ctx, key, exec, view)
		return err
	})
	if err != nil {
		return Response{}, err
	}
	e.logger.Debug("conversation launched", "flow", flowID, "conversation_id", key.ConversationID)
	return resp, nil
}

// SignalEvent resumes the conversation named by encodedKey with eventID.
// Repository failures (invalid, stale or expired keys) satisfy domain.IsRepositoryError.
// Any failure leaves the stored continuation untouched.
func (e *Executor) SignalEvent(ctx context.Context, eventID string, encodedKey string, ext domain.ExternalContext) (Response, error) {
	key, err := domain.ParseContinuationKey(encodedKey)
	if err != nil {
		return Response{}, err
	}

	var resp Response
	err = e.repo.WithConversationLock(ctx, key.ConversationID, func(ctx context.Context) error {
		exec, err := e.repo.GetFlowExecution(ctx, key)
		if err != nil {
			return err
		}
		view, err := exec.SignalEvent(ctx, eventID, ext)
		if err != nil {
			return err
		}

		if !exec.IsActive() {
			if err := e.repo.RemoveFlowExecution(ctx, exec); err != nil {
				return err
			}
			e.logger.Debug("conversation ended", "conversation_id", key.ConversationID)
			resp = Response{ConversationID: key.ConversationID, View: view}
			return nil
		}

		next := e.repo.GenerateContinuationKey(exec)
		resp, err = e.pause(ctx, next, exec, view)
		return err
	})
	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// CurrentViewSelection replays the last view of a conversation without executing anything.
// ext is accepted for symmetry with Launch and SignalEvent; no action runs, so it is not read.
func (e *Executor) CurrentViewSelection(ctx context.Context, conversationID string, _ domain.ExternalContext) (domain.ViewSelection, error) {
	return e.repo.CurrentViewSelection(ctx, conversationID)
}

// pause stores exec under key and caches view as the conversation's current view.
// Redirect view states answer with a redirect marker instead of the view.
func (e *Executor) pause(ctx context.Context, key domain.ContinuationKey, exec *runtime.FlowExecution, view domain.ViewSelection) (Response, error) {
	if err := e.repo.PauseFlowExecution(ctx, key, exec, view); err != nil {
		return Response{}, fmt.Errorf("failed to store continuation: %w", err)
	}

	resp := Response{Key: key, ConversationID: key.ConversationID, View: view}
	if state, ok := exec.PausedView(); ok && state.Redirect {
		resp.View = domain.ConversationRedirect(key.ConversationID)
	}
	return resp, nil
}
