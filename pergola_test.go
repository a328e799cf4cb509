package pergola_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aretw0/pergola"
	"github.com/aretw0/pergola/pkg/adapters/memory"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/dsl"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/aretw0/pergola/pkg/mapping"
	"github.com/aretw0/pergola/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPaymentDeclined = errors.New("payment declined")

// checkout: cart (view) -> address sub-flow -> pay (action) -> done.
func checkoutFlows(t *testing.T) *registry.Flows {
	t.Helper()
	setStreet := domain.ActionFunc(func(rc domain.RequestContext) (domain.Event, error) {
		var params struct {
			Street string `json:"street"`
		}
		if err := domain.DecodeParameters(rc.External(), &params); err != nil {
			return domain.Event{}, err
		}
		rc.FlowScope().Put("street", params.Street)
		return domain.NewEvent(domain.EventSuccess), nil
	})

	address := dsl.New("address").
		View("street").On("save", "store").Builder().
		Action("store", setStreet).On(domain.EventSuccess, "saved").Builder().
		End("saved").Output(mapping.Pass("street")).Builder().
		MustBuild()

	pay := domain.ActionFunc(func(rc domain.RequestContext) (domain.Event, error) {
		if rc.FlowScope().GetString("street") == "" {
			return domain.Event{}, errPaymentDeclined
		}
		return domain.NewEvent(domain.EventSuccess), nil
	})

	checkout := dsl.New("checkout").
		Catch("declined", domain.MatchSentinel(errPaymentDeclined), "declined").
		View("cart").On("submit", "cart").On("next", "shipping").On("cancel", "cancelled").Builder().
		Subflow("shipping", address).Output(mapping.Pass("street")).On("saved", "pay").Builder().
		Action("pay", pay).On(domain.EventSuccess, "done").Builder().
		View("declined").Redirect().On("retry", "shipping").Builder().
		End("done").Render("receipt").Builder().
		End("cancelled").Builder().
		MustBuild()

	flows, err := registry.NewFlows(checkout)
	require.NoError(t, err)
	return flows
}

func TestExecutor_SinglePauseRoundTrip(t *testing.T) {
	exec := pergola.New(checkoutFlows(t))
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", map[string]any{"items": 2}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Active())
	assert.Equal(t, "cart", resp.View.ViewName)
	assert.Equal(t, 2, resp.View.Model["items"])
	assert.Equal(t, resp.Key.ConversationID, resp.ConversationID)

	parsed, err := domain.ParseContinuationKey(resp.EncodedKey())
	require.NoError(t, err)
	assert.Equal(t, resp.Key, parsed)

	resp, err = exec.SignalEvent(ctx, "cancel", resp.EncodedKey(), nil)
	require.NoError(t, err)
	assert.False(t, resp.Active())
	assert.True(t, resp.View.IsEnd())
	assert.Equal(t, "cancelled", resp.View.ViewName)
	assert.Empty(t, resp.EncodedKey())
}

func TestExecutor_SelfTransitionLoop(t *testing.T) {
	exec := pergola.New(checkoutFlows(t))
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)

	conversationID := resp.ConversationID
	for i := 0; i < 5; i++ {
		resp, err = exec.SignalEvent(ctx, "submit", resp.EncodedKey(), nil)
		require.NoError(t, err)
		assert.Equal(t, "cart", resp.View.ViewName)
		assert.True(t, resp.Active())
		assert.Equal(t, conversationID, resp.Key.ConversationID)
	}

	resp, err = exec.SignalEvent(ctx, "cancel", resp.EncodedKey(), nil)
	require.NoError(t, err)
	assert.False(t, resp.Active())
}

func TestExecutor_InvalidationOnEnd(t *testing.T) {
	store := memory.NewStore()
	exec := pergola.New(checkoutFlows(t), pergola.WithStore(store))
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)
	first := resp.EncodedKey()

	resp, err = exec.SignalEvent(ctx, "cancel", first, nil)
	require.NoError(t, err)
	require.False(t, resp.Active())

	_, err = exec.SignalEvent(ctx, "submit", first, nil)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	assert.True(t, domain.IsRepositoryError(err))

	_, err = store.Load(ctx, resp.ConversationID)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestExecutor_BackButton(t *testing.T) {
	exec := pergola.New(checkoutFlows(t))
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)
	back := resp.EncodedKey()

	resp, err = exec.SignalEvent(ctx, "next", back, nil)
	require.NoError(t, err)
	assert.Equal(t, "street", resp.View.ViewName)

	// Resubmitting the older page resumes from the cart again.
	resp, err = exec.SignalEvent(ctx, "submit", back, nil)
	require.NoError(t, err)
	assert.Equal(t, "cart", resp.View.ViewName)
}

func TestExecutor_LatestOnlyRejectsStaleKey(t *testing.T) {
	exec := pergola.New(checkoutFlows(t), pergola.WithMaxContinuations(1))
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)
	stale := resp.EncodedKey()

	_, err = exec.SignalEvent(ctx, "submit", stale, nil)
	require.NoError(t, err)

	_, err = exec.SignalEvent(ctx, "submit", stale, nil)
	assert.ErrorIs(t, err, domain.ErrContinuationNotFound)
}

func TestExecutor_InvalidKey(t *testing.T) {
	exec := pergola.New(checkoutFlows(t))
	_, err := exec.SignalEvent(context.Background(), "submit", "garbage", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidKeyFormat)
	assert.True(t, domain.IsRepositoryError(err))
}

func TestExecutor_UnknownFlow(t *testing.T) {
	exec := pergola.New(checkoutFlows(t))
	_, err := exec.Launch(context.Background(), "nope", nil, nil)
	assert.ErrorIs(t, err, domain.ErrFlowNotFound)
}

func TestExecutor_FailedSignalKeepsContinuation(t *testing.T) {
	store := memory.NewStore()
	exec := pergola.New(checkoutFlows(t), pergola.WithStore(store))
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)
	before, err := store.Load(ctx, resp.ConversationID)
	require.NoError(t, err)

	_, err = exec.SignalEvent(ctx, "unknown", resp.EncodedKey(), nil)
	assert.ErrorIs(t, err, domain.ErrNoMatchingTransition)
	assert.False(t, domain.IsRepositoryError(err))

	after, err := store.Load(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)

	resp, err = exec.SignalEvent(ctx, "next", resp.EncodedKey(), nil)
	require.NoError(t, err, "the previous key is still the valid resume point")
	assert.Equal(t, "street", resp.View.ViewName)
}

// auditListener fails every save while down is set.
type auditListener struct {
	listener.Adapter
	down bool
}

var errAuditDown = errors.New("audit down")

func (a *auditListener) Saved(domain.Execution, domain.ContinuationKey) error {
	if a.down {
		return errAuditDown
	}
	return nil
}

func TestExecutor_FailedSaveKeepsContinuation(t *testing.T) {
	store := memory.NewStore()
	audit := &auditListener{}
	loader := listener.NewLoader()
	loader.MustAdd(audit)
	exec := pergola.New(checkoutFlows(t),
		pergola.WithStore(store),
		pergola.WithListenerLoader(loader),
		pergola.WithMaxContinuations(1),
	)
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)
	first := resp.EncodedKey()
	before, err := store.Load(ctx, resp.ConversationID)
	require.NoError(t, err)

	audit.down = true
	_, err = exec.SignalEvent(ctx, "next", first, nil)
	assert.ErrorIs(t, err, errAuditDown)

	after, err := store.Load(ctx, resp.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.CurrentView, after.CurrentView)

	view, err := exec.CurrentViewSelection(ctx, resp.ConversationID, nil)
	require.NoError(t, err)
	assert.Equal(t, "cart", view.ViewName)

	audit.down = false
	resp, err = exec.SignalEvent(ctx, "next", first, nil)
	require.NoError(t, err, "the last stored key is still the valid resume point")
	assert.Equal(t, "street", resp.View.ViewName)
}

func TestExecutor_SubflowAndRedirect(t *testing.T) {
	exec := pergola.New(checkoutFlows(t))
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)
	resp, err = exec.SignalEvent(ctx, "next", resp.EncodedKey(), nil)
	require.NoError(t, err)
	assert.Equal(t, "street", resp.View.ViewName)

	// Street is empty, payment fails, the handler routes to the redirect view.
	resp, err = exec.SignalEvent(ctx, "save", resp.EncodedKey(), nil)
	require.NoError(t, err)
	require.True(t, resp.View.IsRedirect())
	assert.Equal(t, resp.ConversationID, resp.View.ConversationID)
	assert.True(t, resp.Active())

	view, err := exec.CurrentViewSelection(ctx, resp.ConversationID, nil)
	require.NoError(t, err)
	assert.Equal(t, "declined", view.ViewName)
	assert.Equal(t, errPaymentDeclined.Error(), view.Model["failure"])

	// Replaying does not execute anything.
	again, err := exec.CurrentViewSelection(ctx, resp.ConversationID, nil)
	require.NoError(t, err)
	assert.Equal(t, view, again)
}

func TestExecutor_SubflowCompletes(t *testing.T) {
	exec := pergola.New(checkoutFlows(t))
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)
	resp, err = exec.SignalEvent(ctx, "next", resp.EncodedKey(), nil)
	require.NoError(t, err)

	ext := domain.NewExternalContext(map[string]any{"street": "Rua A"}, nil)
	resp, err = exec.SignalEvent(ctx, "save", resp.EncodedKey(), ext)
	require.NoError(t, err)
	assert.False(t, resp.Active())
	assert.Equal(t, "receipt", resp.View.ViewName)
	assert.Equal(t, "Rua A", resp.View.Model["street"])
}

func TestExecutor_CurrentViewUnknownConversation(t *testing.T) {
	exec := pergola.New(checkoutFlows(t))
	_, err := exec.CurrentViewSelection(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestExecutor_EndOnLaunch(t *testing.T) {
	flow := dsl.New("ping").
		Action("pong", domain.Succeed(domain.EventSuccess)).On(domain.EventSuccess, "done").Builder().
		End("done").Builder().
		MustBuild()
	flows, err := registry.NewFlows(flow)
	require.NoError(t, err)

	store := memory.NewStore()
	exec := pergola.New(flows, pergola.WithStore(store))
	resp, err := exec.Launch(context.Background(), "ping", nil, nil)
	require.NoError(t, err)
	assert.False(t, resp.Active())
	assert.True(t, resp.View.IsEnd())

	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids, "an execution that ends immediately is never stored")
}

type counting struct {
	listener.Adapter
	mu     sync.Mutex
	saved  int
	loaded int
}

func (c *counting) Saved(domain.Execution, domain.ContinuationKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved++
	return nil
}

func (c *counting) Loaded(domain.Execution, domain.ContinuationKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded++
	return nil
}

func TestExecutor_ConcurrentSignalsAreSerialized(t *testing.T) {
	counter := &counting{}
	loader := listener.NewLoader()
	loader.MustAdd(counter)

	exec := pergola.New(checkoutFlows(t),
		pergola.WithListenerLoader(loader),
		pergola.WithMaxContinuations(1),
	)
	ctx := context.Background()

	resp, err := exec.Launch(ctx, "checkout", nil, nil)
	require.NoError(t, err)
	key := resp.EncodedKey()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.SignalEvent(ctx, "submit", key, nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrContinuationNotFound)
	}
	assert.Equal(t, 1, succeeded, "exactly one resume wins, the others observe a stale key")
	assert.Equal(t, 2, counter.saved)
	assert.Equal(t, 1, counter.loaded)
}
