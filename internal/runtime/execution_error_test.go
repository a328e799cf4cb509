package runtime_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/pergola/internal/runtime"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/dsl"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersFlow(act domain.Action) *domain.Flow {
	return dsl.New("orders").
		Catch("validation", domain.MatchType[*validationError](), "errorView").
		Action("validate", act).On("success", "end").Builder().
		View("errorView").On("retry", "validate").Builder().
		End("end").Builder().
		MustBuild()
}

func TestExecution_HandledFailureTransitions(t *testing.T) {
	exec := runtime.NewFlowExecution(ordersFlow(fail(&validationError{field: "qty"})))
	view, err := exec.Start(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "errorView", view.ViewName)
	assert.Equal(t, "invalid qty", view.Model[runtime.FailureAttribute])
	assert.True(t, exec.IsActive())
}

func TestExecution_UnhandledFailurePropagatesVerbatim(t *testing.T) {
	boom := errors.New("boom")
	exec := runtime.NewFlowExecution(ordersFlow(fail(boom)))

	_, err := exec.Start(context.Background(), nil, nil)
	assert.Same(t, boom, err)
	assert.False(t, exec.IsActive())
	assert.False(t, exec.Started())
}

func TestExecution_UnhandledFailureRollsBack(t *testing.T) {
	attempts := 0
	act := domain.ActionFunc(func(rc domain.RequestContext) (domain.Event, error) {
		attempts++
		rc.FlowScope().Put("attempts", attempts)
		rc.ConversationScope().Put("touched", true)
		if attempts == 1 {
			return domain.Event{}, &validationError{field: "qty"}
		}
		return domain.Event{}, errors.New("database down")
	})
	exec := runtime.NewFlowExecution(ordersFlow(act))
	ctx := context.Background()

	_, err := exec.Start(ctx, nil, nil)
	require.NoError(t, err)
	before := exec.Snapshot()

	_, err = exec.SignalEvent(ctx, "retry", nil)
	require.EqualError(t, err, "database down")
	assert.Equal(t, before, exec.Snapshot())

	paused, ok := exec.PausedView()
	require.True(t, ok)
	assert.Equal(t, "errorView", paused.ID())
}

func TestExecution_StateHandlerBeforeFlowHandler(t *testing.T) {
	flow := dsl.New("handlers").
		Catch("flow-level", domain.MatchAny(), "flowError").
		Action("work", fail(errors.New("x"))).
		Catch("state-level", domain.MatchAny(), "stateError").
		On("success", "flowError").Builder().
		View("stateError").Builder().
		View("flowError").Builder().
		MustBuild()

	view, err := runtime.NewFlowExecution(flow).Start(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "stateError", view.ViewName)
}

func TestExecution_NavigationErrorsAreNotHandled(t *testing.T) {
	flow := dsl.New("nav").
		Catch("everything", domain.MatchAny(), "errorView").
		View("form").On("submit", "form").Builder().
		View("errorView").Builder().
		MustBuild()
	ctx := context.Background()

	exec := runtime.NewFlowExecution(flow)
	_, err := exec.Start(ctx, nil, nil)
	require.NoError(t, err)

	_, err = exec.SignalEvent(ctx, "nope", nil)
	assert.ErrorIs(t, err, domain.ErrNoMatchingTransition)
	paused, _ := exec.PausedView()
	assert.Equal(t, "form", paused.ID())
}

func TestExecution_EntryActionFailureHandled(t *testing.T) {
	flow := dsl.New("entry").
		Catch("validation", domain.MatchType[*validationError](), "fix").
		View("form").Entry(fail(&validationError{field: "email"})).Builder().
		View("fix").Builder().
		MustBuild()

	view, err := runtime.NewFlowExecution(flow).Start(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "fix", view.ViewName)
}

func TestExecution_HandlerLoopIsBounded(t *testing.T) {
	boom := errors.New("always")
	flow := dsl.New("looping").
		Catch("again", domain.MatchSentinel(boom), "work").
		Action("work", fail(boom)).On("success", "work").Builder().
		MustBuild()

	_, err := runtime.NewFlowExecution(flow).Start(context.Background(), nil, nil)
	assert.Same(t, boom, err)
}

type failingListener struct {
	listener.Adapter
	state string
	err   error
}

func (f *failingListener) StateEntering(_ domain.RequestContext, s domain.State) error {
	if s.ID() == f.state {
		return f.err
	}
	return nil
}

func TestExecution_ListenerFailurePropagates(t *testing.T) {
	errAudit := errors.New("audit unavailable")
	flow := dsl.New("audited").
		View("start").On("go", "confirm").Builder().
		View("confirm").Builder().
		MustBuild()
	ctx := context.Background()

	exec := runtime.NewFlowExecution(flow, runtime.WithListeners(&failingListener{state: "confirm", err: errAudit}))
	_, err := exec.Start(ctx, nil, nil)
	require.NoError(t, err)

	_, err = exec.SignalEvent(ctx, "go", nil)
	assert.Same(t, errAudit, err)
	paused, _ := exec.PausedView()
	assert.Equal(t, "start", paused.ID())
}

func TestExecution_ListenerFailureHandledLikeStateFailure(t *testing.T) {
	errAudit := errors.New("audit unavailable")
	flow := dsl.New("audited").
		Catch("audit", domain.MatchSentinel(errAudit), "errorView").
		View("start").On("go", "confirm").Builder().
		View("confirm").Builder().
		View("errorView").Builder().
		MustBuild()
	ctx := context.Background()

	exec := runtime.NewFlowExecution(flow, runtime.WithListeners(&failingListener{state: "confirm", err: errAudit}))
	_, err := exec.Start(ctx, nil, nil)
	require.NoError(t, err)

	view, err := exec.SignalEvent(ctx, "go", nil)
	require.NoError(t, err)
	assert.Equal(t, "errorView", view.ViewName)
}

type processedFailure struct {
	listener.Adapter
	err error
}

func (p *processedFailure) RequestProcessed(domain.RequestContext) error { return p.err }

func TestExecution_RequestProcessedFailureIsJoined(t *testing.T) {
	boom := errors.New("boom")
	errListener := errors.New("listener failed")
	exec := runtime.NewFlowExecution(ordersFlow(fail(boom)), runtime.WithListeners(&processedFailure{err: errListener}))

	_, err := exec.Start(context.Background(), nil, nil)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, errListener)
}

func TestExecution_RequestProcessedFailureAloneRollsBack(t *testing.T) {
	errListener := errors.New("listener failed")
	flow := dsl.New("simple").View("v").Builder().MustBuild()
	exec := runtime.NewFlowExecution(flow, runtime.WithListeners(&processedFailure{err: errListener}))

	_, err := exec.Start(context.Background(), nil, nil)
	assert.Same(t, errListener, err)
	assert.False(t, exec.IsActive())
}
