package runtime_test

import (
	"context"
	"testing"

	"github.com/aretw0/pergola/internal/runtime"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecution_SinglePause(t *testing.T) {
	flow := dsl.New("form").
		View("enter").Render("enterView").On("submit", "end").Builder().
		End("end").Builder().
		MustBuild()

	exec := runtime.NewFlowExecution(flow)
	view, err := exec.Start(context.Background(), map[string]any{"name": "ana"}, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.ViewApplication, view.Kind)
	assert.Equal(t, "enterView", view.ViewName)
	assert.Equal(t, "ana", view.Model["name"])
	assert.True(t, exec.IsActive())
	assert.Equal(t, 1, exec.Depth())
	assert.Equal(t, domain.SessionPaused, exec.ActiveSession().Status())

	paused, ok := exec.PausedView()
	require.True(t, ok)
	assert.Equal(t, "enter", paused.ID())
}

func TestExecution_LoopIdempotence(t *testing.T) {
	flow := dsl.New("loop").
		View("edit").On("submit", "edit").On("finish", "done").Builder().
		End("done").Render("summary").Builder().
		MustBuild()

	ctx := context.Background()
	exec := runtime.NewFlowExecution(flow)
	_, err := exec.Start(ctx, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		view, err := exec.SignalEvent(ctx, "submit", nil)
		require.NoError(t, err)
		assert.Equal(t, "edit", view.ViewName)
		assert.True(t, exec.IsActive(), "iteration %d", i)
	}

	view, err := exec.SignalEvent(ctx, "finish", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.ViewFlowEnd, view.Kind)
	assert.Equal(t, "summary", view.ViewName)
	assert.False(t, exec.IsActive())
	assert.Nil(t, exec.ActiveSession())
}

func TestExecution_ActionStateRunsUntilMatchingOutcome(t *testing.T) {
	var ran []string
	track := func(name, outcome string) domain.Action {
		return domain.ActionFunc(func(rc domain.RequestContext) (domain.Event, error) {
			ran = append(ran, name)
			rc.FlowScope().Put(name, true)
			return domain.NewEvent(outcome), nil
		})
	}

	flow := dsl.New("actions").
		Action("work", track("first", "unmapped"), track("second", "success"), track("third", "success")).
		On("success", "show").Builder().
		View("show").Builder().
		MustBuild()

	exec := runtime.NewFlowExecution(flow)
	view, err := exec.Start(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, "show", view.ViewName)
	assert.Equal(t, true, view.Model["second"])
}

func TestExecution_ActionStateWithoutMatchingOutcome(t *testing.T) {
	flow := dsl.New("actions").
		Action("work", domain.Succeed("nobody-listens")).On("success", "show").Builder().
		View("show").Builder().
		MustBuild()

	exec := runtime.NewFlowExecution(flow)
	_, err := exec.Start(context.Background(), nil, nil)

	var nm *domain.NoMatchingTransitionError
	require.ErrorAs(t, err, &nm)
	assert.Equal(t, "work", nm.StateID)
	assert.Equal(t, "nobody-listens", nm.EventID)
	assert.False(t, exec.IsActive())
}

func TestExecution_GlobalTransition(t *testing.T) {
	flow := dsl.New("wizard").
		Global("cancel", "cancelled").
		View("step1").On("next", "step2").Builder().
		View("step2").Builder().
		End("cancelled").Builder().
		MustBuild()

	ctx := context.Background()
	exec := runtime.NewFlowExecution(flow)
	_, err := exec.Start(ctx, nil, nil)
	require.NoError(t, err)
	_, err = exec.SignalEvent(ctx, "next", nil)
	require.NoError(t, err)

	view, err := exec.SignalEvent(ctx, "cancel", nil)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", view.ViewName)
	assert.False(t, exec.IsActive())
}

func TestExecution_ViewModelRestriction(t *testing.T) {
	flow := dsl.New("restricted").
		View("show").Model("visible").Builder().
		MustBuild()

	exec := runtime.NewFlowExecution(flow)
	view, err := exec.Start(context.Background(), map[string]any{"visible": 1, "hidden": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"visible": 1}, view.Model)
}

func TestExecution_FlowInputMapper(t *testing.T) {
	flow := dsl.New("mapped").
		Input(domain.MapperFunc(func(_ domain.RequestContext, src map[string]any, dst domain.Scope) error {
			dst.Put("greeting", "hello "+src["name"].(string))
			return nil
		})).
		View("show").Builder().
		MustBuild()

	exec := runtime.NewFlowExecution(flow)
	view, err := exec.Start(context.Background(), map[string]any{"name": "ana"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"greeting": "hello ana"}, view.Model)
}

func TestExecution_InputIsCopied(t *testing.T) {
	flow := dsl.New("copy").
		Action("mutate", domain.ActionFunc(func(rc domain.RequestContext) (domain.Event, error) {
			rc.FlowScope()["cart"].(map[string]any)["items"] = 0
			return domain.NewEvent("done"), nil
		})).On("done", "show").Builder().
		View("show").Builder().
		MustBuild()

	input := map[string]any{"cart": map[string]any{"items": 3}}
	exec := runtime.NewFlowExecution(flow)
	_, err := exec.Start(context.Background(), input, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, input["cart"].(map[string]any)["items"])
}

func TestExecution_ExternalContextAndScopes(t *testing.T) {
	shared := &lockedMap{attrs: domain.NewScope()}
	flow := dsl.New("ctx").
		Action("read", domain.ActionFunc(func(rc domain.RequestContext) (domain.Event, error) {
			rc.FlowScope().Put("user", rc.External().Parameters()["user"])
			rc.ConversationScope().Put("visits", 1)
			rc.RequestScope().Put("flash", "saved")
			err := rc.External().SharedScope().WithLock(func(attrs domain.Scope) error {
				attrs.Put("hits", 1)
				return nil
			})
			return domain.NewEvent("ok"), err
		})).On("ok", "show").Builder().
		View("show").On("again", "show").Builder().
		MustBuild()

	exec := runtime.NewFlowExecution(flow)
	ext := domain.NewExternalContext(map[string]any{"user": "ana"}, shared)
	view, err := exec.Start(context.Background(), nil, ext)
	require.NoError(t, err)

	assert.Equal(t, "ana", view.Model["user"])
	assert.Equal(t, "saved", view.Model["flash"])
	assert.Equal(t, 1, exec.ConversationScope()["visits"])
	assert.Equal(t, 1, shared.attrs["hits"])
	assert.Equal(t, 1, shared.locks)

	// request scope does not outlive the request
	view, err = exec.SignalEvent(context.Background(), "again", nil)
	require.NoError(t, err)
	assert.NotContains(t, view.Model, "flash")
	assert.Equal(t, "ana", view.Model["user"])
}

func TestExecution_Preconditions(t *testing.T) {
	flow := dsl.New("pre").View("v").On("x", "end").Builder().End("end").Builder().MustBuild()
	ctx := context.Background()

	exec := runtime.NewFlowExecution(flow)
	_, err := exec.SignalEvent(ctx, "x", nil)
	assert.ErrorIs(t, err, domain.ErrExecutionNotActive)

	_, err = exec.Start(ctx, nil, nil)
	require.NoError(t, err)
	_, err = exec.Start(ctx, nil, nil)
	assert.ErrorIs(t, err, domain.ErrExecutionAlreadyStarted)

	_, err = exec.SignalEvent(ctx, "x", nil)
	require.NoError(t, err)
	_, err = exec.Start(ctx, nil, nil)
	assert.ErrorIs(t, err, domain.ErrExecutionAlreadyStarted)
	_, err = exec.SignalEvent(ctx, "x", nil)
	assert.ErrorIs(t, err, domain.ErrExecutionNotActive)
}

func TestExecution_UnresolvedFlow(t *testing.T) {
	flow := domain.NewFlow("raw")
	require.NoError(t, flow.AddState(domain.NewViewState("v", "")))

	_, err := runtime.NewFlowExecution(flow).Start(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrFlowNotResolved)
}

type lockedMap struct {
	attrs domain.Scope
	locks int
}

func (m *lockedMap) WithLock(fn func(domain.Scope) error) error {
	m.locks++
	return fn(m.attrs)
}
