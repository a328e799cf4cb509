package runtime_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/pergola/internal/runtime"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/dsl"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/aretw0/pergola/pkg/mapping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecution_ListenerOrderAndCounts(t *testing.T) {
	parent, _ := profileFlows()
	var log []string
	l1, l2 := newRecorder("L1", &log), newRecorder("L2", &log)

	loader := listener.NewLoader()
	loader.MustAdd(l1)
	loader.MustAdd(l2)
	listeners := loader.Listeners(parent)
	require.Equal(t, []domain.Listener{l1, l2}, listeners)

	ctx := context.Background()
	exec := runtime.NewFlowExecution(parent, runtime.WithListeners(listeners...))
	_, err := exec.Start(ctx, map[string]any{"profile": map[string]any{"name": "ana"}}, nil)
	require.NoError(t, err)
	_, err = exec.SignalEvent(ctx, "done", nil)
	require.NoError(t, err)
	_, err = exec.SignalEvent(ctx, "ok", nil)
	require.NoError(t, err)
	require.False(t, exec.IsActive())

	for _, rec := range []*recorder{l1, l2} {
		assert.Equal(t, 2, rec.counts["sessionStarting"], rec.name)
		assert.Equal(t, 2, rec.counts["sessionStarted"], rec.name)
		assert.Equal(t, 2, rec.counts["sessionEnded"], rec.name)
		assert.Equal(t, 3, rec.counts["requestSubmitted"], rec.name)
		assert.Equal(t, 3, rec.counts["requestProcessed"], rec.name)
		assert.Equal(t, 2, rec.counts["paused"], rec.name)
		assert.Equal(t, 3, rec.counts["resumed"], rec.name)
		assert.Equal(t, 2, rec.maxDepth, rec.name)
		assert.Equal(t, 0, rec.depth, rec.name)
	}

	// every notification reaches L1 then L2 before the next one fires
	require.Equal(t, 0, len(log)%2)
	for i := 0; i < len(log); i += 2 {
		hook1 := strings.TrimPrefix(log[i], "L1:")
		hook2 := strings.TrimPrefix(log[i+1], "L2:")
		assert.NotEqual(t, log[i], hook1, "entry %d should come from L1", i)
		assert.Equal(t, hook1, hook2, "entry %d", i)
	}
	assert.Equal(t, "L1:requestSubmitted", log[0])
	assert.Equal(t, "L1:sessionStarting", log[2])
	assert.Equal(t, "L2:requestProcessed", log[len(log)-1])
}

func TestExecution_ListenersAreFrozen(t *testing.T) {
	parent, _ := profileFlows()
	l := newRecorder("l", nil)
	listeners := []domain.Listener{l}

	exec := runtime.NewFlowExecution(parent, runtime.WithListeners(listeners...))
	listeners[0] = newRecorder("other", nil)

	assert.Equal(t, []domain.Listener{l}, exec.Listeners())
}

func TestExecution_InputMappingFailureStartsNoSession(t *testing.T) {
	flow := dsl.New("strict").
		Input(mapping.New(mapping.Require("missing", "x"))).
		Catch("input", domain.MatchSentinel(mapping.ErrRequiredAttribute), "errorView").
		View("form").On("submit", "end").Builder().
		View("errorView").On("quit", "end").Builder().
		End("end").Builder().
		MustBuild()
	rec := newRecorder("rec", nil)

	exec := runtime.NewFlowExecution(flow, runtime.WithListeners(rec))
	_, err := exec.Start(context.Background(), nil, nil)
	assert.ErrorIs(t, err, mapping.ErrRequiredAttribute)
	assert.False(t, exec.IsActive())

	assert.Equal(t, 0, rec.counts["sessionStarting"])
	assert.Equal(t, 0, rec.counts["sessionStarted"])
	assert.Equal(t, 0, rec.counts["sessionEnded"])
	assert.Equal(t, 0, rec.depth)
}

func TestExecution_SubflowInputFailureHandledByParent(t *testing.T) {
	child := dsl.New("child").
		Input(mapping.New(mapping.Require("missing", "x"))).
		View("edit").On("done", "finished").Builder().
		End("finished").Builder().
		MustBuild()
	parent := dsl.New("parent").
		Catch("input", domain.MatchSentinel(mapping.ErrRequiredAttribute), "errorView").
		Subflow("delegate", child).On("finished", "end").Builder().
		View("errorView").On("quit", "end").Builder().
		End("end").Builder().
		MustBuild()
	rec := newRecorder("rec", nil)
	ctx := context.Background()

	exec := runtime.NewFlowExecution(parent, runtime.WithListeners(rec))
	view, err := exec.Start(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "errorView", view.ViewName)
	assert.Equal(t, 1, exec.Depth())
	assert.Equal(t, "parent", exec.ActiveSession().Definition().ID())

	_, err = exec.SignalEvent(ctx, "quit", nil)
	require.NoError(t, err)
	require.False(t, exec.IsActive())

	assert.Equal(t, 1, rec.counts["sessionStarting"])
	assert.Equal(t, 1, rec.counts["sessionStarted"])
	assert.Equal(t, 1, rec.counts["sessionEnded"])
	assert.Equal(t, 1, rec.maxDepth)
	assert.Equal(t, 0, rec.depth)
}

func TestExecution_EventSignaledBeforeResolution(t *testing.T) {
	flow := dsl.New("simple").
		View("form").On("submit", "end").Builder().
		End("end").Builder().
		MustBuild()
	rec := newRecorder("rec", nil)
	ctx := context.Background()

	exec := runtime.NewFlowExecution(flow, runtime.WithListeners(rec))
	_, err := exec.Start(ctx, nil, nil)
	require.NoError(t, err)

	_, err = exec.SignalEvent(ctx, "bogus", nil)
	assert.ErrorIs(t, err, domain.ErrNoMatchingTransition)
	assert.Equal(t, 1, rec.counts["eventSignaled"])
	assert.True(t, exec.IsActive())
}
