package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/pergola"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/dsl"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/aretw0/pergola/pkg/observability"
	"github.com/aretw0/pergola/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecutor(t *testing.T, listeners ...domain.Listener) *pergola.Executor {
	t.Helper()
	child := dsl.New("child").
		View("inner").On("done", "finished").Builder().
		End("finished").Builder().
		MustBuild()
	parent := dsl.New("parent").
		View("outer").On("go", "nested").Builder().
		Subflow("nested", child).On("finished", "end").Builder().
		End("end").Builder().
		MustBuild()

	flows, err := registry.NewFlows(parent)
	require.NoError(t, err)

	loader := listener.NewLoader()
	for _, l := range listeners {
		loader.MustAdd(l)
	}
	return pergola.New(flows, pergola.WithListenerLoader(loader))
}

func drive(t *testing.T, exec *pergola.Executor, input map[string]any) {
	t.Helper()
	ctx := context.Background()
	resp, err := exec.Launch(ctx, "parent", input, nil)
	require.NoError(t, err)
	resp, err = exec.SignalEvent(ctx, "go", resp.EncodedKey(), nil)
	require.NoError(t, err)
	resp, err = exec.SignalEvent(ctx, "done", resp.EncodedKey(), nil)
	require.NoError(t, err)
	require.False(t, resp.Active())
}

func TestMetrics_FullLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewMetrics(reg, "pergola")
	require.NoError(t, err)

	drive(t, newExecutor(t, metrics), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsStarted("parent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsStarted("child")))

	expected := `
# HELP pergola_requests_total Start and signal requests processed, by flow and outcome.
# TYPE pergola_requests_total counter
pergola_requests_total{flow="parent",outcome="ended"} 1
pergola_requests_total{flow="parent",outcome="paused"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pergola_requests_total"))

	expected = `
# HELP pergola_pauses_total Pauses at view states.
# TYPE pergola_pauses_total counter
pergola_pauses_total{flow="child",view="inner"} 1
pergola_pauses_total{flow="parent",view="outer"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pergola_pauses_total"))

	expected = `
# HELP pergola_conversation_events_total Repository events: created, loaded, saved, removed.
# TYPE pergola_conversation_events_total counter
pergola_conversation_events_total{event="created",flow="parent"} 1
pergola_conversation_events_total{event="loaded",flow="parent"} 2
pergola_conversation_events_total{event="removed",flow="parent"} 1
pergola_conversation_events_total{event="saved",flow="parent"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pergola_conversation_events_total"))

	n, err := testutil.GatherAndCount(reg, "pergola_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "one histogram per flow label")
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := observability.NewMetrics(reg, "pergola")
	require.NoError(t, err)
	_, err = observability.NewMetrics(reg, "pergola")
	assert.Error(t, err)
}

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	redactor, err := observability.NewRedactor(observability.DefaultSensitiveKeys...)
	require.NoError(t, err)

	drive(t, newExecutor(t, observability.NewLogger(logger, observability.WithRedactor(redactor))),
		map[string]any{"user": "ana", "password": "hunter2"})

	out := buf.String()
	assert.Contains(t, out, `"msg":"session started"`)
	assert.Contains(t, out, `"msg":"paused"`)
	assert.Contains(t, out, `"msg":"conversation removed"`)
	assert.Contains(t, out, `"user":"ana"`)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `"password":"***"`)
}

func TestRedactor(t *testing.T) {
	r, err := observability.NewRedactor(`(?i)token`)
	require.NoError(t, err)

	in := map[string]any{"name": "x", "auth": map[string]any{"Token": "t"}}
	out := r.Redact(in)
	assert.Equal(t, observability.Mask, out["auth"].(map[string]any)["Token"])
	assert.Equal(t, "t", in["auth"].(map[string]any)["Token"], "input is not modified")
	assert.Nil(t, r.Redact(nil))

	_, err = observability.NewRedactor("(")
	assert.Error(t, err)
}
