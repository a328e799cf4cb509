package observability

import (
	"sync"
	"time"

	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/listener"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a listener exporting Prometheus metrics.
type Metrics struct {
	listener.Adapter

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sessions        *prometheus.CounterVec
	sessionsEnded   *prometheus.CounterVec
	stateEntries    *prometheus.CounterVec
	pauses          *prometheus.CounterVec
	conversations   *prometheus.CounterVec

	mu      sync.Mutex
	started map[domain.RequestContext]time.Time
	now     func() time.Time
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Start and signal requests processed, by flow and outcome.",
		}, []string{"flow", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of start and signal requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Flow sessions started, including sub-flows.",
		}, []string{"flow"}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Flow sessions ended, by end state.",
		}, []string{"flow", "state"}),
		stateEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_entries_total",
			Help:      "States entered.",
		}, []string{"flow", "state"}),
		pauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pauses_total",
			Help:      "Pauses at view states.",
		}, []string{"flow", "view"}),
		conversations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_events_total",
			Help:      "Repository events: created, loaded, saved, removed.",
		}, []string{"flow", "event"}),
		started: make(map[domain.RequestContext]time.Time),
		now:     time.Now,
	}

	for _, c := range []prometheus.Collector{
		m.requests, m.requestDuration, m.sessions, m.sessionsEnded, m.stateEntries, m.pauses, m.conversations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SessionsStarted returns the started-sessions counter of flow.
func (m *Metrics) SessionsStarted(flow string) prometheus.Counter {
	return m.sessions.WithLabelValues(flow)
}

func flowID(rc domain.RequestContext) string {
	return rc.Execution().Definition().ID()
}

func (m *Metrics) RequestSubmitted(rc domain.RequestContext) error {
	m.mu.Lock()
	m.started[rc] = m.now()
	m.mu.Unlock()
	return nil
}

func (m *Metrics) RequestProcessed(rc domain.RequestContext) error {
	m.mu.Lock()
	start, ok := m.started[rc]
	delete(m.started, rc)
	m.mu.Unlock()

	outcome := "paused"
	if !rc.Execution().IsActive() {
		outcome = "ended"
	}
	m.requests.WithLabelValues(flowID(rc), outcome).Inc()
	if ok {
		m.requestDuration.WithLabelValues(flowID(rc)).Observe(m.now().Sub(start).Seconds())
	}
	return nil
}

func (m *Metrics) SessionStarted(_ domain.RequestContext, session *domain.FlowSession) error {
	m.sessions.WithLabelValues(session.Definition().ID()).Inc()
	return nil
}

func (m *Metrics) SessionEnded(_ domain.RequestContext, session *domain.FlowSession, _ map[string]any) error {
	m.sessionsEnded.WithLabelValues(session.Definition().ID(), session.StateID()).Inc()
	return nil
}

func (m *Metrics) StateEntered(rc domain.RequestContext, _ domain.State, state domain.State) error {
	m.stateEntries.WithLabelValues(state.Base().Flow().ID(), state.ID()).Inc()
	return nil
}

func (m *Metrics) Paused(rc domain.RequestContext, view domain.ViewSelection) error {
	flow := flowID(rc)
	if s := rc.ActiveSession(); s != nil {
		flow = s.Definition().ID()
	}
	m.pauses.WithLabelValues(flow, view.ViewName).Inc()
	return nil
}

func (m *Metrics) Created(exec domain.Execution) error { return m.repository(exec, "created") }
func (m *Metrics) Loaded(exec domain.Execution, _ domain.ContinuationKey) error {
	return m.repository(exec, "loaded")
}
func (m *Metrics) Saved(exec domain.Execution, _ domain.ContinuationKey) error {
	return m.repository(exec, "saved")
}
func (m *Metrics) Removed(exec domain.Execution, _ string) error { return m.repository(exec, "removed") }

func (m *Metrics) repository(exec domain.Execution, event string) error {
	m.conversations.WithLabelValues(exec.Definition().ID(), event).Inc()
	return nil
}

var _ domain.Listener = (*Metrics)(nil)
