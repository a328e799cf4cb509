package observability

import (
	"log/slog"

	"github.com/aretw0/pergola/pkg/domain"
)

// Logger is a listener writing lifecycle notifications to slog.
// Requests and states log at Debug; sessions, pauses and repository events at Info.
type Logger struct {
	logger   *slog.Logger
	redactor *Redactor
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithRedactor masks sensitive attributes in logged inputs, outputs and models.
func WithRedactor(r *Redactor) LoggerOption {
	return func(l *Logger) {
		l.redactor = r
	}
}

// NewLogger creates a logging listener.
func NewLogger(logger *slog.Logger, opts ...LoggerOption) *Logger {
	l := &Logger{logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Logger) attrs(rc domain.RequestContext) []any {
	args := []any{"flow", rc.Execution().Definition().ID()}
	if key := rc.Execution().Key(); !key.IsZero() {
		args = append(args, "conversation_id", key.ConversationID)
	}
	if s := rc.ActiveSession(); s != nil {
		args = append(args, "depth", rc.Execution().Depth())
	}
	return args
}

func (l *Logger) redact(m map[string]any) map[string]any {
	if l.redactor == nil {
		return m
	}
	return l.redactor.Redact(m)
}

func (l *Logger) RequestSubmitted(rc domain.RequestContext) error {
	l.logger.Debug("request submitted", l.attrs(rc)...)
	return nil
}

func (l *Logger) RequestProcessed(rc domain.RequestContext) error {
	l.logger.Debug("request processed", append(l.attrs(rc), "active", rc.Execution().IsActive())...)
	return nil
}

func (l *Logger) SessionStarting(rc domain.RequestContext, flow *domain.Flow, input map[string]any) error {
	l.logger.Debug("session starting", append(l.attrs(rc), "subflow", flow.ID(), "input", l.redact(input))...)
	return nil
}

func (l *Logger) SessionStarted(rc domain.RequestContext, session *domain.FlowSession) error {
	l.logger.Info("session started", append(l.attrs(rc), "session_flow", session.Definition().ID())...)
	return nil
}

func (l *Logger) EventSignaled(rc domain.RequestContext, ev domain.Event) error {
	l.logger.Debug("event signaled", append(l.attrs(rc), "event", ev.ID)...)
	return nil
}

func (l *Logger) StateEntering(rc domain.RequestContext, state domain.State) error {
	l.logger.Debug("state entering", append(l.attrs(rc), "state", state.ID(), "kind", domain.StateKind(state))...)
	return nil
}

func (l *Logger) StateEntered(rc domain.RequestContext, previous, state domain.State) error {
	args := append(l.attrs(rc), "state", state.ID())
	if previous != nil {
		args = append(args, "previous", previous.ID())
	}
	l.logger.Debug("state entered", args...)
	return nil
}

func (l *Logger) Paused(rc domain.RequestContext, view domain.ViewSelection) error {
	l.logger.Info("paused", append(l.attrs(rc), "view", view.ViewName, "model", l.redact(view.Model))...)
	return nil
}

func (l *Logger) Resumed(rc domain.RequestContext) error {
	l.logger.Debug("resumed", l.attrs(rc)...)
	return nil
}

func (l *Logger) SessionEnding(rc domain.RequestContext, session *domain.FlowSession, output map[string]any) error {
	l.logger.Debug("session ending", append(l.attrs(rc), "session_flow", session.Definition().ID(), "state", session.StateID())...)
	return nil
}

func (l *Logger) SessionEnded(rc domain.RequestContext, session *domain.FlowSession, output map[string]any) error {
	l.logger.Info("session ended", append(l.attrs(rc), "session_flow", session.Definition().ID(), "state", session.StateID(), "output", l.redact(output))...)
	return nil
}

func (l *Logger) Created(exec domain.Execution) error {
	l.logger.Debug("execution created", "flow", exec.Definition().ID())
	return nil
}

func (l *Logger) Loaded(exec domain.Execution, key domain.ContinuationKey) error {
	l.logger.Debug("execution loaded", "flow", exec.Definition().ID(), "key", key.String())
	return nil
}

func (l *Logger) Saved(exec domain.Execution, key domain.ContinuationKey) error {
	l.logger.Info("execution saved", "flow", exec.Definition().ID(), "key", key.String())
	return nil
}

func (l *Logger) Removed(exec domain.Execution, conversationID string) error {
	l.logger.Info("conversation removed", "flow", exec.Definition().ID(), "conversation_id", conversationID)
	return nil
}

var _ domain.Listener = (*Logger)(nil)
