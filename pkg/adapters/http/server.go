package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/pergola"
	"github.com/aretw0/pergola/internal/logging"
	"github.com/aretw0/pergola/internal/presentation/graph"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// KeyHeader carries the continuation key on redirect responses, whose body clients may not read.
const KeyHeader = "Pergola-Continuation-Key"

// MaxBodyBytes limits request bodies.
const MaxBodyBytes = 1 << 20

// Executor is the part of *pergola.Executor the transport drives.
type Executor interface {
	Launch(ctx context.Context, flowID string, input map[string]any, ext domain.ExternalContext) (pergola.Response, error)
	SignalEvent(ctx context.Context, eventID string, encodedKey string, ext domain.ExternalContext) (pergola.Response, error)
	CurrentViewSelection(ctx context.Context, conversationID string, ext domain.ExternalContext) (domain.ViewSelection, error)
}

var _ Executor = (*pergola.Executor)(nil)

// Server maps HTTP requests onto an Executor.
type Server struct {
	Executor Executor
	Flows    ports.FlowLocator
	Streams  *StreamManager

	shared domain.SharedMap
	logger *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSharedScope hands shared to every request as the external shared scope.
func WithSharedScope(shared domain.SharedMap) Option {
	return func(s *Server) {
		s.shared = shared
	}
}

// LaunchRequest is the optional body of POST /flows/{flowID}.
type LaunchRequest struct {
	Input  map[string]any `json:"input,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// SignalRequest is the optional body of POST /executions/{key}/events/{eventID}.
type SignalRequest struct {
	Params map[string]any `json:"params,omitempty"`
}

// ViewResponse is returned by every endpoint that produces a view.
type ViewResponse struct {
	Key            string               `json:"key,omitempty"`
	ConversationID string               `json:"conversation_id,omitempty"`
	Active         bool                 `json:"active"`
	View           domain.ViewSelection `json:"view"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a Server. flows may be nil, which disables the flow listing routes.
func NewServer(exec Executor, flows ports.FlowLocator, opts ...Option) *Server {
	s := &Server{
		Executor: exec,
		Flows:    flows,
		Streams:  NewStreamManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.Streams.logger = s.logger
	return s
}

// NewHandler creates the HTTP handler for an executor.
func NewHandler(exec Executor, flows ports.FlowLocator, opts ...Option) http.Handler {
	return NewServer(exec, flows, opts...).Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)

	r.Get("/flows", s.ListFlows)
	r.Post("/flows/{flowID}", s.Launch)
	r.Get("/flows/{flowID}/graph", s.GetGraph)

	r.Post("/executions/{key}/events/{eventID}", s.Signal)

	r.Get("/conversations/{conversationID}", s.CurrentView)
	r.Get("/conversations/{conversationID}/events", s.SubscribeEvents)

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", KeyHeader+", Location")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Launch handles POST /flows/{flowID}.
func (s *Server) Launch(w http.ResponseWriter, r *http.Request) {
	var body LaunchRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	flowID := chi.URLParam(r, "flowID")
	resp, err := s.Executor.Launch(r.Context(), flowID, body.Input, s.external(r, body.Params))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Debug("Launch: conversation started", "flow", flowID, "conversation_id", resp.ConversationID, "active", resp.Active())
	s.writeView(w, resp)
}

// Signal handles POST /executions/{key}/events/{eventID}.
func (s *Server) Signal(w http.ResponseWriter, r *http.Request) {
	var body SignalRequest
	if !s.decodeBody(w, r, &body) {
		return
	}

	key := chi.URLParam(r, "key")
	eventID := chi.URLParam(r, "eventID")
	resp, err := s.Executor.SignalEvent(r.Context(), eventID, key, s.external(r, body.Params))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publish(resp)
	s.writeView(w, resp)
}

// CurrentView handles GET /conversations/{conversationID}.
// It replays the stored view and never advances the conversation.
func (s *Server) CurrentView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	view, err := s.Executor.CurrentViewSelection(r.Context(), id, s.external(r, nil))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ViewResponse{
		ConversationID: id,
		Active:         !view.IsEnd(),
		View:           view,
	})
}

// ListFlows handles GET /flows.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	if s.Flows == nil {
		writeJSON(w, s.logger, http.StatusNotFound, ErrorResponse{Error: "flow listing disabled"})
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string][]string{"flows": s.Flows.FlowIDs()})
}

// GetGraph handles GET /flows/{flowID}/graph, answering a Mermaid flowchart.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	if s.Flows == nil {
		writeJSON(w, s.logger, http.StatusNotFound, ErrorResponse{Error: "flow listing disabled"})
		return
	}
	flow, err := s.Flows.GetFlow(chi.URLParam(r, "flowID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var overlay *graph.Overlay
	if current := r.URL.Query().Get("current"); current != "" {
		overlay = &graph.Overlay{CurrentState: current}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, graph.GenerateMermaid(flow, overlay))
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":     "pergola-http",
		"version": strings.TrimSpace(pergola.Version),
	})
}

// external builds the external context of a request: body parameters, then query
// parameters for keys the body did not set.
func (s *Server) external(r *http.Request, params map[string]any) domain.ExternalContext {
	merged := make(map[string]any, len(params))
	for k, v := range params {
		merged[k] = v
	}
	for k, vs := range r.URL.Query() {
		if _, ok := merged[k]; ok || len(vs) == 0 {
			continue
		}
		if len(vs) == 1 {
			merged[k] = vs[0]
		} else {
			merged[k] = vs
		}
	}
	return domain.NewExternalContext(merged, s.shared)
}

// decodeBody decodes an optional JSON body into out. An empty body is accepted.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(out)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	s.logger.Warn("Invalid request body", "path", r.URL.Path, "err", err)
	writeJSON(w, s.logger, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	return false
}

func (s *Server) publish(resp pergola.Response) {
	if resp.ConversationID == "" {
		return
	}
	data, err := json.Marshal(toViewResponse(resp))
	if err != nil {
		s.logger.Warn("StreamManager: cannot encode view", "conversation_id", resp.ConversationID, "err", err)
		return
	}
	s.Streams.Broadcast(resp.ConversationID, string(data))
}

// writeView answers a view, or 303 See Other towards the conversation for redirect views.
func (s *Server) writeView(w http.ResponseWriter, resp pergola.Response) {
	status := http.StatusOK
	if resp.View.IsRedirect() {
		w.Header().Set("Location", "/conversations/"+resp.View.ConversationID)
		w.Header().Set(KeyHeader, resp.EncodedKey())
		status = http.StatusSeeOther
	}
	writeJSON(w, s.logger, status, toViewResponse(resp))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "status", status, "err", err)
	} else {
		s.logger.Warn("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSON(w, s.logger, status, ErrorResponse{Error: err.Error()})
}

// StatusFor maps engine and repository failures to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidKeyFormat):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrFlowNotFound),
		errors.Is(err, domain.ErrConversationNotFound),
		errors.Is(err, domain.ErrNoCurrentView):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrContinuationNotFound):
		return http.StatusGone
	case errors.Is(err, domain.ErrSnapshotMismatch),
		errors.Is(err, domain.ErrCorruptContinuation):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoMatchingTransition):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toViewResponse(resp pergola.Response) ViewResponse {
	return ViewResponse{
		Key:            resp.EncodedKey(),
		ConversationID: resp.ConversationID,
		Active:         resp.Active(),
		View:           resp.View,
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", fmt.Errorf("status %d: %w", status, err))
	}
}
