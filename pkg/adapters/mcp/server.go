package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/pergola"
	"github.com/aretw0/pergola/internal/logging"
	"github.com/aretw0/pergola/internal/presentation/graph"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/aretw0/pergola/pkg/ports"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// FlowsURI is the resource listing the registered flows.
const FlowsURI = "pergola://flows"

// ViewResult is the structured result of every tool producing a view.
type ViewResult struct {
	Key            string               `json:"key,omitempty" jsonschema_description:"Continuation key to pass to signal_event. Empty once the flow ended"`
	ConversationID string               `json:"conversation_id,omitempty" jsonschema_description:"Conversation identifier, stable across steps"`
	Active         bool                 `json:"active" jsonschema_description:"Whether the conversation waits for another event"`
	View           domain.ViewSelection `json:"view" jsonschema_description:"View to present: name, model and kind"`
}

// LaunchArgs are the arguments of launch_flow.
type LaunchArgs struct {
	FlowID string         `json:"flow_id"`
	Input  map[string]any `json:"input,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// SignalArgs are the arguments of signal_event.
type SignalArgs struct {
	Key    string         `json:"key"`
	Event  string         `json:"event"`
	Params map[string]any `json:"params,omitempty"`
}

// ViewArgs are the arguments of current_view.
type ViewArgs struct {
	ConversationID string `json:"conversation_id"`
}

// Executor is the part of *pergola.Executor the MCP tools drive.
type Executor interface {
	Launch(ctx context.Context, flowID string, input map[string]any, ext domain.ExternalContext) (pergola.Response, error)
	SignalEvent(ctx context.Context, eventID string, encodedKey string, ext domain.ExternalContext) (pergola.Response, error)
	CurrentViewSelection(ctx context.Context, conversationID string, ext domain.ExternalContext) (domain.ViewSelection, error)
}

// Server exposes an Executor as an MCP Server.
type Server struct {
	executor  Executor
	flows     ports.FlowLocator
	shared    domain.SharedMap
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger of the tool handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSharedScope hands shared to every tool call as the external shared scope.
func WithSharedScope(shared domain.SharedMap) Option {
	return func(s *Server) {
		s.shared = shared
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(executor Executor, flows ports.FlowLocator, opts ...Option) *Server {
	s := &Server{
		executor:  executor,
		flows:     flows,
		mcpServer: server.NewMCPServer("pergola-mcp", strings.TrimSpace(pergola.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for custom transports.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: launch_flow
	launchTool := mcp.NewTool("launch_flow",
		mcp.WithDescription("Start a new conversation of a flow and return its first view."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Identifier of the flow to launch")),
		mcp.WithObject("input", mcp.Description("Initial flow attributes (optional)")),
		mcp.WithObject("params", mcp.Description("Request parameters handed to actions (optional)")),
		mcp.WithOutputSchema[ViewResult](),
	)
	s.mcpServer.AddTool(launchTool, mcp.NewStructuredToolHandler(s.HandleLaunch))

	// TOOL: signal_event
	signalTool := mcp.NewTool("signal_event",
		mcp.WithDescription("Resume a paused conversation with an event and return the next view."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Continuation key returned by the previous step")),
		mcp.WithString("event", mcp.Required(), mcp.Description("Event identifier, e.g. submit or cancel")),
		mcp.WithObject("params", mcp.Description("Request parameters handed to actions (optional)")),
		mcp.WithOutputSchema[ViewResult](),
	)
	s.mcpServer.AddTool(signalTool, mcp.NewStructuredToolHandler(s.HandleSignal))

	// TOOL: current_view
	viewTool := mcp.NewTool("current_view",
		mcp.WithDescription("Replay the last view of a conversation without advancing it."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation identifier")),
		mcp.WithOutputSchema[ViewResult](),
	)
	s.mcpServer.AddTool(viewTool, mcp.NewStructuredToolHandler(s.HandleCurrentView))

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the Mermaid flowchart of a flow definition."),
		mcp.WithString("flow_id", mcp.Required(), mcp.Description("Identifier of the flow")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		flowID, err := request.RequireString("flow_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		text, err := s.Graph(flowID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}

// HandleLaunch implements launch_flow.
func (s *Server) HandleLaunch(ctx context.Context, _ mcp.CallToolRequest, args LaunchArgs) (ViewResult, error) {
	if args.FlowID == "" {
		return ViewResult{}, errors.New("flow_id is required")
	}
	resp, err := s.executor.Launch(ctx, args.FlowID, args.Input, domain.NewExternalContext(args.Params, s.shared))
	if err != nil {
		s.logger.Warn("MCP Launch failed", "flow", args.FlowID, "err", err)
		return ViewResult{}, fmt.Errorf("launch failed: %w", err)
	}
	return toViewResult(resp), nil
}

// HandleSignal implements signal_event.
func (s *Server) HandleSignal(ctx context.Context, _ mcp.CallToolRequest, args SignalArgs) (ViewResult, error) {
	if args.Key == "" || args.Event == "" {
		return ViewResult{}, errors.New("key and event are required")
	}
	resp, err := s.executor.SignalEvent(ctx, args.Event, args.Key, domain.NewExternalContext(args.Params, s.shared))
	if err != nil {
		s.logger.Warn("MCP Signal failed", "event", args.Event, "err", err)
		return ViewResult{}, fmt.Errorf("signal failed: %w", err)
	}
	return toViewResult(resp), nil
}

// HandleCurrentView implements current_view.
func (s *Server) HandleCurrentView(ctx context.Context, _ mcp.CallToolRequest, args ViewArgs) (ViewResult, error) {
	view, err := s.executor.CurrentViewSelection(ctx, args.ConversationID, domain.NewExternalContext(nil, s.shared))
	if err != nil {
		return ViewResult{}, fmt.Errorf("current view failed: %w", err)
	}
	return ViewResult{
		ConversationID: args.ConversationID,
		Active:         !view.IsEnd(),
		View:           view,
	}, nil
}

// Graph renders the Mermaid flowchart of flowID.
func (s *Server) Graph(flowID string) (string, error) {
	if s.flows == nil {
		return "", domain.ErrFlowNotFound
	}
	flow, err := s.flows.GetFlow(flowID)
	if err != nil {
		return "", err
	}
	return graph.GenerateMermaid(flow, nil), nil
}

func (s *Server) registerResources() {
	// EXPOSE: pergola://flows
	s.mcpServer.AddResource(mcp.NewResource(FlowsURI, "Registered Flows",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids := []string{}
		if s.flows != nil {
			ids = s.flows.FlowIDs()
		}
		jsonBytes, err := json.Marshal(ids)
		if err != nil {
			return nil, fmt.Errorf("failed to encode flows: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      FlowsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

func toViewResult(resp pergola.Response) ViewResult {
	return ViewResult{
		Key:            resp.EncodedKey(),
		ConversationID: resp.ConversationID,
		Active:         resp.Active(),
		View:           resp.View,
	}
}
