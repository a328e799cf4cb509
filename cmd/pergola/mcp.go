package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/pergola/internal/cli"
	"github.com/aretw0/pergola/pkg/adapters/mcp"
	"github.com/aretw0/pergola/pkg/session"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the flows as MCP tools (launch_flow, signal_event, current_view, get_graph)
so that agents can drive conversations step by step.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		baseURL, _ := cmd.Flags().GetString("base-url")

		app, err := newApp(cli.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		srv := mcp.NewServer(app.Executor, app.Flows,
			mcp.WithLogger(logger),
			mcp.WithSharedScope(session.NewSharedMap()),
		)

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting pergola MCP server (stdio)")
			return srv.ServeStdio()
		case "sse":
			if baseURL == "" {
				baseURL = "http://localhost" + cfg.Addr
				if !strings.HasPrefix(cfg.Addr, ":") {
					baseURL = "http://" + cfg.Addr
				}
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, cfg.Addr, baseURL); err != nil {
				return err
			}
			logger.Info("MCP Server stopped gracefully")
			return nil
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("base-url", "", "Public base URL of the SSE server (defaults to the listen address)")
}
