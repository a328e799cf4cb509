package main

import (
	"fmt"

	"github.com/aretw0/pergola/internal/cli"
	"github.com/aretw0/pergola/internal/presentation/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [flow-id]",
	Short: "Export the flow graph visualization",
	Long:  `Outputs a Mermaid diagram (graph TD) of a flow definition.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		current, _ := cmd.Flags().GetString("current")

		flows, err := cli.LoadFlows(cfg.Flows, cli.Options{}, logger)
		if err != nil {
			return err
		}

		var flowID string
		if len(args) > 0 {
			flowID = args[0]
		} else if flowID, err = cli.DefaultFlowID(flows, cfg.Flows); err != nil {
			return err
		}

		flow, err := flows.GetFlow(flowID)
		if err != nil {
			return err
		}

		var overlay *graph.Overlay
		if current != "" {
			overlay = &graph.Overlay{CurrentState: current}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(flow, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("current", "", "Highlight this state")
}
