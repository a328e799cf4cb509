package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/pergola"
	"github.com/aretw0/pergola/internal/cli"
	"github.com/aretw0/pergola/internal/presentation/tui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [flow-id]",
	Short: "Run a flow interactively in the terminal",
	Long: `Launches a flow and reads one event per line from standard input.
Type 'exit' or 'quit' to leave; the conversation stays stored and resumable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headless, _ := cmd.Flags().GetBool("headless")
		rawInput, _ := cmd.Flags().GetString("input")

		var input map[string]any
		if rawInput != "" {
			if err := json.Unmarshal([]byte(rawInput), &input); err != nil {
				return fmt.Errorf("error parsing --input JSON: %w", err)
			}
		}

		app, err := newApp(cli.Options{})
		if err != nil {
			return err
		}
		defer app.Close()

		var flowID string
		if len(args) > 0 {
			flowID = args[0]
		} else if flowID, err = cli.DefaultFlowID(app.Flows, cfg.Flows); err != nil {
			return err
		}

		r := pergola.NewRunner(cmd.InOrStdin(), cmd.OutOrStdout())
		r.Headless = headless
		if !headless && isTerminal(cmd.OutOrStdout()) {
			tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(pergola.Version))
			if r.Renderer, err = tui.NewRenderer(); err != nil {
				logger.Warn("Markdown rendering disabled", "err", err)
			}
		}
		return r.Run(cmd.Context(), app.Executor, flowID, input)
	},
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("headless", false, "Run in headless mode (no prompts, strict IO)")
	runCmd.Flags().String("input", "", "Initial flow attributes as a JSON object")
}
