package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/pergola/internal/cli"
	"github.com/aretw0/pergola/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [flow-id...]",
	Short: "Check flow documents for consistency",
	Long: `Loads every flow document, which already rejects unknown targets, actions and
sub-flows, then reports unreachable states, dead ends and sub-flow outcomes the
parent state does not handle.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flows, err := cli.LoadFlows(cfg.Flows, cli.Options{}, logger)
		if err != nil {
			return err
		}

		ids := args
		if len(ids) == 0 {
			ids = flows.FlowIDs()
		}

		var errs []error
		for _, id := range ids {
			flow, err := flows.GetFlow(id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := validator.ValidateFlow(flow); err != nil {
				errs = append(errs, fmt.Errorf("flow '%s': %w", id, err))
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("validation failed: %w", errors.Join(errs...))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d flow(s) valid! ✅\n", len(ids))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
