package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/pergola/internal/cli"
	"github.com/aretw0/pergola/pkg/domain"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var conversationCmd = &cobra.Command{
	Use:     "conversation",
	Aliases: []string{"conv"},
	Short:   "Manage stored conversations",
	Long:    `List, inspect, and remove conversations kept in the configured store.`,
}

var conversationLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := cli.OpenStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		ids, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("error listing conversations: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No stored conversations found.")
			return nil
		}

		fmt.Fprintln(out, "Stored Conversations:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

// inspection is the printable form of a conversation record.
type inspection struct {
	ID            string                `json:"id" yaml:"id"`
	FlowID        string                `json:"flow_id" yaml:"flow_id"`
	Version       int64                 `json:"version" yaml:"version"`
	CreatedAt     time.Time             `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at" yaml:"updated_at"`
	CurrentView   *domain.ViewSelection `json:"current_view,omitempty" yaml:"current_view,omitempty"`
	Continuations []inspectedSnapshot   `json:"continuations" yaml:"continuations"`
}

type inspectedSnapshot struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Snapshot  any       `json:"snapshot" yaml:"snapshot"`
}

func inspect(conv *domain.Conversation) inspection {
	out := inspection{
		ID:          conv.ID,
		FlowID:      conv.FlowID,
		Version:     conv.Version,
		CreatedAt:   conv.CreatedAt,
		UpdatedAt:   conv.UpdatedAt,
		CurrentView: conv.CurrentView,
	}
	for _, c := range conv.Continuations {
		var snapshot any
		if err := json.Unmarshal(c.Data, &snapshot); err != nil {
			snapshot = fmt.Sprintf("<sealed, %d bytes>", len(c.Data))
		}
		out.Continuations = append(out.Continuations, inspectedSnapshot{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			Snapshot:  snapshot,
		})
	}
	return out
}

func writeInspection(w io.Writer, format string, v inspection) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format '%s' (json, yaml)", format)
	}
}

var conversationInspectCmd = &cobra.Command{
	Use:   "inspect <conversation-id>",
	Short: "Inspect the stored record of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("output")
		conversationID := args[0]

		store, closeStore, err := cli.OpenStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		conv, err := store.Load(cmd.Context(), conversationID)
		if err != nil {
			return fmt.Errorf("error loading conversation '%s': %w", conversationID, err)
		}
		return writeInspection(cmd.OutOrStdout(), format, inspect(conv))
	},
}

var conversationRmCmd = &cobra.Command{
	Use:   "rm [conversation-id...]",
	Short: "Remove one or more conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) > 0) {
			return errors.New("pass conversation ids or --all, not both")
		}

		store, closeStore, err := cli.OpenStore(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		ids := args
		if all {
			if ids, err = store.List(cmd.Context()); err != nil {
				return fmt.Errorf("error listing conversations: %w", err)
			}
		}

		var errs []error
		out := cmd.OutOrStdout()
		for _, id := range ids {
			if err := store.Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("error removing '%s': %w", id, err))
				continue
			}
			fmt.Fprintf(out, "Removed conversation '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(conversationCmd)
	conversationCmd.AddCommand(conversationLsCmd)
	conversationCmd.AddCommand(conversationInspectCmd)
	conversationCmd.AddCommand(conversationRmCmd)

	conversationInspectCmd.Flags().StringP("output", "o", "json", "Output format: json or yaml")
	conversationRmCmd.Flags().Bool("all", false, "Remove every stored conversation")
}
