package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/pergola/internal/cli"
	"github.com/aretw0/pergola/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pergola",
	Short: "Pergola runs resumable, multi-step flows",
	Long: `Pergola executes flows defined as YAML documents one request at a time.
Every pause hands out a continuation key that resumes the conversation later,
from any replica sharing the same conversation store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(viper.New(), cmd)
		if err != nil {
			return err
		}
		logger, err = cli.NewLogger(cfg)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	config.RegisterFlags(rootCmd)
}

// newApp builds the executor for commands that run flows.
func newApp(opts cli.Options) (*cli.App, error) {
	return cli.NewApp(cfg, logger, opts)
}
