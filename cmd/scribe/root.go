package main

import (
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/config"
)

func newRootCmd() *cobra.Command {
	var cfg config.Config

	rootCmd := &cobra.Command{
		Use:           "scribe",
		Short:         "Normalize conversation exports into speaker-attributed turns",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg.LogLevel)
			return nil
		},
	}

	rootCmd.AddCommand(newServeCmd(&cfg))
	rootCmd.AddCommand(newParseCmd(&cfg))
	rootCmd.AddCommand(newBackfillCmd(&cfg))

	return rootCmd
}
