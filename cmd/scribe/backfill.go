package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/backfill"
	"github.com/MikeSquared-Agency/scribe/internal/config"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/processor"
	"github.com/MikeSquared-Agency/scribe/internal/store"
)

func newBackfillCmd(cfg *config.Config) *cobra.Command {
	var (
		dryRun    bool
		statePath string
		file      string
		minTurns  int
	)

	cmd := &cobra.Command{
		Use:   "backfill [dir]",
		Short: "Import every supported export under a directory once",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			bcfg := backfill.Config{
				SingleFile: file,
				StatePath:  cfg.StatePath,
				DryRun:     dryRun,
				MinTurns:   minTurns,
			}
			if len(args) == 1 {
				bcfg.Dir = args[0]
			}
			if statePath != "" {
				bcfg.StatePath = statePath
			}
			if bcfg.Dir == "" && bcfg.SingleFile == "" {
				return errors.New("a directory or --file is required")
			}

			var sink ingest.Sink
			if !dryRun {
				if cfg.DatabaseURL == "" {
					return errors.New("DATABASE_URL is required (or use --dry-run)")
				}
				db, err := store.New(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.Migrate(ctx); err != nil {
					return err
				}
				sink = db
			}

			orch := ingest.New(sink, slog.Default())
			proc := processor.New(orch, nil, slog.Default())

			summary, err := backfill.NewRunner(bcfg, proc, slog.Default()).Run(ctx)
			if summary != nil {
				fmt.Fprint(cmd.OutOrStdout(), backfill.FormatSummary(summary))
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and deduplicate without writing to the database")
	cmd.Flags().StringVar(&statePath, "state", "", "state file for resumable runs")
	cmd.Flags().StringVar(&file, "file", "", "process a single file only")
	cmd.Flags().IntVar(&minTurns, "min-turns", 1, "skip conversations with fewer turns")

	return cmd
}
