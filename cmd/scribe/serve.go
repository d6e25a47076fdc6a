package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/scribe/internal/api"
	"github.com/MikeSquared-Agency/scribe/internal/config"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/processor"
	"github.com/MikeSquared-Agency/scribe/internal/store"
	"github.com/MikeSquared-Agency/scribe/internal/watcher"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the NATS ingest subscriber and the optional inbox watcher",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	slog.Info("scribe starting", "port", cfg.Port)

	// Database
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}
	slog.Info("database connected")

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return err
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Processor wraps the orchestrator for every entry point.
	orch := ingest.New(db, slog.Default()).WithPreviewTurns(cfg.PreviewTurns)
	proc := processor.New(orch, hermesClient, slog.Default())

	if err := hermesClient.Subscribe(hermes.SubjectIngestRequested, proc.HandleIngestRequest); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, proc, db, slog.Default())
	g.Go(func() error {
		return srv.Run(gctx)
	})

	// Inbox watcher (optional)
	if cfg.InboxDir != "" {
		w, err := watcher.New(cfg.InboxDir, watcher.IngestHandler(proc, slog.Default()), slog.Default(), cfg.MaxConcurrent)
		if err != nil {
			return err
		}
		defer w.Stop()
		g.Go(func() error {
			return w.Start(gctx)
		})
	} else {
		slog.Info("inbox watcher disabled, SCRIBE_INBOX_DIR not set")
	}

	if err := proc.Announce(); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("scribe ready", "port", cfg.Port)

	err = g.Wait()
	slog.Info("shutting down")
	if derr := hermesClient.Drain(5 * time.Second); derr != nil {
		slog.Warn("failed to drain NATS connection", "error", derr)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("scribe stopped")
	return nil
}
