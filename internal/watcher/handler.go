package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/metrics"
)

// Subdirectories of the inbox that handled files are moved into.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Ingester commits one conversation.
type Ingester interface {
	Ingest(ctx context.Context, raw any, opts ingest.Options, sourceRef string) (*ingest.IngestResult, error)
}

// IngestHandler returns an EventHandler that ingests a file and then moves it
// to processed/ or failed/ next to it.
func IngestHandler(ing Ingester, logger *slog.Logger) EventHandler {
	return func(ctx context.Context, filePath string) error {
		data, err := os.ReadFile(filePath)
		if err != nil {
			metrics.WatcherFile("skipped")
			return fmt.Errorf("read %s: %w", filePath, err)
		}

		res, ingestErr := ing.Ingest(ctx, ingest.DecodeRaw(data), ingest.Options{}, filePath)
		dest := ProcessedDir
		if ingestErr != nil {
			dest = FailedDir
			metrics.WatcherFile("failed")
		} else {
			metrics.WatcherFile("ingested")
			logger.Info("inbox file ingested",
				"path", filePath,
				"conversation_id", res.ConversationID,
				"turns", res.TurnCount,
			)
		}

		if err := moveInto(filePath, dest); err != nil {
			logger.Warn("failed to move handled file", "path", filePath, "dest", dest, "error", err)
		}
		if ingestErr != nil {
			return fmt.Errorf("ingest %s: %w", filePath, ingestErr)
		}
		return nil
	}
}

func moveInto(filePath, sub string) error {
	dir := filepath.Join(filepath.Dir(filePath), sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.Rename(filePath, filepath.Join(dir, filepath.Base(filePath)))
}
