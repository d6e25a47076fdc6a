package backfill

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/watcher"
)

// Config holds the backfill command configuration.
type Config struct {
	Dir        string
	SingleFile string // process a single file only
	StatePath  string
	DryRun     bool
	MinTurns   int // skip conversations with fewer turns
}

// Pipeline parses and commits conversations.
type Pipeline interface {
	Parse(raw any, opts ingest.Options) (*ingest.Conversation, error)
	Ingest(ctx context.Context, raw any, opts ingest.Options, sourceRef string) (*ingest.IngestResult, error)
}

// Runner imports every supported file under a directory once.
type Runner struct {
	cfg      Config
	pipeline Pipeline
	logger   *slog.Logger
}

// NewRunner creates a backfill runner.
func NewRunner(cfg Config, p Pipeline, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, pipeline: p, logger: logger}
}

// FileSummary is the outcome for one file.
type FileSummary struct {
	Path           string
	Source         ingest.Format
	Turns          int
	ConversationID string
	Duplicate      bool
	Err            string
}

// Summary is the outcome of a run.
type Summary struct {
	Files     []FileSummary
	StatePath string
	DryRun    bool
}

type parsedFile struct {
	path string
	raw  any
	conv *ingest.Conversation
	fp   fileFingerprint
}

// Run executes the backfill. State is saved after every committed file so an
// interrupted run resumes where it stopped. Dry runs parse and deduplicate
// but neither commit nor record progress.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	r.logger.Info("files discovered", "files", len(files))

	summary := &Summary{StatePath: state.Path(), DryRun: r.cfg.DryRun}

	// Parse all files to get conversations + fingerprints for dedup.
	var parsed []parsedFile
	for _, path := range files {
		if state.IsProcessed(path) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			r.logger.Warn("failed to read file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("read %s: %v", path, err))
			summary.Files = append(summary.Files, FileSummary{Path: path, Err: err.Error()})
			continue
		}
		raw := ingest.DecodeRaw(data)
		conv, err := r.pipeline.Parse(raw, ingest.Options{})
		if err != nil {
			r.logger.Warn("failed to parse file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("parse %s: %v", path, err))
			summary.Files = append(summary.Files, FileSummary{Path: path, Err: err.Error()})
			continue
		}
		if len(conv.Turns) < r.cfg.MinTurns {
			r.logger.Debug("skipping short conversation", "path", path, "turns", len(conv.Turns))
			continue
		}
		parsed = append(parsed, parsedFile{path: path, raw: raw, conv: conv, fp: BuildFingerprint(path, conv)})
	}

	fps := make([]fileFingerprint, 0, len(parsed))
	for _, p := range parsed {
		fps = append(fps, p.fp)
	}
	duplicates := FindDuplicates(fps)

	var todo []parsedFile
	for _, p := range parsed {
		if duplicates[p.path] {
			r.logger.Info("skipping duplicate export", "path", p.path)
			summary.Files = append(summary.Files, FileSummary{Path: p.path, Source: p.conv.Source, Turns: len(p.conv.Turns), Duplicate: true})
			if !r.cfg.DryRun {
				state.DuplicatesSkipped++
				state.MarkProcessed(p.path)
			}
			continue
		}
		todo = append(todo, p)
	}

	state.FilesRemaining = len(todo)
	r.logger.Info("files to process",
		"total", len(todo),
		"duplicates", len(duplicates),
		"dry_run", r.cfg.DryRun,
	)

	for _, pf := range todo {
		select {
		case <-ctx.Done():
			r.logger.Info("backfill interrupted, saving state")
			if !r.cfg.DryRun {
				_ = state.Save()
			}
			return summary, ctx.Err()
		default:
		}

		fs := FileSummary{Path: pf.path, Source: pf.conv.Source, Turns: len(pf.conv.Turns)}

		if r.cfg.DryRun {
			summary.Files = append(summary.Files, fs)
			continue
		}

		res, err := r.pipeline.Ingest(ctx, pf.raw, ingest.Options{}, pf.path)
		if err != nil {
			r.logger.Error("ingest failed", "path", pf.path, "error", err)
			state.AddError(fmt.Sprintf("ingest %s: %v", pf.path, err))
			fs.Err = err.Error()
			summary.Files = append(summary.Files, fs)
			_ = state.Save()
			continue
		}

		fs.ConversationID = res.ConversationID.String()
		summary.Files = append(summary.Files, fs)

		state.ConversationsIngested++
		state.TurnsIngested += res.TurnCount
		state.MarkProcessed(pf.path)
		state.FilesRemaining--
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save state", "path", state.Path(), "error", err)
		}

		r.logger.Info("file ingested",
			"path", pf.path,
			"conversation_id", res.ConversationID,
			"turns", res.TurnCount,
		)
	}

	if !r.cfg.DryRun {
		_ = state.Save()
	}

	r.logger.Info("backfill complete",
		"files", len(summary.Files),
		"dry_run", r.cfg.DryRun,
	)
	return summary, nil
}

// FormatSummary renders a run summary grouped by source format.
func FormatSummary(s *Summary) string {
	byFormat := make(map[string][]FileSummary)
	var failed []FileSummary
	for _, f := range s.Files {
		if f.Err != "" {
			failed = append(failed, f)
			continue
		}
		byFormat[string(f.Source)] = append(byFormat[string(f.Source)], f)
	}

	formats := make([]string, 0, len(byFormat))
	for k := range byFormat {
		formats = append(formats, k)
	}
	sort.Strings(formats)

	var sb strings.Builder
	sb.WriteString("=== Backfill Summary ===\n")

	for _, format := range formats {
		files := byFormat[format]
		turns, dups := 0, 0
		for _, f := range files {
			if f.Duplicate {
				dups++
				continue
			}
			turns += f.Turns
		}
		fmt.Fprintf(&sb, "\n%s (%d files, %d turns, %d duplicates)\n", format, len(files), turns, dups)
		for _, f := range files {
			fmt.Fprintf(&sb, "  - %s: %d turns", filepath.Base(f.Path), f.Turns)
			if f.Duplicate {
				sb.WriteString(" (duplicate, skipped)")
			} else if f.ConversationID != "" {
				fmt.Fprintf(&sb, " -> %s", f.ConversationID)
			}
			sb.WriteString("\n")
		}
	}

	if len(failed) > 0 {
		fmt.Fprintf(&sb, "\nErrors: %d\n", len(failed))
		for _, f := range failed {
			fmt.Fprintf(&sb, "  - %s: %s\n", filepath.Base(f.Path), f.Err)
		}
	}

	if s.DryRun {
		sb.WriteString("\nMode: DRY RUN (no DB writes)\n")
	} else {
		fmt.Fprintf(&sb, "\nState file: %s\n", s.StatePath)
	}
	return sb.String()
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if !d.IsDir() && watcher.IsSupported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("error walking dir", "dir", dir, "error", err)
	}
	sort.Strings(files)
	return files, nil
}
