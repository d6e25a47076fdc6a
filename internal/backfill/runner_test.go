package backfill

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPipeline parses with a real orchestrator and records commits.
type recordingPipeline struct {
	orch      *ingest.Orchestrator
	committed []string
	failOn    string
}

func newPipeline() *recordingPipeline {
	return &recordingPipeline{orch: ingest.New(nil, discardLogger())}
}

func (p *recordingPipeline) Parse(raw any, opts ingest.Options) (*ingest.Conversation, error) {
	return p.orch.Parse(raw, opts)
}

func (p *recordingPipeline) Ingest(_ context.Context, raw any, opts ingest.Options, sourceRef string) (*ingest.IngestResult, error) {
	if p.failOn != "" && strings.HasSuffix(sourceRef, p.failOn) {
		return nil, errors.New("db down")
	}
	conv, err := p.orch.Parse(raw, opts)
	if err != nil {
		return nil, err
	}
	p.committed = append(p.committed, filepath.Base(sourceRef))
	return &ingest.IngestResult{ConversationID: uuid.New(), TurnCount: len(conv.Turns), Conversation: conv}, nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const (
	fullExport    = "1/29/24, 2:30 PM - Alice: one\n1/29/24, 2:31 PM - Bob: two\n1/29/24, 2:32 PM - Alice: three\n1/29/24, 2:33 PM - Bob: four\n1/29/24, 2:34 PM - Alice: five\n"
	partialExport = "1/29/24, 2:31 PM - Bob: two\n1/29/24, 2:32 PM - Alice: three\n1/29/24, 2:33 PM - Bob: four\n1/29/24, 2:34 PM - Alice: five\n"
	subtitles     = "1\n00:00:01,000 --> 00:00:02,000\nNarrator: Hello\n"
)

func setupDir(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, dir, "chats/full.txt", fullExport)
	writeFile(t, dir, "chats/partial.txt", partialExport)
	writeFile(t, dir, "movie.srt", subtitles)
	writeFile(t, dir, "notes.txt", "just some notes")
	writeFile(t, dir, "video.mp4", "binary")
	return dir
}

func TestRunner_IngestsAndSkipsDuplicates(t *testing.T) {
	dir := setupDir(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	p := newPipeline()

	r := NewRunner(Config{Dir: dir, StatePath: statePath}, p, discardLogger())
	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if strings.Join(p.committed, ",") != "full.txt,movie.srt" {
		t.Errorf("unexpected commits %v", p.committed)
	}

	var dup, failed int
	for _, f := range summary.Files {
		if f.Duplicate {
			dup++
			if filepath.Base(f.Path) != "partial.txt" {
				t.Errorf("unexpected duplicate %s", f.Path)
			}
		}
		if f.Err != "" {
			failed++
		}
	}
	if dup != 1 || failed != 1 {
		t.Errorf("expected 1 duplicate and 1 failure, got %d and %d", dup, failed)
	}

	state, err := LoadState(statePath)
	if err != nil {
		t.Fatal(err)
	}
	if state.ConversationsIngested != 2 || state.TurnsIngested != 6 || state.DuplicatesSkipped != 1 {
		t.Errorf("unexpected state %+v", state)
	}
	if len(state.Errors) != 1 {
		t.Errorf("expected 1 recorded error, got %v", state.Errors)
	}
}

func TestRunner_ResumesFromState(t *testing.T) {
	dir := setupDir(t)
	statePath := filepath.Join(t.TempDir(), "state.json")

	first := newPipeline()
	if _, err := NewRunner(Config{Dir: dir, StatePath: statePath}, first, discardLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	second := newPipeline()
	if _, err := NewRunner(Config{Dir: dir, StatePath: statePath}, second, discardLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(second.committed) != 0 {
		t.Errorf("second run should commit nothing, got %v", second.committed)
	}
}

func TestRunner_DryRun(t *testing.T) {
	dir := setupDir(t)
	statePath := filepath.Join(t.TempDir(), "state.json")
	p := newPipeline()

	summary, err := NewRunner(Config{Dir: dir, StatePath: statePath, DryRun: true}, p, discardLogger()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.committed) != 0 {
		t.Errorf("dry run should not commit, got %v", p.committed)
	}
	if _, err := os.Stat(statePath); !os.IsNotExist(err) {
		t.Error("dry run should not write state")
	}
	if out := FormatSummary(summary); !strings.Contains(out, "DRY RUN") || !strings.Contains(out, "whatsapp (2 files, 5 turns, 1 duplicates)") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestRunner_IngestFailureIsRetried(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "movie.srt", subtitles)
	statePath := filepath.Join(t.TempDir(), "state.json")

	p := newPipeline()
	p.failOn = "movie.srt"
	if _, err := NewRunner(Config{Dir: dir, StatePath: statePath}, p, discardLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.failOn = ""
	if _, err := NewRunner(Config{Dir: dir, StatePath: statePath}, p, discardLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(p.committed) != 1 {
		t.Errorf("expected failed file to be retried, got %v", p.committed)
	}
}

func TestRunner_MinTurns(t *testing.T) {
	dir := setupDir(t)
	p := newPipeline()
	cfg := Config{Dir: dir, StatePath: filepath.Join(t.TempDir(), "s.json"), MinTurns: 2}

	if _, err := NewRunner(cfg, p, discardLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, c := range p.committed {
		if c == "movie.srt" {
			t.Error("single-turn subtitle should be skipped")
		}
	}
}

func TestRunner_SingleFile(t *testing.T) {
	dir := setupDir(t)
	p := newPipeline()
	cfg := Config{SingleFile: filepath.Join(dir, "movie.srt"), StatePath: filepath.Join(t.TempDir(), "s.json")}

	if _, err := NewRunner(cfg, p, discardLogger()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(p.committed) != 1 || p.committed[0] != "movie.srt" {
		t.Errorf("unexpected commits %v", p.committed)
	}
}

func TestRunner_MissingDir(t *testing.T) {
	cfg := Config{Dir: filepath.Join(t.TempDir(), "missing"), StatePath: filepath.Join(t.TempDir(), "s.json")}
	if _, err := NewRunner(cfg, newPipeline(), discardLogger()).Run(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestRunner_Cancelled(t *testing.T) {
	dir := setupDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newPipeline()
	_, err := NewRunner(Config{Dir: dir, StatePath: filepath.Join(t.TempDir(), "s.json")}, p, discardLogger()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(p.committed) != 0 {
		t.Errorf("cancelled run should not commit, got %v", p.committed)
	}
}
