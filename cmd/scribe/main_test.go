package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SCRIBE_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movie.srt")
	content := "1\n00:00:01,000 --> 00:00:02,500\nAlice: Hi\n\n2\n00:00:03,000 --> 00:00:04,000\n(Bob) Hello\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "", "parse", path, "--title", "Movie")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var conv struct {
		Title  string `json:"title"`
		Source string `json:"source"`
		Turns  []struct {
			Speaker string `json:"speaker"`
			StartMs *int64 `json:"start_ms"`
		} `json:"turns"`
	}
	if err := json.Unmarshal([]byte(out), &conv); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if conv.Title != "Movie" || conv.Source != "srt" || len(conv.Turns) != 2 {
		t.Errorf("unexpected conversation %+v", conv)
	}
	if conv.Turns[1].Speaker != "Bob" || conv.Turns[1].StartMs == nil || *conv.Turns[1].StartMs != 3000 {
		t.Errorf("unexpected second turn %+v", conv.Turns[1])
	}
}

func TestParseCmd_PreviewFromStdin(t *testing.T) {
	out, err := runCmd(t, "1/29/24, 2:30 PM - Alice: Hello\n1/29/24, 2:31 PM - Bob: Hi\n", "parse", "-", "--preview")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	var prev map[string]any
	if err := json.Unmarshal([]byte(out), &prev); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if prev["format"] != "whatsapp" || prev["turn_count"] != float64(2) {
		t.Errorf("unexpected preview %v", prev)
	}
}

func TestParseCmd_DetectionFailure(t *testing.T) {
	_, err := runCmd(t, "nothing recognizable", "parse", "-")
	if err == nil {
		t.Fatal("expected detection error")
	}
}

func TestParseCmd_UnknownFormatFlag(t *testing.T) {
	_, err := runCmd(t, "1/29/24, 2:30 PM - Alice: Hello\n", "parse", "-", "--format", "srtt")
	if err == nil || !strings.Contains(err.Error(), "srtt") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestParseCmd_MissingFile(t *testing.T) {
	if _, err := runCmd(t, "", "parse", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBackfillCmd_DryRun(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "chat.txt"), []byte("1/29/24, 2:30 PM - Alice: Hello\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCmd(t, "", "backfill", dir, "--dry-run", "--state", filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("backfill failed: %v", err)
	}
	if !strings.Contains(out, "DRY RUN") || !strings.Contains(out, "chat.txt") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestBackfillCmd_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := runCmd(t, "", "backfill", t.TempDir()); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestServeCmd_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := runCmd(t, "", "serve"); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}
