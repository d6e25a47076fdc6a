package backfill

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
)

func conv(source ingest.Format, texts ...string) *ingest.Conversation {
	c := &ingest.Conversation{Source: source}
	for i, text := range texts {
		c.Turns = append(c.Turns, ingest.Turn{Speaker: "Alice", Text: text, TurnIndex: i})
	}
	return c
}

func TestFindDuplicates_ReExport(t *testing.T) {
	full := BuildFingerprint("exports/full.txt", conv(ingest.FormatWhatsApp, "a", "b", "c", "d", "e"))
	partial := BuildFingerprint("exports/partial.txt", conv(ingest.FormatWhatsApp, "b", "c", "d", "e"))

	dups := FindDuplicates([]fileFingerprint{partial, full})
	if !dups["exports/partial.txt"] {
		t.Error("expected partial re-export to be marked as duplicate")
	}
	if dups["exports/full.txt"] {
		t.Error("the larger export should be kept")
	}
}

func TestFindDuplicates_NoOverlap(t *testing.T) {
	a := BuildFingerprint("a.txt", conv(ingest.FormatWhatsApp, "one", "two", "three"))
	b := BuildFingerprint("b.txt", conv(ingest.FormatWhatsApp, "four", "five", "six"))

	if dups := FindDuplicates([]fileFingerprint{a, b}); len(dups) != 0 {
		t.Errorf("expected no duplicates, got %v", dups)
	}
}

func TestFindDuplicates_BelowThreshold(t *testing.T) {
	a := BuildFingerprint("a.txt", conv(ingest.FormatWhatsApp, "one", "two", "three", "four", "five"))
	// 3 of 5 turns shared = 60%
	b := BuildFingerprint("b.txt", conv(ingest.FormatWhatsApp, "one", "two", "three", "x", "y"))

	if dups := FindDuplicates([]fileFingerprint{a, b}); len(dups) != 0 {
		t.Errorf("expected no duplicates below threshold, got %v", dups)
	}
}

func TestFindDuplicates_IdenticalKeepsFirstPath(t *testing.T) {
	a := BuildFingerprint("a.json", conv(ingest.FormatChatLog, "hi", "there"))
	b := BuildFingerprint("b.json", conv(ingest.FormatChatLog, "hi", "there"))

	dups := FindDuplicates([]fileFingerprint{b, a})
	if dups["a.json"] || !dups["b.json"] {
		t.Errorf("expected b.json to be the duplicate, got %v", dups)
	}
}

func TestFindDuplicates_DifferentFormats(t *testing.T) {
	a := BuildFingerprint("a.json", conv(ingest.FormatChatLog, "hi", "there"))
	b := BuildFingerprint("b.srt", conv(ingest.FormatSRT, "hi", "there"))

	if dups := FindDuplicates([]fileFingerprint{a, b}); len(dups) != 0 {
		t.Errorf("formats should not cross-match, got %v", dups)
	}
}

func TestFindDuplicates_EmptyConversation(t *testing.T) {
	a := BuildFingerprint("a.json", conv(ingest.FormatChatLog, "hi"))
	empty := BuildFingerprint("empty.json", conv(ingest.FormatChatLog))

	if dups := FindDuplicates([]fileFingerprint{a, empty}); dups["empty.json"] {
		t.Error("empty conversations should never be duplicates")
	}
}

func TestBuildFingerprint_TruncatesText(t *testing.T) {
	long := strings.Repeat("x", 250)
	fp := BuildFingerprint("a.txt", conv(ingest.FormatWhatsApp, long))
	if len(fp.Turns[0]) != len("Alice\x00")+previewLen {
		t.Errorf("expected truncated key, got length %d", len(fp.Turns[0]))
	}
}

func TestBuildFingerprint_TruncatesOnRuneBoundary(t *testing.T) {
	long := "a" + strings.Repeat("é", 150)
	fp := BuildFingerprint("a.txt", conv(ingest.FormatWhatsApp, long))
	key := strings.TrimPrefix(fp.Turns[0], "Alice\x00")
	if !utf8.ValidString(key) {
		t.Fatalf("truncated key is not valid UTF-8: %q", key)
	}
	if n := utf8.RuneCountInString(key); n != previewLen {
		t.Errorf("expected %d runes, got %d", previewLen, n)
	}
}
