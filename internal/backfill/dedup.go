package backfill

import (
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
)

// overlapThreshold is the fraction of a file's turns that must appear in
// another file for it to count as a duplicate export.
const overlapThreshold = 0.8

// previewLen caps the text kept per turn in a fingerprint.
const previewLen = 100

// fileFingerprint holds the turn content of a parsed file for deduplication.
type fileFingerprint struct {
	Path   string
	Source ingest.Format
	Turns  []string
}

// BuildFingerprint creates a fingerprint from a parsed conversation. Turns are
// keyed by speaker and leading text; times are ignored because partial
// re-exports rebase differently.
func BuildFingerprint(path string, conv *ingest.Conversation) fileFingerprint {
	fp := fileFingerprint{Path: path, Source: conv.Source}
	for _, t := range conv.Turns {
		fp.Turns = append(fp.Turns, turnKey(t))
	}
	return fp
}

func turnKey(t ingest.Turn) string {
	text := strings.TrimSpace(t.Text)
	if r := []rune(text); len(r) > previewLen {
		text = string(r[:previewLen])
	}
	return t.Speaker + "\x00" + text
}

// FindDuplicates returns the paths of files whose turns are mostly contained
// in another file of the same format. Of two overlapping files the one with
// more turns is kept; ties keep the lexically first path.
func FindDuplicates(fps []fileFingerprint) map[string]bool {
	ordered := make([]fileFingerprint, len(fps))
	copy(ordered, fps)
	sort.SliceStable(ordered, func(i, j int) bool {
		if len(ordered[i].Turns) != len(ordered[j].Turns) {
			return len(ordered[i].Turns) > len(ordered[j].Turns)
		}
		return ordered[i].Path < ordered[j].Path
	})

	duplicates := make(map[string]bool)
	var kept []fileFingerprint
	for _, fp := range ordered {
		dup := false
		for _, k := range kept {
			if k.Source == fp.Source && isOverlapping(k, fp) {
				dup = true
				break
			}
		}
		if dup {
			duplicates[fp.Path] = true
			continue
		}
		kept = append(kept, fp)
	}
	return duplicates
}

// isOverlapping checks whether at least overlapThreshold of b's turns appear
// in a.
func isOverlapping(a, b fileFingerprint) bool {
	if len(b.Turns) == 0 {
		return false
	}

	counts := make(map[string]int, len(a.Turns))
	for _, k := range a.Turns {
		counts[k]++
	}

	matches := 0
	for _, k := range b.Turns {
		if counts[k] > 0 {
			counts[k]--
			matches++
		}
	}

	return float64(matches)/float64(len(b.Turns)) >= overlapThreshold
}
