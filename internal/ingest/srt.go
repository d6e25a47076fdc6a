package ingest

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const defaultSubtitleTitle = "Subtitle Transcript"

var (
	cueRangeRe   = regexp.MustCompile(`^(\d{1,2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{1,2}:\d{2}:\d{2}[,.]\d{3})`)
	blockSplitRe = regexp.MustCompile(`\n[ \t]*\n`)

	// Cue body speaker attributions, tried in order.
	cueSpeakerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?s)^([\p{L}\p{N}_\s]{1,21}):\s*(.+)$`),
		regexp.MustCompile(`(?s)^\[([^\]]+)\]\s*(.+)$`),
		regexp.MustCompile(`(?s)^\(([^)]+)\)\s*(.+)$`),
	}
)

// parseSRT turns each valid cue into a turn. Cue times stay absolute.
func parseSRT(raw any, title string) (*Conversation, error) {
	text, ok := raw.(string)
	if !ok {
		return nil, errors.New("expected text input")
	}
	text = strings.Join(splitLines(text), "\n")

	conv := &Conversation{
		Title:  pickTitle(title, defaultSubtitleTitle),
		Source: FormatSRT,
	}
	for _, block := range blockSplitRe.Split(text, -1) {
		cue, ok := parseCue(block)
		if !ok {
			continue
		}
		conv.Turns = append(conv.Turns, cue)
	}
	return finalize(conv), nil
}

func parseCue(block string) (Turn, bool) {
	lines := nonBlankLines(block, 0)
	if len(lines) < 3 {
		return Turn{}, false
	}
	index, err := strconv.Atoi(lines[0])
	if err != nil {
		return Turn{}, false
	}
	m := cueRangeRe.FindStringSubmatch(lines[1])
	if m == nil {
		return Turn{}, false
	}
	body := strings.TrimSpace(strings.Join(lines[2:], "\n"))
	speaker, text := splitCueSpeaker(body)
	if text == "" {
		return Turn{}, false
	}
	return Turn{
		Speaker:  speaker,
		Text:     text,
		StartMs:  Resolved(parseCueTime(m[1])),
		EndMs:    Resolved(parseCueTime(m[2])),
		Metadata: map[string]any{"cueIndex": index},
	}, true
}

func splitCueSpeaker(body string) (string, string) {
	for _, re := range cueSpeakerRes {
		m := re.FindStringSubmatch(body)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		return name, strings.TrimSpace(m[2])
	}
	return UnknownSpeaker, body
}
