package ingest

import (
	"errors"
	"regexp"
	"strings"
)

const (
	defaultWhatsAppTitle = "WhatsApp Chat"
	whatsAppSampleLines  = 10
	whatsAppMinRatio     = 0.3
)

// Export line patterns, tried in order. Each captures date, time, speaker, text.
var whatsAppLineRes = []*regexp.Regexp{
	// 1/29/24, 2:30 PM - Alice: text (12-hour clock)
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}),\s+(\d{1,2}:\d{2}(?::\d{2})?\s?[AaPp][Mm])\s+-\s+([^:]+):\s?(.*)$`),
	// 29/01/2024, 14:30 - Alice: text (24-hour clock)
	regexp.MustCompile(`^(\d{1,2}/\d{1,2}/\d{2,4}),\s+(\d{1,2}:\d{2}(?::\d{2})?)\s+-\s+([^:]+):\s?(.*)$`),
	// [29/01/2024, 14:30:05] Alice: text
	regexp.MustCompile(`^\[(\d{1,2}/\d{1,2}/\d{2,4}),\s+(\d{1,2}:\d{2}:\d{2}(?:\s?[AaPp][Mm])?)\]\s+([^:]+):\s?(.*)$`),
}

// exportMarks are invisible characters newer exports sprinkle into lines.
var exportMarks = strings.NewReplacer("\u200e", "", "\u200f", "", "\ufeff", "", "\u202f", " ", "\u00a0", " ")

type exportHeader struct {
	date    string
	clock   string
	speaker string
	text    string
}

func matchExportLine(line string) (exportHeader, bool) {
	line = strings.TrimLeft(exportMarks.Replace(line), " \t")
	for _, re := range whatsAppLineRes {
		if m := re.FindStringSubmatch(line); m != nil {
			return exportHeader{date: m[1], clock: m[2], speaker: m[3], text: m[4]}, true
		}
	}
	return exportHeader{}, false
}

func isWhatsAppText(raw any) bool {
	text, ok := raw.(string)
	if !ok {
		return false
	}
	lines := nonBlankLines(text, whatsAppSampleLines)
	if len(lines) == 0 {
		return false
	}
	matched := 0
	for _, line := range lines {
		if _, ok := matchExportLine(line); ok {
			matched++
		}
	}
	return float64(matched)/float64(len(lines)) >= whatsAppMinRatio
}

// exportReader is the line state machine. current == nil is the idle state;
// otherwise it is accumulating current and its continuation lines.
type exportReader struct {
	current *exportHeader
	lines   []string
	turns   []Turn
}

func (r *exportReader) feed(line string) {
	if h, ok := matchExportLine(line); ok {
		r.flush()
		r.current = &h
		r.lines = []string{h.text}
		return
	}
	if r.current == nil {
		return
	}
	if strings.TrimSpace(line) == "" {
		return
	}
	r.lines = append(r.lines, exportMarks.Replace(line))
}

// flush emits the accumulated message, if any, and returns to idle.
func (r *exportReader) flush() {
	if r.current == nil {
		return
	}
	h := r.current
	defer func() { r.current, r.lines = nil, nil }()

	text := strings.TrimSpace(strings.Join(r.lines, "\n"))
	if text == "" {
		return
	}
	speaker := strings.TrimSpace(h.speaker)
	if speaker == "" {
		speaker = UnknownSpeaker
	}
	start := Unresolved
	if ms, ok := parseChatExportTime(h.date, h.clock); ok {
		start = Resolved(ms)
	}
	r.turns = append(r.turns, Turn{
		Speaker:  speaker,
		Text:     text,
		StartMs:  start,
		Metadata: map[string]any{"date": h.date, "time": h.clock},
	})
}

// parseWhatsApp handles WhatsApp "Export chat" text files. Multi-line messages
// are joined; lines before the first header are dropped.
func parseWhatsApp(raw any, title string) (*Conversation, error) {
	text, ok := raw.(string)
	if !ok {
		return nil, errors.New("expected text input")
	}

	var r exportReader
	for _, line := range splitLines(text) {
		r.feed(line)
	}
	r.flush()

	if len(r.turns) > 0 {
		if base, ok := r.turns[0].StartMs.Get(); ok {
			for i := range r.turns {
				r.turns[i].StartMs = r.turns[i].StartMs.Sub(base)
			}
		}
	}

	return finalize(&Conversation{
		Title:  pickTitle(title, defaultWhatsAppTitle),
		Source: FormatWhatsApp,
		Turns:  r.turns,
	}), nil
}
