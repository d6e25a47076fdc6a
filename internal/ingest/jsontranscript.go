package ingest

import (
	"errors"
	"strings"
)

const defaultTranscriptTitle = "Untitled Transcript"

// parseJSONTranscript handles {title?, entries: [{speaker?, timestamp?, start?, end?, text}]}.
// Timestamps pass through as the source expresses them; absolute ISO values
// are not rebased.
func parseJSONTranscript(raw any, title string) (*Conversation, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("expected a JSON object")
	}
	entries, _ := obj["entries"].([]any)

	conv := &Conversation{
		Title:  pickTitle(title, strings.TrimSpace(stringField(obj, "title")), defaultTranscriptTitle),
		Source: FormatJSONTranscript,
		Turns:  make([]Turn, 0, len(entries)),
	}

	for i, item := range entries {
		e, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := strings.TrimSpace(stringField(e, "text"))
		if text == "" {
			continue
		}
		speaker := strings.TrimSpace(stringField(e, "speaker"))
		if speaker == "" {
			speaker = UnknownSpeaker
		}

		meta := map[string]any{"entryIndex": i}
		ts := stringField(e, "timestamp")
		if ts != "" {
			meta["timestamp"] = ts
		}

		conv.Turns = append(conv.Turns, Turn{
			Speaker:  speaker,
			Text:     text,
			StartMs:  entryStart(e["start"], ts),
			EndMs:    numberMillis(e["end"]),
			Metadata: meta,
		})
	}
	return finalize(conv), nil
}

// entryStart prefers a numeric start, then an ISO timestamp, then a clock
// offset.
func entryStart(start any, timestamp string) Millis {
	if m := numberMillis(start); m.Valid() {
		return m
	}
	if ms, ok := parseISO(timestamp); ok {
		return Resolved(ms)
	}
	if ms, ok := parseClock(timestamp); ok {
		return Resolved(ms)
	}
	return Unresolved
}
