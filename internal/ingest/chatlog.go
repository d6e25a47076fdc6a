package ingest

import (
	"errors"
	"math"
	"sort"
	"strings"
)

const defaultChatTitle = "Untitled Chat"

var (
	speakerKeys = []string{"user", "username", "author", "sender"}
	textKeys    = []string{"text", "message", "content"}
)

type chatMessage struct {
	speaker  string
	text     string
	at       Millis
	sortKey  int64
	metadata map[string]any
}

// parseChatLog handles Slack/Discord style exports:
// {title?, channel?, messages: [{user|username|author|sender, ts|timestamp|date+time, text|message|content}]}.
// Messages are ordered by time and rebased to the earliest resolved timestamp.
func parseChatLog(raw any, title string) (*Conversation, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New("expected a JSON object")
	}
	items, _ := obj["messages"].([]any)
	channel := strings.TrimSpace(stringField(obj, "channel"))

	msgs := make([]chatMessage, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		msgs = append(msgs, chatMessage{
			speaker:  chatSpeaker(m),
			text:     strings.TrimSpace(firstString(m, textKeys...)),
			at:       chatTimestamp(m),
			metadata: chatMetadata(m),
		})
	}

	// Unresolved messages inherit the key of the message before them so they
	// keep their input position relative to their neighbours.
	prev := int64(math.MinInt64)
	for i := range msgs {
		if v, ok := msgs[i].at.Get(); ok {
			prev = v
		}
		msgs[i].sortKey = prev
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].sortKey < msgs[j].sortKey
	})

	var (
		baseline int64
		haveBase bool
	)
	for _, m := range msgs {
		if v, ok := m.at.Get(); ok && (!haveBase || v < baseline) {
			baseline, haveBase = v, true
		}
	}

	conv := &Conversation{
		Title:  pickTitle(title, strings.TrimSpace(stringField(obj, "title")), channel, defaultChatTitle),
		Source: FormatChatLog,
		Turns:  make([]Turn, 0, len(msgs)),
	}
	if channel != "" {
		conv.Metadata = map[string]any{"channel": channel}
	}
	for _, m := range msgs {
		if m.text == "" {
			continue
		}
		conv.Turns = append(conv.Turns, Turn{
			Speaker:  m.speaker,
			Text:     m.text,
			StartMs:  m.at.Sub(baseline),
			Metadata: m.metadata,
		})
	}
	return finalize(conv), nil
}

func chatSpeaker(m map[string]any) string {
	for _, k := range speakerKeys {
		switch v := m[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case map[string]any:
			if s := strings.TrimSpace(firstString(v, "name", "username", "display_name")); s != "" {
				return s
			}
		}
	}
	return UnknownSpeaker
}

// chatTimestamp resolves ts, then an ISO timestamp, then date (+ time).
func chatTimestamp(m map[string]any) Millis {
	if ts, ok := m["ts"]; ok {
		if ms, ok := parseUnixTimestamp(ts); ok {
			return Resolved(ms)
		}
	}
	if ms, ok := parseISO(stringField(m, "timestamp")); ok {
		return Resolved(ms)
	}
	if date := strings.TrimSpace(stringField(m, "date")); date != "" {
		value := date
		if clock := strings.TrimSpace(stringField(m, "time")); clock != "" {
			value = date + " " + clock
		}
		if ms, ok := parseGenericDateTime(value); ok {
			return Resolved(ms)
		}
	}
	return Unresolved
}

func chatMetadata(m map[string]any) map[string]any {
	meta := map[string]any{}
	for _, k := range []string{"ts", "timestamp", "date", "time"} {
		if v, ok := m[k]; ok && v != nil {
			meta[k] = v
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// firstString returns the first non-empty string value among keys.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringField(m, k); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
