package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// detectSampleSize is how many leading array elements the structural probes inspect.
const detectSampleSize = 3

type parseFunc func(raw any, title string) (*Conversation, error)

// probe pairs a format's structural signature with its parser. The match
// predicate is also the shape validator run before parsing.
type probe struct {
	format Format
	match  func(raw any) bool
	parse  parseFunc
}

// probes is evaluated in order; the first match wins.
var probes = []probe{
	{format: FormatJSONTranscript, match: isJSONTranscript, parse: parseJSONTranscript},
	{format: FormatChatLog, match: isChatLog, parse: parseChatLog},
	{format: FormatSRT, match: isSRT, parse: parseSRT},
	{format: FormatWhatsApp, match: isWhatsAppText, parse: parseWhatsApp},
}

// Detect infers the format of raw from its structure or text signature.
func Detect(raw any) Format {
	for _, p := range probes {
		if p.match(raw) {
			return p.format
		}
	}
	return FormatUnknown
}

func probeFor(f Format) (probe, bool) {
	for _, p := range probes {
		if p.format == f {
			return p, true
		}
	}
	return probe{}, false
}

var utf8BOM = []byte("\xef\xbb\xbf")

// DecodeRaw turns an uploaded payload into raw parser input: JSON objects and
// arrays decode to a tree (numbers as json.Number), anything else is text.
func DecodeRaw(data []byte) any {
	data = bytes.TrimPrefix(data, utf8BOM)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err == nil && !dec.More() {
			return v
		}
	}
	return string(data)
}

// ErrUnsupportedData is returned by DecodeField for JSON values that are not
// an object, an array or a string.
var ErrUnsupportedData = errors.New("data must be an object, an array or a string")

// DecodeField decodes the data member of a JSON envelope. A JSON string is
// text input; objects and arrays decode as in DecodeRaw.
func DecodeField(data json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	switch v.(type) {
	case map[string]any, []any, string:
		return v, nil
	default:
		return nil, ErrUnsupportedData
	}
}

func isJSONTranscript(raw any) bool {
	return sampleAll(raw, "entries", func(e map[string]any) bool {
		return hasKey(e, "text") && hasAnyKey(e, "speaker", "timestamp")
	})
}

func isChatLog(raw any) bool {
	return sampleAll(raw, "messages", func(m map[string]any) bool {
		if hasAnyKey(m, "text", "message", "content") {
			return true
		}
		return hasAnyKey(m, speakerKeys...) && hasAnyKey(m, "ts", "timestamp", "date")
	})
}

func isSRT(raw any) bool {
	text, ok := raw.(string)
	if !ok {
		return false
	}
	lines := nonBlankLines(text, 3)
	if len(lines) < 3 {
		return false
	}
	if _, err := strconv.Atoi(lines[0]); err != nil {
		return false
	}
	return cueRangeRe.MatchString(lines[1])
}

// sampleAll reports whether raw is an object whose key holds an array and the
// first detectSampleSize elements are all objects satisfying pred. An empty
// array matches.
func sampleAll(raw any, key string, pred func(map[string]any) bool) bool {
	obj, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	items, ok := obj[key].([]any)
	if !ok {
		return false
	}
	for i, item := range items {
		if i >= detectSampleSize {
			break
		}
		m, ok := item.(map[string]any)
		if !ok || !pred(m) {
			return false
		}
	}
	return true
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if hasKey(m, k) {
			return true
		}
	}
	return false
}

// nonBlankLines returns up to limit trimmed non-blank lines of text; limit <= 0
// means all of them.
func nonBlankLines(text string, limit int) []string {
	var out []string
	for _, line := range splitLines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// splitLines splits on any line ending and drops a leading byte order mark.
func splitLines(text string) []string {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(strings.ReplaceAll(text, "\r", "\n"), "\n")
}

// stringField returns m[key] when it is a string.
func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
