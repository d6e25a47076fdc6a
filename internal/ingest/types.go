package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Format identifies a conversation input format.
type Format string

const (
	FormatJSONTranscript Format = "json-transcript"
	FormatChatLog        Format = "chat-log"
	FormatWhatsApp       Format = "whatsapp"
	FormatSRT            Format = "srt"
	FormatUnknown        Format = "unknown"
)

// SupportedFormats lists the formats a parser exists for, in detection order.
var SupportedFormats = []Format{FormatJSONTranscript, FormatChatLog, FormatSRT, FormatWhatsApp}

// ErrUnknownFormat is returned by ParseFormat for tags no parser handles.
var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat maps a caller-supplied tag to a Format. "" and "unknown" mean
// detect and map to FormatUnknown; any other unrecognized tag is an error.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatJSONTranscript, FormatChatLog, FormatWhatsApp, FormatSRT:
		return f, nil
	case "", FormatUnknown:
		return FormatUnknown, nil
	}
	return FormatUnknown, fmt.Errorf("%w %q", ErrUnknownFormat, s)
}

// UnknownSpeaker is used when a turn cannot be attributed.
const UnknownSpeaker = "Unknown"

// Millis is an optional millisecond value. The zero value is unresolved,
// which is distinct from a resolved 0.
type Millis struct {
	ms    int64
	valid bool
}

// Resolved returns a Millis holding ms.
func Resolved(ms int64) Millis { return Millis{ms: ms, valid: true} }

// Unresolved is the absent value.
var Unresolved = Millis{}

// Get returns the value and whether it is resolved.
func (m Millis) Get() (int64, bool) { return m.ms, m.valid }

func (m Millis) Valid() bool { return m.valid }

// Ptr returns nil when unresolved. Used for nullable database columns.
func (m Millis) Ptr() *int64 {
	if !m.valid {
		return nil
	}
	v := m.ms
	return &v
}

// MillisFromPtr is the inverse of Ptr.
func MillisFromPtr(p *int64) Millis {
	if p == nil {
		return Unresolved
	}
	return Resolved(*p)
}

// Sub shifts a resolved value by base; unresolved stays unresolved.
func (m Millis) Sub(base int64) Millis {
	if !m.valid {
		return m
	}
	return Resolved(m.ms - base)
}

func (m Millis) MarshalJSON() ([]byte, error) {
	if !m.valid {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, m.ms, 10), nil
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Unresolved
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Resolved(v)
	return nil
}

// Turn is one attributed utterance in a normalized conversation.
type Turn struct {
	Speaker   string         `json:"speaker"`
	Text      string         `json:"text"`
	StartMs   Millis         `json:"start_ms"`
	EndMs     Millis         `json:"end_ms"`
	TurnIndex int            `json:"turn_index"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Conversation is the canonical output every parser converges to.
type Conversation struct {
	Title    string         `json:"title"`
	Source   Format         `json:"source"`
	Turns    []Turn         `json:"turns"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Options carries the caller overrides for a parse.
type Options struct {
	Format Format
	Title  string
}

// finalize assigns turn indexes in emission order and guarantees a non-nil
// turn slice.
func finalize(c *Conversation) *Conversation {
	if c.Turns == nil {
		c.Turns = []Turn{}
	}
	for i := range c.Turns {
		c.Turns[i].TurnIndex = i
	}
	return c
}

// pickTitle returns the first non-empty candidate.
func pickTitle(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}
