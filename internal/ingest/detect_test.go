package ingest

import (
	"errors"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want Format
	}{
		{
			name: "json transcript",
			raw:  DecodeRaw([]byte(`{"entries":[{"speaker":"Alice","timestamp":"00:00:05","text":"Hello"}]}`)),
			want: FormatJSONTranscript,
		},
		{
			name: "json transcript with timestamp only",
			raw:  DecodeRaw([]byte(`{"entries":[{"timestamp":"00:01","text":"Hello"}]}`)),
			want: FormatJSONTranscript,
		},
		{
			name: "entries without speaker or timestamp",
			raw:  DecodeRaw([]byte(`{"entries":[{"text":"Hello"},{"text":"Hi"}]}`)),
			want: FormatUnknown,
		},
		{
			name: "chat log with text",
			raw:  DecodeRaw([]byte(`{"channel":"general","messages":[{"user":"U1","ts":"1706540400.000100","text":"hi"}]}`)),
			want: FormatChatLog,
		},
		{
			name: "chat log with speaker and date but no text",
			raw:  DecodeRaw([]byte(`{"messages":[{"author":"bob","date":"2024-01-29"}]}`)),
			want: FormatChatLog,
		},
		{
			name: "messages missing every signature field",
			raw:  DecodeRaw([]byte(`{"messages":[{"author":"bob"}]}`)),
			want: FormatUnknown,
		},
		{
			name: "srt",
			raw:  "1\n00:00:05,000 --> 00:00:08,000\nAlice: Hello everyone\n",
			want: FormatSRT,
		},
		{
			name: "srt with dot millis and single digit hour",
			raw:  "\n\n12\n0:00:05.000 --> 0:00:08.000\nHello\n",
			want: FormatSRT,
		},
		{
			name: "whatsapp",
			raw:  "1/29/24, 2:30 PM - Alice: Hello everyone\n1/29/24, 2:31 PM - Bob: Hi Alice!\n",
			want: FormatWhatsApp,
		},
		{
			name: "srt with byte order mark",
			raw:  DecodeRaw([]byte("\xef\xbb\xbf1\n00:00:05,000 --> 00:00:08,000\nAlice: Hello\n")),
			want: FormatSRT,
		},
		{
			name: "srt string with byte order mark",
			raw:  "\ufeff1\n00:00:05,000 --> 00:00:08,000\nAlice: Hello\n",
			want: FormatSRT,
		},
		{
			name: "json transcript with byte order mark",
			raw:  DecodeRaw([]byte("\xef\xbb\xbf{\"entries\":[{\"speaker\":\"Alice\",\"text\":\"Hello\"}]}")),
			want: FormatJSONTranscript,
		},
		{
			name: "whatsapp bracketed",
			raw:  "[29/01/2024, 14:30:05] Alice: Hello\n[29/01/2024, 14:31:10] Bob: Hi\n",
			want: FormatWhatsApp,
		},
		{
			name: "plain prose",
			raw:  "Dear diary,\nnothing happened today.\nThe end.",
			want: FormatUnknown,
		},
		{
			name: "empty text",
			raw:  "",
			want: FormatUnknown,
		},
		{
			name: "json array",
			raw:  DecodeRaw([]byte(`[{"text":"hi"}]`)),
			want: FormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.raw); got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetect_WhatsAppRatio(t *testing.T) {
	// 3 of 10 sampled lines match: exactly the 30% threshold.
	text := "1/29/24, 2:30 PM - Alice: one\n" +
		"noise\nnoise\nnoise\n" +
		"1/29/24, 2:31 PM - Bob: two\n" +
		"noise\nnoise\nnoise\n" +
		"1/29/24, 2:32 PM - Alice: three\n" +
		"noise\n"
	if got := Detect(text); got != FormatWhatsApp {
		t.Errorf("expected whatsapp at 30%% match ratio, got %q", got)
	}

	below := "1/29/24, 2:30 PM - Alice: one\n" +
		"noise\nnoise\nnoise\nnoise\n" +
		"1/29/24, 2:31 PM - Bob: two\n" +
		"noise\nnoise\nnoise\nnoise\n" +
		"1/29/24, 2:32 PM - Alice: three\n"
	if got := Detect(below); got != FormatUnknown {
		t.Errorf("expected unknown below 30%% match ratio, got %q", got)
	}
}

func TestDetect_SamplesOnlyFirstThreeElements(t *testing.T) {
	raw := DecodeRaw([]byte(`{"entries":[
		{"speaker":"A","text":"1"},
		{"speaker":"B","text":"2"},
		{"speaker":"C","text":"3"},
		{"bogus":true}
	]}`))
	if got := Detect(raw); got != FormatJSONTranscript {
		t.Errorf("expected json-transcript, got %q", got)
	}
}

func TestDecodeRaw(t *testing.T) {
	if _, ok := DecodeRaw([]byte(`  {"a":1}  `)).(map[string]any); !ok {
		t.Error("expected JSON object to decode to a map")
	}
	if _, ok := DecodeRaw([]byte(`[1,2]`)).([]any); !ok {
		t.Error("expected JSON array to decode to a slice")
	}
	if s, ok := DecodeRaw([]byte(`[29/01/2024, 14:30:05] Alice: hi`)).(string); !ok || s == "" {
		t.Error("expected bracketed chat export to stay text")
	}
	if s, ok := DecodeRaw([]byte("1\n00:00:01,000 --> 00:00:02,000\nhi")).(string); !ok || s == "" {
		t.Error("expected srt to stay text")
	}
}

func TestDecodeField(t *testing.T) {
	v, err := DecodeField([]byte(`"1/29/24, 2:30 PM - Alice: hi"`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, ok := v.(string); !ok || s != "1/29/24, 2:30 PM - Alice: hi" {
		t.Errorf("expected text, got %#v", v)
	}

	v, err = DecodeField([]byte(`{"messages":[{"ts":1.5,"text":"x"}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if Detect(v) != FormatChatLog {
		t.Errorf("expected chat-log tree, got %#v", v)
	}

	if _, err := DecodeField([]byte(`42`)); !errors.Is(err, ErrUnsupportedData) {
		t.Errorf("expected ErrUnsupportedData, got %v", err)
	}
	if _, err := DecodeField([]byte(`{`)); err == nil {
		t.Error("expected decode error")
	}
}
