// Package ingest normalizes loosely structured conversation records (JSON
// transcripts, chat exports, WhatsApp text exports, SRT subtitles) into a
// single ordered sequence of speaker-attributed turns.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// PreviewTurnLimit is the default number of turns returned by Preview.
const PreviewTurnLimit = 5

// Sink persists a parsed conversation and its turns as one unit.
type Sink interface {
	SaveConversation(ctx context.Context, conv *Conversation) (uuid.UUID, error)
}

// Orchestrator drives detection, parsing and persistence. It holds no state
// between calls.
type Orchestrator struct {
	sink         Sink
	logger       *slog.Logger
	previewTurns int
}

// New creates an orchestrator. sink may be nil when only Parse and Preview
// are used.
func New(sink Sink, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{sink: sink, logger: logger, previewTurns: PreviewTurnLimit}
}

// WithPreviewTurns sets how many leading turns Preview returns. Values below
// one keep the default.
func (o *Orchestrator) WithPreviewTurns(n int) *Orchestrator {
	if n > 0 {
		o.previewTurns = n
	}
	return o
}

// Preview is the parse-only summary of an input.
type Preview struct {
	Format    Format `json:"format"`
	Title     string `json:"title"`
	Source    Format `json:"source"`
	TurnCount int    `json:"turn_count"`
	Turns     []Turn `json:"turns"`
}

// IngestResult is returned after a conversation has been persisted.
type IngestResult struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	TurnCount      int           `json:"turn_count"`
	Conversation   *Conversation `json:"-"`
}

// Parse resolves the input format (opts.Format overrides detection), checks
// the input against that format's shape and runs its parser. All failures
// are returned as *ParseError.
func (o *Orchestrator) Parse(raw any, opts Options) (*Conversation, error) {
	format := opts.Format
	if format == "" || format == FormatUnknown {
		format = Detect(raw)
		o.logger.Debug("format detected", "format", format)
	}

	p, ok := probeFor(format)
	if !ok {
		o.logger.Warn("conversation format not detected")
		return nil, detectionError()
	}
	if !p.match(raw) {
		o.logger.Warn("input does not match format", "format", format)
		return nil, shapeError(format)
	}

	conv, err := o.run(p, raw, strings.TrimSpace(opts.Title))
	if err != nil {
		o.logger.Error("parser failed", "format", format, "error", err)
		return nil, err
	}

	o.logger.Debug("conversation parsed",
		"format", format,
		"title", conv.Title,
		"turns", len(conv.Turns),
	)
	return conv, nil
}

// run invokes the parser, converting errors and panics into a parse failure.
func (o *Orchestrator) run(p probe, raw any, title string) (conv *Conversation, err error) {
	defer func() {
		if r := recover(); r != nil {
			conv, err = nil, parseFailure(p.format, fmt.Errorf("panic: %v", r))
		}
	}()
	conv, err = p.parse(raw, title)
	if err != nil {
		return nil, parseFailure(p.format, err)
	}
	return conv, nil
}

// Preview parses without persisting and returns the leading turns.
func (o *Orchestrator) Preview(raw any, opts Options) (*Preview, error) {
	conv, err := o.Parse(raw, opts)
	if err != nil {
		return nil, err
	}
	head := conv.Turns
	if len(head) > o.previewTurns {
		head = head[:o.previewTurns]
	}
	return &Preview{
		Format:    conv.Source,
		Title:     conv.Title,
		Source:    conv.Source,
		TurnCount: len(conv.Turns),
		Turns:     head,
	}, nil
}

// ErrNoSink is returned by Ingest when the orchestrator has no sink.
var ErrNoSink = errors.New("no conversation sink configured")

// Ingest parses raw and persists the result through the sink.
func (o *Orchestrator) Ingest(ctx context.Context, raw any, opts Options) (*IngestResult, error) {
	conv, err := o.Parse(raw, opts)
	if err != nil {
		return nil, err
	}
	if o.sink == nil {
		return nil, ErrNoSink
	}

	id, err := o.sink.SaveConversation(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}

	o.logger.Info("conversation ingested",
		"conversation_id", id,
		"source", conv.Source,
		"turns", len(conv.Turns),
	)
	return &IngestResult{
		ConversationID: id,
		TurnCount:      len(conv.Turns),
		Conversation:   conv,
	}, nil
}
