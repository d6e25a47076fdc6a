package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/metrics"
)

// maxFetchBytes caps inputs fetched by URL.
const maxFetchBytes = 32 << 20

// Publisher emits JSON events. *hermes.Client satisfies it.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor runs the ingest pipeline for every entry point (HTTP, NATS,
// inbox watcher, backfill): parse, persist, record metrics, announce.
type Processor struct {
	orch       *ingest.Orchestrator
	publisher  Publisher
	httpClient *http.Client
	maxFetch   int64
	logger     *slog.Logger
}

// New creates a processor. publisher may be nil, in which case no events
// are published.
func New(orch *ingest.Orchestrator, publisher Publisher, logger *slog.Logger) *Processor {
	return &Processor{
		orch:       orch,
		publisher:  publisher,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxFetch:   maxFetchBytes,
		logger:     logger,
	}
}

// Parse runs detection and parsing only. Nothing is recorded.
func (p *Processor) Parse(raw any, opts ingest.Options) (*ingest.Conversation, error) {
	return p.orch.Parse(raw, opts)
}

// Preview parses raw and returns its summary without persisting.
func (p *Processor) Preview(raw any, opts ingest.Options) (*ingest.Preview, error) {
	start := time.Now()
	prev, err := p.orch.Preview(raw, opts)
	if err != nil {
		metrics.ObserveFailure(metrics.ModePreview, FailureKind(err), time.Since(start))
		return nil, err
	}
	metrics.ObserveSuccess(metrics.ModePreview, string(prev.Source), prev.TurnCount, time.Since(start))
	return prev, nil
}

// Ingest parses and persists raw, then publishes the outcome. sourceRef is
// an opaque caller reference echoed in events.
func (p *Processor) Ingest(ctx context.Context, raw any, opts ingest.Options, sourceRef string) (*ingest.IngestResult, error) {
	start := time.Now()
	res, err := p.orch.Ingest(ctx, raw, opts)
	if err != nil {
		kind := FailureKind(err)
		metrics.ObserveFailure(metrics.ModeCommit, kind, time.Since(start))
		p.publishFailed(kind, err, sourceRef)
		return nil, err
	}

	conv := res.Conversation
	metrics.ObserveSuccess(metrics.ModeCommit, string(conv.Source), res.TurnCount, time.Since(start))
	p.publish(hermes.SubjectConversationIngested, hermes.ConversationIngested{
		ConversationID: res.ConversationID.String(),
		Title:          conv.Title,
		Source:         string(conv.Source),
		TurnCount:      res.TurnCount,
		SourceRef:      sourceRef,
		Timestamp:      time.Now().UTC(),
	})
	return res, nil
}

// HandleIngestRequest is the NATS handler for swarm.scribe.ingest.requested.
func (p *Processor) HandleIngestRequest(subject string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var req hermes.IngestRequest
	if err := json.Unmarshal(data, &req); err != nil {
		p.logger.Error("failed to parse ingest request", "subject", subject, "error", err)
		p.publishFailed("request", err, "")
		return
	}

	format, err := ingest.ParseFormat(req.Format)
	if err != nil {
		p.logger.Error("invalid ingest request format", "source_ref", req.SourceRef, "error", err)
		p.publishFailed("request", err, req.SourceRef)
		return
	}

	p.logger.Info("processing ingest request",
		"source_ref", req.SourceRef,
		"format", req.Format,
		"url", req.URL,
	)

	raw, err := p.requestInput(ctx, req)
	if err != nil {
		p.logger.Error("failed to load ingest input", "source_ref", req.SourceRef, "error", err)
		p.publishFailed("request", err, req.SourceRef)
		return
	}

	opts := ingest.Options{Format: format, Title: req.Title}
	res, err := p.Ingest(ctx, raw, opts, req.SourceRef)
	if err != nil {
		p.logger.Error("ingest request failed", "source_ref", req.SourceRef, "error", err)
		return
	}

	p.logger.Info("ingest request completed",
		"source_ref", req.SourceRef,
		"conversation_id", res.ConversationID,
		"turns", res.TurnCount,
	)
}

// Announce publishes the registration event.
func (p *Processor) Announce() error {
	if p.publisher == nil {
		return nil
	}
	formats := make([]string, 0, len(ingest.SupportedFormats))
	for _, f := range ingest.SupportedFormats {
		formats = append(formats, string(f))
	}
	return p.publisher.Publish(hermes.SubjectAgentRegistered, hermes.AgentRegistered{
		Agent:     "scribe",
		Formats:   formats,
		Subjects:  []string{hermes.SubjectIngestRequested},
		Timestamp: time.Now().UTC(),
	})
}

// FailureKind classifies an ingest error for metrics and events.
func FailureKind(err error) string {
	var pe *ingest.ParseError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return metrics.KindPersistence
}

func (p *Processor) requestInput(ctx context.Context, req hermes.IngestRequest) (any, error) {
	// Prefer input embedded in the request payload.
	if len(req.Data) > 0 && string(req.Data) != "null" {
		return ingest.DecodeField(req.Data)
	}
	if req.URL == "" {
		return nil, errors.New("ingest request has neither data nor url")
	}
	body, err := p.fetchSource(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	return ingest.DecodeRaw(body), nil
}

func (p *Processor) fetchSource(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build source request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxFetch+1))
	if err != nil {
		return nil, fmt.Errorf("read source response: %w", err)
	}
	if int64(len(body)) > p.maxFetch {
		return nil, fmt.Errorf("source %s exceeds %d bytes", url, p.maxFetch)
	}
	return body, nil
}

func (p *Processor) publishFailed(kind string, err error, sourceRef string) {
	evt := hermes.IngestFailed{
		Kind:      kind,
		Message:   err.Error(),
		SourceRef: sourceRef,
		Timestamp: time.Now().UTC(),
	}
	var pe *ingest.ParseError
	if errors.As(err, &pe) && pe.Format != ingest.FormatUnknown {
		evt.Format = string(pe.Format)
	}
	p.publish(hermes.SubjectIngestFailed, evt)
}

func (p *Processor) publish(subject string, evt any) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, evt); err != nil {
		p.logger.Error("failed to publish event", "subject", subject, "error", err)
	}
}
