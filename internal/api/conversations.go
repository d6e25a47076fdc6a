package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 32 << 20

// IngestRequest is the JSON envelope accepted by the ingest and preview
// endpoints. Data may be an object, an array or a string.
type IngestRequest struct {
	Data      json.RawMessage `json:"data"`
	Format    string          `json:"format,omitempty"`
	Title     string          `json:"title,omitempty"`
	SourceRef string          `json:"source_ref,omitempty"`
}

type ingestResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	TurnCount      int       `json:"turn_count"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string   `json:"error"`
	Message   string   `json:"message,omitempty"`
	Format    string   `json:"format,omitempty"`
	Supported []string `json:"supported,omitempty"`
}

type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }

// ingest handles POST /api/v1/conversations/ingest
func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	raw, opts, sourceRef, err := decodeInput(w, r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	res, err := s.pipeline.Ingest(r.Context(), raw, opts, sourceRef)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{
		ConversationID: res.ConversationID,
		TurnCount:      res.TurnCount,
	})
}

// preview handles POST /api/v1/conversations/preview
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	raw, opts, _, err := decodeInput(w, r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	prev, err := s.pipeline.Preview(raw, opts)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prev)
}

// getConversation handles GET /api/v1/conversations/{id}
func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "conversation storage is not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid conversation id")
		return
	}

	conv, err := s.reader.GetConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	if err != nil {
		s.logger.Error("failed to load conversation", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "persistence", "failed to load conversation")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// decodeInput reads either a JSON envelope or a raw upload. Raw uploads take
// format, title and source_ref from the query string.
func decodeInput(w http.ResponseWriter, r *http.Request) (any, ingest.Options, string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, ingest.Options{}, "", badRequest{fmt.Errorf("read body: %w", err)}
	}

	if isJSONContent(r.Header.Get("Content-Type")) {
		var req IngestRequest
		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&req); err != nil {
			return nil, ingest.Options{}, "", badRequest{fmt.Errorf("invalid JSON: %w", err)}
		}
		if len(req.Data) == 0 || string(req.Data) == "null" {
			return nil, ingest.Options{}, "", badRequest{errors.New("missing data")}
		}
		raw, err := ingest.DecodeField(req.Data)
		if err != nil {
			return nil, ingest.Options{}, "", badRequest{err}
		}
		format, err := ingest.ParseFormat(req.Format)
		if err != nil {
			return nil, ingest.Options{}, "", badRequest{err}
		}
		return raw, ingest.Options{Format: format, Title: req.Title}, req.SourceRef, nil
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ingest.Options{}, "", badRequest{errors.New("empty body")}
	}
	q := r.URL.Query()
	format, err := ingest.ParseFormat(q.Get("format"))
	if err != nil {
		return nil, ingest.Options{}, "", badRequest{err}
	}
	opts := ingest.Options{Format: format, Title: q.Get("title")}
	return ingest.DecodeRaw(body), opts, q.Get("source_ref"), nil
}

func isJSONContent(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

// writeFailure maps pipeline errors onto status codes: request problems are
// 400, input problems 422, everything else 500.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var br badRequest
	if errors.As(err, &br) {
		writeError(w, http.StatusBadRequest, "bad_request", br.Error())
		return
	}

	var pe *ingest.ParseError
	if errors.As(err, &pe) {
		resp := ErrorResponse{Error: string(pe.Kind), Message: pe.Error()}
		if pe.Format != ingest.FormatUnknown {
			resp.Format = string(pe.Format)
		}
		for _, f := range pe.Supported {
			resp.Supported = append(resp.Supported, string(f))
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	if errors.Is(err, ingest.ErrNoSink) {
		writeError(w, http.StatusServiceUnavailable, "unavailable", err.Error())
		return
	}
	s.logger.Error("failed to store conversation", "error", err)
	writeError(w, http.StatusInternalServerError, "persistence", "failed to store conversation")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: msg})
}
