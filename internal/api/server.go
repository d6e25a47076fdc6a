package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/scribe/internal/ingest"
	"github.com/MikeSquared-Agency/scribe/internal/store"
)

// Pipeline is the ingest entry point used by the HTTP handlers.
type Pipeline interface {
	Preview(raw any, opts ingest.Options) (*ingest.Preview, error)
	Ingest(ctx context.Context, raw any, opts ingest.Options, sourceRef string) (*ingest.IngestResult, error)
}

// ConversationReader loads stored conversations.
type ConversationReader interface {
	GetConversation(ctx context.Context, id uuid.UUID) (*store.ConversationRow, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	pipeline Pipeline
	reader   ConversationReader
	logger   *slog.Logger
}

// NewServer wires the HTTP routes. When apiToken is non-empty the
// /api/v1 routes require it as a bearer token. reader may be nil.
func NewServer(port int, apiToken string, pipeline Pipeline, reader ConversationReader, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		pipeline: pipeline,
		reader:   reader,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1/conversations", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/ingest", s.ingest)
		r.Post("/preview", s.preview)
		r.Get("/{id}", s.getConversation)
	})

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("API server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
