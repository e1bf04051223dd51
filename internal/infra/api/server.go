package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tg2fa-relay/internal/domain/model"
	"tg2fa-relay/internal/domain/ports/repository"
	"tg2fa-relay/internal/infra/metrics"
)

// Server is the operator-facing HTTP surface: health, metrics and, when a
// journal and an API key are configured, read access to the outcome journal.
type Server struct {
	router  chi.Router
	srv     *http.Server
	journal repository.JournalRepository
	log     *zerolog.Logger
}

func NewServer(port int, apiKey string, journal repository.JournalRepository, logger *zerolog.Logger) *Server {
	compLog := logger.With().Str("component", "AdminAPI").Logger()
	s := &Server{journal: journal, log: &compLog}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(10*time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	if journal != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(BearerAuth(apiKey))
			r.Get("/journal/{kind}/{ref}", s.handleJournal)
		})
	}

	s.router = r
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("admin server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type journalEntryDTO struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Ref        string    `json:"ref"`
	ChatTarget string    `json:"chat_target,omitempty"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	kind := model.JournalKind(chi.URLParam(r, "kind"))
	switch kind {
	case model.JournalBind, model.JournalDelivery, model.JournalDecision:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown kind"})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := s.journal.ListByRef(r.Context(), kind, chi.URLParam(r, "ref"), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("journal query failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "journal unavailable"})
		return
	}
	out := make([]journalEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, journalEntryDTO{
			ID:         e.ID,
			Kind:       string(e.Kind),
			Ref:        e.Ref,
			ChatTarget: e.ChatTarget,
			Outcome:    e.Outcome,
			Detail:     e.Detail,
			CreatedAt:  e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
