package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"reg-briefing/internal/domain"
)

// briefingService описывает часть оркестратора, доступную по HTTP.
type briefingService interface {
	StartRun(opts domain.RunOptions) domain.RunStatus
	GetRunStatus(runID string) (domain.RunStatus, bool)
	GetBriefing(ctx context.Context, id string) (*domain.Briefing, error)
	GetLatestBriefing(ctx context.Context) (*domain.Briefing, error)
	ListBriefings(ctx context.Context, limit int) ([]domain.BriefingSummary, error)
	MetricsSummary(ctx context.Context) domain.MetricsSummary
}

// Handlers обслуживает /api/briefings.
type Handlers struct {
	svc briefingService
	log zerolog.Logger
}

// NewHandlers создаёт обработчики.
func NewHandlers(svc briefingService, log zerolog.Logger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

// Mount регистрирует маршруты.
func (h *Handlers) Mount(r chi.Router) {
	r.Route("/api/briefings", func(r chi.Router) {
		r.Post("/runs", h.startRun)
		r.Get("/runs/{id}", h.runStatus)
		r.Get("/metrics", h.metrics)
		r.Get("/latest", h.latest)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
}

func (h *Handlers) startRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var opts domain.RunOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if start, end := opts.DateRange.Start, opts.DateRange.End; start != nil && end != nil && start.After(*end) {
		writeError(w, http.StatusBadRequest, "date_range.start must not be after date_range.end")
		return
	}
	status := h.svc.StartRun(opts)
	h.log.Info().Str("run_id", status.RunID).Bool("force", opts.ForceRegenerate).Msg("api: запуск поставлен в очередь")
	writeJSON(w, http.StatusAccepted, status)
}

func (h *Handlers) runStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := h.svc.GetRunStatus(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	list, err := h.svc.ListBriefings(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("api: список брифингов")
		writeError(w, http.StatusInternalServerError, "failed to list briefings")
		return
	}
	if list == nil {
		list = []domain.BriefingSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"briefings": list})
}

func (h *Handlers) latest(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetLatestBriefing(r.Context())
	h.writeBriefing(w, b, err)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBriefing(r.Context(), chi.URLParam(r, "id"))
	h.writeBriefing(w, b, err)
}

func (h *Handlers) writeBriefing(w http.ResponseWriter, b *domain.Briefing, err error) {
	if errors.Is(err, domain.ErrInvalidBriefingID) {
		h.log.Warn().Err(err).Msg("api: недопустимый id брифинга")
		writeError(w, http.StatusBadRequest, "invalid briefing id")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("api: чтение брифинга")
		writeError(w, http.StatusInternalServerError, "failed to load briefing")
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "briefing not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.MetricsSummary(r.Context()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
