package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/card-etl/internal/api/middleware"
	"github.com/dvloznov/card-etl/internal/jobs"
	"github.com/dvloznov/card-etl/internal/store/sqlite"
)

// SummaryHandler serves the aggregates the chart dashboard consumes,
// straight from the SQLite store.
type SummaryHandler struct {
	store *sqlite.Store
	log   zerolog.Logger
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(store *sqlite.Store, log zerolog.Logger) *SummaryHandler {
	return &SummaryHandler{store: store, log: log}
}

// Summary handles GET /api/summary
func (h *SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summarize(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to summarize dataset")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to summarize dataset")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// ByGender handles GET /api/summary/gender
func (h *SummaryHandler) ByGender(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.TotalsByGender(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to aggregate by gender")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to aggregate by gender")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"genders": totals})
}

// ByState handles GET /api/summary/states?limit=N
func (h *SummaryHandler) ByState(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	totals, err := h.store.TotalsByState(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to aggregate by state")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to aggregate by state")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"states": totals})
}

// ByCategory handles GET /api/summary/categories
func (h *SummaryHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.TotalsByCategory(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to aggregate by category")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to aggregate by category")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"categories": totals})
}

// ByHour handles GET /api/summary/hourly
func (h *SummaryHandler) ByHour(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.TotalsByHour(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to aggregate by hour")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to aggregate by hour")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"hours": totals})
}

// Transactions handles GET /api/transactions?limit=N
func (h *SummaryHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.store.All(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	if limit := queryInt(r, "limit", 100); limit > 0 && limit < len(txs) {
		txs = txs[:limit]
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"count":        len(txs),
	})
}

// RunsHandler manages asynchronous cleaning runs.
type RunsHandler struct {
	publisher jobs.Publisher
	jobStore  jobs.JobStore
	log       zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(publisher jobs.Publisher, jobStore jobs.JobStore, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{publisher: publisher, jobStore: jobStore, log: log}
}

// Create handles POST /api/runs
func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Source == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source is required")
		return
	}

	job := &jobs.CleanDatasetJob{Source: req.Source}
	if err := h.publisher.PublishCleanDataset(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("source", req.Source).Msg("Failed to enqueue cleaning run")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue cleaning run")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Str("source", req.Source).Msg("Cleaning run enqueued")
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// Get handles GET /api/runs/{id}
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" {
		middleware.WriteError(w, http.StatusBadRequest, "run id is required")
		return
	}

	job, err := h.jobStore.GetJob(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "run not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/runs
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.jobStore.ListJobs(r.Context(), jobs.JobFilter{Limit: queryInt(r, "limit", 50)})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"runs":  list,
		"count": len(list),
	})
}

// Health handles GET /api/health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
