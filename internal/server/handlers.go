package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/cache"
	"github.com/aristath/lookout/internal/comparison"
	"github.com/aristath/lookout/internal/diagnostics"
	"github.com/aristath/lookout/internal/domain"
	"github.com/aristath/lookout/internal/insights"
	"github.com/aristath/lookout/internal/settings"
)

// handlers carries the engine dependencies for all API endpoints.
type handlers struct {
	orch          *comparison.Orchestrator
	batch         *comparison.BatchScheduler
	refresh       *comparison.RefreshSupervisor
	cacheStore    *cache.Store
	settings      *settings.Service
	insightEngine *insights.Engine
	startedAt     time.Time
	log           zerolog.Logger
}

func newHandlers(cfg Config, log zerolog.Logger) *handlers {
	return &handlers{
		orch:          cfg.Orchestrator,
		batch:         cfg.Batch,
		refresh:       cfg.Refresh,
		cacheStore:    cfg.CacheStore,
		settings:      cfg.Settings,
		insightEngine: cfg.InsightEngine,
		startedAt:     time.Now(),
		log:           log.With().Str("handler", "api").Logger(),
	}
}

// submitBody is the request body for POST /api/comparisons/{facet}.
// comparison_id is optional; a UUID is assigned when omitted.
type submitBody struct {
	ComparisonID string          `json:"comparison_id"`
	Payload      json.RawMessage `json:"payload"`
}

// handleSubmit handles POST /api/comparisons/{facet}
func (h *handlers) handleSubmit(w http.ResponseWriter, r *http.Request) {
	facet, err := domain.ParseFacet(chi.URLParam(r, "facet"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	payload, err := domain.DecodePayload(facet, body.Payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if body.ComparisonID == "" {
		body.ComparisonID = uuid.NewString()
	}

	req := domain.ComparisonRequest{
		Facet:        facet,
		ComparisonID: body.ComparisonID,
		Payload:      payload,
	}

	result, err := h.orch.Submit(r.Context(), req)
	if err != nil {
		h.writeClassifiedError(w, err)
		return
	}

	// The most recent successful comparison becomes the refresh target.
	if facet == domain.FacetComparison {
		h.refresh.SetActive(req)
	}

	h.writeJSON(w, http.StatusOK, result)
}

// batchBody is the request body for POST /api/comparisons/batch.
type batchBody struct {
	Portfolios []string `json:"portfolios"`
	IncludeAll bool     `json:"include_all"`
}

// handleRunBatch handles POST /api/comparisons/batch
func (h *handlers) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// The request context dies when this handler returns; the batch must
	// outlive it.
	h.batch.RunBatch(context.WithoutCancel(r.Context()), body.Portfolios, body.IncludeAll)

	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "scheduled",
		"portfolios": len(body.Portfolios),
	})
}

// handleFacetState handles GET /api/comparisons/{facet}/state
func (h *handlers) handleFacetState(w http.ResponseWriter, r *http.Request) {
	facet, err := domain.ParseFacet(chi.URLParam(r, "facet"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, h.orch.GetFacetState(facet))
}

// handleCachedResult handles GET /api/comparisons/{facet}/{comparisonID}
func (h *handlers) handleCachedResult(w http.ResponseWriter, r *http.Request) {
	facet, err := domain.ParseFacet(chi.URLParam(r, "facet"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	entry, err := h.orch.GetCachedResult(facet, chi.URLParam(r, "comparisonID"))
	if err != nil {
		h.log.Error().Err(err).Msg("Cache lookup failed")
		http.Error(w, "cache lookup failed", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "no cached result", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// handleInsights handles GET /api/comparisons/{facet}/{comparisonID}/insights.
// Insights are derived on the fly from the cached comparison result; they
// are never stored independently.
func (h *handlers) handleInsights(w http.ResponseWriter, r *http.Request) {
	facet, err := domain.ParseFacet(chi.URLParam(r, "facet"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if facet != domain.FacetComparison {
		http.Error(w, "insights are derived from the comparison facet only", http.StatusBadRequest)
		return
	}

	entry, err := h.orch.GetCachedResult(facet, chi.URLParam(r, "comparisonID"))
	if err != nil {
		h.log.Error().Err(err).Msg("Cache lookup failed")
		http.Error(w, "cache lookup failed", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.Error(w, "no cached result to derive insights from", http.StatusNotFound)
		return
	}

	var result domain.ComparisonResult
	if err := json.Unmarshal(entry.Data, &result); err != nil {
		http.Error(w, "cached result is not a comparison payload", http.StatusUnprocessableEntity)
		return
	}

	h.writeJSON(w, http.StatusOK, h.insightEngine.Derive(result))
}

// handleCancelRefresh handles DELETE /api/refresh
func (h *handlers) handleCancelRefresh(w http.ResponseWriter, r *http.Request) {
	h.refresh.CancelActiveRefresh()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// settingsDTO is the wire shape of settings: durations in milliseconds.
type settingsDTO struct {
	AutoRefresh         *bool  `json:"auto_refresh,omitempty"`
	RefreshIntervalMs   *int64 `json:"refresh_interval_ms,omitempty"`
	CacheTimeoutMs      *int64 `json:"cache_timeout_ms,omitempty"`
	MaxComparisons      *int   `json:"max_comparisons,omitempty"`
	EnableNotifications *bool  `json:"enable_notifications,omitempty"`
}

func settingsToDTO(s settings.Settings) map[string]any {
	return map[string]any{
		"auto_refresh":         s.AutoRefresh,
		"refresh_interval_ms":  s.RefreshInterval.Milliseconds(),
		"cache_timeout_ms":     s.CacheTimeout.Milliseconds(),
		"max_comparisons":      s.MaxComparisons,
		"enable_notifications": s.EnableNotifications,
	}
}

// handleGetSettings handles GET /api/settings
func (h *handlers) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, settingsToDTO(h.settings.Get()))
}

// handleUpdateSettings handles PUT /api/settings. Out-of-bounds values are
// clamped, not rejected; the response carries the effective settings.
func (h *handlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var dto settingsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var p settings.Partial
	p.AutoRefresh = dto.AutoRefresh
	p.MaxComparisons = dto.MaxComparisons
	p.EnableNotifications = dto.EnableNotifications
	if dto.RefreshIntervalMs != nil {
		d := time.Duration(*dto.RefreshIntervalMs) * time.Millisecond
		p.RefreshInterval = &d
	}
	if dto.CacheTimeoutMs != nil {
		d := time.Duration(*dto.CacheTimeoutMs) * time.Millisecond
		p.CacheTimeout = &d
	}

	updated, err := h.settings.Update(p)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to persist settings")
		http.Error(w, "failed to persist settings", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, settingsToDTO(updated))
}

// handleSweepCache handles POST /api/cache/sweep
func (h *handlers) handleSweepCache(w http.ResponseWriter, r *http.Request) {
	results, err := h.cacheStore.SweepExpired(time.Now())
	if err != nil {
		h.log.Error().Err(err).Msg("Manual cache sweep failed")
		http.Error(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, results)
}

// handleClearCache handles DELETE /api/cache
func (h *handlers) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.cacheStore.Clear(); err != nil {
		h.log.Error().Err(err).Msg("Cache clear failed")
		http.Error(w, "clear failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// handleHealth handles GET /api/system/health
func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cacheStore.EntryCount()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count cache entries")
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": time.Since(h.startedAt).Seconds(),
		"cache_entries":  entries,
		"facets":         h.orch.StatesSnapshot(),
		"refresh_active": h.refresh.Running(),
		"diagnostics":    diagnostics.Collect(),
	})
}

// writeClassifiedError maps engine errors to HTTP responses. Validation
// failures are the caller's fault; everything else is a gateway problem.
func (h *handlers) writeClassifiedError(w http.ResponseWriter, err error) {
	var ce *domain.ClassifiedError
	if !errors.As(err, &ce) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusBadGateway
	switch ce.Kind {
	case domain.KindValidation:
		status = http.StatusUnprocessableEntity
	case domain.KindRateLimited:
		status = http.StatusTooManyRequests
	case domain.KindAPI:
		status = http.StatusBadRequest
	}

	h.writeJSON(w, status, ce)
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
