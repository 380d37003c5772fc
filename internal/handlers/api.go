package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tatsoft-analytics/internal/analytics"
	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/errors"
	"tatsoft-analytics/internal/models"
	"tatsoft-analytics/internal/observability"
	"tatsoft-analytics/internal/services"
)

const (
	cacheControl  = "private, max-age=30"
	reloadTimeout = time.Minute
)

type APIHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	limits    config.AnalyticsConfig
	now       func() time.Time
}

func NewAPIHandlers(analytics *services.Analytics, logger *slog.Logger, limits config.AnalyticsConfig) *APIHandlers {
	return &APIHandlers{
		analytics: analytics,
		logger:    logger,
		limits:    limits,
		now:       clock(limits),
	}
}

// clock returns the current time in the configured analytics location so
// default month and year follow the business calendar.
func clock(limits config.AnalyticsConfig) func() time.Time {
	loc, err := limits.Location()
	if err != nil || loc == nil {
		return time.Now
	}
	return func() time.Time { return time.Now().In(loc) }
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) headers() map[string]string {
	return map[string]string{
		"Cache-Control":  cacheControl,
		"X-Data-Version": strconv.FormatUint(h.analytics.Version(), 10),
	}
}

func (h *APIHandlers) dashboard(r *http.Request) (*models.Result, error) {
	p, err := parsePeriod(queryParams(r), h.now())
	if err != nil {
		return nil, err
	}

	_, span := observability.StartSpan(r.Context(), "analytics.run")
	span.SetTag("period", string(p.Mode))
	defer span.Log(h.logger)

	res, err := h.analytics.Dashboard(p)
	if err != nil {
		span.SetError(err)
		return nil, toAppError(err, "Invalid period")
	}
	return res, nil
}

func (h *APIHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, res, h.headers())
}

func (h *APIHandlers) HandleWeekly(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, res.Weekly, h.headers())
}

func (h *APIHandlers) HandleCollaborators(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, res.ByCollaborator, h.headers())
}

func (h *APIHandlers) HandleZones(w http.ResponseWriter, r *http.Request) {
	res, err := h.dashboard(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	errors.WriteSuccessWithHeaders(w, res.ByZone, h.headers())
}

func (h *APIHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	params, err := parseRanking(queryParams(r), h.limits, analytics.ByQuantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := h.analytics.TopProducts(params.n, params.metric, params.dir)
	errors.WriteSuccessWithHeaders(w, data, h.headers())
}

func (h *APIHandlers) HandleTopClients(w http.ResponseWriter, r *http.Request) {
	params, err := parseRanking(queryParams(r), h.limits, analytics.ByAmount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	data := h.analytics.TopClients(params.n, params.metric, params.dir)
	errors.WriteSuccessWithHeaders(w, data, h.headers())
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	data := h.analytics.Snapshot()
	if data.Version == 0 {
		h.fail(w, r, errors.ServiceUnavailable("Dataset not loaded yet"))
		return
	}

	healthData := map[string]any{
		"status":       "healthy",
		"timestamp":    time.Now().Format(time.RFC3339),
		"version":      "1.0.0",
		"data_version": data.Version,
		"loaded_at":    data.LoadedAt.Format(time.RFC3339),
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	errors.WriteSuccess(w, h.analytics.Stats())
}

func (h *APIHandlers) HandleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	start := time.Now()
	if err := h.analytics.Reload(ctx); err != nil {
		h.fail(w, r, errors.ServiceUnavailableWrap(err, "Reload failed"))
		return
	}

	data := h.analytics.Snapshot()
	errors.WriteSuccess(w, map[string]any{
		"data_version": data.Version,
		"records":      len(data.Sales),
		"duration_ms":  time.Since(start).Milliseconds(),
	})
}
