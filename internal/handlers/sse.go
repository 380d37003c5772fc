package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/starfederation/datastar-go/datastar"

	"tatsoft-analytics/internal/analytics"
	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/errors"
	"tatsoft-analytics/internal/models"
	"tatsoft-analytics/internal/observability"
	"tatsoft-analytics/internal/services"
	"tatsoft-analytics/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

type SSEHandlers struct {
	analytics *services.Analytics
	logger    *slog.Logger
	limits    config.AnalyticsConfig
	now       func() time.Time
}

func NewSSEHandlers(analytics *services.Analytics, logger *slog.Logger, limits config.AnalyticsConfig) *SSEHandlers {
	return &SSEHandlers{
		analytics: analytics,
		logger:    logger,
		limits:    limits,
		now:       clock(limits),
	}
}

// patch renders each component and sends it as an element patch.
func (h *SSEHandlers) patch(ctx context.Context, sse *datastar.ServerSentEventGenerator, components ...templ.Component) error {
	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	for _, c := range components {
		html, err := templates.Render(ctx, c)
		if err != nil {
			return err
		}
		if err := sse.PatchElements(html); err != nil {
			return err
		}
	}
	return nil
}

func (h *SSEHandlers) signals(sse *datastar.ServerSentEventGenerator, values map[string]any) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return sse.PatchSignals(data)
}

func dashboardComponents(res *models.Result) []templ.Component {
	return []templ.Component{
		templates.Summary(res),
		templates.WeeklyTable(res.Weekly),
		templates.GroupTable(templates.CollaboratorsID, "Collaborator", res.ByCollaborator),
		templates.GroupTable(templates.ZonesID, "Zone", res.ByZone),
	}
}

func dashboardSignals(res *models.Result) map[string]any {
	return map[string]any{
		"grandTotal":   res.GrandTotal,
		"recordCount":  res.RecordCount,
		"skippedCount": res.SkippedCount,
		"weeklyData":   res.Weekly,
	}
}

func (h *SSEHandlers) params(w http.ResponseWriter, r *http.Request) (paramFunc, bool) {
	get, err := signalParams(r)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return nil, false
	}
	return get, true
}

func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	get, ok := h.params(w, r)
	if !ok {
		return
	}

	p, err := parsePeriod(get, h.now())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	res, err := h.analytics.Dashboard(p)
	if err != nil {
		errors.WriteError(w, h.logger, toAppError(err, "Invalid period"), observability.GetRequestID(r.Context()))
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := h.patch(r.Context(), sse, dashboardComponents(res)...); err != nil {
		h.logger.Error("render dashboard", "error", err)
		return
	}
	if err := h.signals(sse, dashboardSignals(res)); err != nil {
		h.logger.Error("marshal dashboard signals", "error", err)
	}
}

func (h *SSEHandlers) HandleTopProducts(w http.ResponseWriter, r *http.Request) {
	get, ok := h.params(w, r)
	if !ok {
		return
	}

	params, err := parseRanking(get, h.limits, analytics.ByQuantity)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	data := h.analytics.TopProducts(params.n, params.metric, params.dir)
	sse := datastar.NewSSE(w, r)
	if err := h.patch(r.Context(), sse, templates.RankingTable(templates.ProductsID, "Product", templates.ProductRows(data))); err != nil {
		h.logger.Error("render products table", "error", err)
		return
	}
	if err := h.signals(sse, map[string]any{"productsData": data}); err != nil {
		h.logger.Error("marshal products data", "error", err)
	}
}

func (h *SSEHandlers) HandleTopClients(w http.ResponseWriter, r *http.Request) {
	get, ok := h.params(w, r)
	if !ok {
		return
	}

	params, err := parseRanking(get, h.limits, analytics.ByAmount)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	data := h.analytics.TopClients(params.n, params.metric, params.dir)
	sse := datastar.NewSSE(w, r)
	if err := h.patch(r.Context(), sse, templates.RankingTable(templates.ClientsID, "Client", templates.ClientRows(data))); err != nil {
		h.logger.Error("render clients table", "error", err)
		return
	}
	if err := h.signals(sse, map[string]any{"clientsData": data}); err != nil {
		h.logger.Error("marshal clients data", "error", err)
	}
}

// HandleRefreshAll patches every section with default parameters.
func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.analytics.Dashboard(analytics.AllTime())
	if err != nil {
		errors.WriteError(w, h.logger, toAppError(err, "Dashboard failed"), observability.GetRequestID(r.Context()))
		return
	}

	products := h.analytics.TopProducts(h.limits.DefaultTopN, analytics.ByQuantity, analytics.Desc)
	clients := h.analytics.TopClients(h.limits.DefaultTopN, analytics.ByAmount, analytics.Desc)

	sse := datastar.NewSSE(w, r)

	components := append(dashboardComponents(res),
		templates.RankingTable(templates.ProductsID, "Product", templates.ProductRows(products)),
		templates.RankingTable(templates.ClientsID, "Client", templates.ClientRows(clients)),
	)
	if err := h.patch(r.Context(), sse, components...); err != nil {
		h.logger.Error("render dashboard", "error", err)
		return
	}

	allSignals := dashboardSignals(res)
	allSignals["productsData"] = products
	allSignals["clientsData"] = clients
	if err := h.signals(sse, allSignals); err != nil {
		h.logger.Error("marshal all signals data", "error", err)
	}
}
