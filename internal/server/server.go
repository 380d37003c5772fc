package server

import (
	"log/slog"
	"net/http"

	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/handlers"
	"tatsoft-analytics/internal/services"
)

type Server struct {
	analytics   *services.Analytics
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
	wsHandlers  *handlers.WSHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(analytics *services.Analytics, logger *slog.Logger, cfg *config.Config, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		analytics:   analytics,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(analytics, logger, cfg.Analytics),
		sseHandlers: handlers.NewSSEHandlers(analytics, logger, cfg.Analytics),
		wsHandlers:  handlers.NewWSHandlers(analytics, logger, cfg.Security, cfg.Analytics),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.HandleFunc("POST /admin/reload", s.apiHandlers.HandleReload)

	// REST API endpoints
	s.mux.HandleFunc("GET /api/dashboard", s.apiHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /api/weekly", s.apiHandlers.HandleWeekly)
	s.mux.HandleFunc("GET /api/collaborators", s.apiHandlers.HandleCollaborators)
	s.mux.HandleFunc("GET /api/zones", s.apiHandlers.HandleZones)
	s.mux.HandleFunc("GET /api/products/top", s.apiHandlers.HandleTopProducts)
	s.mux.HandleFunc("GET /api/clients/top", s.apiHandlers.HandleTopClients)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/dashboard", s.sseHandlers.HandleDashboard)
	s.mux.HandleFunc("GET /sse/products", s.sseHandlers.HandleTopProducts)
	s.mux.HandleFunc("GET /sse/clients", s.sseHandlers.HandleTopClients)
	s.mux.HandleFunc("GET /sse/refresh-all", s.sseHandlers.HandleRefreshAll)

	// Live push
	s.mux.HandleFunc("GET /ws/dashboard", s.wsHandlers.HandleDashboard)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// CloseStreams disconnects websocket clients, which http.Server.Shutdown
// leaves open.
func (s *Server) CloseStreams() {
	s.wsHandlers.Close()
}
