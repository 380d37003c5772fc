package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/middleware"
	"tatsoft-analytics/internal/observability"
	"tatsoft-analytics/internal/server"
	"tatsoft-analytics/internal/services"
	"tatsoft-analytics/internal/store"
	"tatsoft-analytics/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheMaxAge)
	if err := templates.Dashboard().Render(ctx, w); err != nil {
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

// newHandler wires routes and the middleware chain around analytics.
func newHandler(cfg *config.Config, analytics *services.Analytics, logger *slog.Logger) (*server.Server, http.Handler) {
	templateHandlers := &server.TemplateHandlers{
		Dashboard: handleDashboard,
	}

	srv := server.NewServer(analytics, logger, cfg, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return srv, middlewareChain(srv)
}

func newAnalytics(cfg *config.Config, logger *slog.Logger) (*services.Analytics, error) {
	loc, err := cfg.Analytics.Location()
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithLocation(loc),
		services.WithLoadTimeout(cfg.Source.LoadTimeout),
	}
	if cfg.Source.Driver == config.DriverCSV {
		opts = append(opts, services.WithCacheDir(cfg.Source.CacheDir))
	}
	return services.NewAnalytics(opts...), nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"addr", cfg.Address(),
		"source", cfg.Source.Driver,
		"refresh_interval", cfg.Source.RefreshInterval,
	)

	analytics, err := newAnalytics(cfg, logger)
	if err != nil {
		logger.Error("failed to configure analytics", "error", err)
		os.Exit(1)
	}

	// validated by config.Load
	loc, _ := cfg.Analytics.Location()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Source.LoadTimeout)
	source, err := store.Open(ctx, cfg.Source, loc)
	cancel()
	if err != nil {
		logger.Error("failed to open data source", "driver", cfg.Source.Driver, "error", err)
		os.Exit(1)
	}

	start := time.Now()
	if err := analytics.Load(context.Background(), source); err != nil {
		logger.Error("failed to load data", "error", err)
		source.Close()
		os.Exit(1)
	}
	logger.Info("data loaded successfully", "duration", time.Since(start))

	watchCtx, stopWatch := context.WithCancel(context.Background())
	go analytics.Watch(watchCtx, cfg.Source.RefreshInterval)

	srv, handler := newHandler(cfg, analytics, logger)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing live connections")
		stopWatch()
		srv.CloseStreams()
		return nil
	})
	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("closing data source", "driver", source.Name())
		return source.Close()
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
