package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"tatsoft-analytics/internal/analytics"
	"tatsoft-analytics/internal/models"
	"tatsoft-analytics/internal/observability"
	"tatsoft-analytics/internal/store"
)

// Dataset is one loaded snapshot. It is never modified after it has been
// installed; a reload replaces it wholesale.
type Dataset struct {
	Sales    []models.SaleRecord
	Products []models.ProductStat
	Clients  []models.ClientStat
	Report   store.LoadReport
	Source   string
	LoadedAt time.Time
	Version  uint64
}

type Analytics struct {
	mu     sync.RWMutex
	data   *Dataset
	source store.Source

	engineOpts  []analytics.Option
	location    *time.Location
	cacheDir    string
	loadTimeout time.Duration
	logger      *slog.Logger

	version atomic.Uint64
	loads   atomic.Int64
	failed  atomic.Int64

	subsMu sync.Mutex
	subs   map[chan uint64]struct{}
}

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithLocation sets the calendar location used for period filtering and
// week bucketing. nil keeps each record's own location.
func WithLocation(loc *time.Location) Option {
	return func(a *Analytics) {
		if loc != nil {
			a.location = loc
			a.engineOpts = append(a.engineOpts, analytics.WithLocation(loc))
		}
	}
}

// WithCacheDir enables the gob snapshot cache for CSV sources.
func WithCacheDir(dir string) Option {
	return func(a *Analytics) { a.cacheDir = dir }
}

func WithLoadTimeout(d time.Duration) Option {
	return func(a *Analytics) { a.loadTimeout = d }
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		data: &Dataset{
			Sales:    []models.SaleRecord{},
			Products: []models.ProductStat{},
			Clients:  []models.ClientStat{},
		},
		logger: slog.Default(),
		subs:   make(map[chan uint64]struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetData installs an in-memory dataset, mainly for tests and embedding.
func (a *Analytics) SetData(sales []models.SaleRecord, products []models.ProductStat, clients []models.ClientStat) {
	a.install(&Dataset{
		Sales:    lo.Ternary(sales == nil, []models.SaleRecord{}, sales),
		Products: lo.Ternary(products == nil, []models.ProductStat{}, products),
		Clients:  lo.Ternary(clients == nil, []models.ClientStat{}, clients),
		Report:   store.LoadReport{Rows: len(sales)},
		Source:   "memory",
	}, nil)
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	src := store.NewCSVSource(filename, "", "")
	src.Location = a.location
	return a.Load(ctx, src)
}

// Load reads sales, products and clients from src concurrently and installs
// them as the new snapshot. On failure the previous snapshot and the previous
// Reload target stay in place; on success src is remembered for Reload.
func (a *Analytics) Load(ctx context.Context, src store.Source) error {
	if a.loadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.loadTimeout)
		defer cancel()
	}

	ctx, span := observability.StartSpan(ctx, "analytics.load")
	span.SetTag("source", src.Name())
	defer span.Log(a.logger)

	start := time.Now()
	data, fromCache, err := a.fetch(ctx, src)
	if err != nil {
		a.failed.Add(1)
		span.SetError(err)
		return fmt.Errorf("load %s source: %w", src.Name(), err)
	}
	span.Finish()

	a.install(data, src)

	logAttrs := []any{
		"source", data.Source,
		"records", len(data.Sales),
		"products", len(data.Products),
		"clients", len(data.Clients),
		"cached", fromCache,
		"duration", time.Since(start),
		"version", data.Version,
	}
	a.logger.Info("dataset loaded", logAttrs...)

	if data.Report.Rejected > 0 || data.Report.Malformed > 0 {
		a.logger.Warn("sales rows skipped at ingestion",
			"source", data.Source,
			"rejected", data.Report.Rejected,
			"malformed", data.Report.Malformed,
			"errors", data.Report.Errors,
		)
	}

	return nil
}

// Reload re-reads the source of the last successful Load.
func (a *Analytics) Reload(ctx context.Context) error {
	a.mu.RLock()
	src := a.source
	a.mu.RUnlock()

	if src == nil {
		return fmt.Errorf("no data source configured")
	}
	return a.Load(ctx, src)
}

// Watch reloads every interval until ctx is done. Failed reloads are logged
// and the previous snapshot keeps serving.
func (a *Analytics) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.Reload(ctx); err != nil {
				a.logger.Warn("periodic reload failed", "error", err)
			}
		}
	}
}

func (a *Analytics) fetch(ctx context.Context, src store.Source) (*Dataset, bool, error) {
	csvSrc, cacheable := src.(*store.CSVSource)
	cacheable = cacheable && a.cacheDir != ""

	var fp string
	if cacheable {
		var err error
		fp, err = fingerprint(csvSrc.SalesPath, csvSrc.ProductsPath, csvSrc.ClientsPath)
		if err != nil {
			return nil, false, err
		}
		if csvSrc.Location != nil {
			fp += "tz=" + csvSrc.Location.String()
		}
		if cached, err := loadCache(a.cacheDir, csvSrc.SalesPath, fp); err == nil {
			return cached, true, nil
		}
	}

	data := &Dataset{Source: src.Name()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sales, report, err := src.LoadSales(gctx)
		if err != nil {
			return fmt.Errorf("sales: %w", err)
		}
		data.Sales, data.Report = sales, report
		return nil
	})
	g.Go(func() error {
		products, err := src.LoadProducts(gctx)
		if err != nil {
			return fmt.Errorf("products: %w", err)
		}
		data.Products = products
		return nil
	})
	g.Go(func() error {
		clients, err := src.LoadClients(gctx)
		if err != nil {
			return fmt.Errorf("clients: %w", err)
		}
		data.Clients = clients
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	if cacheable {
		if err := saveCache(a.cacheDir, csvSrc.SalesPath, fp, data); err != nil {
			a.logger.Warn("failed to save cache", "error", err)
		}
	}

	return data, false, nil
}

// install swaps in data under the lock that assigns its version, so
// concurrent loads publish strictly increasing versions. A non-nil src
// becomes the target of Reload.
func (a *Analytics) install(data *Dataset, src store.Source) {
	if data.Sales == nil {
		data.Sales = []models.SaleRecord{}
	}
	if data.Products == nil {
		data.Products = []models.ProductStat{}
	}
	if data.Clients == nil {
		data.Clients = []models.ClientStat{}
	}

	a.mu.Lock()
	data.LoadedAt = time.Now()
	data.Version = a.version.Add(1)
	a.data = data
	if src != nil {
		a.source = src
	}
	a.notify(data.Version)
	a.mu.Unlock()

	a.loads.Add(1)
}

func (a *Analytics) snapshot() *Dataset {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.data
}

// Snapshot returns the current dataset. Callers must treat it as read-only.
func (a *Analytics) Snapshot() *Dataset {
	return a.snapshot()
}

func (a *Analytics) Version() uint64 {
	return a.version.Load()
}

// Dashboard runs the pipeline for p over the current snapshot.
func (a *Analytics) Dashboard(p models.Period) (*models.Result, error) {
	return analytics.Run(a.snapshot().Sales, p, a.engineOpts...)
}

func (a *Analytics) TopProducts(n int, metric analytics.Metric, dir analytics.Direction) []models.ProductStat {
	return analytics.TopN(a.snapshot().Products, analytics.ProductMetric(metric), n, dir)
}

func (a *Analytics) TopClients(n int, metric analytics.Metric, dir analytics.Direction) []models.ClientStat {
	return analytics.TopN(a.snapshot().Clients, analytics.ClientMetric(metric), n, dir)
}

// Subscribe returns a channel receiving the version of every dataset
// installed after the call. Slow readers only see the latest version.
func (a *Analytics) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	a.subsMu.Lock()
	a.subs[ch] = struct{}{}
	a.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subsMu.Lock()
			delete(a.subs, ch)
			a.subsMu.Unlock()
		})
	}
}

func (a *Analytics) notify(version uint64) {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()

	for ch := range a.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- version:
		default:
		}
	}
}

// Stats summarises the loaded snapshot for monitoring.
func (a *Analytics) Stats() map[string]any {
	data := a.snapshot()

	malformed := lo.CountBy(data.Sales, analytics.Malformed)
	valid := lo.Reject(data.Sales, func(r models.SaleRecord, _ int) bool {
		return analytics.Malformed(r)
	})

	a.subsMu.Lock()
	subscribers := len(a.subs)
	a.subsMu.Unlock()

	return map[string]any{
		"source":         data.Source,
		"version":        data.Version,
		"last_processed": data.LoadedAt,
		"record_count":   len(data.Sales),
		"malformed":      malformed,
		"rejected_rows":  data.Report.Rejected,
		"total_amount":   lo.SumBy(valid, func(r models.SaleRecord) float64 { return r.TotalAmount }),
		"collaborators":  len(lo.UniqBy(valid, func(r models.SaleRecord) models.CollaboratorID { return r.CollaboratorID })),
		"zones":          len(lo.UniqBy(valid, func(r models.SaleRecord) models.ZoneName { return r.ZoneName })),
		"products":       len(data.Products),
		"clients":        len(data.Clients),
		"loads":          a.loads.Load(),
		"failed_loads":   a.failed.Load(),
		"subscribers":    subscribers,
	}
}
