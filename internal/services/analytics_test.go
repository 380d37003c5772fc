package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tatsoft-analytics/internal/analytics"
	"tatsoft-analytics/internal/models"
	"tatsoft-analytics/internal/store"
)

const salesCSV = `id,confirmation_date,collaborator_id,collaborator_name,total_amount,zone_name
S1,2024-03-05,C1,Ana,100,North
S2,2024-03-07,C2,Luis,300,South
S3,bad-date,C1,Ana,50,North
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createTempCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testSales() []models.SaleRecord {
	return []models.SaleRecord{
		{ID: "S1", ConfirmationDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), CollaboratorID: "A", CollaboratorName: "Ana", TotalAmount: 100, ZoneName: "North"},
		{ID: "S2", ConfirmationDate: time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), CollaboratorID: "B", CollaboratorName: "Bea", TotalAmount: 300, ZoneName: "South"},
	}
}

func testProducts() []models.ProductStat {
	return []models.ProductStat{
		{ID: "P1", Name: "Widget", Quantity: 5, AmountTotal: 500},
		{ID: "P2", Name: "Gadget", Quantity: 9, AmountTotal: 90},
		{ID: "P3", Name: "Gizmo", Quantity: 1, AmountTotal: 10},
	}
}

type stubSource struct {
	sales []models.SaleRecord
	err   error
	loads int
}

func (s *stubSource) Name() string { return "stub" }
func (s *stubSource) Close() error { return nil }

func (s *stubSource) LoadSales(ctx context.Context) ([]models.SaleRecord, store.LoadReport, error) {
	s.loads++
	if s.err != nil {
		return nil, store.LoadReport{}, s.err
	}
	return s.sales, store.LoadReport{Rows: len(s.sales)}, nil
}

func (s *stubSource) LoadProducts(ctx context.Context) ([]models.ProductStat, error) {
	return testProducts(), nil
}

func (s *stubSource) LoadClients(ctx context.Context) ([]models.ClientStat, error) {
	return nil, nil
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics()
	if a == nil {
		t.Fatal("NewAnalytics() returned nil")
	}
	if a.logger == nil {
		t.Error("logger should be initialized")
	}

	res, err := a.Dashboard(analytics.AllTime())
	if err != nil {
		t.Fatalf("Dashboard() on empty service: %v", err)
	}
	if res.RecordCount != 0 || res.Weekly == nil || res.ByCollaborator == nil {
		t.Errorf("empty dashboard should have zero counts and empty slices: %+v", res)
	}
}

func TestAnalytics_SetDataAndDashboard(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testSales(), testProducts(), nil)

	res, err := a.Dashboard(analytics.AllTime())
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}

	if res.GrandTotal != 400 {
		t.Errorf("GrandTotal = %v, want 400", res.GrandTotal)
	}
	if len(res.ByCollaborator) != 2 {
		t.Fatalf("ByCollaborator = %+v", res.ByCollaborator)
	}
	if b := res.ByCollaborator[0]; b.Key != "B" || b.Percentage != 75 {
		t.Errorf("first collaborator = %+v, want B at 75%%", b)
	}
	if len(res.Weekly) != 1 || res.Weekly[0].Count != 2 {
		t.Errorf("Tuesday and Thursday should share one week: %+v", res.Weekly)
	}

	if a.Version() != 1 {
		t.Errorf("Version() = %d, want 1", a.Version())
	}
	if a.Snapshot().Clients == nil {
		t.Error("nil clients should be replaced by an empty slice")
	}
}

func TestAnalytics_DashboardInvalidPeriod(t *testing.T) {
	a := NewAnalytics()
	a.SetData(testSales(), nil, nil)

	_, err := a.Dashboard(models.Period{Mode: models.PeriodMonth, Month: 12, Year: 2024})
	if !errors.Is(err, analytics.ErrInvalidFilter) {
		t.Errorf("error = %v, want ErrInvalidFilter", err)
	}
}

func TestAnalytics_WithLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	a := NewAnalytics(WithLocation(loc))
	a.SetData([]models.SaleRecord{
		// 02:00 UTC on April 1st is still March 31st five hours west.
		{ID: "S1", ConfirmationDate: time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC), CollaboratorID: "A", TotalAmount: 10, ZoneName: "Z"},
	}, nil, nil)

	res, err := a.Dashboard(analytics.ForMonth(2, 2024))
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordCount != 1 {
		t.Errorf("record should fall in March in the configured location, got %d", res.RecordCount)
	}
}

func TestAnalytics_TopProducts(t *testing.T) {
	a := NewAnalytics()
	a.SetData(nil, testProducts(), nil)

	most := a.TopProducts(2, analytics.ByQuantity, analytics.Desc)
	if len(most) != 2 || most[0].ID != "P2" || most[1].ID != "P1" {
		t.Errorf("most sold = %+v", most)
	}

	least := a.TopProducts(1, analytics.ByQuantity, analytics.Asc)
	if len(least) != 1 || least[0].ID != "P3" {
		t.Errorf("least sold = %+v", least)
	}

	byAmount := a.TopProducts(10, analytics.ByAmount, analytics.Desc)
	if len(byAmount) != 3 || byAmount[0].ID != "P1" {
		t.Errorf("by amount = %+v", byAmount)
	}

	if got := a.TopClients(5, analytics.ByAmount, analytics.Desc); len(got) != 0 {
		t.Errorf("TopClients() on empty set = %+v", got)
	}
}

func TestAnalytics_LoadFromCSV(t *testing.T) {
	path := createTempCSV(t, "sales.csv", salesCSV)

	a := NewAnalytics(WithLogger(quietLogger()))
	if err := a.LoadFromCSV(context.Background(), path); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}

	data := a.Snapshot()
	if len(data.Sales) != 3 || data.Report.Malformed != 1 {
		t.Errorf("loaded %d sales, report %+v", len(data.Sales), data.Report)
	}

	res, err := a.Dashboard(analytics.AllTime())
	if err != nil {
		t.Fatal(err)
	}
	if res.RecordCount != 2 || res.SkippedCount != 1 {
		t.Errorf("RecordCount = %d, SkippedCount = %d; want 2, 1", res.RecordCount, res.SkippedCount)
	}
}

func TestAnalytics_LoadFromCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"wrong header", "a,b,c\n1,2,3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalytics(WithLogger(quietLogger()))
			a.SetData(testSales(), nil, nil)

			path := createTempCSV(t, "sales.csv", tt.content)
			if err := a.LoadFromCSV(context.Background(), path); err == nil {
				t.Error("LoadFromCSV() should fail")
			}
			if len(a.Snapshot().Sales) != 2 {
				t.Error("a failed load must keep the previous snapshot")
			}
		})
	}

	a := NewAnalytics(WithLogger(quietLogger()))
	if err := a.LoadFromCSV(context.Background(), "/nonexistent/sales.csv"); err == nil {
		t.Error("LoadFromCSV() with a missing file should fail")
	}
}

func TestAnalytics_LoadFromCSV_NoRows(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantRejected int
	}{
		{"header only", "id,confirmation_date,collaborator_id,collaborator_name,total_amount,zone_name\n", 0},
		{"every row rejected", "id,confirmation_date,collaborator_id,collaborator_name,total_amount,zone_name\n,2024-03-05,C1,Ana,1,North\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalytics(WithLogger(quietLogger()))
			a.SetData(testSales(), nil, nil)

			path := createTempCSV(t, "sales.csv", tt.content)
			if err := a.LoadFromCSV(context.Background(), path); err != nil {
				t.Fatalf("LoadFromCSV() error = %v", err)
			}

			data := a.Snapshot()
			if len(data.Sales) != 0 || data.Report.Rejected != tt.wantRejected {
				t.Errorf("sales = %d, report = %+v", len(data.Sales), data.Report)
			}

			res, err := a.Dashboard(analytics.AllTime())
			if err != nil {
				t.Fatal(err)
			}
			if res.RecordCount != 0 || res.GrandTotal != 0 || len(res.Weekly) != 0 {
				t.Errorf("empty input should give a zero result, got %+v", res)
			}
		})
	}
}

func TestAnalytics_LoadFromCSV_LocalDates(t *testing.T) {
	bogota, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	path := createTempCSV(t, "sales.csv", `id,confirmation_date,collaborator_id,collaborator_name,total_amount,zone_name
S1,2024-03-01,C1,Ana,100,North
S2,2024-03-03 00:30:00,C1,Ana,50,North
`)

	a := NewAnalytics(WithLogger(quietLogger()), WithLocation(bogota))
	if err := a.LoadFromCSV(context.Background(), path); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}

	march, err := a.Dashboard(analytics.ForMonth(2, 2024))
	if err != nil {
		t.Fatal(err)
	}
	if march.RecordCount != 2 {
		t.Errorf("March RecordCount = %d, want 2", march.RecordCount)
	}

	feb, err := a.Dashboard(analytics.ForMonth(1, 2024))
	if err != nil {
		t.Fatal(err)
	}
	if feb.RecordCount != 0 {
		t.Errorf("February RecordCount = %d, want 0", feb.RecordCount)
	}

	// 2024-03-01 is a Friday, 2024-03-03 a Sunday.
	if len(march.Weekly) != 2 {
		t.Fatalf("weekly buckets = %+v, want 2", march.Weekly)
	}
	if got := march.Weekly[0].WeekStart; got.Year() != 2024 || got.Month() != time.February || got.Day() != 25 {
		t.Errorf("first week starts %v, want 2024-02-25", got)
	}
}

func TestAnalytics_Cache(t *testing.T) {
	cacheDir := t.TempDir()
	path := createTempCSV(t, "sales.csv", salesCSV)

	first := NewAnalytics(WithLogger(quietLogger()), WithCacheDir(cacheDir))
	if err := first.LoadFromCSV(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	matches, _ := filepath.Glob(filepath.Join(cacheDir, "*_"+cacheVersion+".gob"))
	if len(matches) != 1 {
		t.Fatalf("expected one cache file, found %v", matches)
	}

	fp, err := fingerprint(path)
	if err != nil {
		t.Fatal(err)
	}
	cached, err := loadCache(cacheDir, path, fp)
	if err != nil {
		t.Fatalf("loadCache() error = %v", err)
	}
	if len(cached.Sales) != 3 || cached.Source != "csv" || cached.Report.Malformed != 1 {
		t.Errorf("cached dataset = %+v", cached)
	}

	if _, err := loadCache(cacheDir, path, fp+"changed"); err == nil {
		t.Error("stale fingerprint should miss the cache")
	}

	second := NewAnalytics(WithLogger(quietLogger()), WithCacheDir(cacheDir))
	if err := second.LoadFromCSV(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if len(second.Snapshot().Sales) != 3 {
		t.Errorf("cached load returned %d sales", len(second.Snapshot().Sales))
	}
}

func TestAnalytics_ReloadAndSubscribe(t *testing.T) {
	src := &stubSource{sales: testSales()}
	a := NewAnalytics(WithLogger(quietLogger()))

	if err := a.Reload(context.Background()); err == nil {
		t.Error("Reload() before Load() should fail")
	}

	updates, cancel := a.Subscribe()
	defer cancel()

	if err := a.Load(context.Background(), src); err != nil {
		t.Fatal(err)
	}
	if v := <-updates; v != 1 {
		t.Errorf("first notification = %d, want 1", v)
	}

	src.sales = testSales()[:1]
	if err := a.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v := <-updates; v != 2 {
		t.Errorf("second notification = %d, want 2", v)
	}
	if src.loads != 2 || len(a.Snapshot().Sales) != 1 {
		t.Errorf("loads = %d, sales = %d", src.loads, len(a.Snapshot().Sales))
	}

	src.err = errors.New("connection reset")
	if err := a.Reload(context.Background()); err == nil {
		t.Error("Reload() should surface source errors")
	}
	if a.Version() != 2 {
		t.Errorf("failed reload must not bump the version, got %d", a.Version())
	}

	cancel()
	src.err = nil
	if err := a.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-updates:
		t.Errorf("unsubscribed channel received %d", v)
	default:
	}
}

func TestAnalytics_FailedLoadKeepsReloadTarget(t *testing.T) {
	good := &stubSource{sales: testSales()}
	bad := &stubSource{err: errors.New("dial tcp: refused")}
	a := NewAnalytics(WithLogger(quietLogger()))

	if err := a.Load(context.Background(), good); err != nil {
		t.Fatal(err)
	}
	if err := a.Load(context.Background(), bad); err == nil {
		t.Fatal("Load() with a failing source should fail")
	}

	if err := a.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if good.loads != 2 || bad.loads != 1 {
		t.Errorf("good loads = %d, bad loads = %d; want 2, 1", good.loads, bad.loads)
	}
}

func TestAnalytics_ConcurrentLoadsPublishIncreasingVersions(t *testing.T) {
	a := NewAnalytics(WithLogger(quietLogger()))
	updates, cancel := a.Subscribe()
	defer cancel()

	const loads = 50
	var wg sync.WaitGroup
	for range loads {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.SetData(testSales(), nil, nil)
		}()
	}

	done := make(chan struct{})
	var seen []uint64
	go func() {
		defer close(done)
		for v := range updates {
			seen = append(seen, v)
			if v == loads {
				return
			}
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("never saw the last version")
	}

	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("versions went backwards: %v", seen)
		}
	}
	if got := a.Snapshot().Version; got != loads {
		t.Errorf("installed version = %d, want %d", got, loads)
	}
}

func TestAnalytics_SlowSubscriberSeesLatest(t *testing.T) {
	a := NewAnalytics()
	updates, cancel := a.Subscribe()
	defer cancel()

	a.SetData(testSales(), nil, nil)
	a.SetData(testSales(), nil, nil)
	a.SetData(testSales(), nil, nil)

	if v := <-updates; v != 3 {
		t.Errorf("notification = %d, want latest version 3", v)
	}
}

func TestAnalytics_Watch(t *testing.T) {
	src := &stubSource{sales: testSales()}
	a := NewAnalytics(WithLogger(quietLogger()))
	if err := a.Load(context.Background(), src); err != nil {
		t.Fatal(err)
	}

	updates, cancel := a.Subscribe()
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Watch(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not reload")
	}

	stop()
	<-done
}

func TestAnalytics_Stats(t *testing.T) {
	a := NewAnalytics()
	sales := append(testSales(), models.SaleRecord{ID: "S3", CollaboratorID: "A", TotalAmount: 5, ZoneName: "North"})
	a.SetData(sales, testProducts(), nil)

	stats := a.Stats()

	checks := map[string]any{
		"record_count":  3,
		"malformed":     1,
		"total_amount":  400.0,
		"collaborators": 2,
		"zones":         2,
		"products":      3,
		"clients":       0,
		"source":        "memory",
	}
	for key, want := range checks {
		if stats[key] != want {
			t.Errorf("stats[%q] = %v, want %v", key, stats[key], want)
		}
	}
}

func BenchmarkDashboard(b *testing.B) {
	sales := make([]models.SaleRecord, 0, 10000)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 10000 {
		sales = append(sales, models.SaleRecord{
			ID:               "S",
			ConfirmationDate: base.AddDate(0, 0, i%365),
			CollaboratorID:   models.CollaboratorID([]string{"A", "B", "C", "D"}[i%4]),
			TotalAmount:      float64(i%500) + 0.25,
			ZoneName:         models.ZoneName([]string{"North", "South", "East"}[i%3]),
		})
	}

	a := NewAnalytics()
	a.SetData(sales, nil, nil)
	p := analytics.ForYear(2024)

	for b.Loop() {
		if _, err := a.Dashboard(p); err != nil {
			b.Fatal(err)
		}
	}
}
