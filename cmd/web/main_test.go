package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tatsoft-analytics/internal/config"
	"tatsoft-analytics/internal/models"
	"tatsoft-analytics/internal/services"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Source: config.SourceConfig{Driver: config.DriverCSV, LoadTimeout: 5 * time.Second},
		Security: config.SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    1000,
			RateLimitBurst:  1000,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
		Analytics: config.AnalyticsConfig{DefaultTopN: 10, MaxTopN: 100},
	}
}

// Test helper to create analytics with test data
func newTestAnalytics() *services.Analytics {
	a := services.NewAnalytics(services.WithLogger(quietLogger()))
	a.SetData(
		[]models.SaleRecord{
			{ID: "S1", ConfirmationDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), CollaboratorID: "A", CollaboratorName: "Ana", TotalAmount: 100, ZoneName: "North"},
			{ID: "S2", ConfirmationDate: time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), CollaboratorID: "B", CollaboratorName: "Bea", TotalAmount: 300, ZoneName: "South"},
		},
		[]models.ProductStat{{ID: "P1", Name: "Widget", Quantity: 4, AmountTotal: 40}},
		[]models.ClientStat{{ID: "K1", Name: "Acme", Quantity: 2, AmountTotal: 400}},
	)
	return a
}

// Integration tests for HTTP routes through the full middleware chain
func TestServer_Routes(t *testing.T) {
	_, handler := newHandler(testConfig(), newTestAnalytics(), quietLogger())

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/api/dashboard", http.StatusOK, "application/json"},
		{"/api/weekly", http.StatusOK, "application/json"},
		{"/api/collaborators", http.StatusOK, "application/json"},
		{"/api/zones", http.StatusOK, "application/json"},
		{"/api/products/top", http.StatusOK, "application/json"},
		{"/api/clients/top", http.StatusOK, "application/json"},
		{"/health", http.StatusOK, "application/json"},
		{"/api/dashboard?period=month&month=12&year=2024", http.StatusBadRequest, "application/json"},
		{"/sse/refresh-all", http.StatusOK, "text/event-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}

			ct := w.Header().Get("Content-Type")
			if !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}

			if w.Header().Get("X-Request-ID") == "" {
				t.Error("middleware should set X-Request-ID")
			}
			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("security headers missing")
			}

			if tt.contentType == "application/json" {
				var result any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
			}
		})
	}
}

func TestServer_JSONResponse(t *testing.T) {
	_, handler := newHandler(testConfig(), newTestAnalytics(), quietLogger())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/collaborators?period=month&month=2&year=2024", nil))

	var response struct {
		Success bool           `json:"success"`
		Data    []models.Group `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if !response.Success {
		t.Error("expected success=true in response")
	}
	want := []models.Group{
		{Key: "B", Label: "Bea", Total: 300, Count: 1, Percentage: 75},
		{Key: "A", Label: "Ana", Total: 100, Count: 1, Percentage: 25},
	}
	if len(response.Data) != len(want) {
		t.Fatalf("got %d groups, want %d", len(response.Data), len(want))
	}
	for i := range want {
		if response.Data[i] != want[i] {
			t.Errorf("group %d = %+v, want %+v", i, response.Data[i], want[i])
		}
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	_, handler := newHandler(testConfig(), newTestAnalytics(), quietLogger())

	tests := []struct {
		method string
		path   string
		status int
	}{
		{"POST", "/api/dashboard", http.StatusMethodNotAllowed},
		{"PUT", "/", http.StatusMethodNotAllowed},
		{"DELETE", "/health", http.StatusMethodNotAllowed},
		{"GET", "/admin/reload", http.StatusMethodNotAllowed},
		{"GET", "/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	handleDashboard(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, component := range []string{
		"Sales Analytics",
		"Weekly sales",
		"Sales by collaborator",
		"Sales by zone",
		"Products",
		"Clients",
	} {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain %q", component)
		}
	}
}

func TestNewAnalyticsLoadsCSV(t *testing.T) {
	dir := t.TempDir()
	sales := filepath.Join(dir, "sales.csv")
	body := "id,confirmation_date,collaborator_id,collaborator_name,total_amount,zone_name\n" +
		"S1,2024-03-05,A,Ana,100,North\n"
	if err := os.WriteFile(sales, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Source.SalesCSV = sales
	cfg.Source.CacheDir = filepath.Join(dir, "cache")
	cfg.Analytics.Timezone = "UTC"

	a, err := newAnalytics(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := a.LoadFromCSV(context.Background(), sales); err != nil {
		t.Fatalf("LoadFromCSV() error = %v", err)
	}
	if len(a.Snapshot().Sales) != 1 {
		t.Errorf("loaded %d sales", len(a.Snapshot().Sales))
	}
	if _, err := os.Stat(cfg.Source.CacheDir); err != nil {
		t.Errorf("cache directory should exist: %v", err)
	}

	cfg.Analytics.Timezone = "Nowhere/Special"
	if _, err := newAnalytics(cfg, quietLogger()); err == nil {
		t.Error("invalid timezone should fail")
	}
}
