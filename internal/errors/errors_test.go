package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want int
	}{
		{"internal", Internal("x"), http.StatusInternalServerError},
		{"validation", Validation("x"), http.StatusBadRequest},
		{"bad request", BadRequest("x"), http.StatusBadRequest},
		{"not found", NotFound("x"), http.StatusNotFound},
		{"rate limit", RateLimit("x"), http.StatusTooManyRequests},
		{"unavailable", ServiceUnavailable("x"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.StatusCode != tt.want {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.want)
			}
		})
	}
}

func TestValidationWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("month 12 out of range")
	err := ValidationWrap(cause, "Invalid period")

	if err.Details != cause.Error() {
		t.Errorf("Details = %q, want %q", err.Details, cause.Error())
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestWriteError(t *testing.T) {
	t.Run("app error", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, discardLogger(), NotFound("missing"), "req-1")

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
		}

		var resp ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Success {
			t.Error("Success should be false")
		}
		if resp.Error.Code != CodeNotFound || resp.Error.RequestID != "req-1" {
			t.Errorf("unexpected error body: %+v", resp.Error)
		}
	})

	t.Run("wrapped app error", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := fmt.Errorf("handler: %w", BadRequest("bad month"))
		WriteError(w, discardLogger(), err, "")

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("plain error", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, discardLogger(), fmt.Errorf("boom"), "")

		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

func TestWriteSuccessWithHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessWithHeaders(w, map[string]int{"n": 1}, map[string]string{"Cache-Control": "no-cache"})

	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}

	var resp struct {
		Data    map[string]int `json:"data"`
		Success bool           `json:"success"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.Data["n"] != 1 {
		t.Errorf("unexpected body: %+v", resp)
	}
}
