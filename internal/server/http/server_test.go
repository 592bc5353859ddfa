package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type checkerFunc func(context.Context) error

func (f checkerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantStatus string
	}{
		{"ok", nil, http.StatusOK, "ok"},
		{"down", errors.New("db closed"), http.StatusServiceUnavailable, "not_serving"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(checkerFunc(func(context.Context) error { return tt.err }), nil)
			req := httptest.NewRequest(http.MethodGet, "/v1/healthz", nil)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			if w.Code != tt.wantCode {
				t.Fatalf("status code: %d", w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Fatalf("status: %v", body)
			}
		})
	}
}

func TestUnknownRoute(t *testing.T) {
	s := New(checkerFunc(func(context.Context) error { return nil }), nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/healthz", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status: %d", w.Code)
	}
}
