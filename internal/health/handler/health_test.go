package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"

	"parkshare/pkg/logger"
)

func TestReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantDeps   map[string]string
	}{
		{"all up", map[string]Check{"mongo": ok, "redis": ok}, http.StatusOK, map[string]string{"mongo": "ok", "redis": "ok"}},
		{"redis down", map[string]Check{"mongo": ok, "redis": down}, http.StatusServiceUnavailable, map[string]string{"mongo": "ok", "redis": "error"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(tt.checks, logger.Nop()).RegisterRoutes(router)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}

			var body HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			for dep, want := range tt.wantDeps {
				if body.Dependencies[dep] != want {
					t.Errorf("dependency %s = %q, want %q", dep, body.Dependencies[dep], want)
				}
			}
		})
	}
}

func TestHealth(t *testing.T) {
	router := httprouter.New()
	NewHealthHandler(nil, logger.Nop()).RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
