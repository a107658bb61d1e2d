package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docslot/pkg/logger"
)

func serve(h *HealthHandler, path string) (*httptest.ResponseRecorder, HealthResponse) {
	router := httprouter.New()
	h.RegisterRoutes(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body HealthResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(nil, logger.New(logger.Config{Output: io.Discard}))

	rec, body := serve(h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body.Status)
}

func TestReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantBody   HealthResponse
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "ready"},
		},
		{
			name:       "all reachable",
			checks:     map[string]Check{"mongo": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantBody:   HealthResponse{Status: "ready", Checks: map[string]string{"mongo": "ok", "redis": "ok"}},
		},
		{
			name:       "one down",
			checks:     map[string]Check{"postgres": ok, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   HealthResponse{Status: "unavailable", Checks: map[string]string{"postgres": "ok", "redis": "error"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.checks, logger.New(logger.Config{Output: io.Discard}))

			rec, body := serve(h, "/ready")
			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody.Status, body.Status)
			if len(tt.wantBody.Checks) > 0 {
				assert.Equal(t, tt.wantBody.Checks, body.Checks)
			}
		})
	}
}
