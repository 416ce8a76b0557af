package metrics_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
)

func TestMetricsServer_Endpoints(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var readyErr error

	server := metrics.NewMetricsServer(0, logger, func(context.Context) error { return readyErr })
	handler := server.Handler()

	tests := []struct {
		name     string
		path     string
		readyErr error
		code     int
	}{
		{name: "метрики", path: "/metrics", code: http.StatusOK},
		{name: "health", path: "/health", code: http.StatusOK},
		{name: "готов", path: "/ready", code: http.StatusOK},
		{name: "не готов", path: "/ready", readyErr: errors.New("redis down"), code: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			readyErr = tt.readyErr

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))

			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestMetricsServer_NilReadiness(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := metrics.NewMetricsServer(0, logger, nil).Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "READY", rec.Body.String())
}
