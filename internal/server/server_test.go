package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopchain/hopchain/internal/config"
	"github.com/hopchain/hopchain/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, register func(chi.Router)) *Server {
	t.Helper()

	cfg := config.Service{Host: "127.0.0.1", Port: 0, ServiceName: "test-service"}
	srv, err := New(cfg, metrics.NewService("test-service"), discardLogger(), register)
	require.NoError(t, err)
	return srv
}

func TestNew_RequiresRegistration(t *testing.T) {
	cfg := config.Service{ServiceName: "test-service"}

	_, err := New(cfg, metrics.NewService("test-service"), discardLogger(), nil)
	assert.Error(t, err)
}

func TestNew_RequiresMetrics(t *testing.T) {
	cfg := config.Service{ServiceName: "test-service"}

	_, err := New(cfg, nil, discardLogger(), func(chi.Router) {})
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, func(chi.Router) {})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "test-service", body["service"])
}

func TestRootEndpoint(t *testing.T) {
	srv := newTestServer(t, func(chi.Router) {})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "test-service is running", body["message"])
}

func TestMetricsEndpoint_RecordsRequests(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/process", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, http.StatusOK, map[string]string{"status": "OK"})
		})
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "hopchain_request_duration_seconds")
}

func TestPrimaryEndpointRegistration(t *testing.T) {
	srv := newTestServer(t, func(r chi.Router) {
		r.Get("/data", func(w http.ResponseWriter, r *http.Request) {
			JSON(w, http.StatusOK, map[string]string{"status": "OK"})
		})
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
