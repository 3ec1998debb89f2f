package relay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopchain/hopchain/internal/config"
	"github.com/hopchain/hopchain/internal/envelope"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// targetFor splits an httptest server URL into the fixed host/port/path
// configuration a relay is wired with.
func targetFor(t *testing.T, rawURL, path string) config.Target {
	t.Helper()

	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return config.Target{Host: u.Hostname(), Port: port, Path: path}
}

func newTestRelay(t *testing.T, target config.Target, timeout time.Duration) *Service {
	t.Helper()

	cfg := &config.Relay{
		Service:        config.Service{ServiceName: "relay-a"},
		Target:         target,
		RequestTimeout: timeout,
	}
	svc, err := New(cfg, discardLogger())
	require.NoError(t, err)
	return svc
}

func serveProcess(svc *Service) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	svc.Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/process", nil))
	return rec
}

func TestHandleProcess_WrapsDownstreamUnmodified(t *testing.T) {
	downstreamBody := `{"service":"terminal","status":"OK","payload":{"id":"abc","kind":"widget","value":7}}`
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(downstreamBody))
	}))
	defer downstream.Close()

	svc := newTestRelay(t, targetFor(t, downstream.URL, "/data"), time.Second)

	rec := serveProcess(svc)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp envelope.RelayResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "relay-a", resp.Service)
	assert.Equal(t, "OK", resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
	assert.Equal(t, downstreamBody, string(resp.Upstream))
}

func TestHandleProcess_UpstreamErrorMapsTo502(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer downstream.Close()

	svc := newTestRelay(t, targetFor(t, downstream.URL, "/data"), time.Second)

	rec := serveProcess(svc)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var env envelope.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, envelope.HintUpstreamError, env.StatusHint)
	require.NotNil(t, env.Details)
	assert.Contains(t, *env.Details, "boom")
}

func TestHandleProcess_TimeoutMapsTo504(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer downstream.Close()

	svc := newTestRelay(t, targetFor(t, downstream.URL, "/data"), 50*time.Millisecond)

	rec := serveProcess(svc)
	require.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var env envelope.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, envelope.HintTimeout, env.StatusHint)
}

func TestHandleProcess_ConnectionRefusedMapsTo502(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := targetFor(t, downstream.URL, "/data")
	downstream.Close() // nothing is listening on the port anymore

	svc := newTestRelay(t, target, time.Second)

	rec := serveProcess(svc)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var env envelope.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, envelope.HintConnectionRefused, env.StatusHint)
}

func TestHandleProcess_InvalidJSONMapsTo500(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer downstream.Close()

	svc := newTestRelay(t, targetFor(t, downstream.URL, "/data"), time.Second)

	rec := serveProcess(svc)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var env envelope.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, envelope.HintParseError, env.StatusHint)
}

func TestHandleProcess_SingleAttemptPerRequest(t *testing.T) {
	var calls atomic.Int32
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer downstream.Close()

	svc := newTestRelay(t, targetFor(t, downstream.URL, "/data"), time.Second)

	serveProcess(svc)
	assert.Equal(t, int32(1), calls.Load(), "a failed downstream call must not be retried")
}

func TestTruncate_LimitsDetailSize(t *testing.T) {
	long := strings.Repeat("x", 2*maxDetailBytes)

	assert.Len(t, truncate([]byte(long)), maxDetailBytes)
	assert.Equal(t, "short", truncate([]byte("short")))
}
