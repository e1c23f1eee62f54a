package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/internal/core"
	apperrors "github.com/pagelens/pagelens/internal/errors"
	"github.com/pagelens/pagelens/internal/metrics"
	"github.com/pagelens/pagelens/internal/server/handlers"
)

type fixedAnalyzer struct{}

func (fixedAnalyzer) AnalyzePerformance(_ context.Context, target string) *core.CompositeResult {
	return &core.CompositeResult{URL: target, FallbackUsed: true}
}

func newTestServer(t *testing.T, collector *metrics.Collector) *Server {
	t.Helper()
	t.Cleanup(func() { apperrors.SetErrorRecorder(nil) })
	return New(Options{
		Host:     "127.0.0.1",
		Port:     0,
		Version:  handlers.VersionInfo{Version: "1.0.0"},
		Analyzer: fixedAnalyzer{},
		Metrics:  collector,
	})
}

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := serve(srv, http.MethodGet, "/does-not-exist")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)

	rec = serve(srv, http.MethodPost, "/v1/performance")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerPerformanceRoute(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := serve(srv, http.MethodGet, "/v1/performance?url=https://example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var result core.CompositeResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, "https://example.com", result.URL)
	require.True(t, result.FallbackUsed)

	rec = serve(srv, http.MethodGet, "/v1/performance")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(srv, http.MethodGet, "/v1/quota")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerExposesMetrics(t *testing.T) {
	srv := newTestServer(t, metrics.New())

	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/health").Code)
	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/health/live").Code)
	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/version").Code)
	require.Equal(t, http.StatusBadRequest, serve(srv, http.MethodGet, "/v1/performance?url=nope").Code)

	rec := serve(srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	text := rec.Body.String()
	require.True(t, strings.Contains(text, `pagelens_http_requests_total{endpoint="/health",method="GET",status="200"} 1`), text)
	require.True(t, strings.Contains(text, `pagelens_errors_total{error_code="INVALID_INPUT",http_status="400"} 1`), text)
}

func TestServerWithoutMetricsHasNoMetricsRoute(t *testing.T) {
	srv := newTestServer(t, nil)
	require.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/metrics").Code)
}
