package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/internal/core"
)

type stubAnalyzer struct {
	targets []string
}

func (s *stubAnalyzer) AnalyzePerformance(_ context.Context, target string) *core.CompositeResult {
	s.targets = append(s.targets, target)
	return &core.CompositeResult{
		URL:          target,
		Mobile:       &core.PerformanceMetrics{Variant: core.VariantMobile, Source: core.SourceAPI, PerformanceScore: core.Int(80)},
		Desktop:      &core.PerformanceMetrics{Variant: core.VariantDesktop, Source: core.SourceAPI, PerformanceScore: core.Int(90)},
		OverallScore: core.Float(83),
		APIAvailable: true,
	}
}

type stubLimiter struct{}

func (stubLimiter) Snapshot() core.LimiterSnapshot {
	return core.LimiterSnapshot{Endpoint: "pagespeed", Day: "2025-03-01", RequestsToday: 3, DailyQuota: 100}
}

func TestPerformanceHandler(t *testing.T) {
	analyzer := &stubAnalyzer{}
	handler := PerformanceHandler(analyzer)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/v1/performance?url=https://example.com", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var result core.CompositeResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, "https://example.com", result.URL)
	require.Equal(t, 83.0, *result.OverallScore)
	require.True(t, result.APIAvailable)
	require.Equal(t, []string{"https://example.com"}, analyzer.targets)
}

func TestPerformanceHandlerRejectsBadURL(t *testing.T) {
	analyzer := &stubAnalyzer{}
	handler := PerformanceHandler(analyzer)

	for _, path := range []string{"/v1/performance", "/v1/performance?url=not-a-url", "/v1/performance?url=ftp://example.com"} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusBadRequest, rec.Code, path)

		var body struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Equal(t, "INVALID_INPUT", body.Error.Code)
	}
	require.Empty(t, analyzer.targets)
}

func TestQuotaHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	QuotaHandler(stubLimiter{})(rec, httptest.NewRequest(http.MethodGet, "/v1/quota", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot core.LimiterSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
	require.Equal(t, 3, snapshot.RequestsToday)

	rec = httptest.NewRecorder()
	QuotaHandler(nil)(rec, httptest.NewRequest(http.MethodGet, "/v1/quota", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type nilAnalyzer struct{}

func (nilAnalyzer) AnalyzePerformance(context.Context, string) *core.CompositeResult {
	return nil
}

func TestPerformanceHandlerNilResultIsInternalError(t *testing.T) {
	rec := httptest.NewRecorder()
	PerformanceHandler(nilAnalyzer{})(rec, httptest.NewRequest(http.MethodGet, "/v1/performance?url=https://example.com", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "INTERNAL_ERROR", body.Error.Code)
}
