package handlers

import (
	"context"
	"net/http"

	"github.com/pagelens/pagelens/internal/core"
	apperrors "github.com/pagelens/pagelens/internal/errors"
)

// Analyzer produces a composite performance result for one URL.
type Analyzer interface {
	AnalyzePerformance(ctx context.Context, target string) *core.CompositeResult
}

// LimiterStatus exposes the upstream limiter state.
type LimiterStatus interface {
	Snapshot() core.LimiterSnapshot
}

// PerformanceHandler serves GET /v1/performance?url=.
func PerformanceHandler(analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, err := core.ParseTarget(r.URL.Query().Get("url"))
		if err != nil {
			respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, err.Error()))
			return
		}
		if analyzer == nil {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("performance analysis is not configured"))
			return
		}

		result := analyzer.AnalyzePerformance(r.Context(), target)
		if result == nil {
			respondWithError(w, r, apperrors.NewInternalError("performance analysis produced no result"))
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// QuotaHandler serves GET /v1/quota with the current limiter snapshot.
func QuotaHandler(status LimiterStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status == nil {
			respondWithError(w, r, apperrors.NewServiceUnavailableError("rate limiter is not configured"))
			return
		}
		writeJSON(w, http.StatusOK, status.Snapshot())
	}
}
