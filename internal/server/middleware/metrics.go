package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pagelens/pagelens/internal/observability"
)

// RequestRecorder records completed HTTP requests. *metrics.Collector
// satisfies it.
type RequestRecorder interface {
	RecordHTTPRequest(method, endpoint string, status int, duration time.Duration)
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// getEndpointPattern extracts chi route pattern to avoid high-cardinality paths
func getEndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	switch r.URL.Path {
	case "/health", "/health/live", "/health/ready":
		return "/health/*"
	case "/version", "/metrics", "/v1/performance", "/v1/quota", "/":
		return r.URL.Path
	default:
		return "/unknown"
	}
}

// RequestMetrics records request counts and latency, then logs the request
// with its request id. A nil recorder only logs.
func RequestMetrics(recorder RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			endpoint := getEndpointPattern(r)

			if recorder != nil {
				recorder.RecordHTTPRequest(r.Method, endpoint, wrapped.statusCode, duration)
			}

			if observability.ServerLogger != nil {
				observability.ServerLogger.Info("HTTP request completed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("endpoint", endpoint),
					zap.Int("status", wrapped.statusCode),
					zap.Duration("duration", duration),
					zap.Int64("response_size", wrapped.bytesWritten),
					zap.String("requestID", GetRequestID(r.Context())),
				)
			}
		})
	}
}
