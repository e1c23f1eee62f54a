package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/pagelens/pagelens/internal/observability"
)

// PanicRecorder counts recovered panics. *metrics.Collector satisfies it.
type PanicRecorder interface {
	RecordPanic()
}

// Recovery recovers from handler panics and writes a 500 envelope.
func Recovery(recorder PanicRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					stack := string(debug.Stack())
					panicErr := errors.NewErrorEnvelope("INTERNAL_ERROR", "internal server error").
						WithCorrelationID(GetRequestID(r.Context()))
					panicErr, _ = panicErr.WithSeverity(errors.SeverityCritical)

					if recorder != nil {
						recorder.RecordPanic()
					}
					if observability.ServerLogger != nil {
						observability.ServerLogger.Error("Recovered handler panic",
							zap.String("panic", fmt.Sprint(err)),
							zap.String("path", r.URL.Path),
							zap.String("request_id", panicErr.CorrelationID),
							zap.String("stack_trace", stack))
					}

					writeErrorResponse(w, panicErr, http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// ErrorResponse structure per API standards
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// writeErrorResponse writes the envelope directly; internal/errors imports
// this package.
func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			RequestID: envelope.CorrelationID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
