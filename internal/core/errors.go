package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Upstream failure classes. They are carried as event reasons and metric
// error text and never returned from AnalyzePerformance.
var (
	ErrQuotaExceeded       = errors.New("daily quota exceeded")
	ErrRateLimited         = errors.New("upstream rate limited")
	ErrTimeout             = errors.New("upstream timeout")
	ErrTransientAPI        = errors.New("upstream api error")
	ErrMissingCredential   = errors.New("api credential not configured")
	ErrFallbackFetchFailed = errors.New("fallback fetch failed")
)

// Pseudo status codes for failures that never produced an HTTP response.
const (
	StatusNetworkError = 0
	StatusTimeout      = http.StatusRequestTimeout
)

// ClassifyStatus maps an upstream status code to the failure taxonomy.
// A nil result means the status is a success.
func ClassifyStatus(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, statusCode)
	case statusCode == StatusTimeout || statusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrTimeout, statusCode)
	case statusCode == StatusNetworkError:
		return fmt.Errorf("%w: network error", ErrTransientAPI)
	default:
		return fmt.Errorf("%w: status %d", ErrTransientAPI, statusCode)
	}
}
