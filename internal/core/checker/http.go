package checker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/core"
)

const (
	defaultFetchTimeout = 10 * time.Second
	defaultMaxBodyBytes = 5 << 20

	mobileUserAgent  = "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36 pagelens"
	desktopUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 pagelens"
)

// retryAfterHeader parses Retry-After as seconds or an HTTP date.
func retryAfterHeader(resp *http.Response, now time.Time) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retry); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		if wait := parsed.Sub(now); wait > 0 {
			return wait
		}
	}
	return 0
}

// transportStatus maps a failed round trip to a pseudo status code.
func transportStatus(err error) int {
	if isTimeout(err) {
		return core.StatusTimeout
	}
	return core.StatusNetworkError
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Fetcher performs a plain content fetch and reports its wall time.
type Fetcher interface {
	Fetch(ctx context.Context, target string, variant core.Variant) (time.Duration, error)
}

// HTTPFetcher fetches pages with a variant-appropriate user agent.
type HTTPFetcher struct {
	Client       *http.Client
	Timeout      time.Duration
	MaxBodyBytes int64
}

// Fetch downloads target and returns the elapsed time including the body.
// Timeouts wrap core.ErrTimeout; other failures wrap core.ErrFallbackFetchFailed.
func (f *HTTPFetcher) Fetch(ctx context.Context, target string, variant core.Variant) (time.Duration, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	timeout := defaultFetchTimeout
	if f != nil && f.Timeout > 0 {
		timeout = f.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrFallbackFetchFailed, err)
	}
	req.Header.Set("User-Agent", userAgent(variant))
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	client := http.DefaultClient
	if f != nil && f.Client != nil {
		client = f.Client
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, fetchError(err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	limit := int64(defaultMaxBodyBytes)
	if f != nil && f.MaxBodyBytes > 0 {
		limit = f.MaxBodyBytes
	}
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, limit)); err != nil {
		return 0, fetchError(err)
	}
	// Any HTTP response counts; only transport failures are fetch failures.
	return time.Since(start), nil
}

func fetchError(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %w: %v", core.ErrFallbackFetchFailed, core.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", core.ErrFallbackFetchFailed, err)
}

func userAgent(variant core.Variant) string {
	if variant == core.VariantDesktop {
		return desktopUserAgent
	}
	return mobileUserAgent
}
