package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/core/cache"
	"github.com/pagelens/pagelens/internal/output"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   []string
	active  int32
	maxSeen int32
	delay   time.Duration
}

func (f *fakeAnalyzer) AnalyzePerformance(ctx context.Context, target string) *core.CompositeResult {
	n := atomic.AddInt32(&f.active, 1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	atomic.AddInt32(&f.active, -1)

	f.mu.Lock()
	f.calls = append(f.calls, target)
	f.mu.Unlock()
	return &core.CompositeResult{URL: target}
}

func TestRunAnalysesKeepsInputOrder(t *testing.T) {
	analyzer := &fakeAnalyzer{delay: 5 * time.Millisecond}
	targets := []string{"https://a.test/", "https://b.test/", "https://c.test/", "https://d.test/"}

	results, err := runAnalyses(context.Background(), analyzer, targets, 2)
	require.NoError(t, err)
	require.Len(t, results, len(targets))
	for i, target := range targets {
		require.Equal(t, target, results[i].URL)
	}
	require.LessOrEqual(t, atomic.LoadInt32(&analyzer.maxSeen), int32(2))
	require.Len(t, analyzer.calls, len(targets))
}

func TestRunAnalysesClampsConcurrency(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	results, err := runAnalyses(context.Background(), analyzer, []string{"https://a.test/"}, 16)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestRunAnalysesCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runAnalyses(ctx, &fakeAnalyzer{}, []string{"https://a.test/", "https://b.test/"}, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestParseTargets(t *testing.T) {
	targets, err := parseTargets([]string{" https://example.test/page ", "http://example.test"})
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.test/page", "http://example.test"}, targets)

	_, err = parseTargets([]string{"example.test"})
	require.ErrorIs(t, err, core.ErrInvalidURL)
	require.Contains(t, err.Error(), `"example.test"`)
}

func TestScanTargets(t *testing.T) {
	input := strings.Join([]string{
		"# landing pages",
		"https://example.test/",
		"",
		"  https://example.test/pricing  ",
		"https://example.test/",
	}, "\n")

	targets, err := scanTargets(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.test/", "https://example.test/pricing"}, targets)
}

func TestScanTargetsReportsLine(t *testing.T) {
	_, err := scanTargets(strings.NewReader("https://example.test/\nftp://example.test/\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 2")
}

func TestReadBatchTargetsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://example.test/\n"), 0o644))

	targets, err := readBatchTargets(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://example.test/"}, targets)

	_, err = readBatchTargets(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestTargetFilename(t *testing.T) {
	require.Equal(t, "example.test-docs-intro.json", targetFilename("https://Example.test/docs/intro", output.FormatJSON))
	require.Equal(t, "example.test.md", targetFilename("https://example.test/", output.FormatMarkdown))
	require.Equal(t, "example.test.yaml", targetFilename("https://example.test", output.FormatYAML))
	require.Equal(t, "example.test.txt", targetFilename("https://example.test", output.FormatTable))
}

func TestWriteQuotaResetResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeQuotaResetResult(output.FormatJSON, &buf, quotaResetResult{Matched: 2, Deleted: 2}))
	require.Contains(t, buf.String(), `"deleted": 2`)
	require.Contains(t, buf.String(), `"dry_run": false`)

	buf.Reset()
	require.NoError(t, writeQuotaResetResult(output.FormatTable, &buf, quotaResetResult{Matched: 3, DryRun: true}))
	require.Contains(t, buf.String(), "3 day(s) would be deleted")
}

func TestBuildVersionReport(t *testing.T) {
	SetVersionInfo("1.2.3", "abc123", "2025-10-28")
	t.Cleanup(func() { SetVersionInfo("", "", "") })

	basic := buildVersionReport(false)
	require.Equal(t, "pagelens", basic.Name)
	require.Equal(t, "1.2.3", basic.Version)
	require.Empty(t, basic.Commit)

	extended := buildVersionReport(true)
	require.Equal(t, "abc123", extended.Commit)
	require.NotEmpty(t, extended.Go)
}

func TestBuildCacheDegradesToMemory(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{TTL: time.Minute, Backend: config.CacheBackendStore}}

	p := &pipeline{}
	tiered, ok := p.buildCache(context.Background(), cfg, discardLogger{}).(*cache.Tiered)
	require.True(t, ok)
	require.NotNil(t, tiered.Primary)
	require.Nil(t, tiered.Secondary)

	cfg.Cache.Backend = config.CacheBackendRedis
	cfg.Redis.Addr = "127.0.0.1:1"
	tiered, ok = p.buildCache(context.Background(), cfg, discardLogger{}).(*cache.Tiered)
	require.True(t, ok)
	require.Nil(t, tiered.Secondary)
	require.Nil(t, p.redis)
}
