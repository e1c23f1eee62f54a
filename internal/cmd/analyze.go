package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/observability"
	"github.com/pagelens/pagelens/internal/output"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>...",
	Short: "Analyze page performance for one or more URLs",
	Long: `Analyze mobile and desktop performance for each URL.

Results come from the response cache, the PageSpeed Insights API, or a
fallback estimate based on a plain page fetch. The result flags report
which path produced each variant.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	addOutputFlags(analyzeCmd)
	analyzeCmd.Flags().Bool("no-cache", false, "Skip the response cache")
	analyzeCmd.Flags().Int("concurrency", 1, "Concurrent analyses")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	targets, err := parseTargets(args)
	if err != nil {
		return err
	}
	return analyzeTargets(cmd, targets)
}

// analyzeTargets is shared by analyze and batch once targets are known.
func analyzeTargets(cmd *cobra.Command, targets []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	noCache, err := cmd.Flags().GetBool("no-cache")
	if err != nil {
		return err
	}
	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	if concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	startedAt := time.Now()

	p, err := buildPipeline(ctx, cfg, pipelineOptions{noCache: noCache})
	if err != nil {
		return err
	}
	defer p.Close()

	results, err := runAnalyses(ctx, p.manager, targets, concurrency)
	if err != nil {
		return err
	}

	if err := writeResults(cmd, format, results); err != nil {
		return err
	}

	logThroughput(len(results), startedAt)
	return nil
}

func parseTargets(args []string) ([]string, error) {
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		target, err := core.ParseTarget(arg)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		targets = append(targets, target)
	}
	return targets, nil
}

// analyzer is the part of the manager the worker pool needs.
type analyzer interface {
	AnalyzePerformance(ctx context.Context, target string) *core.CompositeResult
}

type analyzeJob struct {
	index  int
	target string
}

// runAnalyses resolves every target with a bounded worker pool. Results keep
// input order. Analyses never fail individually, so the only error is
// cancellation.
func runAnalyses(ctx context.Context, manager analyzer, targets []string, concurrency int) ([]*core.CompositeResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*core.CompositeResult, len(targets))
	jobs := make(chan analyzeJob)

	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for job := range jobs {
			if ctx.Err() != nil {
				return
			}
			results[job.index] = manager.AnalyzePerformance(ctx, job.target)
		}
	}

	if concurrency > len(targets) {
		concurrency = len(targets)
	}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go worker()
	}

sendLoop:
	for i, target := range targets {
		select {
		case <-ctx.Done():
			break sendLoop
		case jobs <- analyzeJob{index: i, target: target}:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// writeResults renders to stdout or --out as one document, or to one file per
// URL under --out-dir.
func writeResults(cmd *cobra.Command, format output.Format, results []*core.CompositeResult) error {
	_, outDir, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}

	if outDir == "" {
		sink, err := openCommandSink(cmd, "")
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		var rendered string
		if len(results) == 1 {
			rendered, err = output.NewFormatter(format).FormatResult(results[0])
		} else {
			rendered, err = output.FormatResultList(format, results)
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(rendered) != "" {
			_, err = fmt.Fprintln(sink.writer, strings.TrimRight(rendered, "\n"))
		}
		return err
	}

	formatter := output.NewFormatter(format)
	for _, result := range results {
		if result == nil {
			continue
		}
		rendered, err := formatter.FormatResult(result)
		if err != nil {
			return err
		}
		sink, err := openCommandSink(cmd, targetFilename(result.URL, format))
		if err != nil {
			return err
		}
		_, werr := fmt.Fprintln(sink.writer, strings.TrimRight(rendered, "\n"))
		cerr := sink.close()
		if werr != nil {
			return werr
		}
		if cerr != nil {
			return cerr
		}
		observability.CLILogger.Debug("Wrote result", zap.String("url", result.URL), zap.String("path", sink.path))
	}
	return nil
}

func logThroughput(count int, startedAt time.Time) {
	if count <= 0 || observability.CLILogger == nil {
		return
	}
	elapsed := time.Since(startedAt)
	if elapsed <= 0 {
		return
	}
	rate := float64(count) / elapsed.Seconds()
	observability.CLILogger.Info(
		"Analysis throughput",
		zap.Int("urls", count),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate_per_sec", rate),
	)
}
