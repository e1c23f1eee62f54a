package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagelens/pagelens/internal/core"
)

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze URLs listed in a file",
	Long: `Read URLs from a file (one per line, "-" for stdin) and analyze each.

Blank lines and lines starting with # are ignored. All analyses share one
rate limiter, so a large batch is paced against the daily quota and falls
back to estimates once it is spent.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addOutputFlags(batchCmd)
	batchCmd.Flags().Bool("no-cache", false, "Skip the response cache")
	batchCmd.Flags().Int("concurrency", 0, "Concurrent analyses (default: workers from config)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	targets, err := readBatchTargets(args[0])
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no URLs found in batch file")
	}

	concurrency, err := cmd.Flags().GetInt("concurrency")
	if err != nil {
		return err
	}
	if concurrency == 0 {
		concurrency = viper.GetInt("workers")
		if concurrency < 1 {
			concurrency = 1
		}
		if err := cmd.Flags().Set("concurrency", fmt.Sprint(concurrency)); err != nil {
			return err
		}
	}

	return analyzeTargets(cmd, targets)
}

func readBatchTargets(path string) ([]string, error) {
	if strings.TrimSpace(path) == "-" {
		return scanTargets(os.Stdin)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close() // nolint:errcheck // best-effort cleanup on read-only file

	return scanTargets(file)
}

func scanTargets(r io.Reader) ([]string, error) {
	targets := make([]string, 0)
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		target, err := core.ParseTarget(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid URL on line %d: %w", line, err)
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return targets, nil
}
