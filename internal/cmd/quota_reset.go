package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagelens/pagelens/internal/core/engine"
	"github.com/pagelens/pagelens/internal/observability"
	"github.com/pagelens/pagelens/internal/output"
)

type quotaResetResult struct {
	Matched        int   `json:"matched"`
	Deleted        int64 `json:"deleted"`
	BackoffCleared int64 `json:"backoff_cleared"`
	DryRun         bool  `json:"dry_run"`
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored daily request counts",
	Long: `Delete stored daily request counts selected by --all, --day or --prefix.

Resetting today's count lets a running limiter exceed the upstream quota
once it next restores state, so --all requires --yes unless --dry-run is given.
--backoff also clears the persisted failure backoff.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		query, err := quotaQueryFromFlags(cmd)
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		clearBackoff, _ := cmd.Flags().GetBool("backoff")

		if err := query.Validate(); err != nil {
			return err
		}
		if query.All && !yes && !dryRun {
			return errors.New("--all requires --yes (or use --dry-run)")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		result := quotaResetResult{DryRun: dryRun}
		result.Matched, err = db.CountQuotaUsage(ctx, query)
		if err != nil {
			return err
		}

		if !dryRun {
			result.Deleted, err = db.ResetQuotaUsage(ctx, query)
			if err != nil {
				return err
			}
			if clearBackoff {
				result.BackoffCleared, err = db.ResetBackoff(ctx, engine.DefaultEndpoint)
				if err != nil {
					return err
				}
			}
			observability.CLILogger.Info("Quota state reset",
				zap.Int64("deleted", result.Deleted),
				zap.Int64("backoff_cleared", result.BackoffCleared))
		}

		sink, err := openCommandSink(cmd, fmt.Sprintf("quota.reset.%s", outputExtension(format)))
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		return writeQuotaResetResult(format, sink.writer, result)
	},
}

func writeQuotaResetResult(format output.Format, w io.Writer, result quotaResetResult) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	lines := []string{"Quota Reset", ""}
	if result.DryRun {
		lines = append(lines, fmt.Sprintf("dry run: %d day(s) would be deleted", result.Matched))
	} else {
		lines = append(lines, fmt.Sprintf("matched: %d", result.Matched), fmt.Sprintf("deleted: %d", result.Deleted))
		if result.BackoffCleared > 0 {
			lines = append(lines, fmt.Sprintf("backoff cleared: %d", result.BackoffCleared))
		}
	}
	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}

func init() {
	addOutputFlags(quotaResetCmd)
	addQuotaQueryFlags(quotaResetCmd)
	quotaResetCmd.Flags().Bool("yes", false, "Confirm destructive reset")
	quotaResetCmd.Flags().Bool("dry-run", false, "Show what would be deleted")
	quotaResetCmd.Flags().Bool("backoff", false, "Also clear persisted backoff state")
}
