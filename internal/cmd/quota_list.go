package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/output"
)

var quotaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored daily request counts and the current limiter state",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}

		query, err := quotaQueryFromFlags(cmd)
		if err != nil {
			return err
		}
		if query.Validate() != nil {
			query.All = true
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

		usage, err := db.ListQuotaUsage(ctx, query)
		if err != nil {
			return err
		}
		snapshot, err := currentSnapshot(ctx, cfg, db)
		if err != nil {
			return err
		}

		rendered, err := output.NewFormatter(format).FormatQuota(usage, &snapshot)
		if err != nil {
			return err
		}

		sink, err := openCommandSink(cmd, fmt.Sprintf("quota.list.%s", outputExtension(format)))
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		_, err = fmt.Fprintln(sink.writer, strings.TrimRight(rendered, "\n"))
		return err
	},
}

func init() {
	addOutputFlags(quotaListCmd)
	addQuotaQueryFlags(quotaListCmd)
}
