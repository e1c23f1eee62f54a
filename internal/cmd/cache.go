package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/core"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the persistent response cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached snapshots from the store",
	Long: `Delete snapshots held by the store cache backend.

--url limits deletion to one URL, --older-than to snapshots at least that
old. Purging everything requires --yes. Redis entries expire on their own
and are not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL, _ := cmd.Flags().GetString("url")
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		yes, _ := cmd.Flags().GetBool("yes")

		target := ""
		if strings.TrimSpace(rawURL) != "" {
			parsed, err := core.ParseTarget(rawURL)
			if err != nil {
				return err
			}
			target = parsed
		}
		if olderThan < 0 {
			return errors.New("--older-than must not be negative")
		}
		if target == "" && olderThan == 0 && !yes {
			return errors.New("purging every snapshot requires --yes (or pass --url / --older-than)")
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

		deleted, err := db.PurgeCachedMetrics(ctx, target, olderThan)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Purged %d cached snapshot(s)\n", deleted)
		return err
	},
}

func init() {
	cachePurgeCmd.Flags().String("url", "", "Only purge snapshots for this URL")
	cachePurgeCmd.Flags().Duration("older-than", 0, "Only purge snapshots at least this old")
	cachePurgeCmd.Flags().Bool("yes", false, "Confirm purging every snapshot")

	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
