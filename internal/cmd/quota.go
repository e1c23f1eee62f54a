package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/core"
	"github.com/pagelens/pagelens/internal/core/engine"
	"github.com/pagelens/pagelens/internal/core/store"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and reset persisted quota and backoff state",
}

func init() {
	quotaCmd.AddCommand(quotaListCmd)
	quotaCmd.AddCommand(quotaResetCmd)
	rootCmd.AddCommand(quotaCmd)
}

// quotaQueryFromFlags reads the shared --all/--day/--prefix selectors.
func quotaQueryFromFlags(cmd *cobra.Command) (store.QuotaQuery, error) {
	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return store.QuotaQuery{}, err
	}
	day, err := cmd.Flags().GetString("day")
	if err != nil {
		return store.QuotaQuery{}, err
	}
	prefix, err := cmd.Flags().GetString("prefix")
	if err != nil {
		return store.QuotaQuery{}, err
	}
	return store.QuotaQuery{All: all, Day: strings.TrimSpace(day), Prefix: strings.TrimSpace(prefix)}, nil
}

func addQuotaQueryFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("all", false, "Select every stored day")
	cmd.Flags().String("day", "", "Select one day (YYYY-MM-DD)")
	cmd.Flags().String("prefix", "", "Select days with a matching prefix, e.g. 2025-03")
}

// currentSnapshot restores a limiter from db and reports today's state.
func currentSnapshot(ctx context.Context, cfg *config.Config, db *store.Store) (core.LimiterSnapshot, error) {
	location, err := cfg.PageSpeed.Location()
	if err != nil {
		return core.LimiterSnapshot{}, err
	}
	limiter := engine.NewRateLimiter(engine.RateLimiterConfig{
		Endpoint:          engine.DefaultEndpoint,
		RequestsPerSecond: cfg.PageSpeed.RequestsPerSecond,
		DailyQuota:        cfg.PageSpeed.DailyQuota,
		MaxAcquireWait:    cfg.PageSpeed.MaxAcquireWait,
		Location:          location,
		Store:             db,
	})
	if err := limiter.Restore(ctx); err != nil {
		return core.LimiterSnapshot{}, err
	}
	return limiter.Snapshot(), nil
}
