package cli

import (
	"github.com/spf13/cobra"
)

func newLedgerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the sent-alerts ledger",
	}

	cmd.AddCommand(newLedgerStatsCmd(app))
	cmd.AddCommand(newLedgerPurgeCmd(app))
	return cmd
}

func newLedgerStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ledger row counts and date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				output.Error("%v", err)
				return err
			}

			stats, err := app.Store.LedgerStats(cmd.Context())
			if err != nil {
				output.Error("Failed to read ledger stats: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(stats)
			}

			output.Bold("Sent-alerts ledger")
			output.Printf("  Entries:     %d\n", stats.TotalEntries)
			output.Printf("  Subscribers: %d\n", stats.DistinctUsers)
			if stats.TotalEntries > 0 {
				output.Printf("  Oldest:      %s\n", stats.OldestEntry.Format("2006-01-02 15:04"))
				output.Printf("  Newest:      %s\n", stats.NewestEntry.Format("2006-01-02 15:04"))
			}
			for cat, n := range stats.ByCategory {
				output.Printf("  %-12s %d\n", string(cat)+":", n)
			}
			return nil
		},
	}
}

func newLedgerPurgeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete ledger entries older than the retention window",
		Long: `Deletes sent-alert entries whose sent_at is older than the retention
window. A purged entry may be re-notified if its source event ever
reappears, which is acceptable for stale documents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				output.Error("%v", err)
				return err
			}

			days, _ := cmd.Flags().GetInt("days")
			if days == 0 {
				days = app.Config.Pipeline.RetentionDays
			}

			purged, err := app.Store.PurgeOlderThan(cmd.Context(), days)
			if err != nil {
				output.Error("Purge failed: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]any{"purged": purged, "retention_days": days})
			}
			output.Success("Purged %d ledger entries older than %d days", purged, days)
			return nil
		},
	}

	cmd.Flags().Int("days", 0, "retention window in days (default from config)")
	return cmd
}
