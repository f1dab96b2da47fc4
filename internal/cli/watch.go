package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fii-alerts/internal/pipeline"
	"fii-alerts/internal/poller"
	"fii-alerts/internal/watch"
)

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Long-lived watchers",
		Long:  "Watchers keep an in-process recurring timer, unlike the cron-style poll jobs.",
	}

	cmd.AddCommand(newWatchBtcCmd(app))
	return cmd
}

func newWatchBtcCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "btc",
		Short: "Watch the Bitcoin price and alert on large moves",
		Example: `  fii-alerts watch btc --send
  fii-alerts watch btc --send --interval 10m --threshold 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				output.Error("%v", err)
				return err
			}

			send, _ := cmd.Flags().GetBool("send")
			interval, _ := cmd.Flags().GetDuration("interval")
			if interval == 0 {
				interval = app.Config.BitcoinInterval()
			}
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			if threshold == 0 {
				threshold = app.Config.Pipeline.BitcoinThreshold
			}

			src := poller.NewCoinGeckoPoller(app.Fetcher, app.Config.Sources.CoinGeckoURL, threshold, app.Logger)
			watcher := watch.NewBitcoinWatcher(
				app.newPipeline(),
				src,
				interval,
				pipeline.RunOptions{DryRun: !send},
				app.Logger,
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			output.Info("Watching Bitcoin every %s (threshold %.1f%%). Ctrl-C to stop.", interval, threshold)
			watcher.Watch(ctx)
			return nil
		},
	}

	cmd.Flags().Bool("send", false, "actually dispatch messages (default is dry-run preview)")
	cmd.Flags().Duration("interval", 0, "polling interval (default from config)")
	cmd.Flags().Float64("threshold", 0, "percent 24h move that triggers an alert (default from config)")
	return cmd
}
