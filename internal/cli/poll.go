package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fii-alerts/internal/models"
	"fii-alerts/internal/pipeline"
	"fii-alerts/internal/poller"
)

func newPollCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one notification batch for a source",
		Long: `Poll one upstream source for candidate events and notify eligible
subscribers. Runs preview by default; pass --send to dispatch messages.`,
	}

	cmd.PersistentFlags().Bool("send", false, "actually dispatch messages (default is dry-run preview)")
	cmd.PersistentFlags().Bool("broadcast", false, "ignore follow lists, notify all opted-in subscribers")
	cmd.PersistentFlags().Int("limit", 0, "process at most N candidate events (0 = all)")

	cmd.AddCommand(newPollFnetCmd(app))
	cmd.AddCommand(newPollDividendsCmd(app))
	cmd.AddCommand(newPollPricesCmd(app))

	return cmd
}

// runOptions builds pipeline options from the shared poll flags.
func runOptions(cmd *cobra.Command) pipeline.RunOptions {
	send, _ := cmd.Flags().GetBool("send")
	broadcast, _ := cmd.Flags().GetBool("broadcast")
	limit, _ := cmd.Flags().GetInt("limit")
	return pipeline.RunOptions{
		DryRun:    !send,
		Broadcast: broadcast,
		Limit:     limit,
	}
}

func requireStore(app *App) error {
	if app.Store == nil {
		return fmt.Errorf("database unavailable: check the configured path")
	}
	return nil
}

func reportSummary(output *Output, summary pipeline.RunSummary) error {
	if output.IsJSON() {
		return output.JSON(summary)
	}

	output.Bold("Run %s", summary.RunID)
	output.Printf("  Events:     %d\n", summary.Events)
	output.Printf("  Unresolved: %d\n", summary.Unresolved)
	output.Printf("  Eligible:   %d\n", summary.Eligible)
	output.Printf("  Skipped:    %d (already sent)\n", summary.Skipped)
	if summary.Previewed > 0 {
		output.Warning("  Previewed:  %d (dry run, pass --send to dispatch)", summary.Previewed)
	}
	output.Printf("  Sent:       %d\n", summary.Sent)
	if summary.Failed > 0 {
		output.Error("  Failed:     %d (eligible for retry next cycle)", summary.Failed)
	}
	output.Dim("  Elapsed:    %s", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	return nil
}

func newPollFnetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fnet",
		Short: "Poll FNet for new fund filings",
		Example: `  fii-alerts poll fnet
  fii-alerts poll fnet --send --limit 10
  fii-alerts poll fnet --send --broadcast --pages 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				output.Error("%v", err)
				return err
			}

			pages, _ := cmd.Flags().GetInt("pages")
			src := poller.NewFnetPoller(app.Fetcher, app.Config.Sources.FnetBaseURL, pages, app.Logger)

			summary := app.newPipeline().Run(cmd.Context(), src, runOptions(cmd))
			return reportSummary(output, summary)
		},
	}
	cmd.Flags().Int("pages", 1, "index pages to read per poll")
	return cmd
}

func newPollDividendsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "dividends",
		Short: "Poll the dividend agenda and notify followers",
		Example: `  fii-alerts poll dividends
  fii-alerts poll dividends --send`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				output.Error("%v", err)
				return err
			}

			src := poller.NewInvestidor10Poller(app.Fetcher, app.Config.Sources.Investidor10URL, app.Logger)

			// Poll once: the agenda doubles as a local cache, persisted
			// before the notification pass runs over the same batch.
			events := src.Poll(cmd.Context())
			cached := cacheDividends(cmd.Context(), app, events)

			summary := app.newPipeline().Run(cmd.Context(), prefetched{Poller: src, events: events}, runOptions(cmd))
			if !output.IsJSON() && cached > 0 {
				output.Dim("  Cached:     %d dividend records", cached)
			}
			return reportSummary(output, summary)
		},
	}
}

// prefetched wraps a poller whose batch was already fetched, so one fetch
// can feed both the cache write and the pipeline run.
type prefetched struct {
	poller.Poller
	events []models.CandidateEvent
}

func (p prefetched) Poll(ctx context.Context) []models.CandidateEvent {
	return p.events
}

// cacheDividends persists the polled dividend agenda. Best-effort: cache
// failures only cost the local copy, not the notification pass.
func cacheDividends(ctx context.Context, app *App, events []models.CandidateEvent) int {
	dividends := make([]models.Dividend, 0, len(events))
	for _, e := range events {
		if e.Kind != models.EventDividend {
			continue
		}
		dividends = append(dividends, models.Dividend{
			Ticker:      e.Ticker,
			PaymentDate: e.PaymentDate,
			Rate:        e.Rate,
			RelatedTo:   e.RelatedTo,
		})
	}
	if err := app.Store.SaveDividends(ctx, dividends); err != nil {
		app.Logger.Warn().Err(err).Msg("dividend cache write failed")
		return 0
	}
	return len(dividends)
}

func newPollPricesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Poll quotes for followed funds and alert on large moves",
		Example: `  fii-alerts poll prices
  fii-alerts poll prices --send --threshold 2.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireStore(app); err != nil {
				output.Error("%v", err)
				return err
			}

			threshold, _ := cmd.Flags().GetFloat64("threshold")
			if threshold == 0 {
				threshold = app.Config.Pipeline.PriceThreshold
			}

			tickers, err := app.Store.AllFollowedTickers(cmd.Context())
			if err != nil {
				output.Error("loading followed tickers: %v", err)
				return err
			}
			if len(tickers) == 0 {
				output.Warning("No followed funds, nothing to quote.")
				return nil
			}

			src := poller.NewBrapiPoller(
				app.Fetcher,
				app.Config.Sources.BrapiBaseURL,
				app.Config.Credentials.Brapi.Token,
				tickers,
				threshold,
				app.Logger,
			)

			summary := app.newPipeline().Run(cmd.Context(), src, runOptions(cmd))
			return reportSummary(output, summary)
		},
	}
	cmd.Flags().Float64("threshold", 0, "percent move that triggers an alert (default from config)")
	return cmd
}
