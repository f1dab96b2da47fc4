// Package pipeline orchestrates one notification run: poll sources, match
// tickers, resolve subscribers, deduplicate, compose and dispatch.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fii-alerts/internal/compose"
	"fii-alerts/internal/logging"
	"fii-alerts/internal/models"
	"fii-alerts/internal/poller"
	"fii-alerts/internal/resolve"
	"fii-alerts/internal/store"
	"fii-alerts/internal/ticker"
)

// Sender delivers one composed message. Implemented by dispatch.Dispatcher;
// narrowed to an interface so tests can fake the gateway.
type Sender interface {
	Send(ctx context.Context, subscriberID, phone, body string) models.DispatchResult
}

// RunOptions controls one pipeline run.
type RunOptions struct {
	// DryRun previews without dispatching or writing the ledger. This is
	// the default mode; callers must opt into sending.
	DryRun bool

	// Broadcast ignores follow lists (see resolve.Options).
	Broadcast bool

	// MatchAllWhenNoFollows applies the empty-watchlist relaxation.
	MatchAllWhenNoFollows bool

	// Limit caps how many candidate events are processed (0 = no cap).
	Limit int
}

// RunSummary aggregates per-run counters for the job log.
type RunSummary struct {
	RunID      string
	Events     int
	Unresolved int
	Eligible   int
	Skipped    int // duplicates suppressed by the ledger
	Sent       int
	Failed     int
	Previewed  int // would-be sends under dry run
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pipeline wires the pipeline stages together. Runs are strictly
// sequential: events and recipients are processed one at a time so the
// dispatcher's pacing and the log interleaving stay simple.
type Pipeline struct {
	store    store.DataStore
	matcher  *ticker.Matcher
	resolver *resolve.Resolver
	composer *compose.Composer
	sender   Sender
	logger   zerolog.Logger
}

// New creates a Pipeline.
func New(s store.DataStore, matcher *ticker.Matcher, resolver *resolve.Resolver, composer *compose.Composer, sender Sender, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:    s,
		matcher:  matcher,
		resolver: resolver,
		composer: composer,
		sender:   sender,
		logger:   logger,
	}
}

// Run executes one batch over the given poller. Per-item failures are
// isolated: a bad event or recipient only affects its own counters.
func (p *Pipeline) Run(ctx context.Context, src poller.Poller, opts RunOptions) RunSummary {
	summary := RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := logging.WithRun(p.logger, summary.RunID)
	logger.Info().Str("source", src.Name()).Bool("dry_run", opts.DryRun).Msg("pipeline run started")

	events := src.Poll(ctx)
	if opts.Limit > 0 && len(events) > opts.Limit {
		events = events[:opts.Limit]
	}
	summary.Events = len(events)

	for _, event := range events {
		p.processEvent(ctx, logger, event, src.Category(), opts, &summary)
	}

	summary.FinishedAt = time.Now()
	logger.Info().
		Int("events", summary.Events).
		Int("eligible", summary.Eligible).
		Int("skipped", summary.Skipped).
		Int("sent", summary.Sent).
		Int("failed", summary.Failed).
		Int("previewed", summary.Previewed).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("pipeline run finished")
	return summary
}

func (p *Pipeline) processEvent(ctx context.Context, logger zerolog.Logger, event models.CandidateEvent, category models.AlertCategory, opts RunOptions, summary *RunSummary) {
	// Document events arrive with a free-text fund description: resolve
	// it before the follow-list comparison. Low-confidence matches stay
	// display-only and leave the matching ticker empty.
	if event.Kind == models.EventDocument {
		match := p.matcher.Match(ctx, event.FundName, event.Ticker)
		if match.Resolved() {
			event.Ticker = match.Ticker
		} else {
			event.Ticker = ""
			summary.Unresolved++
			logger.Debug().
				Str("fund", event.FundName).
				Str("tier", match.Confidence.String()).
				Msg("ticker unresolved, follow matching disabled for event")
		}
	}

	subscribers, err := p.resolver.EligibleSubscribers(ctx, event, category, resolve.Options{
		Broadcast:             opts.Broadcast,
		MatchAllWhenNoFollows: opts.MatchAllWhenNoFollows,
	})
	if err != nil {
		logger.Warn().Err(err).Str("source", event.Source).Msg("subscriber resolution failed for event")
		return
	}
	summary.Eligible += len(subscribers)

	dedupKey := event.DedupKey()

	// Composed lazily: if every recipient is a duplicate the composition
	// (and any summarization call) is skipped entirely.
	var body string
	for _, sub := range subscribers {
		if p.store.HasBeenSent(ctx, sub.ID, dedupKey) {
			summary.Skipped++
			continue
		}

		if body == "" {
			body = p.composer.Compose(ctx, event)
		}

		if opts.DryRun {
			summary.Previewed++
			logger.Info().
				Str("subscriber", sub.ID).
				Str("dedup_key", dedupKey).
				Msg("dry run: would send")
			continue
		}

		result := p.sender.Send(ctx, sub.ID, sub.Phone, body)
		if !result.Success {
			// Ledger intentionally not written: the failed send stays
			// eligible for retry on the next cycle.
			summary.Failed++
			continue
		}

		summary.Sent++
		p.store.RecordSent(ctx, models.LedgerEntry{
			SubscriberID: sub.ID,
			DedupKey:     dedupKey,
			Category:     category,
			SentAt:       result.SentAt,
			Metadata:     event.Ticker,
		})
	}
}
