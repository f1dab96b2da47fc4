// Package watch provides the long-lived Bitcoin price watcher. Unlike the
// batch jobs it keeps an in-process recurring timer while the host process
// is alive.
package watch

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fii-alerts/internal/pipeline"
	"fii-alerts/internal/poller"
)

// BitcoinWatcher polls the Bitcoin price on a fixed interval and pushes
// threshold alerts through the pipeline.
type BitcoinWatcher struct {
	pipeline *pipeline.Pipeline
	poller   poller.Poller
	interval time.Duration
	opts     pipeline.RunOptions
	logger   zerolog.Logger
}

// NewBitcoinWatcher creates a watcher over the given poller.
func NewBitcoinWatcher(p *pipeline.Pipeline, src poller.Poller, interval time.Duration, opts pipeline.RunOptions, logger zerolog.Logger) *BitcoinWatcher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &BitcoinWatcher{
		pipeline: p,
		poller:   src,
		interval: interval,
		opts:     opts,
		logger:   logger,
	}
}

// Watch runs one cycle immediately, then one per interval until the context
// is cancelled.
func (w *BitcoinWatcher) Watch(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("bitcoin watcher started")

	w.pipeline.Run(ctx, w.poller, w.opts)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("bitcoin watcher stopped")
			return
		case <-ticker.C:
			w.pipeline.Run(ctx, w.poller, w.opts)
		}
	}
}
