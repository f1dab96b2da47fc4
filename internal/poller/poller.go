// Package poller implements the source adapters that discover candidate
// events from the upstream financial data sources.
package poller

import (
	"context"

	"fii-alerts/internal/models"
)

// Poller fetches candidate events from one upstream source. Each call is a
// finite batch, not a stream. Implementations never propagate fetch or
// parse failures: an upstream problem yields an empty batch and a log line,
// isolating that source from the rest of the run.
type Poller interface {
	// Name identifies the upstream, used as the event Source.
	Name() string

	// Category is the alert category the poller's events belong to.
	Category() models.AlertCategory

	// Poll fetches and normalizes one batch of candidate events.
	Poll(ctx context.Context) []models.CandidateEvent
}
