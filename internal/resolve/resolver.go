// Package resolve determines which subscribers are eligible for an event.
package resolve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fii-alerts/internal/models"
	"fii-alerts/internal/store"
)

// Options adjusts eligibility per run.
type Options struct {
	// Broadcast skips the follow-list check entirely: every subscriber
	// with the category toggle on and a verified phone is eligible. Used
	// by operator-requested broadcast runs.
	Broadcast bool

	// MatchAllWhenNoFollows treats a subscriber with an empty follow list
	// as following everything. Intentional relaxation for flows where an
	// empty watchlist means "tell me about all funds".
	MatchAllWhenNoFollows bool
}

// Resolver computes eligible subscribers for candidate events.
type Resolver struct {
	store  store.DataStore
	logger zerolog.Logger
}

// NewResolver creates a Resolver over the given store.
func NewResolver(s store.DataStore, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  s,
		logger: logger,
	}
}

// EligibleSubscribers returns the subscribers that should be notified about
// the event in the given category: category toggle on, verified phone, and
// a matching followed ticker (subject to Options).
//
// Events whose ticker is unresolved never match a follow list; in
// non-broadcast mode they resolve to nobody rather than to a low-confidence
// guess.
func (r *Resolver) EligibleSubscribers(ctx context.Context, event models.CandidateEvent, category models.AlertCategory, opts Options) ([]models.Subscriber, error) {
	subscribers, err := r.store.SubscribersWithCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("fetching subscribers for %s: %w", category, err)
	}

	// BTC alerts are not tied to a fund; every opted-in subscriber is
	// eligible, same as broadcast mode.
	if opts.Broadcast || category == models.CategoryBitcoin {
		return subscribers, nil
	}

	if event.Ticker == "" {
		r.logger.Debug().Str("source", event.Source).Msg("event has no resolved ticker, nobody eligible")
		return nil, nil
	}

	var eligible []models.Subscriber
	for _, sub := range subscribers {
		follows, err := r.store.FollowedTickers(ctx, sub.ID)
		if err != nil {
			r.logger.Warn().Err(err).Str("subscriber", sub.ID).Msg("follow lookup failed, skipping subscriber")
			continue
		}

		if len(follows) == 0 {
			if opts.MatchAllWhenNoFollows {
				eligible = append(eligible, sub)
			}
			continue
		}

		for _, f := range follows {
			if f.Ticker == event.Ticker && f.NotificationsEnabled {
				eligible = append(eligible, sub)
				break
			}
		}
	}
	return eligible, nil
}
