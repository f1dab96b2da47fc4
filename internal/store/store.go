// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"fii-alerts/internal/models"
)

// DataStore defines the interface for data persistence.
//
// Subscribers, funds and follows are owned by the account subsystem; the
// pipeline only reads them. The alert ledger is owned by the pipeline.
type DataStore interface {
	// Alert ledger
	HasBeenSent(ctx context.Context, subscriberID, dedupKey string) bool
	RecordSent(ctx context.Context, entry models.LedgerEntry) bool
	PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error)
	LedgerStats(ctx context.Context) (LedgerStats, error)

	// Subscribers & follows (read-only from the pipeline's perspective)
	SubscribersWithCategory(ctx context.Context, category models.AlertCategory) ([]models.Subscriber, error)
	FollowedTickers(ctx context.Context, subscriberID string) ([]models.FundFollow, error)
	AllFollowedTickers(ctx context.Context) ([]string, error)
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)
	SaveFund(ctx context.Context, fund models.Fund) error

	// Dividend cache
	SaveDividends(ctx context.Context, dividends []models.Dividend) error
	GetDividends(ctx context.Context, ticker string, since time.Time) ([]models.Dividend, error)

	// Lifecycle
	Close() error
}

// LedgerStats summarizes the alert ledger for operator inspection.
type LedgerStats struct {
	TotalEntries  int64
	ByCategory    map[models.AlertCategory]int64
	OldestEntry   time.Time
	NewestEntry   time.Time
	DistinctUsers int64
}
