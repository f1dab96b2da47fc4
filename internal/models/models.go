// Package models provides domain models for the alert pipeline.
package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// AlertCategory identifies one notification type a subscriber can opt into.
type AlertCategory string

const (
	CategoryFnet     AlertCategory = "fnet"     // new fund filings
	CategoryPrice    AlertCategory = "price"    // price variation
	CategoryDividend AlertCategory = "dividend" // dividend announcements
	CategoryBitcoin  AlertCategory = "btc"      // bitcoin price moves
)

// EventKind identifies the shape of a candidate event.
type EventKind string

const (
	EventDocument EventKind = "document"
	EventPrice    EventKind = "price"
	EventDividend EventKind = "dividend"
)

// Subscriber is a user account as seen by the pipeline. The pipeline only
// reads subscribers; the account subsystem owns the rows.
type Subscriber struct {
	ID            string
	Name          string
	Phone         string
	PhoneVerified bool
	Prefs         AlertPrefs
	CreatedAt     time.Time
}

// AlertPrefs holds the per-category notification toggles.
type AlertPrefs struct {
	Fnet     bool
	Price    bool
	Dividend bool
	Bitcoin  bool
}

// Enabled reports whether the toggle for the given category is on.
func (p AlertPrefs) Enabled(cat AlertCategory) bool {
	switch cat {
	case CategoryFnet:
		return p.Fnet
	case CategoryPrice:
		return p.Price
	case CategoryDividend:
		return p.Dividend
	case CategoryBitcoin:
		return p.Bitcoin
	}
	return false
}

// Fund is a listed FII identified by its ticker.
type Fund struct {
	Ticker string
	Name   string
}

// FundFollow associates a subscriber with a fund they watch.
type FundFollow struct {
	SubscriberID         string
	Ticker               string
	NotificationsEnabled bool
}

// CandidateEvent is something discovered by a source poller, normalized to a
// common shape. Exactly one of the kind-specific field groups is populated.
type CandidateEvent struct {
	Kind   EventKind
	Source string // upstream identifier, e.g. "fnet", "brapi"

	// Resolved ticker, empty until the matcher runs (document events) or
	// set directly by the poller (price/dividend events).
	Ticker string

	// Document fields.
	DocumentID    string
	DocumentType  string
	FundName      string // free text fund description from the upstream
	ReferenceDate string
	PublishedAt   time.Time
	SourceURL     string
	Body          string // extracted document text, possibly degraded

	// Price fields.
	Price         float64
	ChangePercent float64
	QuotedAt      time.Time

	// Dividend fields.
	PaymentDate time.Time
	Rate        float64
	RelatedTo   string // period label, e.g. "11/2025"
}

// DedupKey derives the stable per-event half of the dedup key. The ledger
// scopes it per recipient, so the same event re-polled later maps to the
// same row and never re-notifies.
func (e CandidateEvent) DedupKey() string {
	switch e.Kind {
	case EventDocument:
		return fmt.Sprintf("%s-%s", e.Source, e.DocumentID)
	case EventDividend:
		return fmt.Sprintf("%s-%s-%s-%s", e.Source, e.Ticker, e.PaymentDate.Format("2006-01-02"), e.RelatedTo)
	case EventPrice:
		direction := "up"
		if e.ChangePercent < 0 {
			direction = "down"
		}
		h := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s", e.Ticker, e.QuotedAt.Format("2006-01-02"), direction)))
		return fmt.Sprintf("%s-%s", e.Source, hex.EncodeToString(h[:8]))
	}
	return fmt.Sprintf("%s-unknown", e.Source)
}

// LedgerEntry is one persisted "(recipient, event) delivered" fact.
type LedgerEntry struct {
	ID           int64
	SubscriberID string
	DedupKey     string
	Category     AlertCategory
	SentAt       time.Time
	Metadata     string
}

// Dividend is a cached upstream dividend record.
type Dividend struct {
	Ticker      string
	PaymentDate time.Time
	Rate        float64
	RelatedTo   string
}

// DispatchResult is the outcome of one send attempt.
type DispatchResult struct {
	SubscriberID string
	Phone        string
	Body         string
	Success      bool
	MessageID    string
	Err          error
	SentAt       time.Time
}
