package models

import (
	"testing"
	"time"
)

func TestDedupKeyDocument(t *testing.T) {
	event := CandidateEvent{Kind: EventDocument, Source: "fnet", DocumentID: "1044265"}
	if got := event.DedupKey(); got != "fnet-1044265" {
		t.Errorf("document dedup key = %q, want fnet-1044265", got)
	}
}

func TestDedupKeyDividend(t *testing.T) {
	event := CandidateEvent{
		Kind:        EventDividend,
		Source:      "investidor10",
		Ticker:      "MXRF11",
		PaymentDate: time.Date(2026, 8, 14, 15, 30, 0, 0, time.UTC),
		RelatedTo:   "07/2026",
	}
	if got := event.DedupKey(); got != "investidor10-MXRF11-2026-08-14-07/2026" {
		t.Errorf("dividend dedup key = %q", got)
	}

	// Time-of-day must not change the key.
	event.PaymentDate = time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)
	if got := event.DedupKey(); got != "investidor10-MXRF11-2026-08-14-07/2026" {
		t.Errorf("dividend dedup key sensitive to time of day: %q", got)
	}
}

func TestDedupKeyPriceDirectionAndDay(t *testing.T) {
	day := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	up := CandidateEvent{Kind: EventPrice, Source: "brapi", Ticker: "HGLG11", ChangePercent: 5.2, QuotedAt: day}
	down := up
	down.ChangePercent = -5.2

	if up.DedupKey() == down.DedupKey() {
		t.Error("opposite directions on the same day should have distinct keys")
	}

	// Same ticker, day and direction collapses even at different times and
	// magnitudes: at most one up-alert per fund per day.
	later := up
	later.QuotedAt = day.Add(4 * time.Hour)
	later.ChangePercent = 7.9
	if up.DedupKey() != later.DedupKey() {
		t.Error("same day and direction should map to one key")
	}

	nextDay := up
	nextDay.QuotedAt = day.AddDate(0, 0, 1)
	if up.DedupKey() == nextDay.DedupKey() {
		t.Error("different days should have distinct keys")
	}
}

func TestAlertPrefsEnabled(t *testing.T) {
	prefs := AlertPrefs{Fnet: true, Bitcoin: true}
	cases := []struct {
		cat  AlertCategory
		want bool
	}{
		{CategoryFnet, true},
		{CategoryPrice, false},
		{CategoryDividend, false},
		{CategoryBitcoin, true},
		{AlertCategory("bogus"), false},
	}
	for _, tc := range cases {
		if got := prefs.Enabled(tc.cat); got != tc.want {
			t.Errorf("Enabled(%s) = %v, want %v", tc.cat, got, tc.want)
		}
	}
}
