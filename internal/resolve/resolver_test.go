package resolve

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fii-alerts/internal/models"
	"fii-alerts/internal/store"
)

func seededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	subs := []models.Subscriber{
		{ID: "u1", Name: "U1", Phone: "5511999990001", PhoneVerified: true, Prefs: models.AlertPrefs{Fnet: true, Bitcoin: true}},
		{ID: "u2", Name: "U2", Phone: "5511999990002", PhoneVerified: true, Prefs: models.AlertPrefs{Fnet: false, Bitcoin: true}},
		{ID: "u3", Name: "U3", Phone: "5511999990003", PhoneVerified: false, Prefs: models.AlertPrefs{Fnet: true}},
		{ID: "u4", Name: "U4", Phone: "5511999990004", PhoneVerified: true, Prefs: models.AlertPrefs{Fnet: true}},
	}
	for _, sub := range subs {
		require.NoError(t, s.SeedSubscriber(ctx, sub))
	}

	follows := []models.FundFollow{
		{SubscriberID: "u1", Ticker: "VTLT11", NotificationsEnabled: true},
		{SubscriberID: "u2", Ticker: "VTLT11", NotificationsEnabled: true},
		{SubscriberID: "u4", Ticker: "VTLT11", NotificationsEnabled: false},
		{SubscriberID: "u4", Ticker: "HGLG11", NotificationsEnabled: true},
	}
	for _, f := range follows {
		require.NoError(t, s.SeedFollow(ctx, f))
	}
	return s
}

func subscriberIDs(subs []models.Subscriber) []string {
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestEligibleFollowersOnly(t *testing.T) {
	r := NewResolver(seededStore(t), zerolog.Nop())

	// u1 follows VTLT11 with the fnet toggle on: eligible.
	// u2 follows VTLT11 but has fnet off: not eligible.
	// u3 has fnet on but is unverified: not eligible.
	// u4 has fnet on but muted VTLT11: not eligible.
	event := models.CandidateEvent{Kind: models.EventDocument, Source: "fnet", Ticker: "VTLT11"}
	got, err := r.EligibleSubscribers(context.Background(), event, models.CategoryFnet, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, subscriberIDs(got))
}

func TestEligibleUnresolvedTickerResolvesToNobody(t *testing.T) {
	r := NewResolver(seededStore(t), zerolog.Nop())

	event := models.CandidateEvent{Kind: models.EventDocument, Source: "fnet", Ticker: ""}
	got, err := r.EligibleSubscribers(context.Background(), event, models.CategoryFnet, Options{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEligibleBroadcastSkipsFollowCheck(t *testing.T) {
	r := NewResolver(seededStore(t), zerolog.Nop())

	event := models.CandidateEvent{Kind: models.EventDocument, Source: "fnet", Ticker: "ZZZZ99"}
	got, err := r.EligibleSubscribers(context.Background(), event, models.CategoryFnet, Options{Broadcast: true})
	require.NoError(t, err)

	// Broadcast still honors the category toggle and verification.
	assert.ElementsMatch(t, []string{"u1", "u4"}, subscriberIDs(got))
}

func TestEligibleBitcoinIgnoresFollows(t *testing.T) {
	r := NewResolver(seededStore(t), zerolog.Nop())

	event := models.CandidateEvent{Kind: models.EventPrice, Source: "coingecko", Ticker: "BTC"}
	got, err := r.EligibleSubscribers(context.Background(), event, models.CategoryBitcoin, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, subscriberIDs(got))
}

func TestEligibleMatchAllWhenNoFollows(t *testing.T) {
	s := seededStore(t)
	require.NoError(t, s.SeedSubscriber(context.Background(), models.Subscriber{
		ID: "u5", Name: "U5", Phone: "5511999990005", PhoneVerified: true,
		Prefs: models.AlertPrefs{Fnet: true},
	}))
	r := NewResolver(s, zerolog.Nop())

	event := models.CandidateEvent{Kind: models.EventDocument, Source: "fnet", Ticker: "VTLT11"}

	strict, err := r.EligibleSubscribers(context.Background(), event, models.CategoryFnet, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, subscriberIDs(strict), "empty watchlist matches nothing by default")

	relaxed, err := r.EligibleSubscribers(context.Background(), event, models.CategoryFnet, Options{MatchAllWhenNoFollows: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u5"}, subscriberIDs(relaxed), "empty watchlist matches everything when relaxed")
}
