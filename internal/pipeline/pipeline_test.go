package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fii-alerts/internal/compose"
	"fii-alerts/internal/models"
	"fii-alerts/internal/resolve"
	"fii-alerts/internal/store"
	"fii-alerts/internal/ticker"
)

type fakePoller struct {
	name     string
	category models.AlertCategory
	events   []models.CandidateEvent
}

func (f *fakePoller) Name() string                   { return f.name }
func (f *fakePoller) Category() models.AlertCategory { return f.category }
func (f *fakePoller) Poll(ctx context.Context) []models.CandidateEvent {
	return f.events
}

type fakeSender struct {
	failNext int // fail the next N sends
	sent     []models.DispatchResult
}

func (f *fakeSender) Send(ctx context.Context, subscriberID, phone, body string) models.DispatchResult {
	result := models.DispatchResult{
		SubscriberID: subscriberID,
		Phone:        phone,
		Body:         body,
		SentAt:       time.Now(),
	}
	if f.failNext > 0 {
		f.failNext--
	} else {
		result.Success = true
		result.MessageID = "MSG-" + subscriberID
	}
	f.sent = append(f.sent, result)
	return result
}

func newTestPipeline(t *testing.T, sender Sender) (*Pipeline, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	matcher := ticker.NewMatcher(nil, time.Hour, zerolog.Nop())
	resolver := resolve.NewResolver(s, zerolog.Nop())
	composer := compose.NewComposer(nil, time.Second, zerolog.Nop())

	return New(s, matcher, resolver, composer, sender, zerolog.Nop()), s
}

func seedFnetSubscribers(t *testing.T, s *store.SQLiteStore) {
	t.Helper()
	ctx := context.Background()

	// U1 follows VTLT11 with fnet alerts on.
	require.NoError(t, s.SeedSubscriber(ctx, models.Subscriber{
		ID: "u1", Name: "U1", Phone: "5511999990001", PhoneVerified: true,
		Prefs: models.AlertPrefs{Fnet: true},
	}))
	require.NoError(t, s.SeedFollow(ctx, models.FundFollow{
		SubscriberID: "u1", Ticker: "VTLT11", NotificationsEnabled: true,
	}))

	// U2 follows a different fund.
	require.NoError(t, s.SeedSubscriber(ctx, models.Subscriber{
		ID: "u2", Name: "U2", Phone: "5511999990002", PhoneVerified: true,
		Prefs: models.AlertPrefs{Fnet: true},
	}))
	require.NoError(t, s.SeedFollow(ctx, models.FundFollow{
		SubscriberID: "u2", Ticker: "HGLG11", NotificationsEnabled: true,
	}))
}

func vtltDocumentEvent() models.CandidateEvent {
	return models.CandidateEvent{
		Kind:          models.EventDocument,
		Source:        "fnet",
		FundName:      "Fato relevante de VTLT11",
		DocumentID:    "1044265",
		DocumentType:  "Fato Relevante",
		ReferenceDate: "08/2026",
		Body:          "O fundo comunica a venda de um ativo.",
	}
}

func TestRunSendsOnceAndDeduplicates(t *testing.T) {
	sender := &fakeSender{}
	p, s := newTestPipeline(t, sender)
	seedFnetSubscribers(t, s)

	src := &fakePoller{
		name:     "fnet",
		category: models.CategoryFnet,
		events:   []models.CandidateEvent{vtltDocumentEvent()},
	}

	first := p.Run(context.Background(), src, RunOptions{})
	assert.Equal(t, 1, first.Events)
	assert.Equal(t, 1, first.Eligible, "only the VTLT11 follower should be eligible")
	assert.Equal(t, 1, first.Sent)
	assert.Equal(t, 0, first.Skipped)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "u1", sender.sent[0].SubscriberID)
	assert.Contains(t, sender.sent[0].Body, "VTLT11")

	assert.True(t, s.HasBeenSent(context.Background(), "u1", "fnet-1044265"))
	assert.False(t, s.HasBeenSent(context.Background(), "u2", "fnet-1044265"))

	// Same document on the next cycle: ledger suppresses the resend.
	second := p.Run(context.Background(), src, RunOptions{})
	assert.Equal(t, 1, second.Skipped)
	assert.Equal(t, 0, second.Sent)
	assert.Len(t, sender.sent, 1, "no new sends on the duplicate run")
}

func TestRunDryRunNeverSendsNorWritesLedger(t *testing.T) {
	sender := &fakeSender{}
	p, s := newTestPipeline(t, sender)
	seedFnetSubscribers(t, s)

	src := &fakePoller{
		name:     "fnet",
		category: models.CategoryFnet,
		events:   []models.CandidateEvent{vtltDocumentEvent()},
	}

	summary := p.Run(context.Background(), src, RunOptions{DryRun: true})
	assert.Equal(t, 1, summary.Previewed)
	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, sender.sent)
	assert.False(t, s.HasBeenSent(context.Background(), "u1", "fnet-1044265"))

	// A later real run still delivers.
	real := p.Run(context.Background(), src, RunOptions{})
	assert.Equal(t, 1, real.Sent)
}

func TestRunSendFailureLeavesEventRetryable(t *testing.T) {
	sender := &fakeSender{failNext: 1}
	p, s := newTestPipeline(t, sender)
	seedFnetSubscribers(t, s)

	src := &fakePoller{
		name:     "fnet",
		category: models.CategoryFnet,
		events:   []models.CandidateEvent{vtltDocumentEvent()},
	}

	first := p.Run(context.Background(), src, RunOptions{})
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, 0, first.Sent)
	assert.False(t, s.HasBeenSent(context.Background(), "u1", "fnet-1044265"),
		"failed sends must not be recorded")

	// Next cycle retries and succeeds.
	second := p.Run(context.Background(), src, RunOptions{})
	assert.Equal(t, 1, second.Sent)
	assert.Equal(t, 0, second.Failed)
	assert.True(t, s.HasBeenSent(context.Background(), "u1", "fnet-1044265"))
}

func TestRunUnresolvedTickerNotifiesNobody(t *testing.T) {
	sender := &fakeSender{}
	p, s := newTestPipeline(t, sender)
	seedFnetSubscribers(t, s)

	event := vtltDocumentEvent()
	event.FundName = "Fundo Completamente Desconhecido"
	src := &fakePoller{
		name:     "fnet",
		category: models.CategoryFnet,
		events:   []models.CandidateEvent{event},
	}

	summary := p.Run(context.Background(), src, RunOptions{})
	assert.Equal(t, 1, summary.Unresolved)
	assert.Equal(t, 0, summary.Eligible)
	assert.Empty(t, sender.sent)
}

func TestRunBroadcastReachesAllOptedIn(t *testing.T) {
	sender := &fakeSender{}
	p, s := newTestPipeline(t, sender)
	seedFnetSubscribers(t, s)

	src := &fakePoller{
		name:     "fnet",
		category: models.CategoryFnet,
		events:   []models.CandidateEvent{vtltDocumentEvent()},
	}

	summary := p.Run(context.Background(), src, RunOptions{Broadcast: true})
	assert.Equal(t, 2, summary.Eligible)
	assert.Equal(t, 2, summary.Sent)
	assert.True(t, s.HasBeenSent(context.Background(), "u2", "fnet-1044265"))
}

func TestRunLimitCapsEvents(t *testing.T) {
	sender := &fakeSender{}
	p, s := newTestPipeline(t, sender)
	seedFnetSubscribers(t, s)

	events := make([]models.CandidateEvent, 5)
	for i := range events {
		e := vtltDocumentEvent()
		e.DocumentID = string(rune('a' + i))
		events[i] = e
	}
	src := &fakePoller{name: "fnet", category: models.CategoryFnet, events: events}

	summary := p.Run(context.Background(), src, RunOptions{Limit: 2})
	assert.Equal(t, 2, summary.Events)
	assert.Equal(t, 2, summary.Sent)
}

func TestRunPriceEventsMatchFollows(t *testing.T) {
	sender := &fakeSender{}
	p, s := newTestPipeline(t, sender)
	ctx := context.Background()

	require.NoError(t, s.SeedSubscriber(ctx, models.Subscriber{
		ID: "u1", Name: "U1", Phone: "5511999990001", PhoneVerified: true,
		Prefs: models.AlertPrefs{Price: true},
	}))
	require.NoError(t, s.SeedFollow(ctx, models.FundFollow{
		SubscriberID: "u1", Ticker: "HGLG11", NotificationsEnabled: true,
	}))

	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	src := &fakePoller{
		name:     "brapi",
		category: models.CategoryPrice,
		events: []models.CandidateEvent{
			{Kind: models.EventPrice, Source: "brapi", Ticker: "HGLG11", Price: 162.35, ChangePercent: 5.2, QuotedAt: day},
			{Kind: models.EventPrice, Source: "brapi", Ticker: "MXRF11", Price: 9.80, ChangePercent: -5.5, QuotedAt: day},
		},
	}

	summary := p.Run(ctx, src, RunOptions{})
	assert.Equal(t, 1, summary.Sent, "only the followed ticker should notify")
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "HGLG11")
}
