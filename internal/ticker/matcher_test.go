package ticker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubListing struct {
	listing map[string]string
	err     error
	calls   int
}

func (s *stubListing) FundListing(ctx context.Context) (map[string]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.listing, nil
}

func TestMatchHintWinsOverEverything(t *testing.T) {
	provider := &stubListing{listing: map[string]string{
		"CSHG LOGISTICA": "HGLG11",
	}}
	m := NewMatcher(provider, time.Hour, zerolog.Nop())

	got := m.Match(context.Background(), "CSHG LOGISTICA FDO INV IMOB mentions VTLT11", "hglg11")
	assert.Equal(t, "HGLG11", got.Ticker)
	assert.Equal(t, ConfidenceHint, got.Confidence)
	assert.True(t, got.Resolved())
	assert.Zero(t, provider.calls, "hint resolution should not fetch the listing")
}

func TestMatchPatternInFreeText(t *testing.T) {
	m := NewMatcher(nil, time.Hour, zerolog.Nop())

	got := m.Match(context.Background(), "Fato relevante do fundo VTLT11 sobre vacancia", "")
	assert.Equal(t, "VTLT11", got.Ticker)
	assert.Equal(t, ConfidencePattern, got.Confidence)
	assert.True(t, got.Resolved())
}

func TestMatchPatternBeatsAlias(t *testing.T) {
	m := NewMatcher(nil, time.Hour, zerolog.Nop())

	// The name fragment maps to HGLG11 in the alias table, but an explicit
	// symbol in the text always wins.
	got := m.Match(context.Background(), "CSHG LOGISTICA comunicado sobre VTLT11", "")
	assert.Equal(t, "VTLT11", got.Ticker)
	assert.Equal(t, ConfidencePattern, got.Confidence)
}

func TestMatchListingExactAndSubstring(t *testing.T) {
	provider := &stubListing{listing: map[string]string{
		"VOTORANTIM LOGISTICA": "VTLT11",
		"MAXI RENDA":           "MXRF11",
	}}
	m := NewMatcher(provider, time.Hour, zerolog.Nop())
	ctx := context.Background()

	exact := m.Match(ctx, "Votorantim Logística Fundo de Investimento Imobiliário", "")
	assert.Equal(t, "VTLT11", exact.Ticker)
	assert.Equal(t, ConfidenceListing, exact.Confidence)

	substr := m.Match(ctx, "FDO INV IMOB MAXI RENDA RESPONSABILIDADE LIMITADA", "")
	assert.Equal(t, "MXRF11", substr.Ticker)
	assert.Equal(t, ConfidenceListing, substr.Confidence)
}

func TestMatchAliasFallback(t *testing.T) {
	// No provider, so the listing tier is disabled and the static alias
	// table is the only name-based tier left.
	m := NewMatcher(nil, time.Hour, zerolog.Nop())

	got := m.Match(context.Background(), "CSHG Logística Fundo de Investimento Imobiliário", "")
	assert.Equal(t, "HGLG11", got.Ticker)
	assert.Equal(t, ConfidenceAlias, got.Confidence)
	assert.True(t, got.Resolved())
}

func TestMatchLabelIsNotResolved(t *testing.T) {
	m := NewMatcher(nil, time.Hour, zerolog.Nop())

	got := m.Match(context.Background(), "Fundo Desconhecido Qualquer de Investimento Imobiliário", "")
	assert.Equal(t, ConfidenceLabel, got.Confidence)
	assert.Equal(t, "FUNDO DESCONHECIDO", got.Ticker)
	assert.False(t, got.Resolved(), "display labels must never match follow lists")
}

func TestMatchEmptyText(t *testing.T) {
	m := NewMatcher(nil, time.Hour, zerolog.Nop())

	got := m.Match(context.Background(), "   ", "")
	assert.Equal(t, ConfidenceNone, got.Confidence)
	assert.False(t, got.Resolved())
}

func TestListingCacheTTL(t *testing.T) {
	provider := &stubListing{listing: map[string]string{
		"VOTORANTIM LOGISTICA": "VTLT11",
	}}
	m := NewMatcher(provider, time.Hour, zerolog.Nop())
	ctx := context.Background()

	m.Match(ctx, "Votorantim Logistica", "")
	m.Match(ctx, "Votorantim Logistica", "")
	assert.Equal(t, 1, provider.calls, "second match inside the TTL should reuse the cache")

	// Force expiry and confirm a refetch.
	m.mu.Lock()
	m.refreshedAt = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	m.Match(ctx, "Votorantim Logistica", "")
	assert.Equal(t, 2, provider.calls, "expired cache should refetch")
}

func TestListingKeepsStaleCacheOnFetchFailure(t *testing.T) {
	provider := &stubListing{listing: map[string]string{
		"VOTORANTIM LOGISTICA": "VTLT11",
	}}
	m := NewMatcher(provider, time.Hour, zerolog.Nop())
	ctx := context.Background()

	got := m.Match(ctx, "Votorantim Logistica", "")
	assert.Equal(t, "VTLT11", got.Ticker)

	provider.err = errors.New("listing source down")
	m.mu.Lock()
	m.refreshedAt = time.Now().Add(-2 * time.Hour)
	m.mu.Unlock()

	got = m.Match(ctx, "Votorantim Logistica", "")
	assert.Equal(t, "VTLT11", got.Ticker, "stale cache should keep serving when the refresh fails")
	assert.Equal(t, ConfidenceListing, got.Confidence)
}

func TestNormalizeFundName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Votorantim Logística Fundo de Investimento Imobiliário", "VOTORANTIM LOGISTICA"},
		{"FDO INV IMOB MAXI RENDA", "MAXI RENDA"},
		{"CSHG Logística - FII", "CSHG LOGISTICA"},
		{"  Kinea Índices de Preços  ", "KINEA INDICES DE PRECOS"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeFundName(tc.in), "input %q", tc.in)
	}
}

func TestCanonicalTicker(t *testing.T) {
	assert.Equal(t, "HGLG11", canonicalTicker(" hglg11 "))
	assert.Equal(t, "", canonicalTicker("HGLG11 extra"))
	assert.Equal(t, "", canonicalTicker("HGL11"))
	assert.Equal(t, "", canonicalTicker(""))
}
