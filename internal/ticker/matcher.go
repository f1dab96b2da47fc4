// Package ticker resolves free-text fund descriptions to canonical FII
// ticker symbols.
package ticker

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Confidence classifies how a ticker was resolved. Callers matching against
// follow lists must require at least ConfidenceListing; display-only callers
// may use any tier.
type Confidence int

const (
	// ConfidenceNone means no resolution at all.
	ConfidenceNone Confidence = iota
	// ConfidenceLabel is a last-resort display label, not a valid ticker.
	ConfidenceLabel
	// ConfidenceAlias matched the static alias table by substring.
	ConfidenceAlias
	// ConfidenceListing matched the fetched name listing.
	ConfidenceListing
	// ConfidencePattern found the canonical ticker pattern in free text.
	ConfidencePattern
	// ConfidenceHint means the caller supplied a valid ticker directly.
	ConfidenceHint
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceHint:
		return "hint"
	case ConfidencePattern:
		return "pattern"
	case ConfidenceListing:
		return "listing"
	case ConfidenceAlias:
		return "alias"
	case ConfidenceLabel:
		return "label"
	}
	return "none"
}

// Match is the outcome of one resolution attempt.
type Match struct {
	Ticker     string
	Confidence Confidence
}

// Resolved reports whether the match is usable for follow-list comparison.
func (m Match) Resolved() bool {
	return m.Confidence >= ConfidenceAlias && m.Ticker != ""
}

// tickerPattern is the canonical FII symbol shape: 4 letters + 2 digits.
var tickerPattern = regexp.MustCompile(`\b([A-Za-z]{4}\d{2})\b`)

// ListingProvider fetches the current name-to-ticker map from a market
// listing source.
type ListingProvider interface {
	FundListing(ctx context.Context) (map[string]string, error)
}

// Matcher resolves fund descriptions to tickers. The fetched listing is
// cached per instance with a TTL so batch runs reuse one fetch and tests can
// construct fresh instances without cross-test leakage.
type Matcher struct {
	provider ListingProvider
	aliases  map[string]string // normalized name fragment -> ticker
	ttl      time.Duration
	logger   zerolog.Logger

	mu          sync.Mutex
	listing     map[string]string // normalized name -> ticker
	refreshedAt time.Time
}

// NewMatcher creates a Matcher backed by the given listing provider. A nil
// provider disables the listing tier.
func NewMatcher(provider ListingProvider, ttl time.Duration, logger zerolog.Logger) *Matcher {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Matcher{
		provider: provider,
		aliases:  staticAliases(),
		ttl:      ttl,
		logger:   logger,
	}
}

// Match resolves a free-text fund description to a ticker, trying in order:
// an explicit hint, the canonical pattern in the text, the cached listing
// map (exact then substring both directions), the static alias table, and
// finally a two-word display label.
func (m *Matcher) Match(ctx context.Context, freeText, hint string) Match {
	if t := canonicalTicker(hint); t != "" {
		return Match{Ticker: t, Confidence: ConfidenceHint}
	}

	if loc := tickerPattern.FindString(freeText); loc != "" {
		return Match{Ticker: strings.ToUpper(loc), Confidence: ConfidencePattern}
	}

	normalized := NormalizeFundName(freeText)
	if normalized == "" {
		return Match{Confidence: ConfidenceNone}
	}

	if t := m.lookupListing(ctx, normalized); t != "" {
		return Match{Ticker: t, Confidence: ConfidenceListing}
	}

	for fragment, t := range m.aliases {
		if strings.Contains(normalized, fragment) {
			return Match{Ticker: t, Confidence: ConfidenceAlias}
		}
	}

	// Two-word label so callers still have something to display. Never
	// valid for follow matching.
	words := strings.Fields(normalized)
	if len(words) > 2 {
		words = words[:2]
	}
	return Match{Ticker: strings.Join(words, " "), Confidence: ConfidenceLabel}
}

// lookupListing matches the normalized name against the cached listing:
// exact first, then substring containment in both directions.
func (m *Matcher) lookupListing(ctx context.Context, normalized string) string {
	listing := m.cachedListing(ctx)
	if listing == nil {
		return ""
	}

	if t, ok := listing[normalized]; ok {
		return t
	}

	for name, t := range listing {
		if len(name) < 6 {
			// Very short names over-match on containment.
			continue
		}
		if strings.Contains(normalized, name) || strings.Contains(name, normalized) {
			return t
		}
	}
	return ""
}

func (m *Matcher) cachedListing(ctx context.Context) map[string]string {
	if m.provider == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listing != nil && time.Since(m.refreshedAt) < m.ttl {
		return m.listing
	}

	raw, err := m.provider.FundListing(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("fund listing fetch failed, keeping stale cache")
		return m.listing
	}

	listing := make(map[string]string, len(raw))
	for name, t := range raw {
		if n := NormalizeFundName(name); n != "" {
			listing[n] = strings.ToUpper(t)
		}
	}
	m.listing = listing
	m.refreshedAt = time.Now()
	m.logger.Debug().Int("funds", len(listing)).Msg("fund listing cache refreshed")
	return m.listing
}

// canonicalTicker returns the uppercased ticker if s matches the canonical
// pattern exactly, or "" otherwise.
func canonicalTicker(s string) string {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return ""
	}
	if tickerPattern.FindString(s) == s {
		return s
	}
	return ""
}

// legal-entity noise stripped during normalization
var nameNoise = []string{
	"FUNDO DE INVESTIMENTO IMOBILIARIO",
	"FDO INV IMOB",
	"FDO DE INV IMOB",
	"FUNDO DE INVESTIMENTO",
	"RESPONSABILIDADE LIMITADA",
	"RECEBIVEIS IMOBILIARIOS",
	"IMOBILIARIO",
	"IMOBILIARIA",
	"INVESTIMENTO",
	"- FII",
	" FII ",
	" FII",
	"FII ",
	" S.A.",
	" S/A",
	" SA ",
	" LTDA",
	" CI ",
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9 ]+`)

// NormalizeFundName uppercases, strips accents common in Portuguese fund
// names, removes legal-entity suffixes and collapses whitespace.
func NormalizeFundName(name string) string {
	s := strings.ToUpper(strings.TrimSpace(name))
	s = stripAccents(s)
	for _, noise := range nameNoise {
		s = strings.ReplaceAll(s, noise, " ")
	}
	s = nonAlnum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

var accentReplacer = strings.NewReplacer(
	"Á", "A", "À", "A", "Â", "A", "Ã", "A",
	"É", "E", "Ê", "E",
	"Í", "I",
	"Ó", "O", "Ô", "O", "Õ", "O",
	"Ú", "U", "Ü", "U",
	"Ç", "C",
)

func stripAccents(s string) string {
	return accentReplacer.Replace(s)
}
