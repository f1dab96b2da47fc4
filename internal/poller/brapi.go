package poller

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "fii-alerts/internal/errors"
	"fii-alerts/internal/fetch"
	"fii-alerts/internal/models"
)

// BrapiPoller fetches price snapshots for a set of tickers from the BRAPI
// quote endpoint and emits price events for moves beyond a percent
// threshold.
type BrapiPoller struct {
	client    *fetch.Client
	baseURL   string
	token     string
	tickers   []string
	threshold float64
	logger    zerolog.Logger
}

// NewBrapiPoller creates a price snapshot poller for the given tickers.
func NewBrapiPoller(client *fetch.Client, baseURL, token string, tickers []string, threshold float64, logger zerolog.Logger) *BrapiPoller {
	return &BrapiPoller{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		tickers:   tickers,
		threshold: threshold,
		logger:    logger,
	}
}

// Name implements Poller.
func (p *BrapiPoller) Name() string { return "brapi" }

// Category implements Poller.
func (p *BrapiPoller) Category() models.AlertCategory { return models.CategoryPrice }

// brapi rejects very long symbol lists, so quotes are fetched in batches.
const brapiQuoteBatch = 20

type brapiQuoteResponse struct {
	Results []struct {
		Symbol                 string  `json:"symbol"`
		RegularMarketPrice     float64 `json:"regularMarketPrice"`
		RegularMarketChangePct float64 `json:"regularMarketChangePercent"`
	} `json:"results"`
}

// Poll fetches quotes for all configured tickers and keeps only moves at or
// beyond the threshold.
func (p *BrapiPoller) Poll(ctx context.Context) []models.CandidateEvent {
	if len(p.tickers) == 0 {
		return nil
	}

	var events []models.CandidateEvent
	now := time.Now()

	for start := 0; start < len(p.tickers); start += brapiQuoteBatch {
		end := start + brapiQuoteBatch
		if end > len(p.tickers) {
			end = len(p.tickers)
		}
		batch := p.tickers[start:end]

		endpoint := fmt.Sprintf("%s/quote/%s", p.baseURL, url.PathEscape(strings.Join(batch, ",")))
		if p.token != "" {
			endpoint += "?token=" + url.QueryEscape(p.token)
		}

		var resp brapiQuoteResponse
		if err := p.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			p.logger.Warn().Err(apperrors.NewPollError(p.Name(), "fetch", endpoint, err)).
				Strs("tickers", batch).Msg("brapi quote fetch failed")
			continue
		}

		for _, q := range resp.Results {
			if math.Abs(q.RegularMarketChangePct) < p.threshold {
				continue
			}
			events = append(events, models.CandidateEvent{
				Kind:          models.EventPrice,
				Source:        p.Name(),
				Ticker:        strings.ToUpper(q.Symbol),
				Price:         q.RegularMarketPrice,
				ChangePercent: q.RegularMarketChangePct,
				QuotedAt:      now,
			})
		}
	}

	p.logger.Info().Int("events", len(events)).Float64("threshold", p.threshold).Msg("brapi poll complete")
	return events
}
