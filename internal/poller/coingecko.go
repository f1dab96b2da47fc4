package poller

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	apperrors "fii-alerts/internal/errors"
	"fii-alerts/internal/fetch"
	"fii-alerts/internal/models"
)

// CoinGeckoPoller fetches the Bitcoin price in BRL with its 24h change and
// emits a price event when the move crosses the threshold. Used by the BTC
// watcher, which polls it on a recurring in-process timer.
type CoinGeckoPoller struct {
	client    *fetch.Client
	url       string
	threshold float64
	logger    zerolog.Logger
}

// NewCoinGeckoPoller creates a Bitcoin price poller.
func NewCoinGeckoPoller(client *fetch.Client, url string, threshold float64, logger zerolog.Logger) *CoinGeckoPoller {
	return &CoinGeckoPoller{
		client:    client,
		url:       url,
		threshold: threshold,
		logger:    logger,
	}
}

// Name implements Poller.
func (p *CoinGeckoPoller) Name() string { return "coingecko" }

// Category implements Poller.
func (p *CoinGeckoPoller) Category() models.AlertCategory { return models.CategoryBitcoin }

type coinGeckoResponse struct {
	Bitcoin struct {
		BRL          float64 `json:"brl"`
		BRL24hChange float64 `json:"brl_24h_change"`
	} `json:"bitcoin"`
}

// Poll fetches the current Bitcoin quote.
func (p *CoinGeckoPoller) Poll(ctx context.Context) []models.CandidateEvent {
	var resp coinGeckoResponse
	if err := p.client.GetJSON(ctx, p.url, nil, &resp); err != nil {
		p.logger.Warn().Err(apperrors.NewPollError(p.Name(), "fetch", p.url, err)).Msg("coingecko fetch failed")
		return nil
	}

	if resp.Bitcoin.BRL == 0 {
		p.logger.Warn().Msg("coingecko returned empty quote")
		return nil
	}

	if math.Abs(resp.Bitcoin.BRL24hChange) < p.threshold {
		p.logger.Debug().
			Float64("change", resp.Bitcoin.BRL24hChange).
			Float64("threshold", p.threshold).
			Msg("bitcoin move below threshold")
		return nil
	}

	return []models.CandidateEvent{{
		Kind:          models.EventPrice,
		Source:        p.Name(),
		Ticker:        "BTC",
		Price:         resp.Bitcoin.BRL,
		ChangePercent: resp.Bitcoin.BRL24hChange,
		QuotedAt:      time.Now(),
	}}
}
