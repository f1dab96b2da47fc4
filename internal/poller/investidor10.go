package poller

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	apperrors "fii-alerts/internal/errors"
	"fii-alerts/internal/fetch"
	"fii-alerts/internal/models"
)

// Investidor10Poller scrapes the upcoming dividend agenda from the
// Investidor10 dividends page. The page is an HTML table of
// ticker / payment date / rate / reference period rows.
type Investidor10Poller struct {
	client *fetch.Client
	url    string
	logger zerolog.Logger
}

// NewInvestidor10Poller creates a dividend agenda poller.
func NewInvestidor10Poller(client *fetch.Client, url string, logger zerolog.Logger) *Investidor10Poller {
	return &Investidor10Poller{
		client: client,
		url:    url,
		logger: logger,
	}
}

// Name implements Poller.
func (p *Investidor10Poller) Name() string { return "investidor10" }

// Category implements Poller.
func (p *Investidor10Poller) Category() models.AlertCategory { return models.CategoryDividend }

// Poll fetches and parses the dividend agenda.
func (p *Investidor10Poller) Poll(ctx context.Context) []models.CandidateEvent {
	body, err := p.client.Get(ctx, p.url, map[string]string{
		"Accept": "text/html,application/xhtml+xml",
	})
	if err != nil {
		p.logger.Warn().Err(apperrors.NewPollError(p.Name(), "fetch", p.url, err)).Msg("investidor10 fetch failed")
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		p.logger.Warn().Err(apperrors.NewPollError(p.Name(), "parse", p.url, err)).Msg("investidor10 parse failed")
		return nil
	}

	var events []models.CandidateEvent
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}

		ticker := strings.ToUpper(strings.TrimSpace(cells.Eq(0).Text()))
		if ticker == "" {
			return
		}

		paymentDate := parseBrazilianDate(cells.Eq(1).Text())
		if paymentDate.IsZero() {
			return
		}

		rate := parseBrazilianDecimal(cells.Eq(2).Text())

		relatedTo := ""
		if cells.Length() > 3 {
			relatedTo = strings.TrimSpace(cells.Eq(3).Text())
		}
		if relatedTo == "" {
			relatedTo = paymentDate.Format("01/2006")
		}

		events = append(events, models.CandidateEvent{
			Kind:        models.EventDividend,
			Source:      p.Name(),
			Ticker:      ticker,
			PaymentDate: paymentDate,
			Rate:        rate,
			RelatedTo:   relatedTo,
		})
	})

	p.logger.Info().Int("events", len(events)).Msg("investidor10 poll complete")
	return events
}

// parseBrazilianDate parses dd/mm/yyyy.
func parseBrazilianDate(s string) time.Time {
	t, err := time.Parse("02/01/2006", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseBrazilianDecimal parses values like "R$ 0,85" or "1.234,56".
func parseBrazilianDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
