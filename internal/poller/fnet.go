package poller

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	apperrors "fii-alerts/internal/errors"
	"fii-alerts/internal/fetch"
	"fii-alerts/internal/models"
)

// FnetPoller discovers new fund filings from the FNet document registry.
// The registry exposes a paginated JSON index; each entry's document body
// is fetched separately and may be a PDF or an XML payload.
type FnetPoller struct {
	client  *fetch.Client
	baseURL string
	pages   int
	logger  zerolog.Logger
}

// NewFnetPoller creates an FNet filings poller. pages bounds how many index
// pages one poll reads.
func NewFnetPoller(client *fetch.Client, baseURL string, pages int, logger zerolog.Logger) *FnetPoller {
	if pages <= 0 {
		pages = 1
	}
	return &FnetPoller{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		pages:   pages,
		logger:  logger,
	}
}

// Name implements Poller.
func (p *FnetPoller) Name() string { return "fnet" }

// Category implements Poller.
func (p *FnetPoller) Category() models.AlertCategory { return models.CategoryFnet }

const fnetPageSize = 20

type fnetIndexResponse struct {
	Data []fnetIndexEntry `json:"data"`
}

type fnetIndexEntry struct {
	ID             int64  `json:"id"`
	FundDecription string `json:"descricaoFundo"`
	DocumentType   string `json:"tipoDocumento"`
	Category       string `json:"categoriaDocumento"`
	ReferenceDate  string `json:"dataReferencia"`
	DeliveredAt    string `json:"dataEntrega"`
}

// Poll reads the filing index and downloads each document body. Failures at
// any step degrade: an index page failure ends pagination, a body failure
// yields the extraction placeholder.
func (p *FnetPoller) Poll(ctx context.Context) []models.CandidateEvent {
	var events []models.CandidateEvent

	for page := 0; page < p.pages; page++ {
		indexURL := fmt.Sprintf(
			"%s/pesquisarGerenciadorDocumentosDados?d=0&s=%d&l=%d&o[0][dataEntrega]=desc&tipoFundo=1",
			p.baseURL, page*fnetPageSize, fnetPageSize,
		)

		var index fnetIndexResponse
		err := p.client.GetJSON(ctx, indexURL, map[string]string{
			"Referer": p.baseURL,
			"Accept":  "application/json",
		}, &index)
		if err != nil {
			p.logger.Warn().Err(apperrors.NewPollError(p.Name(), "fetch", indexURL, err)).
				Int("page", page).Msg("fnet index fetch failed")
			break
		}
		if len(index.Data) == 0 {
			break
		}

		for _, entry := range index.Data {
			events = append(events, p.normalize(ctx, entry))
		}
	}

	p.logger.Info().Int("events", len(events)).Msg("fnet poll complete")
	return events
}

func (p *FnetPoller) normalize(ctx context.Context, entry fnetIndexEntry) models.CandidateEvent {
	docID := fmt.Sprintf("%d", entry.ID)
	docURL := fmt.Sprintf("%s/exibirDocumento?id=%s&cvm=true", p.baseURL, docID)

	event := models.CandidateEvent{
		Kind:          models.EventDocument,
		Source:        p.Name(),
		DocumentID:    docID,
		DocumentType:  entry.DocumentType,
		FundName:      entry.FundDecription,
		ReferenceDate: entry.ReferenceDate,
		PublishedAt:   parseFnetTime(entry.DeliveredAt),
		SourceURL:     docURL,
	}

	body, err := p.client.Get(ctx, docURL, map[string]string{"Referer": p.baseURL})
	if err != nil {
		p.logger.Warn().Err(apperrors.NewPollError(p.Name(), "fetch", docURL, err)).
			Str("document", docID).Msg("fnet document fetch failed")
		event.Body = ExtractionFailedPlaceholder
		return event
	}

	// The registry serves document bodies base64-encoded.
	if decoded, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(body))); decErr == nil {
		body = decoded
	}

	event.Body = extractDocumentText(body)
	return event
}

// parseFnetTime parses the registry's delivery timestamps, which appear in
// both dd/mm/yyyy hh:mm and ISO forms.
func parseFnetTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"02/01/2006 15:04", "2006-01-02T15:04:05", "02/01/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
