// Package compose renders notification message bodies from candidate
// events.
package compose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fii-alerts/internal/llm"
	"fii-alerts/internal/models"
	"fii-alerts/pkg/utils"
)

// Composer renders WhatsApp-ready plain text bodies. Document events may be
// summarized by an LLM; any summarization failure falls back to a
// deterministic template built from the structured fields, so composition
// itself never fails.
type Composer struct {
	summarizer llm.Client // nil disables summarization
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewComposer creates a Composer. summarizer may be nil.
func NewComposer(summarizer llm.Client, timeout time.Duration, logger zerolog.Logger) *Composer {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Composer{
		summarizer: summarizer,
		timeout:    timeout,
		logger:     logger,
	}
}

// Compose renders the message body for an event. The returned string is
// never empty.
func (c *Composer) Compose(ctx context.Context, event models.CandidateEvent) string {
	switch event.Kind {
	case models.EventDocument:
		return c.composeDocument(ctx, event)
	case models.EventPrice:
		return composePrice(event)
	case models.EventDividend:
		return composeDividend(event)
	}
	return fmt.Sprintf("⚠️ %s: evento sem modelo de mensagem", event.Source)
}

func (c *Composer) composeDocument(ctx context.Context, event models.CandidateEvent) string {
	var summary string
	if c.summarizer != nil && usableBody(event.Body) {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		text, err := c.summarizer.Complete(sctx, documentPrompt(event))
		if err != nil {
			c.logger.Warn().Err(err).Str("document", event.DocumentID).Msg("summarization failed, using template")
		} else {
			summary = strings.TrimSpace(text)
		}
	}

	header := documentHeader(event)
	if summary != "" {
		return header + "\n\n" + summary
	}
	return header + documentFallback(event)
}

func documentHeader(event models.CandidateEvent) string {
	label := event.Ticker
	if label == "" {
		label = event.FundName
	}
	return fmt.Sprintf("📄 *Novo documento: %s*\nTipo: %s\nReferência: %s",
		label, event.DocumentType, event.ReferenceDate)
}

// documentFallback is the deterministic non-AI rendition: a plain
// restatement of the structured fields plus a body excerpt.
func documentFallback(event models.CandidateEvent) string {
	var sb strings.Builder
	if !event.PublishedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("\nPublicado em: %s", utils.FormatDateBR(event.PublishedAt)))
	}
	if event.SourceURL != "" {
		sb.WriteString(fmt.Sprintf("\nLink: %s", event.SourceURL))
	}
	if usableBody(event.Body) {
		sb.WriteString("\n\n")
		sb.WriteString(utils.Truncate(event.Body, 300))
	}
	return sb.String()
}

func documentPrompt(event models.CandidateEvent) string {
	return fmt.Sprintf(
		"Resuma em até 3 frases, em português, o comunicado abaixo de um fundo imobiliário (%s, documento %q). "+
			"Destaque valores e datas. Responda apenas com o resumo.\n\n%s",
		event.FundName, event.DocumentType, utils.Truncate(event.Body, 6000),
	)
}

func usableBody(body string) bool {
	return body != "" && !strings.HasPrefix(body, "[extraction failed]")
}

func composePrice(event models.CandidateEvent) string {
	arrow := "📈"
	if event.ChangePercent < 0 {
		arrow = "📉"
	}
	return fmt.Sprintf("%s *%s* %s\nCotação: %s\nVariação: %s",
		arrow, event.Ticker,
		movementLabel(event.ChangePercent),
		utils.FormatBRL(event.Price),
		utils.FormatPercent(event.ChangePercent),
	)
}

func movementLabel(changePercent float64) string {
	if changePercent < 0 {
		return "em queda"
	}
	return "em alta"
}

func composeDividend(event models.CandidateEvent) string {
	return fmt.Sprintf("💰 *Provento anunciado: %s*\nValor: %s por cota\nPagamento: %s\nReferente a: %s",
		event.Ticker,
		utils.FormatBRL(event.Rate),
		utils.FormatDateBR(event.PaymentDate),
		event.RelatedTo,
	)
}
