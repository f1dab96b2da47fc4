// Package dispatch sends composed messages through the WhatsApp gateway.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "fii-alerts/internal/errors"
	"fii-alerts/internal/models"
)

// Dispatcher wraps the messaging gateway HTTP API. A shared token-bucket
// limiter paces all sends in a run to stay under the gateway's implicit
// rate ceiling.
type Dispatcher struct {
	baseURL  string
	token    string
	instance string
	client   *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

// Config configures a Dispatcher.
type Config struct {
	BaseURL        string
	Token          string
	Instance       string
	Timeout        time.Duration
	MessagesPerSec float64
	Burst          int
}

// NewDispatcher creates a Dispatcher for the given gateway.
func NewDispatcher(cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MessagesPerSec <= 0 {
		cfg.MessagesPerSec = 1.0 / 1.5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Dispatcher{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.Token,
		instance: cfg.Instance,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(cfg.MessagesPerSec), cfg.Burst),
		logger:   logger,
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Message string `json:"message"`
}

// Send delivers one message. It always returns a DispatchResult; transport
// and gateway errors surface in the result, never as a returned error, so a
// bad recipient cannot abort a batch.
func (d *Dispatcher) Send(ctx context.Context, subscriberID, phone, body string) models.DispatchResult {
	result := models.DispatchResult{
		SubscriberID: subscriberID,
		Phone:        phone,
		Body:         body,
		SentAt:       time.Now(),
	}

	if err := d.limiter.Wait(ctx); err != nil {
		result.Err = fmt.Errorf("waiting for send slot: %w", err)
		return result
	}

	payload, err := json.Marshal(sendTextRequest{Number: phone, Text: body})
	if err != nil {
		result.Err = fmt.Errorf("marshaling gateway payload: %w", err)
		return result
	}

	url := fmt.Sprintf("%s/message/sendText/%s", d.baseURL, d.instance)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		result.Err = fmt.Errorf("creating gateway request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		result.Err = apperrors.NewDispatchError(phone, 0, err)
		d.logger.Warn().Err(err).Str("subscriber", subscriberID).Msg("gateway send failed")
		return result
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Err = apperrors.NewDispatchError(phone, resp.StatusCode, nil)
		d.logger.Warn().
			Int("status", resp.StatusCode).
			Str("subscriber", subscriberID).
			Str("response", string(respBody)).
			Msg("gateway rejected send")
		return result
	}

	var parsed sendTextResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil {
		result.MessageID = parsed.Key.ID
	}

	result.Success = true
	d.logger.Debug().Str("subscriber", subscriberID).Str("message_id", result.MessageID).Msg("message dispatched")
	return result
}
