package ticker

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"fii-alerts/internal/fetch"
	"fii-alerts/pkg/utils"
)

// BrapiListing fetches the FII name-to-ticker listing from the BRAPI quote
// list endpoint.
type BrapiListing struct {
	client  *fetch.Client
	baseURL string
	token   string
}

// NewBrapiListing creates a listing provider against the given BRAPI base URL.
func NewBrapiListing(client *fetch.Client, baseURL, token string) *BrapiListing {
	return &BrapiListing{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type brapiListResponse struct {
	Stocks []struct {
		Stock string `json:"stock"`
		Name  string `json:"name"`
	} `json:"stocks"`
}

// FundListing returns a map of fund display name to ticker.
func (b *BrapiListing) FundListing(ctx context.Context) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/quote/list?type=fund&limit=1000", b.baseURL)
	if b.token != "" {
		endpoint += "&token=" + url.QueryEscape(b.token)
	}

	// The listing feeds a long-lived cache, so a transient failure here
	// is worth a couple of retries before falling back to stale data.
	retryCfg := utils.DefaultRetryConfig()
	resp, err := utils.RetryWithResult(ctx, retryCfg, func() (brapiListResponse, error) {
		var r brapiListResponse
		err := b.client.GetJSON(ctx, endpoint, nil, &r)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching fund listing: %w", err)
	}

	listing := make(map[string]string, len(resp.Stocks))
	for _, s := range resp.Stocks {
		if s.Stock == "" || s.Name == "" {
			continue
		}
		listing[s.Name] = s.Stock
	}
	return listing, nil
}
