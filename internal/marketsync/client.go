// Package marketsync imports wholesale fish prices from government market
// feeds into the local auction history.
package marketsync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fishonbid/fishbid/internal/resilience"
)

// RawRecord is one untyped row from a government feed. Field names and value
// types vary between feeds and even between rows.
type RawRecord map[string]any

// feedResponse is the common envelope both government APIs use.
type feedResponse struct {
	Records []RawRecord `json:"records"`
	Total   int         `json:"total"`
}

// Client fetches records from one government data endpoint. Outbound calls
// share a rate limiter so bursts of state-wise queries stay polite.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
	log     *zap.Logger
}

// NewClient creates a client for one feed endpoint.
func NewClient(baseURL, apiKey string, timeout time.Duration, rps rate.Limit, burst int) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = int(rps)
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rps, burst),
		baseURL: baseURL,
		apiKey:  apiKey,
		log:     zap.L().Named("marketsync"),
	}
}

// FetchRecords queries the feed with the given filters. HTTP failures that
// are worth retrying come back as transient errors.
func (c *Client) FetchRecords(ctx context.Context, params url.Values) ([]RawRecord, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "marketsync: rate limiter wait")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "marketsync: parse url %s", c.baseURL)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.apiKey != "" {
		q.Set("api-key", c.apiKey)
	}
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "marketsync: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("marketsync: status %d from %s", resp.StatusCode, u.Host)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "marketsync: read body"), 0)
	}

	var parsed feedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "marketsync: decode response")
	}

	c.log.Debug("fetched feed records",
		zap.String("host", u.Host),
		zap.Int("records", len(parsed.Records)),
	)
	return parsed.Records, nil
}
