package affiliate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/antonminaichev/cashback-ledger/internal/types/link"
	"golang.org/x/time/rate"
)

// HTTPClient calls a remote affiliate network. Outbound calls share one token
// bucket so the poller cannot exceed the network's quota.
type HTTPClient struct {
	Client  *http.Client
	Address string
	limiter *rate.Limiter
}

func NewHTTPClient(address string, rps float64) *HTTPClient {
	if rps <= 0 {
		rps = 5
	}
	return &HTTPClient{
		Client:  &http.Client{Timeout: 10 * time.Second},
		Address: address,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

type generateReq struct {
	URL      string        `json:"url"`
	Platform link.Platform `json:"platform"`
}

func (c *HTTPClient) GenerateLink(ctx context.Context, originalURL string, platform link.Platform) (*Quote, error) {
	body, err := json.Marshal(generateReq{URL: originalURL, Platform: platform})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, c.Address+"/api/links", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generate link: unexpected status: %d", resp.StatusCode)
	}
	var q Quote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if q.AffiliateURL == "" {
		return nil, fmt.Errorf("generate link: empty affiliate url")
	}
	return &q, nil
}

func (c *HTTPClient) Conversion(ctx context.Context, externalID string) (*Conversion, error) {
	resp, err := c.do(ctx, http.MethodGet, c.Address+"/api/conversions/"+url.PathEscape(externalID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent, http.StatusNotFound:
		return nil, nil
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("too many requests (429) for order %s", externalID)
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var conv Conversion
	if err := json.NewDecoder(resp.Body).Decode(&conv); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return &conv, nil
}

func (c *HTTPClient) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle: %w", err)
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}
