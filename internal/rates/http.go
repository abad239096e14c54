package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// HTTPProvider queries a Frankfurter-compatible endpoint:
// GET {BaseURL}/{date}?from={cur}&to={base}.
type HTTPProvider struct {
	BaseURL string
	Base    string
	Client  *http.Client
}

// NewHTTPProvider returns an HTTPProvider with a bounded client timeout.
func NewHTTPProvider(baseURL, base string) *HTTPProvider {
	return &HTTPProvider{
		BaseURL: baseURL,
		Base:    base,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type rateResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (p *HTTPProvider) Rate(ctx context.Context, cur, date string) (decimal.Decimal, error) {
	if cur == p.Base {
		return decimal.NewFromInt(1), nil
	}
	endpoint := fmt.Sprintf("%s/%s?%s", p.BaseURL, url.PathEscape(date),
		url.Values{"from": {cur}, "to": {p.Base}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "building rate request")
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "fetching rate")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, errors.Errorf("rate service returned %s", resp.Status)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, errors.Wrap(err, "decoding rate response")
	}
	rate, ok := body.Rates[p.Base]
	if !ok {
		return decimal.Zero, errors.Errorf("rate service has no %s quote for %s", p.Base, cur)
	}
	return rate, nil
}

// CachedProvider memoises another provider's answers per (currency, date).
// Entries never expire; the LRU size bounds memory.
type CachedProvider struct {
	next  Provider
	cache *lru.Cache[string, decimal.Decimal]
}

// NewCachedProvider wraps next with an LRU of the given size.
func NewCachedProvider(next Provider, size int) (*CachedProvider, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, decimal.Decimal](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating rate cache")
	}
	return &CachedProvider{next: next, cache: c}, nil
}

func (c *CachedProvider) Rate(ctx context.Context, cur, date string) (decimal.Decimal, error) {
	key := cur + "|" + date
	if r, ok := c.cache.Get(key); ok {
		return r, nil
	}
	r, err := c.next.Rate(ctx, cur, date)
	if err != nil {
		return decimal.Zero, err
	}
	c.cache.Add(key, r)
	return r, nil
}
