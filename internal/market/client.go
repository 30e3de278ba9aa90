package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/frizbank/frizbank/internal/kv"
)

const (
	DefaultVsCurrency = "usd"
	DefaultPerPage    = 10
	maxPerPage        = 250
	marketsPath       = "/coins/markets"
	cachePrefix       = "market:v1:"
)

var ErrUpstream = errors.New("market data unavailable")

// Quote is one cryptocurrency as reported by the market API.
type Quote struct {
	ID                       string  `json:"id"`
	Name                     string  `json:"name"`
	Symbol                   string  `json:"symbol"`
	Image                    string  `json:"image"`
	CurrentPrice             float64 `json:"current_price"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
}

// Client fetches market listings and caches them in a kv.Store.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      kv.Store
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewClient creates a market client. cache may be nil.
func NewClient(baseURL string, httpClient *http.Client, cache kv.Store, cacheTTL time.Duration, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// NormalizeQuery applies the defaults and bounds used for market listings.
func NormalizeQuery(vsCurrency string, perPage int) (string, int) {
	vs := strings.ToLower(strings.TrimSpace(vsCurrency))
	if vs == "" {
		vs = DefaultVsCurrency
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return vs, perPage
}

// FetchMarkets lists the top perPage coins by market cap priced in vsCurrency.
func (c *Client) FetchMarkets(ctx context.Context, vsCurrency string, perPage int) ([]Quote, error) {
	vs, n := NormalizeQuery(vsCurrency, perPage)
	cacheKey := cachePrefix + vs + ":" + strconv.Itoa(n)

	if c.cache != nil {
		var cached []Quote
		if ok, err := kv.GetJSON(ctx, c.cache, c.logger, cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	q := url.Values{}
	q.Set("vs_currency", vs)
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(n))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+marketsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var quotes []Quote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := kv.SetJSON(ctx, c.cache, cacheKey, quotes, c.cacheTTL); err != nil {
			c.logger.Warn("cache market quotes", slog.String("key", cacheKey), slog.Any("error", err))
		}
	}
	return quotes, nil
}
