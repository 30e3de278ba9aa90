// Package fx converts balances between currencies and picks the display
// currency from the user's location. Every lookup degrades silently: a
// failed rate is 1, a failed geolocation is US.
package fx

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

	"golang.org/x/text/currency"

	"github.com/frizbank/frizbank/internal/kv"
)

const (
	DefaultCurrency = "USD"
	DefaultCountry  = "US"
	ratesPrefix     = "fx:v1:rates:"
)

var ErrUnknownCurrency = errors.New("unknown currency code")

// currencyByCountry maps ISO country codes to the currency shown to users there.
var currencyByCountry = map[string]string{
	"BR": "BRL",
	"US": "USD",
	"CA": "CAD",
	"GB": "GBP",
	"DE": "EUR",
	"FR": "EUR",
	"IT": "EUR",
	"ES": "EUR",
	"PT": "EUR",
	"AU": "AUD",
	"JP": "JPY",
	"CN": "CNY",
	"IN": "INR",
	"MX": "MXN",
	"AR": "ARS",
	"CL": "CLP",
	"CO": "COP",
}

// CurrencyForCountry returns the display currency for a country, USD when unmapped.
func CurrencyForCountry(country string) string {
	if c, ok := currencyByCountry[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return c
	}
	return DefaultCurrency
}

// ParseCurrency validates an ISO 4217 code and returns it upper-cased.
func ParseCurrency(code string) (string, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return unit.String(), nil
}

// Convert multiplies amount by rate.
func Convert(amount, rate float64) float64 {
	return amount * rate
}

// Service talks to the exchange-rate and reverse-geocoding APIs.
type Service struct {
	exchangeURL string
	geoURL      string
	httpClient  *http.Client
	cache       kv.Store
	cacheTTL    time.Duration
	logger      *slog.Logger
}

// NewService builds an fx service. cache may be nil.
func NewService(exchangeURL, geoURL string, httpClient *http.Client, cache kv.Store, cacheTTL time.Duration, logger *slog.Logger) *Service {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		exchangeURL: strings.TrimRight(exchangeURL, "/"),
		geoURL:      strings.TrimRight(geoURL, "/"),
		httpClient:  httpClient,
		cache:       cache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

type latestResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Rate returns how many units of to one unit of from buys. Identical
// currencies short-circuit to 1 without a network call; any failure also
// yields 1.
func (s *Service) Rate(ctx context.Context, from, to string) float64 {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return 1
	}
	rates, err := s.rates(ctx, from)
	if err != nil {
		s.logger.Warn("exchange rate unavailable, using 1", slog.String("from", from), slog.String("to", to), slog.Any("error", err))
		return 1
	}
	rate, ok := rates[to]
	if !ok || rate <= 0 {
		s.logger.Warn("exchange rate missing, using 1", slog.String("from", from), slog.String("to", to))
		return 1
	}
	return rate
}

func (s *Service) rates(ctx context.Context, base string) (map[string]float64, error) {
	key := ratesPrefix + base
	if s.cache != nil {
		var cached map[string]float64
		if ok, err := kv.GetJSON(ctx, s.cache, s.logger, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	var out latestResponse
	if err := s.getJSON(ctx, s.exchangeURL+"/latest/"+url.PathEscape(base), &out); err != nil {
		return nil, err
	}
	if len(out.Rates) == 0 {
		return nil, errors.New("empty rate table")
	}

	if s.cache != nil && s.cacheTTL > 0 {
		if err := kv.SetJSON(ctx, s.cache, key, out.Rates, s.cacheTTL); err != nil {
			s.logger.Warn("cache exchange rates", slog.String("key", key), slog.Any("error", err))
		}
	}
	return out.Rates, nil
}

type reverseGeocodeResponse struct {
	CountryCode string `json:"countryCode"`
}

// CountryFromCoordinates reverse-geocodes a position. It returns US when the
// lookup fails or the position is not in any country.
func (s *Service) CountryFromCoordinates(ctx context.Context, lat, lon float64) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("localityLanguage", "pt")

	var out reverseGeocodeResponse
	if err := s.getJSON(ctx, s.geoURL+"/reverse-geocode-client?"+q.Encode(), &out); err != nil {
		s.logger.Warn("reverse geocoding failed, using default country", slog.Any("error", err))
		return DefaultCountry
	}
	if out.CountryCode == "" {
		return DefaultCountry
	}
	return strings.ToUpper(out.CountryCode)
}

// CurrencyForCoordinates chains CountryFromCoordinates and CurrencyForCountry.
func (s *Service) CurrencyForCoordinates(ctx context.Context, lat, lon float64) (country, code string) {
	country = s.CountryFromCoordinates(ctx, lat, lon)
	return country, CurrencyForCountry(country)
}

func (s *Service) getJSON(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
