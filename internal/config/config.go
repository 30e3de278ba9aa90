package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultAppName          = "FrizBank"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultShutdownDelay    = 10 * time.Second
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultAccessTokenTTL   = 15 * time.Minute
	defaultRefreshTokenTTL  = 30 * 24 * time.Hour
	defaultLoginRateLimit   = 5
	defaultFaceThreshold    = 0.6
	defaultBaseCurrency     = "USD"
	defaultEarningsSchedule = "@every 30s"
	defaultMarketCacheTTL   = 30 * time.Second
	defaultRateCacheTTL     = 10 * time.Minute
	defaultHTTPTimeout      = 10 * time.Second
	defaultMarketAPIURL     = "https://api.coingecko.com/api/v3"
	defaultExchangeAPIURL   = "https://api.exchangerate-api.com/v4"
	defaultGeoAPIURL        = "https://api.bigdatacloud.net/data"
)

// DefaultFaceModelSources lists the weight mirrors tried in order when
// FACE_MODEL_SOURCES is not set.
var DefaultFaceModelSources = []string{
	"https://cdn.jsdelivr.net/gh/justadudewhohacks/face-api.js@0.22.2/weights",
	"https://cdn.jsdelivr.net/npm/face-api.js@0.22.2/weights",
	"https://unpkg.com/face-api.js@0.22.2/weights",
	"https://raw.githubusercontent.com/justadudewhohacks/face-api.js/0.22.2/weights",
}

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	Env            string
	Port           string
	LogLevel       string
	DatabaseURL    string
	RedisURL       string
	AMQPURL        string
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	JWTSecret       string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	LoginRateLimit  int

	FaceMatchThreshold float64
	FaceRequired       bool
	FaceModelSources   []string

	MarketAPIURL      string
	ExchangeAPIURL    string
	GeoAPIURL         string
	BaseCurrency      string
	EarningsSchedule  string
	MarketCacheTTL    time.Duration
	RateCacheTTL      time.Duration
	HTTPClientTimeout time.Duration
}

var envKeys = []string{
	"APP_NAME", "APP_ENV", "PORT", "LOG_LEVEL", "DATABASE_URL", "REDIS_URL", "AMQP_URL",
	"SHUTDOWN_TIMEOUT", "IDEMPOTENCY_TTL", "JWT_SECRET", "REFRESH_SECRET",
	"ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "LOGIN_RATE_LIMIT",
	"FACE_MATCH_THRESHOLD", "FACE_REQUIRED", "FACE_MODEL_SOURCES",
	"MARKET_API_URL", "EXCHANGE_API_URL", "GEO_API_URL", "BASE_CURRENCY",
	"EARNINGS_SCHEDULE", "MARKET_CACHE_TTL", "RATE_CACHE_TTL", "HTTP_CLIENT_TIMEOUT",
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("APP_NAME", defaultAppName)
	v.SetDefault("APP_ENV", defaultAppEnv)
	v.SetDefault("PORT", defaultPort)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("LOGIN_RATE_LIMIT", defaultLoginRateLimit)
	v.SetDefault("FACE_MATCH_THRESHOLD", defaultFaceThreshold)
	v.SetDefault("FACE_REQUIRED", true)
	v.SetDefault("MARKET_API_URL", defaultMarketAPIURL)
	v.SetDefault("EXCHANGE_API_URL", defaultExchangeAPIURL)
	v.SetDefault("GEO_API_URL", defaultGeoAPIURL)
	v.SetDefault("BASE_CURRENCY", defaultBaseCurrency)
	v.SetDefault("EARNINGS_SCHEDULE", defaultEarningsSchedule)
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := Config{
		AppName:            v.GetString("APP_NAME"),
		Env:                strings.ToLower(v.GetString("APP_ENV")),
		Port:               v.GetString("PORT"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		RedisURL:           v.GetString("REDIS_URL"),
		AMQPURL:            v.GetString("AMQP_URL"),
		JWTSecret:          v.GetString("JWT_SECRET"),
		RefreshSecret:      v.GetString("REFRESH_SECRET"),
		LoginRateLimit:     v.GetInt("LOGIN_RATE_LIMIT"),
		FaceMatchThreshold: v.GetFloat64("FACE_MATCH_THRESHOLD"),
		FaceRequired:       v.GetBool("FACE_REQUIRED"),
		FaceModelSources:   splitList(v.GetString("FACE_MODEL_SOURCES")),
		MarketAPIURL:       strings.TrimRight(v.GetString("MARKET_API_URL"), "/"),
		ExchangeAPIURL:     strings.TrimRight(v.GetString("EXCHANGE_API_URL"), "/"),
		GeoAPIURL:          strings.TrimRight(v.GetString("GEO_API_URL"), "/"),
		BaseCurrency:       strings.ToUpper(v.GetString("BASE_CURRENCY")),
		EarningsSchedule:   v.GetString("EARNINGS_SCHEDULE"),
	}
	if len(cfg.FaceModelSources) == 0 {
		cfg.FaceModelSources = append([]string(nil), DefaultFaceModelSources...)
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", defaultShutdownDelay, &cfg.ShutdownPeriod},
		{"IDEMPOTENCY_TTL", defaultIdempotencyTTL, &cfg.IdempotencyTTL},
		{"ACCESS_TOKEN_TTL", defaultAccessTokenTTL, &cfg.AccessTokenTTL},
		{"REFRESH_TOKEN_TTL", defaultRefreshTokenTTL, &cfg.RefreshTokenTTL},
		{"MARKET_CACHE_TTL", defaultMarketCacheTTL, &cfg.MarketCacheTTL},
		{"RATE_CACHE_TTL", defaultRateCacheTTL, &cfg.RateCacheTTL},
		{"HTTP_CLIENT_TIMEOUT", defaultHTTPTimeout, &cfg.HTTPClientTimeout},
	}
	for _, d := range durations {
		parsed, err := parseDuration(v.GetString(d.key), d.fallback)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if cfg.FaceMatchThreshold <= 0 {
		return Config{}, fmt.Errorf("FACE_MATCH_THRESHOLD must be positive")
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set")
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set")
		}
		if cfg.JWTSecret == "" {
			return Config{}, fmt.Errorf("JWT_SECRET must be set")
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "frizbank-development-secret"
	}
	if cfg.RefreshSecret == "" {
		cfg.RefreshSecret = cfg.JWTSecret + ":refresh"
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a local/development environment.
func (c Config) IsDev() bool {
	switch c.Env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// parseDuration accepts Go duration strings ("30s") or a bare number of seconds.
func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
