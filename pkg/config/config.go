package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MarketSpec is one configured market as read from MARKETS.
// Format per item: CODE:Display Name[|alias|alias].
type MarketSpec struct {
	Code        string
	DisplayName string
	Aliases     []string
}

// Config holds the runtime configuration for the locale engine.
type Config struct {
	ServiceName string // e.g. "locale-engine"
	Env         string // "dev", "uat", "prod"
	LogLevel    string
	Port        int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	HTTPBodyLimit    int

	Markets       []MarketSpec
	MarketsErr    error // set when MARKETS does not parse; Markets is then empty
	DefaultMarket string

	// Geolocation providers, tried in order.
	GeoPrimaryURL      string
	GeoSecondaryURL    string
	GeoProviderTimeout time.Duration // per provider call
	GeoLookupTimeout   time.Duration // whole chain, shared by single-flight waiters
	GeoRetryMax        int
	GeoRateLimit       int // requests per second per provider
	GeoAPIKeySecret    string
	AWSRegion          string

	// Geo cache persistence.
	GeoCacheTTL     time.Duration
	GeoCacheBackend string // "file" | "redis"
	GeoCachePath    string
	GeoWarmInterval time.Duration
	RedisAddr       string
	RedisDB         int
	RedisPass       string

	SecretCacheTTL time.Duration

	CatalogPath        string
	CatalogDatabaseURL string

	NATSURL string

	RotationInterval time.Duration
	FooterPageSize   int
	ContactCap       int
}

// Load loads configuration from environment variables and .env file if present.
func Load() *Config {
	// load .env silently (no error if missing)
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName:      GetEnv("SERVICE_NAME", "locale-engine"),
		Env:              GetEnv("ENV", "dev"),
		LogLevel:         GetEnv("LOG_LEVEL", "info"),
		Port:             GetEnvInt("PORT", 9020),
		HTTPReadTimeout:  GetEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
		HTTPWriteTimeout: GetEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		HTTPIdleTimeout:  GetEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		HTTPBodyLimit:    GetEnvInt("HTTP_BODY_LIMIT", 64*1024),

		DefaultMarket: strings.ToUpper(GetEnv("DEFAULT_MARKET", "SG")),

		GeoPrimaryURL:      GetEnv("GEO_PRIMARY_URL", "https://ipapi.co/json/"),
		GeoSecondaryURL:    GetEnv("GEO_SECONDARY_URL", "https://ipwho.is/"),
		GeoProviderTimeout: GetEnvDuration("GEO_PROVIDER_TIMEOUT", 2*time.Second),
		GeoLookupTimeout:   GetEnvDuration("GEO_LOOKUP_TIMEOUT", 5*time.Second),
		GeoRetryMax:        GetEnvInt("GEO_RETRY_MAX", 0),
		GeoRateLimit:       GetEnvInt("GEO_RATE_LIMIT", 1),
		GeoAPIKeySecret:    GetEnv("GEO_API_KEY_SECRET", ""),
		AWSRegion:          GetEnv("AWS_REGION", "me-central-1"),

		GeoCacheTTL:     GetEnvDuration("GEO_CACHE_TTL", 24*time.Hour),
		GeoCacheBackend: strings.ToLower(GetEnv("GEO_CACHE_BACKEND", "file")),
		GeoCachePath:    GetEnv("GEO_CACHE_PATH", ".cache/geo_market_cache.json"),
		GeoWarmInterval: GetEnvDuration("GEO_WARM_INTERVAL", 1*time.Hour),
		RedisAddr:       GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         GetEnvInt("REDIS_DB", 0),
		RedisPass:       GetEnv("REDIS_PASS", ""),

		SecretCacheTTL: GetEnvDuration("SECRET_CACHE_TTL", 1*time.Hour),

		CatalogPath:        GetEnv("CATALOG_PATH", ""),
		CatalogDatabaseURL: GetEnv("CATALOG_DATABASE_URL", ""),

		NATSURL: GetEnv("NATS_URL", ""),

		RotationInterval: GetEnvDuration("ROTATION_INTERVAL", 4*time.Second),
		FooterPageSize:   GetEnvInt("FOOTER_PAGE_SIZE", 1),
		ContactCap:       GetEnvInt("CONTACT_CAP", 6),
	}

	cfg.Markets, cfg.MarketsErr = ParseMarkets(GetEnvList("MARKETS", DefaultMarkets))
	if cfg.MarketsErr != nil {
		cfg.MarketsErr = fmt.Errorf("MARKETS: %w", cfg.MarketsErr)
	}

	return cfg
}

// DefaultMarkets is the market set served when MARKETS is unset.
var DefaultMarkets = []string{
	"SG:Singapore",
	"AE:UAE",
	"SA:Saudi Arabia|saudi",
	"CN:China",
	"LK:Sri Lanka",
}

// ParseMarkets parses MARKETS items of the form CODE:Display Name[|alias...].
func ParseMarkets(items []string) ([]MarketSpec, error) {
	specs := make([]MarketSpec, 0, len(items))
	for _, item := range items {
		code, rest, ok := strings.Cut(item, ":")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !ok || code == "" {
			return nil, fmt.Errorf("invalid market %q: want CODE:Display Name", item)
		}
		parts := strings.Split(rest, "|")
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, fmt.Errorf("invalid market %q: empty display name", item)
		}
		spec := MarketSpec{Code: code, DisplayName: name}
		for _, alias := range parts[1:] {
			if a := strings.TrimSpace(alias); a != "" {
				spec.Aliases = append(spec.Aliases, a)
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
