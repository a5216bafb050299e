package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	pkgconfig "github.com/swarm-collective/rwa-router/pkg/config"
	"github.com/swarm-collective/rwa-router/pkg/model"
)

// Config holds the runtime configuration for a router instance. Secrets
// (wallet key, venue API key) are resolved at startup through the secrets
// resolver, not carried here.
type Config struct {
	ServiceName string // e.g. "rwa-router"
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string // "debug", "info", etc.
	AWSRegion   string

	Network model.Network
	RPCURL  string

	// Venue endpoints.
	MarketMakerBaseURL     string
	CrossChainBaseURL      string
	AuthBaseURL            string
	RemoteConfigURL        string
	RemoteConfigRefresh    time.Duration
	USDCAddress            string // fallback when remote config has no entry
	OfferBookAddress       string // fallback when remote config has no entry
	UserEmail              string
	Strategy               string
	Slippage               decimal.Decimal
	HTTPTimeout            time.Duration
	HTTPRetryMax           int
	VenueRequestsPerSecond float64
	VenueRequestBurst      int

	// Persistence and eventing (optional; empty disables the component).
	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	NATSURL     string
	MetricsAddr string

	PGMaxConns          int32
	PGMinConns          int32
	PGMaxConnLifetime   time.Duration
	PGMaxConnIdleTime   time.Duration
	PGHealthCheckPeriod time.Duration

	SecretCacheTTL    time.Duration
	SecretCleanupFreq time.Duration
}

// Load reads configuration from environment variables, with a .env file
// loaded silently when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName: pkgconfig.GetEnv("SERVICE_NAME", "rwa-router"),
		Env:         pkgconfig.GetEnv("ENV", "dev"),
		LogLevel:    pkgconfig.GetEnv("LOG_LEVEL", "info"),
		AWSRegion:   pkgconfig.GetEnv("AWS_REGION", "us-east-2"),

		Network: model.Network(pkgconfig.GetEnvInt64("CHAIN_ID", int64(model.NetworkPolygon))),
		RPCURL:  pkgconfig.GetEnv("RPC_URL", "https://polygon-rpc.com"),

		MarketMakerBaseURL:     pkgconfig.GetEnv("MARKET_MAKER_BASE_URL", "https://rpq.swarm.com/v1"),
		CrossChainBaseURL:      pkgconfig.GetEnv("CROSS_CHAIN_BASE_URL", "https://trade.swarm.com/v1"),
		AuthBaseURL:            pkgconfig.GetEnv("AUTH_BASE_URL", "https://api.swarm.com/v1"),
		RemoteConfigURL:        pkgconfig.GetEnv("REMOTE_CONFIG_URL", ""),
		RemoteConfigRefresh:    pkgconfig.GetEnvDuration("REMOTE_CONFIG_REFRESH", 15*time.Minute),
		USDCAddress:            pkgconfig.GetEnv("USDC_ADDRESS", ""),
		OfferBookAddress:       pkgconfig.GetEnv("OFFER_BOOK_ADDRESS", ""),
		UserEmail:              pkgconfig.GetEnv("USER_EMAIL", ""),
		Strategy:               pkgconfig.GetEnv("ROUTING_STRATEGY", "BEST_PRICE"),
		Slippage:               pkgconfig.GetEnvDecimal("SLIPPAGE", decimal.RequireFromString("0.01")),
		HTTPTimeout:            pkgconfig.GetEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		HTTPRetryMax:           pkgconfig.GetEnvInt("HTTP_RETRY_MAX", 3),
		VenueRequestsPerSecond: float64(pkgconfig.GetEnvInt("VENUE_RPS", 10)),
		VenueRequestBurst:      pkgconfig.GetEnvInt("VENUE_BURST", 20),

		DatabaseURL: pkgconfig.GetEnv("DATABASE_URL", ""),
		RedisAddr:   pkgconfig.GetEnv("REDIS_ADDR", ""),
		RedisDB:     pkgconfig.GetEnvInt("REDIS_DB", 0),
		NATSURL:     pkgconfig.GetEnv("NATS_URL", ""),
		MetricsAddr: pkgconfig.GetEnv("METRICS_ADDR", ":9090"),

		PGMaxConns:          int32(pkgconfig.GetEnvInt("PG_MAX_CONNS", 10)),
		PGMinConns:          int32(pkgconfig.GetEnvInt("PG_MIN_CONNS", 2)),
		PGMaxConnLifetime:   pkgconfig.GetEnvDuration("PG_MAX_CONN_LIFETIME", 30*time.Minute),
		PGMaxConnIdleTime:   pkgconfig.GetEnvDuration("PG_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PGHealthCheckPeriod: pkgconfig.GetEnvDuration("PG_HEALTH_CHECK_PERIOD", time.Minute),

		SecretCacheTTL:    pkgconfig.GetEnvDuration("SECRET_CACHE_TTL", 24*time.Hour),
		SecretCleanupFreq: pkgconfig.GetEnvDuration("SECRET_CACHE_CLEANUP_FREQ", 10*time.Minute),
	}
}
