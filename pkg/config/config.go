package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"

	defaultSecret = "dev_secret"
)

type Config struct {
	Env  string
	Port string

	RPCURL         string
	TokenAddress   string
	MinBalance     decimal.Decimal
	BalanceTimeout time.Duration

	Secret string

	Store         string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string
	Retention     time.Duration
	SweepInterval time.Duration

	RedisURL        string
	RateLimit       int
	RateLimitWindow time.Duration

	CORSOrigins    []string
	TrustedProxies []string

	LogLevel  logrus.Level
	LogFormat string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Env:           getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "4000"),
		RPCURL:        os.Getenv("OPTIMISM_RPC"),
		TokenAddress:  getEnv("GTPS_TOKEN", "0x9427A2a738AffBc5880F0646b5251069c022e525"),
		Secret:        os.Getenv("CLAIM_CODE_SECRET"),
		Store:         strings.ToLower(getEnv("CLAIM_STORE", StoreMemory)),
		DatabaseURL:   os.Getenv("DB_URL"),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "agt"),
		RedisURL:      os.Getenv("REDIS_URL"),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	var err error
	if cfg.MinBalance, err = decimal.NewFromString(getEnv("MIN_GTPS", "500")); err != nil {
		return nil, fmt.Errorf("invalid MIN_GTPS: %w", err)
	}
	if cfg.RateLimit, err = strconv.Atoi(getEnv("RATE_LIMIT_POINTS", "10")); err != nil || cfg.RateLimit <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_POINTS %q", os.Getenv("RATE_LIMIT_POINTS"))
	}
	if cfg.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.BalanceTimeout, err = getDuration("BALANCE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Retention, err = getDuration("CLAIM_RETENTION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getDuration("CLAIM_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "*"))
	cfg.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.RPCURL == "" {
		return errors.New("OPTIMISM_RPC is required")
	}
	if c.Secret == "" {
		if c.IsProduction() {
			return errors.New("CLAIM_CODE_SECRET is required in production")
		}
		logrus.Warn("CLAIM_CODE_SECRET not set, using development secret")
		c.Secret = defaultSecret
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DB_URL is required for the postgres claim store")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required for the mongo claim store")
		}
	default:
		return fmt.Errorf("unknown CLAIM_STORE %q", c.Store)
	}
	if len(c.CORSOrigins) == 0 {
		return errors.New("CORS_ORIGINS must list at least one origin or *")
	}
	for _, origin := range c.CORSOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("invalid CORS origin %q", origin)
		}
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

// ConfigureLogger applies the log level and format to the standard logrus
// logger.
func (c *Config) ConfigureLogger() {
	logrus.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return d, nil
}
