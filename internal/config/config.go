package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	JWTSecret           string
	ListingLimitDefault int
	MonthlyRenewalLimit int
	RenewalTimezone     string
	// PerParticipantUnread selects the unread-counter semantics for
	// conversations. When false a single shared counter is kept on the
	// conversation; when true buyer and seller each track their own.
	PerParticipantUnread bool
	MessageRateLimit     int
	MessageRateWindow    time.Duration
	CategoryCacheTTL     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// RenewalLocation resolves the configured renewal time zone.
func (c Config) RenewalLocation() (*time.Location, error) {
	if c.RenewalTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.RenewalTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid renewal timezone %q: %w", c.RenewalTimezone, err)
	}
	return loc, nil
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PAZAR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Pazar API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("listing.limit_default", 50)
	v.SetDefault("renewal.monthly_limit", 15)
	v.SetDefault("renewal.timezone", "UTC")
	v.SetDefault("conversation.per_participant_unread", false)
	v.SetDefault("message.rate_limit", 30)
	v.SetDefault("message.rate_window", "1m")
	v.SetDefault("category.cache_ttl", "5m")

	rateWindow, err := time.ParseDuration(v.GetString("message.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid message rate window: %w", err)
	}

	cacheTTL, err := time.ParseDuration(v.GetString("category.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid category cache ttl: %w", err)
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		ListingLimitDefault:  v.GetInt("listing.limit_default"),
		MonthlyRenewalLimit:  v.GetInt("renewal.monthly_limit"),
		RenewalTimezone:      v.GetString("renewal.timezone"),
		PerParticipantUnread: v.GetBool("conversation.per_participant_unread"),
		MessageRateLimit:     v.GetInt("message.rate_limit"),
		MessageRateWindow:    rateWindow,
		CategoryCacheTTL:     cacheTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.ListingLimitDefault <= 0 {
		cfg.ListingLimitDefault = 50
	}

	if cfg.MonthlyRenewalLimit <= 0 {
		cfg.MonthlyRenewalLimit = 15
	}

	if _, err := cfg.RenewalLocation(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
