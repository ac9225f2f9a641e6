package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/introweave/introweave/internal/engine"
)

// Config represents the runtime configuration for the IntroWeave backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Email      EmailConfig      `mapstructure:"email"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Approvals  ApprovalConfig   `mapstructure:"approvals"`
	Digest     DigestConfig     `mapstructure:"digest"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int            `mapstructure:"port"`
	LogLevel  string         `mapstructure:"log_level"`
	RateLimit HTTPRateLimit  `mapstructure:"rate_limit"`
	Realtime  RealtimeConfig `mapstructure:"realtime"`
}

// HTTPRateLimit throttles the public API per client IP and route.
type HTTPRateLimit struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// RealtimeConfig toggles the websocket notification stream.
type RealtimeConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// EngineConfig tunes the priority scorer, the routing thresholds and the
// cross-tenant request quota. Weights and thresholds are configuration, not
// code, so operators can retune routing without a deploy.
type EngineConfig struct {
	Weights     engine.Weights    `mapstructure:"weights"`
	Thresholds  engine.Thresholds `mapstructure:"thresholds"`
	CrossTenant CrossTenantQuota  `mapstructure:"cross_tenant"`
	Consent     ConsentConfig     `mapstructure:"consent"`
}

// CrossTenantQuota caps requests per member towards each federated tenant.
type CrossTenantQuota struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

// ConsentConfig tunes the double opt-in workflow.
type ConsentConfig struct {
	Expiry time.Duration `mapstructure:"expiry"`
}

// ApprovalConfig controls the cross-tenant approval workflow. ExpiryDays of
// zero disables automatic expiry of idle requests.
type ApprovalConfig struct {
	ExpiryDays int `mapstructure:"expiry_days"`
}

// DigestConfig controls the batch delivery job.
type DigestConfig struct {
	CronSpec string `mapstructure:"cron"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("INTROWEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.max_requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.realtime.enabled", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/introweave.sqlite")

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.tls", false)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)

	v.SetDefault("auth.jwt.issuer", "introweave")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("engine.weights.tier", 0.30)
	v.SetDefault("engine.weights.scarcity", 0.20)
	v.SetDefault("engine.weights.fit", 0.35)
	v.SetDefault("engine.weights.fatigue", 0.25)
	v.SetDefault("engine.weights.base", 0.15)
	v.SetDefault("engine.thresholds.direct", 0.65)
	v.SetDefault("engine.thresholds.blocked", 0.30)
	v.SetDefault("engine.cross_tenant.max_requests", 5)
	v.SetDefault("engine.cross_tenant.window", "24h")
	v.SetDefault("engine.consent.expiry", "168h")

	v.SetDefault("approvals.expiry_days", 0)
	v.SetDefault("digest.cron", "0 * * * *")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
