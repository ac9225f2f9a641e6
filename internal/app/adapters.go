package app

import (
	"github.com/introweave/introweave/internal/auth"
	"github.com/introweave/introweave/internal/cache"
	"github.com/introweave/introweave/internal/database"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/mail"
)

// JWTServiceConfig adapts the auth section into the JWT service configuration.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	cfg := auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: c.JWT.TTL,
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = auth.DefaultAccessTokenTTL
	}
	return cfg
}

// SMTPSettings adapts the email section into mailer settings.
func (c EmailConfig) SMTPSettings() mail.SMTPSettings {
	return mail.SMTPSettings{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}

// DatabaseSettings adapts the database section into connection options.
func (c DatabaseConfig) DatabaseSettings() database.Config {
	return database.Config{
		Driver:   c.Driver,
		Path:     c.Path,
		DSN:      c.DSN,
		Host:     c.Postgres.Host,
		Port:     c.Postgres.Port,
		Name:     c.Postgres.Database,
		User:     c.Postgres.Username,
		Password: c.Postgres.Password,
	}
}

// RedisSettings adapts the cache section into Redis store options.
func (c CacheConfig) RedisSettings() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  c.Redis.Address,
		Username: c.Redis.Username,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// IntroductionSettings adapts the engine section into the pipeline
// configuration consumed by the introduction service.
func (c EngineConfig) IntroductionSettings() services.IntroductionConfig {
	return services.IntroductionConfig{
		Weights:                c.Weights,
		Thresholds:             c.Thresholds,
		CrossTenantMaxRequests: c.CrossTenant.MaxRequests,
		CrossTenantWindow:      c.CrossTenant.Window,
	}
}
