package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	StationKey  string `env:"STATION_KEY"`
	StationID   string `env:"STATION_ID" envDefault:"station-1"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// Switch protocol tuning
	TagCooldownMS  int `env:"TAG_COOLDOWN_MS" envDefault:"2000"`
	ResetSettleMS  int `env:"RESET_SETTLE_MS" envDefault:"100"`
	LogoutSettleMS int `env:"LOGOUT_SETTLE_MS" envDefault:"200"`

	// Scan admission tuning
	ScanRateLimit     int `env:"SCAN_RATE_LIMIT" envDefault:"20"`
	DedupGuardSeconds int `env:"DEDUP_GUARD_SECONDS" envDefault:"3"`

	// Retention
	ScanRetentionDays int `env:"SCAN_RETENTION_DAYS" envDefault:"90"`
	MaxShiftHours     int `env:"MAX_SHIFT_HOURS" envDefault:"16"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) TagCooldown() time.Duration {
	return time.Duration(c.TagCooldownMS) * time.Millisecond
}

func (c *Config) ResetSettle() time.Duration {
	return time.Duration(c.ResetSettleMS) * time.Millisecond
}

func (c *Config) LogoutSettle() time.Duration {
	return time.Duration(c.LogoutSettleMS) * time.Millisecond
}

func (c *Config) DedupGuard() time.Duration {
	return time.Duration(c.DedupGuardSeconds) * time.Second
}

func (c *Config) ScanRetention() time.Duration {
	return time.Duration(c.ScanRetentionDays) * 24 * time.Hour
}

func (c *Config) MaxShift() time.Duration {
	return time.Duration(c.MaxShiftHours) * time.Hour
}

func (c *Config) Validate(isProduction bool) error {
	if c.ScanRateLimit <= 0 {
		return fmt.Errorf("SCAN_RATE_LIMIT must be positive, got %d", c.ScanRateLimit)
	}
	if c.TagCooldownMS < 0 || c.ResetSettleMS < 0 || c.LogoutSettleMS < 0 {
		return fmt.Errorf("cooldown and settle delays must not be negative")
	}

	if isProduction {
		if c.StationKey == "" {
			log.Warn().Msg("STATION_KEY is empty in production: intake endpoints are unauthenticated")
		} else if len(c.StationKey) < 16 {
			return fmt.Errorf("STATION_KEY must be at least 16 characters in production (generate with: openssl rand -base64 24)")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
