package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/station")
		t.Setenv("REDIS_URL", "redis://localhost:6379")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "station-1", cfg.StationID)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 2*time.Second, cfg.TagCooldown())
		assert.Equal(t, 100*time.Millisecond, cfg.ResetSettle())
		assert.Equal(t, 200*time.Millisecond, cfg.LogoutSettle())
		assert.Equal(t, 20, cfg.ScanRateLimit)
		assert.Equal(t, 3*time.Second, cfg.DedupGuard())
		assert.Equal(t, 90*24*time.Hour, cfg.ScanRetention())
		assert.Equal(t, 16*time.Hour, cfg.MaxShift())
	})

	t.Run("fails without required vars", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "placeholder")
		t.Setenv("REDIS_URL", "placeholder")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("REDIS_URL")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/station")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("PORT", "9090")
		t.Setenv("TAG_COOLDOWN_MS", "500")
		t.Setenv("SCAN_RATE_LIMIT", "5")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.Addr())
		assert.Equal(t, 500*time.Millisecond, cfg.TagCooldown())
		assert.Equal(t, 5, cfg.ScanRateLimit)
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			ScanRateLimit:  20,
			TagCooldownMS:  2000,
			ResetSettleMS:  100,
			LogoutSettleMS: 200,
		}
	}

	t.Run("accepts defaults", func(t *testing.T) {
		assert.NoError(t, base().Validate(false))
	})

	t.Run("rejects non-positive rate limit", func(t *testing.T) {
		cfg := base()
		cfg.ScanRateLimit = 0
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects negative delays", func(t *testing.T) {
		cfg := base()
		cfg.ResetSettleMS = -1
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects short station key in production", func(t *testing.T) {
		cfg := base()
		cfg.StationKey = "short"
		assert.Error(t, cfg.Validate(true))
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("accepts long station key in production", func(t *testing.T) {
		cfg := base()
		cfg.StationKey = "a-sufficiently-long-station-key"
		assert.NoError(t, cfg.Validate(true))
	})
}
