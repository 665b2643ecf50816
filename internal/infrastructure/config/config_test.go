package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "motorline-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "motorline", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.HTTP.IdleTimeout)
	assert.Equal(t, int64(1<<20), cfg.HTTP.MaxBodySize)

	assert.Equal(t, 15*time.Minute, cfg.Reservation.TTL)
	assert.Equal(t, time.Minute, cfg.Reservation.SweepInterval)

	assert.Equal(t, 3, cfg.Payment.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Payment.InitialInterval)
	assert.Equal(t, 10*time.Second, cfg.Payment.MaxInterval)
	assert.Equal(t, 24*time.Hour, cfg.Payment.EventDedupTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MOTORLINE_APP_PORT", "9090")
	t.Setenv("MOTORLINE_DATABASE_PASSWORD", "s3cret")
	t.Setenv("MOTORLINE_RESERVATION_TTL", "30m")
	t.Setenv("MOTORLINE_PAYMENT_MAX_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, 30*time.Minute, cfg.Reservation.TTL)
	assert.Equal(t, 5, cfg.Payment.MaxRetries)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("rejects unknown environment", func(t *testing.T) {
		t.Setenv("MOTORLINE_APP_ENV", "sandbox")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		t.Setenv("MOTORLINE_LOG_LEVEL", "verbose")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("reservation ttl must be at least one minute", func(t *testing.T) {
		t.Setenv("MOTORLINE_RESERVATION_TTL", "30s")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires stripe credentials", func(t *testing.T) {
		t.Setenv("MOTORLINE_APP_ENV", "production")
		t.Setenv("MOTORLINE_LOG_FORMAT", "json")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("production requires json logs", func(t *testing.T) {
		t.Setenv("MOTORLINE_APP_ENV", "production")
		t.Setenv("MOTORLINE_STRIPE_SECRET_KEY", "sk_live_x")
		t.Setenv("MOTORLINE_STRIPE_WEBHOOK_SECRET", "whsec_x")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fully configured production loads", func(t *testing.T) {
		t.Setenv("MOTORLINE_APP_ENV", "production")
		t.Setenv("MOTORLINE_LOG_FORMAT", "json")
		t.Setenv("MOTORLINE_STRIPE_SECRET_KEY", "sk_live_x")
		t.Setenv("MOTORLINE_STRIPE_WEBHOOK_SECRET", "whsec_x")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.IsProduction())
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "motorline",
		Password: "p@ss word",
		DBName:   "orders",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5433")
	assert.Contains(t, dsn, "/orders")
	assert.Contains(t, dsn, "sslmode=require")
	// The password is URL-escaped, never raw
	assert.NotContains(t, dsn, "p@ss word")
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", cfg.Addr())
}
