package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, "localhost:6379", cfg.RedisURL)
	assert.Equal(t, 5, cfg.DefaultServiceMinutes)
	assert.Equal(t, 30*time.Minute, cfg.JoinCooldown)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 30*time.Second, cfg.WaitEstimatorInterval)
	assert.Equal(t, time.Minute, cfg.ExpiryReaperInterval)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.True(t, cfg.EnableMetrics)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_URL", "redis.internal:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DEFAULT_SERVICE_MINUTES", "7")
	t.Setenv("JOIN_COOLDOWN", "15m")
	t.Setenv("ENABLE_METRICS", "false")

	cfg := LoadConfig()

	assert.Equal(t, "redis.internal:6380", cfg.RedisURL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 7, cfg.DefaultServiceMinutes)
	assert.Equal(t, 15*time.Minute, cfg.JoinCooldown)
	assert.False(t, cfg.EnableMetrics)
}

func TestGetEnvAsDurationFallback(t *testing.T) {
	t.Setenv("BROKEN_DURATION", "not-a-duration")
	assert.Equal(t, 30*time.Second, getEnvAsDuration("BROKEN_DURATION", "30s"))
}
