package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_USER", "market")
	t.Setenv("DB_NAME", "marketplace")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_USER_IDS", "user_1,user_2")
	t.Setenv("CACHE_METHODS", "get,head")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, []string{"user_1", "user_2"}, cfg.AdminUserIDs)
	assert.Equal(t, "listings", cfg.RabbitMQ.Exchange)
	assert.Equal(t, 60, cfg.RateLimit.Capacity)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.TTL)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.MethodSet())
	assert.Equal(t, 10*time.Second, cfg.Lock.TTL)
	assert.Equal(t, "lock:listing-url", cfg.Lock.Prefix)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 2 * time.Second, TTL: time.Second}
	c.normalize()

	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 10*time.Second, c.TTL)
}

func TestRedisAddress(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: "6380", Addr: "x:1"}.Address())
	assert.Equal(t, "x:1", RedisConfig{Addr: "x:1"}.Address())
}
