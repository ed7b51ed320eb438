package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":3001", cfg.Port)
	assert.Equal(t, []string{"https://electric-football.netlify.app"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, RateLimitConfig{Burst: DefaultRateBurst, RefillInterval: time.Second}, cfg.RateLimit)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example/")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("RATE_LIMIT_BURST", "30")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg := NewConfigFromEnv()
	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example/"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(2048), cfg.MaxMessageSize)
	assert.Equal(t, 30, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "debug", cfg.LogLevel)

	active := SetConfig(cfg)
	t.Cleanup(func() { SetConfig(nil) })
	assert.Equal(t, ":4000", active.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, active.AllowedOrigins)
}

func TestNewConfigFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "-1")
	t.Setenv("RATE_LIMIT_BURST", "many")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "0")

	cfg := NewConfigFromEnv()
	assert.Equal(t, int64(DefaultMaxMessageSize), cfg.MaxMessageSize)
	assert.Equal(t, DefaultRateBurst, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
}

func TestSetConfigSanitizes(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	active := SetConfig(&Config{
		AllowedOrigins: []string{"", "not-a-url", "HTTP://Example.COM/path", "*"},
	})

	assert.Equal(t, DefaultPort, active.Port)
	assert.Equal(t, int64(DefaultMaxMessageSize), active.MaxMessageSize)
	assert.Equal(t, DefaultRateBurst, active.RateLimit.Burst)
	assert.Equal(t, []string{"http://example.com", "*"}, active.AllowedOrigins)
	assert.Equal(t, active, CurrentConfig())
}

func TestNormalizePort(t *testing.T) {
	tests := map[string]string{
		"":               ":3001",
		"8080":           ":8080",
		":9000":          ":9000",
		"127.0.0.1:7000": "127.0.0.1:7000",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePort(in), in)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.env")
	require.NoError(t, os.WriteFile(path, []byte("RELAY_TEST_ONLY_VAR=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("RELAY_TEST_ONLY_VAR") })

	loaded, err := LoadEnvFile(path)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-file", os.Getenv("RELAY_TEST_ONLY_VAR"))

	loaded, err = LoadEnvFile(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.False(t, loaded)
}
