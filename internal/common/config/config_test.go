package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "ENV", "READ_TIMEOUT", "LOG_LEVEL", "STORE_URL", "SESSION_IDLE_MINUTES", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load("3002")
	assert.Equal(t, "3002", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 10, cfg.ReadTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:3001", cfg.StoreURL)
	assert.Equal(t, 30, cfg.SessionIdleMinutes)
	assert.Equal(t, "@every 1m", cfg.SessionSweepSpec)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("READ_TIMEOUT", "not-a-number")
	t.Setenv("SESSION_IDLE_MINUTES", "5")
	t.Setenv("CORS_ORIGINS", "http://a.test, ,http://b.test")

	cfg := Load("3000")
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.ReadTimeout)
	assert.Equal(t, 5, cfg.SessionIdleMinutes)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}
