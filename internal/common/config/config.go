package config

import (
	"os"
	"strconv"
	"strings"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int
	LogLevel     string

	// Upstreams
	StoreURL  string
	EditorURL string

	StoreDBPath string

	// Editor sessions
	SessionIdleMinutes int
	SessionSweepSpec   string

	CORSOrigins []string
}

// Load reads the configuration from the environment. defaultPort is used
// when PORT is unset, so each binary keeps its own port.
func Load(defaultPort string) *Config {
	return &Config{
		Port:               getEnv("PORT", defaultPort),
		Environment:        getEnv("ENV", "development"),
		ReadTimeout:        getEnvAsInt("READ_TIMEOUT", 10),
		WriteTimeout:       getEnvAsInt("WRITE_TIMEOUT", 10),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		StoreURL:           getEnv("STORE_URL", "http://localhost:3001"),
		EditorURL:          getEnv("EDITOR_URL", "http://localhost:3002"),
		StoreDBPath:        getEnv("STORE_DB_PATH", "data/db/store.db"),
		SessionIdleMinutes: getEnvAsInt("SESSION_IDLE_MINUTES", 30),
		SessionSweepSpec:   getEnv("SESSION_SWEEP_SPEC", "@every 1m"),
		CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultVal []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
