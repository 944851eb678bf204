// Package config loads client configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the assistant client.
type Config struct {
	APIBaseURL   string
	StreamURL    string
	HTTPTimeout  time.Duration
	DataDir      string
	LogLevel     string
	LogFilePath  string
	CallbackPort int
}

// Load reads configuration from a .env file (if present) and the process
// environment.
func Load() *Config {
	// Missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	dataDir := getEnv("ASSISTANT_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataDir = filepath.Join(home, ".compliance-assistant")
	}

	return &Config{
		APIBaseURL:   getEnv("ASSISTANT_API_URL", "https://api.compliance-assistant.io/v1"),
		StreamURL:    getEnv("ASSISTANT_STREAM_URL", "wss://api.compliance-assistant.io/v1/assistant/stream"),
		HTTPTimeout:  getEnvAsDuration("ASSISTANT_HTTP_TIMEOUT", 30*time.Second),
		DataDir:      dataDir,
		LogLevel:     getEnv("ASSISTANT_LOG_LEVEL", "info"),
		LogFilePath:  getEnv("ASSISTANT_LOG_FILE", ""),
		CallbackPort: getEnvAsInt("ASSISTANT_CALLBACK_PORT", 8374),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
