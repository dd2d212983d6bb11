// Package config provides configuration loading for the sync server.
package config

import (
	"os"
	"strconv"
)

// ServerConfig holds sync server configuration.
type ServerConfig struct {
	// Server settings
	Port        int
	Host        string
	Environment string

	// DatabaseURL selects Postgres persistence; empty means in-memory.
	DatabaseURL string

	// TokenKey is the hex-encoded AES-256 key the secrets codec uses.
	TokenKey string

	// OAuth application settings
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURI  string
}

// Load reads configuration from environment.
func Load() *ServerConfig {
	return &ServerConfig{
		Port:              getEnvInt("SYNC_PORT", 8090),
		Host:              getEnv("SYNC_HOST", "0.0.0.0"),
		Environment:       getEnv("SYNC_ENVIRONMENT", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		TokenKey:          getEnv("SYNC_TOKEN_KEY", ""),
		OAuthClientID:     getEnv("SYNC_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("SYNC_OAUTH_CLIENT_SECRET", ""),
		OAuthRedirectURI:  getEnv("SYNC_OAUTH_REDIRECT_URI", ""),
	}
}

// IsProduction reports whether the server runs with production
// hardening (a persistent token key is mandatory there).
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
