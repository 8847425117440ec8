package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	CallbackBaseURL   string // Required: external base URL for the OIDC callback (e.g. https://sso.example.com)
	LogoutRedirectURL string // Optional: fallback post-logout redirect (default: /)
	AdminToken        string // Optional: bearer token guarding the admin endpoints (disabled when unset)
	IESBaseURL        string // Optional: identity-bridge base URL (LTI provisioning needs it)

	DatabaseFile  string // Optional: path to SQLite database file (default: ./sso.db)
	MasterKeyPath string // Optional: path to the secret-sealing master key file

	DiscoveryCacheSize int           // Optional: discovery cache capacity (default: 256)
	DiscoveryCacheTTL  time.Duration // Optional: discovery entry TTL (default: 15m)
	StateTTL           time.Duration // Optional: authentication state TTL (default: 10m)
	SessionTTL         time.Duration // Optional: web session validity (default: 12h)

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		CallbackBaseURL:   os.Getenv("SSO_CALLBACK_BASE_URL"),
		LogoutRedirectURL: getEnvOrDefault("SSO_LOGOUT_REDIRECT_URL", "/"),
		AdminToken:        os.Getenv("SSO_ADMIN_TOKEN"),
		IESBaseURL:        os.Getenv("SSO_IES_BASE_URL"),

		DatabaseFile:  getEnvOrDefault("SSO_DATABASE_FILE", "sso.db"),
		MasterKeyPath: os.Getenv("SSO_MASTER_KEY_PATH"),

		DiscoveryCacheSize: getEnvIntOrDefault("SSO_DISCOVERY_CACHE_SIZE", 256),
		DiscoveryCacheTTL:  getEnvDurationOrDefault("SSO_DISCOVERY_CACHE_TTL", 15*time.Minute),
		StateTTL:           getEnvDurationOrDefault("SSO_STATE_TTL", 10*time.Minute),
		SessionTTL:         getEnvDurationOrDefault("SSO_SESSION_TTL", 12*time.Hour),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if cfg.CallbackBaseURL == "" {
		cfg.CallbackBaseURL = "http://localhost:8080"
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g. "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
