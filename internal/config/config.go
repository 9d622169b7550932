package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL      string
	DatabaseMaxConns int

	HTTPPort    string
	AdminAPIKey string

	WalletURL            string
	WalletRetryMax       int
	WalletRetryBaseDelay time.Duration

	NotifyURL string

	ReconcileInterval time.Duration

	StoreRetryMax       int
	StoreRetryBaseDelay time.Duration

	RankAdvancementEnabled bool

	// Payout monitoring export; disabled when either value is empty.
	SheetsSpreadsheetID   string
	SheetsCredentialsJSON string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL:      envOrDefaultWarn("DATABASE_URL", ""),
		DatabaseMaxConns: envOrDefaultInt("DATABASE_MAX_CONNS", 10),

		HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey: envOrDefault("ADMIN_API_KEY", ""),

		WalletURL:            envOrDefault("WALLET_URL", "http://localhost:8090"),
		WalletRetryMax:       envOrDefaultInt("WALLET_RETRY_MAX", 3),
		WalletRetryBaseDelay: envOrDefaultDuration("WALLET_RETRY_BASE_DELAY", time.Second),

		NotifyURL: envOrDefault("NOTIFY_URL", ""),

		ReconcileInterval: envOrDefaultDuration("RECONCILE_INTERVAL", 24*time.Hour),

		StoreRetryMax:       envOrDefaultInt("STORE_RETRY_MAX", 3),
		StoreRetryBaseDelay: envOrDefaultDuration("STORE_RETRY_BASE_DELAY", 200*time.Millisecond),

		RankAdvancementEnabled: envOrDefaultBool("RANK_ADVANCEMENT_ENABLED", true),

		SheetsSpreadsheetID:   envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsJSON: envOrDefault("SHEETS_CREDENTIALS_JSON", ""),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			slog.Warn("invalid boolean env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return b
	}
	return defaultVal
}
