package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might affect defaults
	for _, key := range []string{"DATABASE_URL", "HTTP_PORT", "WALLET_URL", "WALLET_RETRY_MAX", "RECONCILE_INTERVAL", "RANK_ADVANCEMENT_ENABLED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.WalletURL != "http://localhost:8090" {
		t.Errorf("WalletURL = %q, want default", cfg.WalletURL)
	}
	if cfg.WalletRetryMax != 3 {
		t.Errorf("WalletRetryMax = %d, want 3", cfg.WalletRetryMax)
	}
	if cfg.ReconcileInterval != 24*time.Hour {
		t.Errorf("ReconcileInterval = %v, want 24h", cfg.ReconcileInterval)
	}
	if !cfg.RankAdvancementEnabled {
		t.Errorf("RankAdvancementEnabled = false, want true by default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/testdb")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("WALLET_RETRY_MAX", "10")
	t.Setenv("RECONCILE_INTERVAL", "1h")
	t.Setenv("RANK_ADVANCEMENT_ENABLED", "false")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://localhost/testdb" {
		t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if cfg.WalletRetryMax != 10 {
		t.Errorf("WalletRetryMax = %d, want 10", cfg.WalletRetryMax)
	}
	if cfg.ReconcileInterval != time.Hour {
		t.Errorf("ReconcileInterval = %v, want 1h", cfg.ReconcileInterval)
	}
	if cfg.RankAdvancementEnabled {
		t.Errorf("RankAdvancementEnabled = true, want false")
	}
}

func TestLoadInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("WALLET_RETRY_MAX", "not-a-number")
	t.Setenv("RECONCILE_INTERVAL", "invalid-duration")
	t.Setenv("RANK_ADVANCEMENT_ENABLED", "maybe")

	cfg := Load()

	if cfg.WalletRetryMax != 3 {
		t.Errorf("WalletRetryMax = %d, want default 3 on invalid input", cfg.WalletRetryMax)
	}
	if cfg.ReconcileInterval != 24*time.Hour {
		t.Errorf("ReconcileInterval = %v, want default 24h on invalid input", cfg.ReconcileInterval)
	}
	if !cfg.RankAdvancementEnabled {
		t.Errorf("RankAdvancementEnabled = false, want default true on invalid input")
	}
}
