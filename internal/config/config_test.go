package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENCRYPTION_PASSPHRASE", "correct-horse-battery-staple")
	t.Setenv("ENCRYPTION_SALT", "tradebot-v1")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Bot.TickTimeout != 60*time.Second {
		t.Errorf("Bot.TickTimeout = %v, want 60s", cfg.Bot.TickTimeout)
	}
	if cfg.Bot.MaxConsecutiveErrors != 10 {
		t.Errorf("Bot.MaxConsecutiveErrors = %d, want 10", cfg.Bot.MaxConsecutiveErrors)
	}
	if cfg.Bot.AssumeFlatForEntry {
		t.Error("Bot.AssumeFlatForEntry must default to false")
	}
	if cfg.Exchange.BaseURL != "https://api.bitget.com" {
		t.Errorf("Exchange.BaseURL = %q", cfg.Exchange.BaseURL)
	}
	if cfg.Bot.MinOrderSizes["BTCUSDT"] != 0.001 {
		t.Errorf("MinOrderSizes[BTCUSDT] = %v, want 0.001", cfg.Bot.MinOrderSizes["BTCUSDT"])
	}
	if len(cfg.Feed.Symbols) != 1 || cfg.Feed.Symbols[0] != "BTCUSDT" {
		t.Errorf("Feed.Symbols = %v", cfg.Feed.Symbols)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BOT_TICK_TIMEOUT", "30s")
	t.Setenv("BOT_ASSUME_FLAT_FOR_ENTRY", "true")
	t.Setenv("FEED_SYMBOLS", "BTCUSDT, ETHUSDT ,SOLUSDT")
	t.Setenv("BOT_MIN_ORDER_SIZES", "BTCUSDT:0.002,solusdt:0.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Bot.TickTimeout != 30*time.Second {
		t.Errorf("Bot.TickTimeout = %v, want 30s", cfg.Bot.TickTimeout)
	}
	if !cfg.Bot.AssumeFlatForEntry {
		t.Error("Bot.AssumeFlatForEntry not overridden")
	}
	if len(cfg.Feed.Symbols) != 3 || cfg.Feed.Symbols[1] != "ETHUSDT" {
		t.Errorf("Feed.Symbols = %v", cfg.Feed.Symbols)
	}
	if cfg.Bot.MinOrderSizes["BTCUSDT"] != 0.002 || cfg.Bot.MinOrderSizes["SOLUSDT"] != 0.1 {
		t.Errorf("MinOrderSizes = %v", cfg.Bot.MinOrderSizes)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing passphrase",
			env:     map[string]string{"ENCRYPTION_PASSPHRASE": "", "ENCRYPTION_SALT": "salt"},
			wantErr: "ENCRYPTION_PASSPHRASE",
		},
		{
			name:    "short passphrase",
			env:     map[string]string{"ENCRYPTION_PASSPHRASE": "short", "ENCRYPTION_SALT": "salt"},
			wantErr: "at least 16",
		},
		{
			name:    "missing salt",
			env:     map[string]string{"ENCRYPTION_PASSPHRASE": "correct-horse-battery-staple"},
			wantErr: "ENCRYPTION_SALT",
		},
		{
			name: "bad server port",
			env: map[string]string{
				"ENCRYPTION_PASSPHRASE": "correct-horse-battery-staple",
				"ENCRYPTION_SALT":       "salt",
				"SERVER_PORT":           "70000",
			},
			wantErr: "SERVER_PORT",
		},
		{
			name: "zero max errors",
			env: map[string]string{
				"ENCRYPTION_PASSPHRASE":      "correct-horse-battery-staple",
				"ENCRYPTION_SALT":            "salt",
				"BOT_MAX_CONSECUTIVE_ERRORS": "0",
			},
			wantErr: "BOT_MAX_CONSECUTIVE_ERRORS",
		},
		{
			name: "too many exchange attempts",
			env: map[string]string{
				"ENCRYPTION_PASSPHRASE": "correct-horse-battery-staple",
				"ENCRYPTION_SALT":       "salt",
				"EXCHANGE_MAX_ATTEMPTS": "11",
			},
			wantErr: "EXCHANGE_MAX_ATTEMPTS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, Name: "tradebot",
		User: "app", Password: "secret", SSLMode: "disable",
	}

	dsn := d.DSN()
	if !strings.Contains(dsn, "password=secret") {
		t.Errorf("DSN() = %q missing password", dsn)
	}
	if strings.Contains(d.DSNWithoutPassword(), "secret") {
		t.Error("DSNWithoutPassword() leaks password")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	if got := getEnvAsInt("TEST_INT_BAD", 42); got != 42 {
		t.Errorf("getEnvAsInt(bad) = %d, want default 42", got)
	}

	t.Setenv("TEST_DUR_BAD", "nope")
	if got := getEnvAsDuration("TEST_DUR_BAD", time.Second); got != time.Second {
		t.Errorf("getEnvAsDuration(bad) = %v, want default 1s", got)
	}

	t.Setenv("TEST_SIZES_BAD", "BTCUSDT:zero,noseparator")
	got := getEnvAsSizeMap("TEST_SIZES_BAD", map[string]float64{"X": 1})
	if got["X"] != 1 {
		t.Errorf("getEnvAsSizeMap(bad) = %v, want default", got)
	}
}
