package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_PORT", "BOARD_DB_PATH", "STORE_TIMEOUT", "REDIS_ADDR", "LOG_FEED_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort = %d, want 3000", cfg.HTTPPort)
	}
	if cfg.BoardDBPath != "board.db" {
		t.Errorf("BoardDBPath = %q, want %q", cfg.BoardDBPath, "board.db")
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Errorf("StoreTimeout = %v, want 5s", cfg.StoreTimeout)
	}
	if cfg.LogFeedLimit != 20 {
		t.Errorf("LogFeedLimit = %d, want 20", cfg.LogFeedLimit)
	}
	if cfg.RedisEnabled() {
		t.Error("RedisEnabled() = true with empty REDIS_ADDR")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("STORE_TIMEOUT", "250ms")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("DB_DEBUG", "true")

	cfg := Load()

	if cfg.HTTPPort != 8080 {
		t.Errorf("HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Errorf("StoreTimeout = %v, want 250ms", cfg.StoreTimeout)
	}
	if !cfg.RedisEnabled() {
		t.Error("RedisEnabled() = false, want true")
	}
	if !cfg.DBDebug {
		t.Error("DBDebug = false, want true")
	}
}

func TestGetEnvHelpers_InvalidValues(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	t.Setenv("TEST_DURATION", "soon")

	if got := getEnvInt("TEST_INT", 7); got != 7 {
		t.Errorf("getEnvInt() = %d, want 7", got)
	}
	if got := getEnvDuration("TEST_DURATION", time.Second); got != time.Second {
		t.Errorf("getEnvDuration() = %v, want 1s", got)
	}
}
