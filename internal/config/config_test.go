package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_RelayRequiresEndpointWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("RELAY_ENABLED", "true")
	t.Setenv("RELAY_ENDPOINT", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when RELAY_ENABLED=true without RELAY_ENDPOINT")
	}
}

func TestLoad_MatchmakingDefaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MatcherBaseDelta != 200 {
		t.Fatalf("unexpected MatcherBaseDelta: %d", cfg.MatcherBaseDelta)
	}
	if cfg.MatcherWidenAfter != 30*time.Second {
		t.Fatalf("unexpected MatcherWidenAfter: %s", cfg.MatcherWidenAfter)
	}
	if cfg.AcceptWindow != 15*time.Second {
		t.Fatalf("unexpected AcceptWindow: %s", cfg.AcceptWindow)
	}
	if cfg.ConsumerPollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected ConsumerPollInterval: %s", cfg.ConsumerPollInterval)
	}
	if !cfg.ConsumerEnabled {
		t.Fatalf("expected ConsumerEnabled=true by default")
	}
}

func TestLoad_ConsumerPollIntervalBounds(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("CONSUMER_POLL_INTERVAL", "5s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for CONSUMER_POLL_INTERVAL above 1s")
	}
}

func TestLoad_MatcherDeltaValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("MATCHER_BASE_DELTA", "500")
	t.Setenv("MATCHER_MAX_DELTA", "200")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when MATCHER_MAX_DELTA < MATCHER_BASE_DELTA")
	}
}

func TestLoad_RelayConfigParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("RELAY_ENABLED", "true")
	t.Setenv("RELAY_ENDPOINT", "https://events.internal.example.com/matchmaking")
	t.Setenv("RELAY_TOKEN", "token-123")
	t.Setenv("RELAY_TIMEOUT", "4s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.RelayEnabled {
		t.Fatalf("expected RelayEnabled=true")
	}
	if cfg.RelayEndpoint != "https://events.internal.example.com/matchmaking" {
		t.Fatalf("unexpected RelayEndpoint: %q", cfg.RelayEndpoint)
	}
	if cfg.RelayToken != "token-123" {
		t.Fatalf("unexpected RelayToken")
	}
	if cfg.RelayTimeout != 4*time.Second {
		t.Fatalf("unexpected RelayTimeout: %s", cfg.RelayTimeout)
	}
}
