package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"LISTEN_ADDR", "GRID_SIZE", "ANNOUNCE_DELAY_MS", "MATCH_DEBOUNCE_MS", "STAKE_AMOUNT", "ALLOW_SELF_PLAY", "DATABASE_URL", "PROFILE_API_URL", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.GridSize != 5 || cfg.StakeAmount != 200 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AnnounceDelay != 3*time.Second || cfg.MatchDebounce != 2*time.Second {
		t.Fatalf("unexpected timing defaults: %v %v", cfg.AnnounceDelay, cfg.MatchDebounce)
	}
	if cfg.AllowSelfPlay {
		t.Fatalf("self play should default off")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("GRID_SIZE", "7")
	t.Setenv("ANNOUNCE_DELAY_MS", "250")
	t.Setenv("MATCH_DEBOUNCE_MS", "0")
	t.Setenv("STAKE_AMOUNT", "50")
	t.Setenv("ALLOW_SELF_PLAY", "true")
	t.Setenv("ALLOWED_ORIGINS", " a.example , ,b.example")
	t.Setenv("DATABASE_URL", "postgres://localhost/grid")
	t.Setenv("PROFILE_API_URL", "http://profiles")
	t.Setenv("PROFILE_API_KEY", " k-123 ")
	t.Setenv("DEV_USERS", "alice,bob")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GridSize != 7 || cfg.AnnounceDelay != 250*time.Millisecond || cfg.MatchDebounce != 0 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.StakeAmount != 50 || !cfg.AllowSelfPlay {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "b.example" {
		t.Fatalf("origins: %v", cfg.AllowedOrigins)
	}
	if cfg.ProfileAPIKey != "k-123" {
		t.Fatalf("profile api key: %q", cfg.ProfileAPIKey)
	}
	if len(cfg.DevUsers) != 2 || cfg.DevUsers[0] != "alice" {
		t.Fatalf("dev users: %v", cfg.DevUsers)
	}
}

func TestLoadRejectsBadGridSize(t *testing.T) {
	t.Setenv("GRID_SIZE", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative grid size")
	}
}

func TestLoadRequiresDatabaseWithProfileAPI(t *testing.T) {
	t.Setenv("GRID_SIZE", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PROFILE_API_URL", "http://profiles")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when profile api set without database")
	}
}
