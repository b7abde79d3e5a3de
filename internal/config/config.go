package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr     string
	AllowedOrigins []string

	RedisURL      string
	DatabaseURL   string
	ProfileAPIURL string
	ProfileAPIKey string

	GridSize        int
	AnnounceDelay   time.Duration
	MatchDebounce   time.Duration
	StakeAmount     int64
	AllowSelfPlay   bool
	ProfileCacheTTL time.Duration
	SendBuffer      int

	MessageDir string
	DevUsers   []string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":8080",
		GridSize:        5,
		AnnounceDelay:   3 * time.Second,
		MatchDebounce:   2 * time.Second,
		StakeAmount:     200,
		AllowSelfPlay:   false,
		ProfileCacheTTL: time.Minute,
		SendBuffer:      32,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.ProfileAPIURL = strings.TrimSpace(os.Getenv("PROFILE_API_URL"))
	cfg.ProfileAPIKey = strings.TrimSpace(os.Getenv("PROFILE_API_KEY"))
	cfg.MessageDir = strings.TrimSpace(os.Getenv("MESSAGE_DIR"))
	cfg.DevUsers = splitList(os.Getenv("DEV_USERS"))

	if v := strings.TrimSpace(os.Getenv("GRID_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("GRID_SIZE must be a positive integer")
		}
		cfg.GridSize = n
	}
	if v := strings.TrimSpace(os.Getenv("ANNOUNCE_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.AnnounceDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("MATCH_DEBOUNCE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MatchDebounce = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("STAKE_AMOUNT")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.StakeAmount = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ALLOW_SELF_PLAY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowSelfPlay = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("PROFILE_CACHE_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ProfileCacheTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SEND_BUFFER")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendBuffer = n
		}
	}

	if cfg.DatabaseURL == "" && cfg.ProfileAPIURL != "" {
		// in-memory store cannot see users served by the profile API
		return nil, errors.New("DATABASE_URL is required when PROFILE_API_URL is set")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
