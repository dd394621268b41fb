package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/mtaalerts/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// MTA API
	MTAAPIKey string
	Endpoints []model.Endpoint

	// Fetch
	FetchTimeout time.Duration
	FetchMaxSize int64
	FeedCacheTTL time.Duration

	// Transform
	AlertTimezone           string
	DedupIncludeDescription bool

	// Rate Limit
	RateLimitGeneral  int
	TrustForwardedFor bool

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// FEEDS_CONFIG が指定された場合はYAMLファイルからエンドポイント一覧を読み込み、
// 未指定の場合はMTAの4エンドポイント（subway, bus, lirr, mnr の順）を使用する。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.MTAAPIKey = os.Getenv("MTA_API_KEY")

	cfg.Endpoints = DefaultEndpoints()
	if path := os.Getenv("FEEDS_CONFIG"); path != "" {
		endpoints, err := LoadEndpointsFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load FEEDS_CONFIG %s: %w", path, err)
		}
		cfg.Endpoints = endpoints
	}

	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FeedCacheTTL = getEnvDuration("FEED_CACHE_TTL", 0)
	cfg.AlertTimezone = getEnvString("ALERT_TIMEZONE", "America/New_York")
	cfg.DedupIncludeDescription = getEnvBool("DEDUP_INCLUDE_DESCRIPTION", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.TrustForwardedFor = getEnvBool("TRUST_FORWARDED_FOR", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:8080"), "/")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

	if _, err := time.LoadLocation(cfg.AlertTimezone); err != nil {
		return nil, fmt.Errorf("invalid ALERT_TIMEZONE %q: %w", cfg.AlertTimezone, err)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
