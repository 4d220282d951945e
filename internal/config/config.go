package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	// DatabaseURLが空の場合は永続ストアを使わずインメモリのフォールバックストアで動作する。
	DatabaseURL      string
	DBConnectTimeout time.Duration
	DBAutoMigrate    bool

	// Catalog
	CatalogBaseURL  string
	CatalogTimeout  time.Duration
	RedisURL        string
	CatalogCacheTTL time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitWrite   int

	// Server
	ServerPort string

	// Client
	APIBaseURL string

	// CORS
	CORSAllowedOrigin string
}

// DefaultCatalogBaseURL はTheMealDB公開APIのベースURL。
const DefaultCatalogBaseURL = "https://www.themealdb.com/api/json/v1/1"

// Load は環境変数からConfigを読み込む。
// 必須の環境変数はない。URLとして解釈できない値が設定されている場合のみエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.CatalogBaseURL = getEnvString("CATALOG_BASE_URL", DefaultCatalogBaseURL)

	var invalid []string
	for key, v := range map[string]string{
		"DATABASE_URL":     cfg.DatabaseURL,
		"REDIS_URL":        cfg.RedisURL,
		"CATALOG_BASE_URL": cfg.CatalogBaseURL,
	} {
		if v == "" {
			continue
		}
		if u, err := url.Parse(v); err != nil || u.Scheme == "" {
			invalid = append(invalid, key)
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("environment variables are not valid URLs: %v", invalid)
	}

	// Optional fields with defaults
	cfg.DBConnectTimeout = getEnvDuration("DB_CONNECT_TIMEOUT", 5*time.Second)
	cfg.DBAutoMigrate = getEnvBool("DB_AUTO_MIGRATE", true)
	cfg.CatalogTimeout = getEnvDuration("CATALOG_TIMEOUT", 10*time.Second)
	cfg.CatalogCacheTTL = getEnvDuration("CATALOG_CACHE_TTL", 10*time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitWrite = getEnvInt("RATE_LIMIT_WRITE", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.APIBaseURL = getEnvString("API_BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// UsesFallbackStore は永続ストアの設定が無く、インメモリストアで動作するかを返す。
func (c *Config) UsesFallbackStore() bool {
	return c.DatabaseURL == ""
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
