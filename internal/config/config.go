package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StoreBackend はユーザーと請求書の保存先。
type StoreBackend string

const (
	BackendAppwrite StoreBackend = "appwrite"
	BackendPostgres StoreBackend = "postgres"
	BackendMemory   StoreBackend = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreBackend StoreBackend

	// Appwrite
	AppwriteEndpoint    string
	AppwriteProjectID   string
	AppwriteAPIKey      string
	AppwriteDatabaseID  string
	InvoiceCollectionID string
	AppwriteTimeout     time.Duration

	// Database
	DatabaseURL string

	// Auth
	JWTSecret string

	// Rate Limit
	RateLimitGeneral int
	RateLimitLogin   int

	// Notification
	NotifyOnCreate bool

	// Revocation
	RevocationSweepInterval time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 保存先ごとの必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	backend := StoreBackend(strings.ToLower(getEnvString("STORE_BACKEND", string(BackendAppwrite))))
	switch backend {
	case BackendAppwrite, BackendPostgres, BackendMemory:
		cfg.StoreBackend = backend
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (want appwrite, postgres or memory)", backend)
	}

	// Required fields
	var missing []string
	require := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	switch cfg.StoreBackend {
	case BackendAppwrite:
		cfg.AppwriteEndpoint = require("APPWRITE_ENDPOINT")
		cfg.AppwriteProjectID = require("APPWRITE_PROJECT_ID")
		cfg.AppwriteAPIKey = require("APPWRITE_API_KEY")
		cfg.AppwriteDatabaseID = require("APPWRITE_DATABASE_ID")
		cfg.InvoiceCollectionID = require("INVOICE_COLLECTION_ID")
	case BackendPostgres:
		cfg.DatabaseURL = require("DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AppwriteTimeout = getEnvDuration("APPWRITE_TIMEOUT", 15*time.Second)
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.NotifyOnCreate = getEnvBool("NOTIFY_ON_CREATE", false)
	cfg.RevocationSweepInterval = getEnvDuration("REVOCATION_SWEEP_INTERVAL", time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("PORT", "3000")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")

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
	if err != nil || i <= 0 {
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

// getEnvDuration は"15s"のようなduration表記に加え、整数をミリ秒として受け付ける。
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
