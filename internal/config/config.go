package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	BackendBaseURL string
	BackendTimeout time.Duration

	// Culqi
	// CulqiPublicKeyは起動時には必須としない。
	// 未設定のまま購入を開始した場合、チェックアウトブリッジが
	// 致命的な設定エラー（CONFIG_MISSING）を返す。
	CulqiPublicKey    string
	CulqiCheckoutURL  string
	WidgetLoadTimeout time.Duration
	CheckoutTitle     string

	// Purchase
	CheckoutTimeout    time.Duration // 0 はタイムアウトなし
	CheckoutPendingTTL time.Duration // 0 は滞留インボケーションの掃除なし
	DisplayWindow      time.Duration

	// Session
	SessionDBPath  string
	RestoreTimeout time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitPurchase int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BackendBaseURL = os.Getenv("BACKEND_BASE_URL")
	if cfg.BackendBaseURL == "" {
		missing = append(missing, "BACKEND_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 10*time.Second)
	cfg.CulqiPublicKey = os.Getenv("CULQI_PUBLIC_KEY")
	cfg.CulqiCheckoutURL = getEnvString("CULQI_CHECKOUT_URL", "https://checkout.culqi.com/js/v4")
	cfg.WidgetLoadTimeout = getEnvDuration("WIDGET_LOAD_TIMEOUT", 10*time.Second)
	cfg.CheckoutTitle = getEnvString("CHECKOUT_TITLE", "CulqiPay")
	cfg.CheckoutTimeout = getEnvDuration("CHECKOUT_TIMEOUT", 0)
	cfg.CheckoutPendingTTL = getEnvDuration("CHECKOUT_PENDING_TTL", 0)
	cfg.DisplayWindow = getEnvDuration("DISPLAY_WINDOW", 2*time.Second)
	cfg.SessionDBPath = getEnvString("SESSION_DB_PATH", "culqipay.db")
	cfg.RestoreTimeout = getEnvDuration("RESTORE_TIMEOUT", 3*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitPurchase = getEnvInt("RATE_LIMIT_PURCHASE", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

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
