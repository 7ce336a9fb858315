package config

import (
	"testing"
	"time"
)

// TestLoad_MissingRequired は必須環境変数が未設定の場合にエラーとなることを検証する。
func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when BACKEND_BASE_URL is not set")
	}
}

// TestLoad_Defaults はオプション項目のデフォルト値を検証する。
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	t.Setenv("CULQI_PUBLIC_KEY", "")
	t.Setenv("CULQI_CHECKOUT_URL", "")
	t.Setenv("DISPLAY_WINDOW", "")
	t.Setenv("CHECKOUT_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.CulqiCheckoutURL != "https://checkout.culqi.com/js/v4" {
		t.Errorf("CulqiCheckoutURL = %q", cfg.CulqiCheckoutURL)
	}
	if cfg.DisplayWindow != 2*time.Second {
		t.Errorf("DisplayWindow = %v, want 2s", cfg.DisplayWindow)
	}
	if cfg.CheckoutTimeout != 0 {
		t.Errorf("CheckoutTimeout = %v, want 0", cfg.CheckoutTimeout)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
	if cfg.SessionDBPath != "culqipay.db" {
		t.Errorf("SessionDBPath = %q", cfg.SessionDBPath)
	}
	if cfg.CheckoutTitle != "CulqiPay" {
		t.Errorf("CheckoutTitle = %q", cfg.CheckoutTitle)
	}
}

// TestLoad_PublicKeyOptional は公開鍵未設定でも起動できることを検証する。
// 公開鍵の欠如は購入開始時の設定エラーとして扱われる。
func TestLoad_PublicKeyOptional(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	t.Setenv("CULQI_PUBLIC_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.CulqiPublicKey != "" {
		t.Errorf("CulqiPublicKey = %q, want empty", cfg.CulqiPublicKey)
	}
}

// TestLoad_InvalidDuration は不正なduration値がデフォルトに置き換わることを検証する。
func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("BACKEND_BASE_URL", "https://api.example.com")
	t.Setenv("BACKEND_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BackendTimeout != 10*time.Second {
		t.Errorf("BackendTimeout = %v, want 10s", cfg.BackendTimeout)
	}
}
