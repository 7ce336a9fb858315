package model

import (
	"errors"
	"fmt"
	"testing"
)

// TestAPIError_Error はエラー文字列にコードとメッセージが含まれることを検証する。
func TestAPIError_Error(t *testing.T) {
	err := NewPaymentRejectedError("already purchased")
	want := "[PAYMENT_REJECTED] already purchased"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestIsCancelled はキャンセル判定がコードに基づくことを検証する。
func TestIsCancelled(t *testing.T) {
	if !IsCancelled(NewCheckoutCancelledError()) {
		t.Error("expected IsCancelled to be true for CHECKOUT_CANCELLED")
	}
	if IsCancelled(NewCheckoutFailedError("declined")) {
		t.Error("expected IsCancelled to be false for CHECKOUT_FAILED")
	}
	if IsCancelled(errors.New("plain error")) {
		t.Error("expected IsCancelled to be false for non-APIError")
	}
}

// TestIsCancelled_Wrapped はラップされたAPIErrorも判定できることを検証する。
func TestIsCancelled_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("checkout: %w", NewCheckoutCancelledError())
	if !IsCancelled(wrapped) {
		t.Error("expected IsCancelled to unwrap wrapped APIError")
	}
}

// TestToAPIError は非APIErrorがネットワークエラーに変換されることを検証する。
func TestToAPIError(t *testing.T) {
	apiErr := ToAPIError(errors.New("connection refused"))
	if apiErr.Code != ErrCodeNetworkError {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeNetworkError)
	}

	original := NewAuthFailedError("")
	if got := ToAPIError(original); got != original {
		t.Error("expected APIError to pass through unchanged")
	}
}

// TestFormatPrice はセンティモ金額の表示変換を検証する。
func TestFormatPrice(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{9999, "S/ 99.99"},
		{10000, "S/ 100.00"},
		{5, "S/ 0.05"},
		{0, "S/ 0.00"},
		{12990, "S/ 129.90"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.cents); got != tt.want {
			t.Errorf("FormatPrice(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

// TestPurchaseState_InFlight は進行中状態の判定を検証する。
func TestPurchaseState_InFlight(t *testing.T) {
	inFlight := []PurchaseState{StateAwaitingToken, StateSubmitting}
	for _, s := range inFlight {
		if !s.InFlight() {
			t.Errorf("expected %s to be in flight", s)
		}
	}
	notInFlight := []PurchaseState{StateIdle, StateSelecting, StateSucceeded, StateCancelled, StateFailed}
	for _, s := range notInFlight {
		if s.InFlight() {
			t.Errorf("expected %s not to be in flight", s)
		}
	}
}

// TestPurchaseState_Terminal は表示状態の判定を検証する。
func TestPurchaseState_Terminal(t *testing.T) {
	terminal := []PurchaseState{StateSucceeded, StateCancelled, StateFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	if StateSelecting.Terminal() {
		t.Error("expected selecting not to be terminal")
	}
}
