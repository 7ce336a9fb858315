package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/culqipay/internal/model"
)

// TestCatalogClient_ListProducts は商品一覧の取得と変換を検証する。
func TestCatalogClient_ListProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/products" {
			t.Errorf("path = %q, want /products", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"p1","name":"Curso de React Avanzado","price_cents":9999,"description":"Aprende React","active":true,"image_url":"/products/react.jpg","owned":false},
			{"id":"p2","name":"Masterclass de TypeScript","price_cents":7999,"description":"Domina TypeScript","active":true,"image_url":"","owned":true}
		]`)
	}))
	defer server.Close()

	client := NewCatalogClient(server.Client(), testLogger(), server.URL)

	products, err := client.ListProducts(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("ListProducts returned error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("len(products) = %d, want 2", len(products))
	}
	if products[0].PriceCents != 9999 {
		t.Errorf("PriceCents = %d, want 9999", products[0].PriceCents)
	}
	if products[0].Owned {
		t.Error("expected p1 not owned")
	}
	if !products[1].Owned {
		t.Error("expected p2 owned")
	}
}

// TestCatalogClient_ListPurchased は購入済み一覧の取得と変換を検証する。
func TestCatalogClient_ListPurchased(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/purchased-products" {
			t.Errorf("path = %q, want /purchased-products", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"id":"p2","name":"Masterclass de TypeScript","price_cents":7999,"description":"","active":true,"owned":true,"payment_id":"pay-1","purchased_at":"2024-06-03T10:00:00Z"}
		]`)
	}))
	defer server.Close()

	client := NewCatalogClient(server.Client(), testLogger(), server.URL)

	purchased, err := client.ListPurchased(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("ListPurchased returned error: %v", err)
	}
	if len(purchased) != 1 {
		t.Fatalf("len(purchased) = %d, want 1", len(purchased))
	}
	if purchased[0].PaymentID != "pay-1" {
		t.Errorf("PaymentID = %q", purchased[0].PaymentID)
	}
	if !purchased[0].Owned {
		t.Error("expected purchased product to be owned")
	}
}

// TestCatalogClient_MissingToken は資格情報の欠如が呼び出し側エラーになることを検証する。
// ネットワークエラー（APIError）ではなく通常のエラーとして返る。
func TestCatalogClient_MissingToken(t *testing.T) {
	client := NewCatalogClient(http.DefaultClient, testLogger(), "http://unused.example")

	_, err := client.ListProducts(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for missing token")
	}
	if _, ok := model.AsAPIError(err); ok {
		t.Errorf("expected plain error, got APIError: %v", err)
	}
}

// TestCatalogClient_Unauthorized は401がUNAUTHORIZEDになることを検証する。
func TestCatalogClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewCatalogClient(server.Client(), testLogger(), server.URL)

	_, err := client.ListProducts(context.Background(), "expired-token")
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeUnauthorized)
	}
}

// TestCatalogClient_ServerError は5xxがNETWORK_ERRORになることを検証する。
func TestCatalogClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewCatalogClient(server.Client(), testLogger(), server.URL)

	_, err := client.ListProducts(context.Background(), "tok-1")
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeNetworkError {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeNetworkError)
	}
}
