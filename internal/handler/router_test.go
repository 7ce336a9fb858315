package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/culqipay/internal/checkout"
	"github.com/hitoshi/culqipay/internal/middleware"
	"github.com/hitoshi/culqipay/internal/model"
	"github.com/hitoshi/culqipay/internal/purchase"
)

type routerSessionSource struct {
	session *model.Session
}

func (s *routerSessionSource) Current() *model.Session {
	return s.session
}

// TestRouter_Health はヘルスチェックが認証なしで応答することを検証する。
func TestRouter_Health(t *testing.T) {
	router := newAuthedRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// TestRouter_APIRequiresSession は/api配下が未認証で401になることを検証する。
func TestRouter_APIRequiresSession(t *testing.T) {
	router := newUnauthedRouter(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/products"},
		{http.MethodGet, "/api/products/purchased"},
		{http.MethodPost, "/api/purchase"},
		{http.MethodGet, "/api/purchase/state"},
	}
	for _, tc := range paths {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

// TestRouter_AuthenticatedFlow は認証済みセッションでの主要ルートの疎通を検証する。
func TestRouter_AuthenticatedFlow(t *testing.T) {
	router := newAuthedRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /api/products: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/purchase/select",
		strings.NewReader(`{"product_id":"p1"}`)))
	if rec.Code != http.StatusOK {
		t.Errorf("POST /api/purchase/select: status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/purchase", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("POST /api/purchase: status = %d, want 200", rec.Code)
	}
}

// TestRouter_CheckoutCallbackOutsideAuth はコールバックが認証なしで到達することを検証する。
func TestRouter_CheckoutCallbackOutsideAuth(t *testing.T) {
	router := newUnauthedRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/callback",
		strings.NewReader(`{"invocation_id":"inv-1","cancelled":true}`)))

	// 未知の起動IDなので404だが、401ではないことが重要
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestRouter_CORS はCORSヘッダーが全ルートに付与されることを検証する。
func TestRouter_CORS(t *testing.T) {
	router := newUnauthedRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/products", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 for preflight", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func newAuthedRouter(t *testing.T) http.Handler {
	t.Helper()
	return buildRouter(t, &routerSessionSource{session: &model.Session{
		User:        model.User{ID: "user-1", Email: "demo@culqi.com"},
		AccessToken: "tok-1",
	}})
}

func newUnauthedRouter(t *testing.T) http.Handler {
	t.Helper()
	return buildRouter(t, &routerSessionSource{})
}

func buildRouter(t *testing.T, sessions *routerSessionSource) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Sessions:          sessions,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		AuthService:       &mockAuthService{current: sessions.session},
		CatalogService:    &mockCatalogService{},
		Orchestrator: &mockOrchestrator{
			selectFn: func(productID string) error { return nil },
			purchaseFn: func(ctx context.Context) (*purchase.Snapshot, error) {
				return &purchase.Snapshot{State: model.StateSucceeded}, nil
			},
		},
		Bridge: &mockBridge{
			resolveFn: func(id string, result checkout.CallbackResult) bool { return false },
		},
	})
}
