package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/culqipay/internal/model"
)

type mockSessionSource struct {
	session *model.Session
}

func (m *mockSessionSource) Current() *model.Session {
	return m.session
}

// TestSessionMiddleware_Authenticated はセッションありでユーザーIDが
// コンテキストに注入されることを検証する。
func TestSessionMiddleware_Authenticated(t *testing.T) {
	source := &mockSessionSource{session: &model.Session{
		User:        model.User{ID: "user-1"},
		AccessToken: "tok-1",
	}}

	var gotUserID string
	handler := NewSessionMiddleware(source)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotUserID != "user-1" {
		t.Errorf("userID = %q, want user-1", gotUserID)
	}
}

// TestSessionMiddleware_Unauthenticated はセッション無しで401になることを検証する。
func TestSessionMiddleware_Unauthenticated(t *testing.T) {
	handler := NewSessionMiddleware(&mockSessionSource{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestUserIDFromContext_Missing は未注入コンテキストからの取得失敗を検証する。
func TestUserIDFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := UserIDFromContext(req.Context()); err == nil {
		t.Error("expected error for missing user ID")
	}
}
