// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/culqipay/internal/middleware"
	"github.com/hitoshi/culqipay/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Register(ctx context.Context, email, password string) (*model.Session, error)
	Logout(ctx context.Context)
	Current() *model.Session
}

// AuthHandler はセッション管理のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// credentialsRequest はログイン・登録リクエストのボディ。
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// sessionResponse はセッション情報のレスポンス。
type sessionResponse struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"access_token"`
}

func toSessionResponse(sess *model.Session) sessionResponse {
	return sessionResponse{
		User: userResponse{
			ID:        sess.User.ID,
			Email:     sess.User.Email,
			CreatedAt: sess.User.CreatedAt,
		},
		AccessToken: sess.AccessToken,
	}
}

// Login はログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteAPIError(w, model.ToAPIError(err))
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// Register は新規登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}

	sess, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		middleware.WriteAPIError(w, model.ToAPIError(err))
		return
	}

	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// Logout はログアウトを処理する。常に成功する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッション情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := h.service.Current()
	if sess == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// decodeCredentials はログイン・登録のボディを検証付きでデコードする。
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディが不正です。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		})
		return req, false
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "メールアドレスとパスワードを入力してください。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		})
		return req, false
	}

	return req, true
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
