package backend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/culqipay/internal/model"
)

// AuthClient は認証バックエンドのクライアント。
// サインイン・サインアップ・サインアウトのエンドポイントを呼び出す。
type AuthClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewAuthClient はAuthClientの新しいインスタンスを生成する。
func NewAuthClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *AuthClient {
	return &AuthClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// credentialsPayload は認証リクエストのボディ。
type credentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// sessionPayload は認証成功レスポンスのボディ。
type sessionPayload struct {
	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"user"`
	AccessToken string `json:"access_token"`
}

// errorPayload はバックエンドのエラーレスポンスのボディ。
type errorPayload struct {
	Error string `json:"error"`
}

// SignIn は認証バックエンドにサインインを要求する。
// 資格情報の拒否はAUTH_FAILED、通信失敗はNETWORK_ERRORとして返す。
func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	return c.authenticate(ctx, c.baseURL+"/auth/sign-in", email, password)
}

// SignUp は認証バックエンドに新規登録を要求する。
// 既存メールアドレスはEMAIL_TAKENとして返す。
func (c *AuthClient) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+"/auth/sign-up",
		credentialsPayload{Email: email, Password: password}, "")
	if err != nil {
		return nil, model.NewNetworkError(err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("auth backend sign-up request failed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return nil, model.NewEmailTakenError()
	}

	return c.decodeSession(resp)
}

// SignOut はリモートセッションを無効化する。
// 失敗してもローカルのログアウト処理は続行されるため、呼び出し元はエラーをログのみに留める。
func (c *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+"/auth/sign-out", nil, accessToken)
	if err != nil {
		return model.NewNetworkError(err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return model.NewNetworkError("auth backend returned status " + resp.Status)
	}

	return nil
}

// authenticate はサインインリクエストを実行しセッションを取得する。
func (c *AuthClient) authenticate(ctx context.Context, url, email, password string) (*model.Session, error) {
	req, err := newJSONRequest(ctx, http.MethodPost, url,
		credentialsPayload{Email: email, Password: password}, "")
	if err != nil {
		return nil, model.NewNetworkError(err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("auth backend request failed",
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	return c.decodeSession(resp)
}

// decodeSession は認証レスポンスをセッションに変換する。
// 4xxはバックエンドのメッセージ付きでAUTH_FAILED、その他の非200はNETWORK_ERRORとする。
func (c *AuthClient) decodeSession(resp *http.Response) (*model.Session, error) {
	body, err := readBody(resp)
	if err != nil {
		return nil, model.NewNetworkError(err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			var payload errorPayload
			// ボディのパース失敗は既定メッセージで扱う
			_ = json.Unmarshal(body, &payload)
			return nil, model.NewAuthFailedError(payload.Error)
		}
		c.logger.Error("auth backend returned error status",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewNetworkError("auth backend returned status " + resp.Status)
	}

	var payload sessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, model.NewNetworkError("failed to parse auth response: " + err.Error())
	}
	if payload.AccessToken == "" {
		return nil, model.NewNetworkError("auth response is missing access token")
	}

	return &model.Session{
		User: model.User{
			ID:        payload.User.ID,
			Email:     payload.User.Email,
			CreatedAt: payload.User.CreatedAt,
		},
		AccessToken: payload.AccessToken,
		CreatedAt:   time.Now(),
	}, nil
}
