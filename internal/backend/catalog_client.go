package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/culqipay/internal/model"
)

// CatalogClient はカタログバックエンドのクライアント。
// 商品一覧と購入済み商品一覧を取得する。
// いずれもBearer資格情報が必須であり、資格情報の欠如は呼び出し側のバグとして
// 通常のエラー（ネットワークエラーではない）を返す。
type CatalogClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewCatalogClient はCatalogClientの新しいインスタンスを生成する。
func NewCatalogClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *CatalogClient {
	return &CatalogClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// productPayload は商品レスポンスの1要素。
// ownedは現在の資格情報のユーザーに対して算出された派生フラグ。
type productPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PriceCents  int64  `json:"price_cents"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
	ImageURL    string `json:"image_url"`
	Owned       bool   `json:"owned"`
}

// purchasedPayload は購入済み商品レスポンスの1要素。
type purchasedPayload struct {
	productPayload
	PaymentID   string    `json:"payment_id"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// ListProducts は商品一覧を取得する。
// ownedフラグは資格情報のユーザースコープでバックエンド側が算出する。
func (c *CatalogClient) ListProducts(ctx context.Context, accessToken string) ([]model.Product, error) {
	body, err := c.get(ctx, c.baseURL+"/products", accessToken)
	if err != nil {
		return nil, err
	}

	var payload []productPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, model.NewNetworkError("failed to parse products response: " + err.Error())
	}

	products := make([]model.Product, 0, len(payload))
	for _, p := range payload {
		products = append(products, model.Product{
			ID:          p.ID,
			Name:        p.Name,
			PriceCents:  p.PriceCents,
			Description: p.Description,
			Active:      p.Active,
			ImageURL:    p.ImageURL,
			Owned:       p.Owned,
		})
	}

	return products, nil
}

// ListPurchased は購入済み商品一覧を取得する。
// ユーザーのスコープはBearer資格情報から決まるため、ユーザーID引数は取らない。
func (c *CatalogClient) ListPurchased(ctx context.Context, accessToken string) ([]model.PurchasedProduct, error) {
	body, err := c.get(ctx, c.baseURL+"/purchased-products", accessToken)
	if err != nil {
		return nil, err
	}

	var payload []purchasedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, model.NewNetworkError("failed to parse purchased products response: " + err.Error())
	}

	purchased := make([]model.PurchasedProduct, 0, len(payload))
	for _, p := range payload {
		purchased = append(purchased, model.PurchasedProduct{
			Product: model.Product{
				ID:          p.ID,
				Name:        p.Name,
				PriceCents:  p.PriceCents,
				Description: p.Description,
				Active:      p.Active,
				ImageURL:    p.ImageURL,
				Owned:       true,
			},
			PaymentID:   p.PaymentID,
			PurchasedAt: p.PurchasedAt,
		})
	}

	return purchased, nil
}

// get は認証付きGETリクエストを実行しボディを返す。
func (c *CatalogClient) get(ctx context.Context, url, accessToken string) ([]byte, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	req, err := newJSONRequest(ctx, http.MethodGet, url, nil, accessToken)
	if err != nil {
		return nil, model.NewNetworkError(err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("catalog backend request failed",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, model.NewUnauthorizedError()
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("catalog backend returned error status",
			slog.String("url", url),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewNetworkError("catalog backend returned status " + resp.Status)
	}

	return readBody(resp)
}
