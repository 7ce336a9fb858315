package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/culqipay/internal/middleware"
	"github.com/hitoshi/culqipay/internal/model"
)

// CatalogServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	Refresh(ctx context.Context) error
	Products() []model.Product
	Purchased() []model.PurchasedProduct
}

// ProductHandler は商品一覧のHTTPハンドラー。
type ProductHandler struct {
	service CatalogServiceInterface
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(service CatalogServiceInterface) *ProductHandler {
	return &ProductHandler{service: service}
}

// productResponse は商品レスポンスの1要素。
// price_displayは通貨記号付きの表示用文字列。
type productResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PriceCents   int64  `json:"price_cents"`
	PriceDisplay string `json:"price_display"`
	Currency     string `json:"currency"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	Owned        bool   `json:"owned"`
}

// purchasedResponse は購入済み商品レスポンスの1要素。
type purchasedResponse struct {
	productResponse
	PaymentID   string    `json:"payment_id"`
	PurchasedAt time.Time `json:"purchased_at"`
}

func toProductResponse(p model.Product) productResponse {
	return productResponse{
		ID:           p.ID,
		Name:         p.Name,
		PriceCents:   p.PriceCents,
		PriceDisplay: model.FormatPrice(p.PriceCents),
		Currency:     model.CurrencyCode,
		Description:  p.Description,
		ImageURL:     p.ImageURL,
		Owned:        p.Owned,
	}
}

// ListProducts は商品一覧を返す。毎回カタログバックエンドと同期する。
// GET /api/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		middleware.WriteAPIError(w, model.ToAPIError(err))
		return
	}

	products := h.service.Products()
	body := make([]productResponse, 0, len(products))
	for _, p := range products {
		body = append(body, toProductResponse(p))
	}

	writeJSON(w, http.StatusOK, body)
}

// ListPurchased は購入済み商品一覧を返す。
// GET /api/products/purchased
func (h *ProductHandler) ListPurchased(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		middleware.WriteAPIError(w, model.ToAPIError(err))
		return
	}

	purchased := h.service.Purchased()
	body := make([]purchasedResponse, 0, len(purchased))
	for _, p := range purchased {
		body = append(body, purchasedResponse{
			productResponse: toProductResponse(p.Product),
			PaymentID:       p.PaymentID,
			PurchasedAt:     p.PurchasedAt,
		})
	}

	writeJSON(w, http.StatusOK, body)
}
