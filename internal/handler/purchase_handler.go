package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/culqipay/internal/checkout"
	"github.com/hitoshi/culqipay/internal/middleware"
	"github.com/hitoshi/culqipay/internal/model"
	"github.com/hitoshi/culqipay/internal/purchase"
)

// OrchestratorInterface は購入ハンドラーが必要とするサービスインターフェース。
type OrchestratorInterface interface {
	Select(productID string) error
	Purchase(ctx context.Context) (*purchase.Snapshot, error)
	Reset()
	State() *purchase.Snapshot
}

// PurchaseHandler は購入フローのHTTPハンドラー。
type PurchaseHandler struct {
	orchestrator OrchestratorInterface
}

// NewPurchaseHandler はPurchaseHandlerを生成する。
func NewPurchaseHandler(orchestrator OrchestratorInterface) *PurchaseHandler {
	return &PurchaseHandler{orchestrator: orchestrator}
}

// selectRequest は商品選択リクエストのボディ。
type selectRequest struct {
	ProductID string `json:"product_id"`
}

// paymentResponse は確定した決済のレスポンス。
type paymentResponse struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"product_id"`
	AmountCents   int64     `json:"amount_cents"`
	Status        string    `json:"status"`
	CulqiChargeID string    `json:"culqi_charge_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// snapshotResponse は購入フロー状態のレスポンス。
type snapshotResponse struct {
	State             string             `json:"state"`
	SelectedProductID string             `json:"selected_product_id,omitempty"`
	Message           string             `json:"message,omitempty"`
	InvocationID      string             `json:"invocation_id,omitempty"`
	Settings          *checkout.Settings `json:"settings,omitempty"`
	Payment           *paymentResponse   `json:"payment,omitempty"`
}

func toSnapshotResponse(snap *purchase.Snapshot) snapshotResponse {
	body := snapshotResponse{
		State:             string(snap.State),
		SelectedProductID: snap.SelectedProductID,
		Message:           snap.Message,
		InvocationID:      snap.InvocationID,
		Settings:          snap.Settings,
	}
	if snap.Payment != nil {
		body.Payment = &paymentResponse{
			ID:            snap.Payment.ID,
			ProductID:     snap.Payment.ProductID,
			AmountCents:   snap.Payment.AmountCents,
			Status:        string(snap.Payment.Status),
			CulqiChargeID: snap.Payment.CulqiChargeID,
			CreatedAt:     snap.Payment.CreatedAt,
		}
	}
	return body
}

// SelectProduct は購入対象の商品を選択する。
// POST /api/purchase/select
func (h *PurchaseHandler) SelectProduct(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "商品IDを指定してください。",
			Category: "validation",
			Action:   "入力内容を確認してください。",
		})
		return
	}

	if err := h.orchestrator.Select(req.ProductID); err != nil {
		middleware.WriteAPIError(w, model.ToAPIError(err))
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(h.orchestrator.State()))
}

// Purchase は選択済み商品の購入フローを開始する。
// ウィジェットの結末が確定するまでレスポンスはブロックする。
// フロー自体の結末（成功・キャンセル・失敗）は200で状態として返し、
// 前提条件違反のみエラーレスポンスになる。
// POST /api/purchase
func (h *PurchaseHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orchestrator.Purchase(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.ToAPIError(err))
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

// State は現在の購入フロー状態を返す。
// GET /api/purchase/state
func (h *PurchaseHandler) State(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSnapshotResponse(h.orchestrator.State()))
}

// Reset は購入フローを初期状態に戻す。
// POST /api/purchase/reset
func (h *PurchaseHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.Reset()
	writeJSON(w, http.StatusOK, toSnapshotResponse(h.orchestrator.State()))
}
