package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/culqipay/internal/checkout"
	"github.com/hitoshi/culqipay/internal/middleware"
	"github.com/hitoshi/culqipay/internal/model"
)

// BridgeInterface はチェックアウトハンドラーが必要とするブリッジインターフェース。
type BridgeInterface interface {
	Resolve(id string, result checkout.CallbackResult) bool
	Script() []byte
}

// CheckoutHandler はウィジェットのコールバックを受けるHTTPハンドラー。
type CheckoutHandler struct {
	bridge BridgeInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(bridge BridgeInterface) *CheckoutHandler {
	return &CheckoutHandler{bridge: bridge}
}

// tokenPayload はウィジェットが発行したカードトークン。
type tokenPayload struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	CardNumber   string `json:"card_number"`
	CreationDate int64  `json:"creation_date"`
}

// callbackRequest はウィジェットからの結末報告のボディ。
// token、cancelled、errorのいずれか1つだけが意味を持つ。
type callbackRequest struct {
	InvocationID string        `json:"invocation_id"`
	Token        *tokenPayload `json:"token"`
	Cancelled    bool          `json:"cancelled"`
	Error        *struct {
		UserMessage string `json:"user_message"`
	} `json:"error"`
}

// Callback はウィジェットの結末を対応する起動へ配送する。
// 解決済み・破棄済みの起動への報告は404で応答し、結果は破棄される。
// POST /checkout/callback
func (h *CheckoutHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InvocationID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "コールバックの内容が不正です。",
			Category: "validation",
			Action:   "",
		})
		return
	}

	result := checkout.CallbackResult{Cancelled: req.Cancelled}
	if req.Token != nil {
		result.Token = &model.CulqiToken{
			ID:           req.Token.ID,
			Email:        req.Token.Email,
			CardNumber:   req.Token.CardNumber,
			CreationDate: req.Token.CreationDate,
		}
	}
	if req.Error != nil {
		result.ErrorMessage = req.Error.UserMessage
	}

	if !h.bridge.Resolve(req.InvocationID, result) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "INVOCATION_NOT_FOUND",
			Message:  "対象の決済処理が見つかりません。",
			Category: "checkout",
			Action:   "",
		})
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Script は取得済みのウィジェットスクリプトを配信する。
// GET /checkout/script
func (h *CheckoutHandler) Script(w http.ResponseWriter, r *http.Request) {
	script := h.bridge.Script()
	if script == nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     "SCRIPT_NOT_LOADED",
			Message:  "決済ウィジェットのスクリプトはまだ取得されていません。",
			Category: "checkout",
			Action:   "購入を開始してから再度お試しください。",
		})
		return
	}

	w.Header().Set("Content-Type", "application/javascript")
	w.Write(script)
}
