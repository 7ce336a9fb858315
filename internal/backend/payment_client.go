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

// PaymentClient は決済バックエンドのクライアント。
// Culqiトークンを決済バックエンドに送信して課金を確定する。
// トークンは購入試行ごとに1回だけ送信する。再送信は行わない。
type PaymentClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewPaymentClient はPaymentClientの新しいインスタンスを生成する。
func NewPaymentClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *PaymentClient {
	return &PaymentClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// createPaymentPayload は決済作成リクエストのボディ。
type createPaymentPayload struct {
	ProductID string `json:"product_id"`
	Token     string `json:"token"`
}

// createPaymentResult は決済作成レスポンスのボディ。
type createPaymentResult struct {
	Success     bool   `json:"success"`
	PaymentID   string `json:"payment_id"`
	ChargeID    string `json:"charge_id"`
	AmountCents int64  `json:"amount_cents"`
	Error       string `json:"error"`
}

// CreatePayment はトークンと商品IDを決済バックエンドに送信する。
// バックエンドによる拒否（購入済み・商品無効・決済却下など）は
// バックエンドのメッセージをそのまま持つPAYMENT_REJECTEDとして返す。
// 通信失敗はNETWORK_ERRORとして返し、いずれの場合も再送信は行わない。
func (c *PaymentClient) CreatePayment(ctx context.Context, accessToken, productID, tokenID string) (*model.Payment, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	req, err := newJSONRequest(ctx, http.MethodPost, c.baseURL+"/create-payment",
		createPaymentPayload{ProductID: productID, Token: tokenID}, accessToken)
	if err != nil {
		return nil, model.NewNetworkError(err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("payment backend request failed",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkError(err.Error())
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, model.NewNetworkError(err.Error())
	}

	// 拒否レスポンスは4xxでも {success:false, error} ボディを持つため、
	// ステータスより先にボディの契約フォーマットを解釈する。
	var result createPaymentResult
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, model.NewNetworkError("payment backend returned status " + resp.Status)
		}
		return nil, model.NewNetworkError("failed to parse payment response: " + err.Error())
	}

	if !result.Success {
		if result.Error == "" && resp.StatusCode != http.StatusOK {
			return nil, model.NewNetworkError("payment backend returned status " + resp.Status)
		}
		c.logger.Warn("payment rejected by backend",
			slog.String("product_id", productID),
			slog.String("reason", result.Error),
		)
		return nil, model.NewPaymentRejectedError(result.Error)
	}

	return &model.Payment{
		ID:            result.PaymentID,
		ProductID:     productID,
		AmountCents:   result.AmountCents,
		Status:        model.PaymentStatusSuccess,
		CulqiChargeID: result.ChargeID,
		CreatedAt:     time.Now(),
	}, nil
}
