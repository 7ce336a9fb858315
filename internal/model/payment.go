package model

import "time"

// PaymentStatus は決済レコードの状態を表す。
type PaymentStatus string

const (
	// PaymentStatusPending は決済の確認待ちを示す。
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusSuccess は決済の成功を示す。
	PaymentStatusSuccess PaymentStatus = "success"
	// PaymentStatusFailed は決済の失敗を示す。
	PaymentStatusFailed PaymentStatus = "failed"
)

// Payment は決済レコードを表す。
// 正式なレコードは決済バックエンドのみが作成する。
// クライアント側では確認待ちの間の一時表現としてのみ生成する。
type Payment struct {
	ID            string
	ProductID     string
	AmountCents   int64
	Status        PaymentStatus
	CulqiChargeID string
	CreatedAt     time.Time
}

// PurchasedProduct はユーザーが購入済みの商品を表す。
type PurchasedProduct struct {
	Product
	PaymentID   string
	PurchasedAt time.Time
}
