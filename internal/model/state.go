package model

// PurchaseState は購入フローの状態機械の状態を表す。
//
//	idle → selecting → awaiting_token → submitting → succeeded|cancelled|failed → idle
//
// succeeded/cancelled/failedは一時的な表示状態であり、
// 表示ウィンドウ経過後または次の商品選択で即座にidleへ戻る。
type PurchaseState string

const (
	// StateIdle は購入フローが進行していない状態。
	StateIdle PurchaseState = "idle"
	// StateSelecting は商品が選択され購入開始を待つ状態。
	StateSelecting PurchaseState = "selecting"
	// StateAwaitingToken はチェックアウトウィジェットの結果待ちの状態。
	StateAwaitingToken PurchaseState = "awaiting_token"
	// StateSubmitting は決済バックエンドへの送信中の状態。
	StateSubmitting PurchaseState = "submitting"
	// StateSucceeded は購入成功の表示状態。
	StateSucceeded PurchaseState = "succeeded"
	// StateCancelled はユーザーによるキャンセルの表示状態。
	StateCancelled PurchaseState = "cancelled"
	// StateFailed は購入失敗の表示状態。
	StateFailed PurchaseState = "failed"
)

// InFlight は購入フローが進行中（新しい購入を受け付けない）かどうかを返す。
func (s PurchaseState) InFlight() bool {
	return s == StateAwaitingToken || s == StateSubmitting
}

// Terminal は一時的な表示状態（自動的にidleへ戻る状態）かどうかを返す。
func (s PurchaseState) Terminal() bool {
	return s == StateSucceeded || s == StateCancelled || s == StateFailed
}
