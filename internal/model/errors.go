package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// 非同期処理の失敗はすべてオーケストレータ境界でAPIErrorに変換され、
// 生のトランスポートエラーがプレゼンテーション層に到達することはない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: config, auth, validation, checkout, payment, network, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeConfigMissing       = "CONFIG_MISSING"
	ErrCodeAuthFailed          = "AUTH_FAILED"
	ErrCodeEmailTaken          = "EMAIL_TAKEN"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodePasswordTooShort    = "PASSWORD_TOO_SHORT"
	ErrCodeWidgetLoadFailed    = "WIDGET_LOAD_FAILED"
	ErrCodeCheckoutCancelled   = "CHECKOUT_CANCELLED"
	ErrCodeCheckoutFailed      = "CHECKOUT_FAILED"
	ErrCodePaymentRejected     = "PAYMENT_REJECTED"
	ErrCodeNetworkError        = "NETWORK_ERROR"
	ErrCodeProductNotFound     = "PRODUCT_NOT_FOUND"
	ErrCodeProductAlreadyOwned = "PRODUCT_ALREADY_OWNED"
	ErrCodePurchaseInFlight    = "PURCHASE_IN_FLIGHT"
	ErrCodeNoProductSelected   = "NO_PRODUCT_SELECTED"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
)

// NewConfigMissingError はCulqi公開鍵未設定エラーを生成する。
// 再デプロイなしには回復できない致命的な設定エラー。
func NewConfigMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeConfigMissing,
		Message:  "Culqiの公開鍵が設定されていません。",
		Category: "config",
		Action:   "環境変数 CULQI_PUBLIC_KEY を設定して再デプロイしてください。",
	}
}

// NewAuthFailedError は認証失敗エラーを生成する。
// messageが空の場合は既定のメッセージを使用する。
func NewAuthFailedError(message string) *APIError {
	if message == "" {
		message = "メールアドレスまたはパスワードが正しくありません。"
	}
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  message,
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewEmailTakenError は登録済みメールアドレスエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewPasswordTooShortError はパスワードポリシー違反エラーを生成する。
func NewPasswordTooShortError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("パスワードは%d文字以上で入力してください。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを入力してください。",
	}
}

// NewWidgetLoadError はチェックアウトウィジェットのロード失敗エラーを生成する。
func NewWidgetLoadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeWidgetLoadFailed,
		Message:  fmt.Sprintf("決済ウィジェットの読み込みに失敗しました: %s", reason),
		Category: "checkout",
		Action:   "通信環境を確認して再度お試しください。",
	}
}

// NewCheckoutCancelledError はユーザーによるチェックアウトキャンセルを生成する。
// エラー分類上はAPIErrorだが、オーケストレータはエラーとして扱わず
// cancelled表示状態に変換する。
func NewCheckoutCancelledError() *APIError {
	return &APIError{
		Code:     ErrCodeCheckoutCancelled,
		Message:  "決済がキャンセルされました。",
		Category: "checkout",
		Action:   "",
	}
}

// NewCheckoutFailedError はウィジェットが報告した決済処理エラーを生成する。
// userMessageにはウィジェット自身が表示用に返したメッセージを渡す。
func NewCheckoutFailedError(userMessage string) *APIError {
	if userMessage == "" {
		userMessage = "決済処理でエラーが発生しました。"
	}
	return &APIError{
		Code:     ErrCodeCheckoutFailed,
		Message:  userMessage,
		Category: "checkout",
		Action:   "カード情報を確認して再度お試しください。",
	}
}

// NewPaymentRejectedError は決済バックエンドによる拒否エラーを生成する。
// messageにはバックエンドが返したメッセージをそのまま渡す（例: "already purchased"）。
func NewPaymentRejectedError(message string) *APIError {
	if message == "" {
		message = "決済が拒否されました。"
	}
	return &APIError{
		Code:     ErrCodePaymentRejected,
		Message:  message,
		Category: "payment",
		Action:   "内容を確認して再度お試しください。",
	}
}

// NewNetworkError は通信失敗エラーを生成する。
// 閉じることのできるバナーとして表示され、ビューをクラッシュさせない。
func NewNetworkError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeNetworkError,
		Message:  fmt.Sprintf("通信に失敗しました: %s", reason),
		Category: "network",
		Action:   "通信環境を確認して再度お試しください。",
	}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError(productID string) *APIError {
	return &APIError{
		Code:     ErrCodeProductNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", productID),
		Category: "validation",
		Action:   "商品一覧を更新して再度お試しください。",
	}
}

// NewProductAlreadyOwnedError は購入済み商品の再購入エラーを生成する。
func NewProductAlreadyOwnedError() *APIError {
	return &APIError{
		Code:     ErrCodeProductAlreadyOwned,
		Message:  "この商品は既に購入済みです。",
		Category: "validation",
		Action:   "購入済み一覧を確認してください。",
	}
}

// NewPurchaseInFlightError は購入フロー進行中の再入エラーを生成する。
// 同時に進行できる購入フローはオーケストレータごとに1つのみ。
func NewPurchaseInFlightError() *APIError {
	return &APIError{
		Code:     ErrCodePurchaseInFlight,
		Message:  "別の購入処理が進行中です。",
		Category: "validation",
		Action:   "現在の購入処理が完了するまでお待ちください。",
	}
}

// NewNoProductSelectedError は商品未選択での購入開始エラーを生成する。
func NewNoProductSelectedError() *APIError {
	return &APIError{
		Code:     ErrCodeNoProductSelected,
		Message:  "商品が選択されていません。",
		Category: "validation",
		Action:   "商品を選択してから購入してください。",
	}
}

// NewInvalidAmountError は不正な決済金額エラーを生成する。
func NewInvalidAmountError(amountCents int64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmount,
		Message:  fmt.Sprintf("決済金額が不正です: %d", amountCents),
		Category: "validation",
		Action:   "商品情報を確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsCancelled はユーザーによるチェックアウトキャンセルかどうかを判定する。
func IsCancelled(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == ErrCodeCheckoutCancelled
}

// ToAPIError は任意のエラーをAPIErrorに変換する。
// 既にAPIErrorの場合はそのまま返し、それ以外はネットワークエラーとして包む。
func ToAPIError(err error) *APIError {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr
	}
	return NewNetworkError(err.Error())
}
