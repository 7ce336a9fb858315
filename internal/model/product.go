package model

import "fmt"

// Product は購入可能な商品を表す。
// Ownedは現在のユーザーが購入済みかどうかを示す派生フラグであり、
// カタログ取得のたびにセッションのスコープで再計算される。
type Product struct {
	ID          string
	Name        string
	PriceCents  int64 // 金額はセンティモ（最小通貨単位）の整数で正規化する
	Description string
	Active      bool
	ImageURL    string
	Owned       bool
}

// CurrencyCode は決済に使用する通貨コード（ペルーソル）。
const CurrencyCode = "PEN"

// FormatPrice はセンティモ金額を表示用文字列（例: "S/ 99.99"）に変換する。
// 浮動小数点の往復変換による丸め誤差を避けるため、
// 表示境界でのみこの関数を使用すること。
func FormatPrice(cents int64) string {
	return fmt.Sprintf("S/ %d.%02d", cents/100, cents%100)
}
