package model

// CulqiToken はCulqiチェックアウトウィジェットが返す単回使用の決済トークン。
// 中身は不透明として扱い、決済バックエンドへ1回だけ送信する。
// 再利用はバックエンド側で拒否されるため、クライアントは再送信を試みない。
type CulqiToken struct {
	ID           string
	Email        string
	CardNumber   string // ウィジェットが返すマスク済みカード番号
	CreationDate int64  // エポックミリ秒
}
