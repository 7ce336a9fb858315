// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/culqipay/internal/model"
)

// SessionRepository はセッションの耐久ローカルストレージのインターフェース。
// セッションは固定キーで保存され、クライアントプロセスごとに1レコードのみ存在する。
type SessionRepository interface {
	// Save はセッションを指定キーで保存する。既存レコードは上書きされる。
	Save(ctx context.Context, key string, session *model.Session) error

	// Find は指定キーのセッションを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, key string) (*model.Session, error)

	// Delete は指定キーのセッションを削除する。レコードが存在しなくてもエラーにならない。
	Delete(ctx context.Context, key string) error
}
