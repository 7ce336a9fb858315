// Package model はドメインモデルを定義する。
package model

import "time"

// User は認証済みユーザーを表す。
// 認証成功時に生成され、ログアウトで破棄されるまで不変。
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
// アクセストークンはバックエンド呼び出しのBearer認証に使用する。
// クライアントプロセスごとにアクティブなセッションは常に1つ。
type Session struct {
	User        User
	AccessToken string
	CreatedAt   time.Time
}
