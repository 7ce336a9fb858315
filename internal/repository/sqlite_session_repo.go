package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/culqipay/internal/model"
)

// SQLiteSessionRepo はSQLiteを使用したセッションリポジトリ。
type SQLiteSessionRepo struct {
	db *sql.DB
}

// NewSQLiteSessionRepo はSQLiteSessionRepoを生成する。
func NewSQLiteSessionRepo(db *sql.DB) *SQLiteSessionRepo {
	return &SQLiteSessionRepo{db: db}
}

// Save はセッションを指定キーで保存する。既存レコードは上書きされる。
func (r *SQLiteSessionRepo) Save(ctx context.Context, key string, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (key, user_id, email, access_token, user_created_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   user_id = excluded.user_id,
		   email = excluded.email,
		   access_token = excluded.access_token,
		   user_created_at = excluded.user_created_at,
		   created_at = excluded.created_at`,
		key, session.User.ID, session.User.Email, session.AccessToken,
		session.User.CreatedAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Find は指定キーのセッションを取得する。見つからない場合はnilを返す。
func (r *SQLiteSessionRepo) Find(ctx context.Context, key string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, access_token, user_created_at, created_at
		 FROM sessions
		 WHERE key = ?`,
		key,
	).Scan(&session.User.ID, &session.User.Email, &session.AccessToken,
		&session.User.CreatedAt, &session.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// Delete は指定キーのセッションを削除する。
func (r *SQLiteSessionRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE key = ?`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*SQLiteSessionRepo)(nil)
