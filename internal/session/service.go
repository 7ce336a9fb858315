// Package session はローカルセッションのライフサイクルを管理する。
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/culqipay/internal/model"
	"github.com/hitoshi/culqipay/internal/repository"
)

// sessionKey はローカルストレージ上の固定キー。
// クライアントプロセスごとにセッションは1つのみ保持する。
const sessionKey = "current"

// minPasswordLength は登録時のパスワード最低文字数。
const minPasswordLength = 6

// AuthClient は認証バックエンドへの操作のインターフェース。
type AuthClient interface {
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignUp(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Store はインメモリのセッションと耐久ローカルストレージを同期して保持する。
// 認証バックエンドが資格情報の真正性を持ち、Storeはその結果のキャッシュにすぎない。
type Store struct {
	auth   AuthClient
	repo   repository.SessionRepository
	logger *slog.Logger

	mu      sync.RWMutex
	current *model.Session
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(auth AuthClient, repo repository.SessionRepository, logger *slog.Logger) *Store {
	return &Store{
		auth:   auth,
		repo:   repo,
		logger: logger,
	}
}

// Login は認証バックエンドにサインインし、成功したセッションを保持する。
// 失敗時はローカル状態を変更しない。
func (s *Store) Login(ctx context.Context, email, password string) (*model.Session, error) {
	sess, err := s.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.setCurrent(ctx, sess)
	s.logger.Info("user logged in", slog.String("user_id", sess.User.ID))
	return sess, nil
}

// Register は新規ユーザーを登録し、成功したセッションを保持する。
// パスワードポリシー違反はバックエンドに到達する前に拒否する。
func (s *Store) Register(ctx context.Context, email, password string) (*model.Session, error) {
	if len(password) < minPasswordLength {
		return nil, model.NewPasswordTooShortError(minPasswordLength)
	}

	sess, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	s.setCurrent(ctx, sess)
	s.logger.Info("user registered", slog.String("user_id", sess.User.ID))
	return sess, nil
}

// Logout はセッションを破棄する。
// バックエンドへの失効通知はベストエフォートであり、結果に関わらず
// ローカル状態は必ずクリアされる。セッションが無い状態で呼んでもエラーにならない。
func (s *Store) Logout(ctx context.Context) {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()

	if current != nil {
		if err := s.auth.SignOut(ctx, current.AccessToken); err != nil {
			s.logger.Warn("remote sign-out failed",
				slog.String("user_id", current.User.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.repo.Delete(ctx, sessionKey); err != nil {
		s.logger.Warn("failed to delete persisted session", slog.String("error", err.Error()))
	}

	s.logger.Info("user logged out")
}

// Current は現在のセッションを返す。未認証の場合はnil。
func (s *Store) Current() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Restore は耐久ローカルストレージからセッションを復元する。
// ストレージ障害は警告ログのみで握りつぶし、未認証状態で起動を続行する。
func (s *Store) Restore(ctx context.Context) {
	sess, err := s.repo.Find(ctx, sessionKey)
	if err != nil {
		s.logger.Warn("session restore failed", slog.String("error", err.Error()))
		return
	}
	if sess == nil {
		return
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Info("session restored", slog.String("user_id", sess.User.ID))
}

// setCurrent はセッションを保持し、耐久ストレージへ書き込む。
// 永続化の失敗はログのみに記録し、インメモリのセッションは有効のまま扱う。
func (s *Store) setCurrent(ctx context.Context, sess *model.Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	if err := s.repo.Save(ctx, sessionKey, sess); err != nil {
		s.logger.Warn("failed to persist session",
			slog.String("user_id", sess.User.ID),
			slog.String("error", err.Error()),
		)
	}
}
