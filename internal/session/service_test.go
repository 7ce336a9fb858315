package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/culqipay/internal/model"
)

type mockAuthClient struct {
	signInFn  func(ctx context.Context, email, password string) (*model.Session, error)
	signUpFn  func(ctx context.Context, email, password string) (*model.Session, error)
	signOutFn func(ctx context.Context, accessToken string) error
}

func (m *mockAuthClient) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	return m.signInFn(ctx, email, password)
}

func (m *mockAuthClient) SignUp(ctx context.Context, email, password string) (*model.Session, error) {
	return m.signUpFn(ctx, email, password)
}

func (m *mockAuthClient) SignOut(ctx context.Context, accessToken string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, accessToken)
	}
	return nil
}

type mockSessionRepo struct {
	saveFn   func(ctx context.Context, key string, session *model.Session) error
	findFn   func(ctx context.Context, key string) (*model.Session, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockSessionRepo) Save(ctx context.Context, key string, session *model.Session) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, key, session)
	}
	return nil
}

func (m *mockSessionRepo) Find(ctx context.Context, key string) (*model.Session, error) {
	if m.findFn != nil {
		return m.findFn(ctx, key)
	}
	return nil, nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testSession() *model.Session {
	return &model.Session{
		User: model.User{
			ID:        "user-1",
			Email:     "demo@culqi.com",
			CreatedAt: time.Now(),
		},
		AccessToken: "tok-1",
		CreatedAt:   time.Now(),
	}
}

// TestStore_Login_Success はログイン成功時にセッションが保持・永続化されることを検証する。
func TestStore_Login_Success(t *testing.T) {
	var savedKey string
	auth := &mockAuthClient{
		signInFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return testSession(), nil
		},
	}
	repo := &mockSessionRepo{
		saveFn: func(ctx context.Context, key string, session *model.Session) error {
			savedKey = key
			return nil
		},
	}

	store := NewStore(auth, repo, testLogger())

	sess, err := store.Login(context.Background(), "demo@culqi.com", "demo123")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if sess.User.ID != "user-1" {
		t.Errorf("User.ID = %q", sess.User.ID)
	}
	if current := store.Current(); current == nil || current.AccessToken != "tok-1" {
		t.Errorf("Current() = %+v, want restored session", current)
	}
	if savedKey != "current" {
		t.Errorf("persisted key = %q, want %q", savedKey, "current")
	}
}

// TestStore_Login_Failure は認証失敗時にローカル状態が変化しないことを検証する。
func TestStore_Login_Failure(t *testing.T) {
	auth := &mockAuthClient{
		signInFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return nil, model.NewAuthFailedError("")
		},
	}

	store := NewStore(auth, &mockSessionRepo{}, testLogger())

	_, err := store.Login(context.Background(), "demo@culqi.com", "wrong")
	if err == nil {
		t.Fatal("expected error")
	}
	if store.Current() != nil {
		t.Error("Current() should remain nil after failed login")
	}
}

// TestStore_Login_PersistFailure は永続化失敗でもインメモリのセッションが有効なことを検証する。
func TestStore_Login_PersistFailure(t *testing.T) {
	auth := &mockAuthClient{
		signInFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return testSession(), nil
		},
	}
	repo := &mockSessionRepo{
		saveFn: func(ctx context.Context, key string, session *model.Session) error {
			return errors.New("disk full")
		},
	}

	store := NewStore(auth, repo, testLogger())

	if _, err := store.Login(context.Background(), "demo@culqi.com", "demo123"); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if store.Current() == nil {
		t.Error("Current() should hold session despite persist failure")
	}
}

// TestStore_Register_PasswordTooShort はパスワードポリシーがバックエンド呼び出し前に
// 適用されることを検証する。
func TestStore_Register_PasswordTooShort(t *testing.T) {
	called := false
	auth := &mockAuthClient{
		signUpFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			called = true
			return testSession(), nil
		},
	}

	store := NewStore(auth, &mockSessionRepo{}, testLogger())

	_, err := store.Register(context.Background(), "demo@culqi.com", "short")
	apiErr, ok := model.AsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodePasswordTooShort {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodePasswordTooShort)
	}
	if called {
		t.Error("SignUp should not be called for invalid password")
	}
}

// TestStore_Register_Success は登録成功時にセッションが保持されることを検証する。
func TestStore_Register_Success(t *testing.T) {
	auth := &mockAuthClient{
		signUpFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return testSession(), nil
		},
	}

	store := NewStore(auth, &mockSessionRepo{}, testLogger())

	if _, err := store.Register(context.Background(), "demo@culqi.com", "demo123"); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if store.Current() == nil {
		t.Error("Current() should hold session after register")
	}
}

// TestStore_RegisterLogoutLogin_RoundTrip は登録→ログアウト→再ログインを通して
// 同一のアイデンティティが得られることを検証する。
func TestStore_RegisterLogoutLogin_RoundTrip(t *testing.T) {
	registered := map[string]model.User{}
	auth := &mockAuthClient{
		signUpFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			user := model.User{ID: "user-9", Email: email, CreatedAt: time.Now()}
			registered[email] = user
			return &model.Session{User: user, AccessToken: "tok-first", CreatedAt: time.Now()}, nil
		},
		signInFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			user, ok := registered[email]
			if !ok {
				return nil, model.NewAuthFailedError("")
			}
			return &model.Session{User: user, AccessToken: "tok-second", CreatedAt: time.Now()}, nil
		},
	}

	store := NewStore(auth, &mockSessionRepo{}, testLogger())

	reg, err := store.Register(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	store.Logout(context.Background())
	if store.Current() != nil {
		t.Fatal("Current() should be nil between logout and login")
	}

	in, err := store.Login(context.Background(), "a@b.com", "secret1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if in.User.ID != reg.User.ID {
		t.Errorf("User.ID = %q, want %q from registration", in.User.ID, reg.User.ID)
	}
	if current := store.Current(); current == nil || current.AccessToken != "tok-second" {
		t.Errorf("Current() = %+v, want re-issued session", current)
	}
}

// TestStore_Logout はリモート失効の失敗に関わらずローカル状態がクリアされることを検証する。
func TestStore_Logout(t *testing.T) {
	var signedOutToken string
	auth := &mockAuthClient{
		signInFn: func(ctx context.Context, email, password string) (*model.Session, error) {
			return testSession(), nil
		},
		signOutFn: func(ctx context.Context, accessToken string) error {
			signedOutToken = accessToken
			return errors.New("backend down")
		},
	}
	deleted := false
	repo := &mockSessionRepo{
		deleteFn: func(ctx context.Context, key string) error {
			deleted = true
			return nil
		},
	}

	store := NewStore(auth, repo, testLogger())
	store.Login(context.Background(), "demo@culqi.com", "demo123")

	store.Logout(context.Background())

	if store.Current() != nil {
		t.Error("Current() should be nil after logout")
	}
	if signedOutToken != "tok-1" {
		t.Errorf("signed out token = %q, want tok-1", signedOutToken)
	}
	if !deleted {
		t.Error("persisted session should be deleted")
	}
}

// TestStore_Logout_NoSession はセッション無しでのログアウトが冪等なことを検証する。
func TestStore_Logout_NoSession(t *testing.T) {
	called := false
	auth := &mockAuthClient{
		signOutFn: func(ctx context.Context, accessToken string) error {
			called = true
			return nil
		},
	}

	store := NewStore(auth, &mockSessionRepo{}, testLogger())
	store.Logout(context.Background())

	if called {
		t.Error("SignOut should not be called without a session")
	}
	if store.Current() != nil {
		t.Error("Current() should remain nil")
	}
}

// TestStore_Restore は耐久ストレージからの復元を検証する。
func TestStore_Restore(t *testing.T) {
	repo := &mockSessionRepo{
		findFn: func(ctx context.Context, key string) (*model.Session, error) {
			if key != "current" {
				t.Errorf("key = %q, want current", key)
			}
			return testSession(), nil
		},
	}

	store := NewStore(&mockAuthClient{}, repo, testLogger())
	store.Restore(context.Background())

	if current := store.Current(); current == nil || current.User.ID != "user-1" {
		t.Errorf("Current() = %+v, want restored session", current)
	}
}

// TestStore_Restore_Empty はレコード無しの復元が未認証のままなことを検証する。
func TestStore_Restore_Empty(t *testing.T) {
	store := NewStore(&mockAuthClient{}, &mockSessionRepo{}, testLogger())
	store.Restore(context.Background())

	if store.Current() != nil {
		t.Error("Current() should be nil without persisted session")
	}
}

// TestStore_Restore_StorageError はストレージ障害が起動を阻害しないことを検証する。
func TestStore_Restore_StorageError(t *testing.T) {
	repo := &mockSessionRepo{
		findFn: func(ctx context.Context, key string) (*model.Session, error) {
			return nil, errors.New("database is locked")
		},
	}

	store := NewStore(&mockAuthClient{}, repo, testLogger())
	store.Restore(context.Background())

	if store.Current() != nil {
		t.Error("Current() should be nil after failed restore")
	}
}
