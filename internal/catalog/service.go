// Package catalog はカタログバックエンドのスナップショットを保持する。
package catalog

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/culqipay/internal/model"
	"github.com/hitoshi/culqipay/internal/security"
)

// Client はカタログバックエンドへの操作のインターフェース。
type Client interface {
	ListProducts(ctx context.Context, accessToken string) ([]model.Product, error)
	ListPurchased(ctx context.Context, accessToken string) ([]model.PurchasedProduct, error)
}

// SessionReader は現在のセッションの読み取りインターフェース。
type SessionReader interface {
	Current() *model.Session
}

// Service は商品一覧と購入済み一覧のスナップショットを保持する。
// 真正なデータはカタログバックエンドにあり、Serviceはその読み取りキャッシュにすぎない。
// スナップショットの差し替えはアトミックで、更新途中の中間状態が読み取られることはない。
type Service struct {
	client   Client
	sessions SessionReader
	sanitize security.ContentSanitizerService
	logger   *slog.Logger

	// refreshMu はフェッチと適用を1つの更新として直列化する。
	// 並行するRefreshが古い結果で新しい結果を上書きするのを防ぐ。
	refreshMu sync.Mutex

	snapMu    sync.RWMutex
	products  []model.Product
	purchased []model.PurchasedProduct
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client Client, sessions SessionReader, sanitize security.ContentSanitizerService, logger *slog.Logger) *Service {
	return &Service{
		client:   client,
		sessions: sessions,
		sanitize: sanitize,
		logger:   logger,
	}
}

// Refresh はカタログバックエンドから商品一覧と購入済み一覧を取得して差し替える。
// 無効化された商品は除外し、商品説明はサニタイズしてから保持する。
// 取得に失敗した場合は既存のスナップショットを変更しない。
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	sess := s.sessions.Current()
	if sess == nil {
		return model.NewUnauthorizedError()
	}

	fetched, err := s.client.ListProducts(ctx, sess.AccessToken)
	if err != nil {
		s.logger.Warn("product list refresh failed", slog.String("error", err.Error()))
		return err
	}

	purchased, err := s.client.ListPurchased(ctx, sess.AccessToken)
	if err != nil {
		s.logger.Warn("purchased list refresh failed", slog.String("error", err.Error()))
		return err
	}

	products := make([]model.Product, 0, len(fetched))
	for _, p := range fetched {
		if !p.Active {
			continue
		}
		p.Description = s.sanitize.Sanitize(p.Description)
		products = append(products, p)
	}
	for i := range purchased {
		purchased[i].Description = s.sanitize.Sanitize(purchased[i].Description)
	}

	s.snapMu.Lock()
	s.products = products
	s.purchased = purchased
	s.snapMu.Unlock()

	s.logger.Info("catalog refreshed",
		slog.Int("product_count", len(products)),
		slog.Int("purchased_count", len(purchased)),
	)
	return nil
}

// Products は現在のスナップショットの商品一覧を返す。
func (s *Service) Products() []model.Product {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	products := make([]model.Product, len(s.products))
	copy(products, s.products)
	return products
}

// Purchased は現在のスナップショットの購入済み一覧を返す。
func (s *Service) Purchased() []model.PurchasedProduct {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	purchased := make([]model.PurchasedProduct, len(s.purchased))
	copy(purchased, s.purchased)
	return purchased
}

// Product は指定IDの商品を返す。スナップショットに無い場合はnil。
func (s *Service) Product(id string) *model.Product {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	for i := range s.products {
		if s.products[i].ID == id {
			p := s.products[i]
			return &p
		}
	}
	return nil
}

// IsOwned は指定IDの商品が購入済みかどうかを返す。
// 商品一覧のownedフラグと購入済み一覧の両方を参照する。
func (s *Service) IsOwned(id string) bool {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()

	for i := range s.products {
		if s.products[i].ID == id {
			return s.products[i].Owned
		}
	}
	for i := range s.purchased {
		if s.purchased[i].ID == id {
			return true
		}
	}
	return false
}
