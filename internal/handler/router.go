package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/culqipay/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Sessions          middleware.SessionSource
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// サービス
	AuthService    AuthServiceInterface
	CatalogService CatalogServiceInterface
	Orchestrator   OrchestratorInterface
	Bridge         BridgeInterface

	// メトリクス公開用ハンドラ
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）とウィジェットのコールバックはミドルウェアチェーンの外に配置する。
// コールバックは起動IDの照合自体が認可の役割を果たす。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	productHandler := NewProductHandler(deps.CatalogService)
	purchaseHandler := NewPurchaseHandler(deps.Orchestrator)
	checkoutHandler := NewCheckoutHandler(deps.Bridge)

	// --- 認証不要のルート ---

	// セッション管理
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/register", authHandler.Register)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// ウィジェット連携
	r.Route("/checkout", func(r chi.Router) {
		r.Post("/callback", checkoutHandler.Callback)
		r.Get("/script", checkoutHandler.Script)
	})

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// メトリクス
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 商品一覧
		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/purchased", productHandler.ListPurchased)
		})

		// 購入フロー
		r.Route("/api/purchase", func(r chi.Router) {
			// POST /api/purchase - 購入開始（購入専用レート制限を追加）
			r.With(deps.RateLimiter.PurchaseMiddleware()).Post("/", purchaseHandler.Purchase)

			r.Post("/select", purchaseHandler.SelectProduct)
			r.Get("/state", purchaseHandler.State)
			r.Post("/reset", purchaseHandler.Reset)
		})
	})

	return r
}
