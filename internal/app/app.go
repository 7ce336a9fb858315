// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/culqipay/internal/backend"
	"github.com/hitoshi/culqipay/internal/catalog"
	"github.com/hitoshi/culqipay/internal/checkout"
	"github.com/hitoshi/culqipay/internal/config"
	"github.com/hitoshi/culqipay/internal/database"
	"github.com/hitoshi/culqipay/internal/handler"
	"github.com/hitoshi/culqipay/internal/logger"
	"github.com/hitoshi/culqipay/internal/metrics"
	"github.com/hitoshi/culqipay/internal/middleware"
	"github.com/hitoshi/culqipay/internal/model"
	"github.com/hitoshi/culqipay/internal/purchase"
	"github.com/hitoshi/culqipay/internal/repository"
	"github.com/hitoshi/culqipay/internal/security"
	"github.com/hitoshi/culqipay/internal/session"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend_base_url", cfg.BackendBaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// checkoutBridge は*checkout.Bridgeをオーケストレータのインターフェースに適合させる。
type checkoutBridge struct {
	*checkout.Bridge
}

func (b checkoutBridge) Open(ctx context.Context, amountCents int64, description, payerEmail string) (purchase.CheckoutInvocation, error) {
	inv, err := b.Bridge.Open(ctx, amountCents, description, payerEmail)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// runServe はAPIサーバーモードで起動する。
// セッションDBを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. セッションDBの準備（ローカルのSQLiteファイル）
	if err := database.RunMigrations(cfg.SessionDBPath); err != nil {
		return fmt.Errorf("failed to migrate session store: %w", err)
	}

	db, err := database.Open(cfg.SessionDBPath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to session store: %w", err)
	}

	slog.Info("session store ready", slog.String("path", cfg.SessionDBPath))

	sessionRepo := repository.NewSQLiteSessionRepo(db)

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. バックエンドクライアントの初期化
	// 全バックエンド応答のステータスをエンドポイント別に計測する
	backendClient := &http.Client{
		Timeout:   cfg.BackendTimeout,
		Transport: &metrics.InstrumentedTransport{Collector: collector},
	}
	authClient := backend.NewAuthClient(backendClient, slog.Default(), cfg.BackendBaseURL)
	catalogClient := backend.NewCatalogClient(backendClient, slog.Default(), cfg.BackendBaseURL)
	paymentClient := backend.NewPaymentClient(backendClient, slog.Default(), cfg.BackendBaseURL)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 5. ドメインサービスの初期化
	sessionStore := session.NewStore(authClient, sessionRepo, slog.Default())

	// 起動時のセッション復元は有限時間で打ち切る
	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), cfg.RestoreTimeout)
	sessionStore.Restore(restoreCtx)
	cancelRestore()

	catalogService := catalog.NewService(catalogClient, sessionStore, sanitizer, slog.Default())

	bridge := checkout.NewBridge(checkout.Config{
		PublicKey:   cfg.CulqiPublicKey,
		ScriptURL:   cfg.CulqiCheckoutURL,
		LoadTimeout: cfg.WidgetLoadTimeout,
		Title:       cfg.CheckoutTitle,
		Currency:    model.CurrencyCode,
		PendingTTL:  cfg.CheckoutPendingTTL,
	}, ssrfGuard, slog.Default())
	defer bridge.Stop()

	orchestrator := purchase.NewOrchestrator(
		checkoutBridge{bridge}, catalogService, paymentClient, sessionStore,
		collector, slog.Default(),
		purchase.Config{
			CheckoutTimeout: cfg.CheckoutTimeout,
			DisplayWindow:   cfg.DisplayWindow,
		},
	)

	// 6. レート制限の初期化（req/min -> req/sec に変換）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.PurchaseRate = rate.Limit(float64(cfg.RateLimitPurchase) / 60.0)
	rateLimiterCfg.PurchaseBurst = cfg.RateLimitPurchase
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Sessions:          sessionStore,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		AuthService:    sessionStore,
		CatalogService: catalogService,
		Orchestrator:   orchestrator,
		Bridge:         bridge,

		MetricsHandler: collector.Handler(),
	})

	// ミドルウェアスタック: Recovery → SecurityHeaders → Logging → Router
	stack := middleware.NewRecoveryMiddleware()(
		middleware.NewSecurityHeadersMiddleware()(
			middleware.NewLoggingMiddleware(slog.Default())(router)))

	// 8. HTTPサーバーの起動
	// 購入エンドポイントはウィジェットの結末までブロックするため、
	// WriteTimeoutは設定しない。
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     stack,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はセッションDBのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running session store migrations",
		slog.String("path", cfg.SessionDBPath),
	)

	if err := database.RunMigrations(cfg.SessionDBPath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("session store migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
