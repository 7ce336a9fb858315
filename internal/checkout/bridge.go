// Package checkout は外部決済ウィジェットとの橋渡しを行う。
package checkout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/culqipay/internal/model"
	"github.com/hitoshi/culqipay/internal/security"
)

// maxScriptSize はウィジェットスクリプトの最大サイズ（2MB）。
const maxScriptSize = 2 * 1024 * 1024

// expiredMessage は結末を受け取れないまま打ち切られた起動に返すメッセージ。
const expiredMessage = "決済の完了を確認できませんでした。"

// Config はブリッジの設定。
type Config struct {
	// PublicKey はCulqiの公開鍵。空の場合、Openは設定エラーを返す。
	PublicKey string
	// ScriptURL はウィジェットスクリプトの配信元URL。
	ScriptURL string
	// LoadTimeout はスクリプト取得のタイムアウト。
	LoadTimeout time.Duration
	// Title はウィジェットに表示する店舗名。
	Title string
	// Currency は決済通貨コード。
	Currency string
	// PendingTTL は未解決の起動を破棄するまでの猶予。0の場合は破棄しない。
	PendingTTL time.Duration
}

// Settings はウィジェット起動時にプレゼンテーション層へ渡す表示設定。
type Settings struct {
	PublicKey      string         `json:"public_key"`
	Title          string         `json:"title"`
	Currency       string         `json:"currency"`
	AmountCents    int64          `json:"amount_cents"`
	Description    string         `json:"description"`
	PayerEmail     string         `json:"payer_email"`
	PaymentMethods PaymentMethods `json:"payment_methods"`
}

// PaymentMethods はウィジェットで有効にする決済手段。カード決済のみ有効。
type PaymentMethods struct {
	Card         bool `json:"tarjeta"`
	Yape         bool `json:"yape"`
	BankTransfer bool `json:"bancaMovil"`
}

// CallbackResult はウィジェットから報告された起動の結末。
// Token、Cancelled、ErrorMessageのいずれか1つだけが意味を持つ。
type CallbackResult struct {
	Token        *model.CulqiToken
	Cancelled    bool
	ErrorMessage string
}

// Invocation はウィジェットの1回の起動を表す。
// 結果はResolve経由で1回だけ配送され、Awaitがそれを受け取る。
type Invocation struct {
	id        string
	settings  Settings
	createdAt time.Time
	resultCh  chan CallbackResult
}

// ID は起動の識別子を返す。コールバックの突き合わせに使用する。
func (inv *Invocation) ID() string {
	return inv.id
}

// Settings はウィジェットの表示設定を返す。
func (inv *Invocation) Settings() Settings {
	return inv.settings
}

// Await は起動の結末を待つ。
// キャンセルはCHECKOUT_CANCELLED、ウィジェット報告のエラーはCHECKOUT_FAILED、
// コンテキストの期限切れもCHECKOUT_FAILEDとして返す。
func (inv *Invocation) Await(ctx context.Context) (*model.CulqiToken, error) {
	select {
	case result := <-inv.resultCh:
		if result.Cancelled {
			return nil, model.NewCheckoutCancelledError()
		}
		if result.Token == nil {
			return nil, model.NewCheckoutFailedError(result.ErrorMessage)
		}
		return result.Token, nil
	case <-ctx.Done():
		return nil, model.NewCheckoutFailedError(expiredMessage)
	}
}

// Bridge はウィジェットスクリプトの取得と、起動ごとの結果配送を担う。
// ウィジェット自体は外部資産であり、Bridgeはその結末を購入フローへ届けるだけで
// 決済の成否には関与しない。
type Bridge struct {
	cfg    Config
	guard  security.SSRFGuardService
	logger *slog.Logger

	// loadMu はスクリプト取得を直列化する。取得は成功後キャッシュされ1回きり。
	loadMu sync.Mutex
	script []byte

	pendingMu sync.Mutex
	pending   map[string]*Invocation

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewBridge はBridgeの新しいインスタンスを生成する。
// PendingTTLが設定されている場合、未解決の起動を破棄するバックグラウンド処理を開始する。
func NewBridge(cfg Config, guard security.SSRFGuardService, logger *slog.Logger) *Bridge {
	b := &Bridge{
		cfg:     cfg,
		guard:   guard,
		logger:  logger,
		pending: make(map[string]*Invocation),
		stopCh:  make(chan struct{}),
	}

	if cfg.PendingTTL > 0 {
		go b.discardLoop()
	}

	return b
}

// Open はウィジェットの起動を登録する。
// 金額の検証と公開鍵の検証を行い、必要であればスクリプトを取得する。
// 返されたInvocationのAwaitで結末を待ち、結果はResolveで配送される。
func (b *Bridge) Open(ctx context.Context, amountCents int64, description, payerEmail string) (*Invocation, error) {
	if amountCents <= 0 {
		return nil, model.NewInvalidAmountError(amountCents)
	}
	if b.cfg.PublicKey == "" {
		return nil, model.NewConfigMissingError()
	}

	if err := b.ensureLoaded(ctx); err != nil {
		return nil, model.NewWidgetLoadError(err.Error())
	}

	inv := &Invocation{
		id: uuid.NewString(),
		settings: Settings{
			PublicKey:   b.cfg.PublicKey,
			Title:       b.cfg.Title,
			Currency:    b.cfg.Currency,
			AmountCents: amountCents,
			Description: description,
			PayerEmail:  payerEmail,
			PaymentMethods: PaymentMethods{
				Card: true,
			},
		},
		createdAt: time.Now(),
		resultCh:  make(chan CallbackResult, 1),
	}

	b.pendingMu.Lock()
	b.pending[inv.id] = inv
	b.pendingMu.Unlock()

	b.logger.Info("checkout invocation opened",
		slog.String("invocation_id", inv.id),
		slog.Int64("amount_cents", amountCents),
	)
	return inv, nil
}

// Resolve はウィジェットが報告した結末を対応する起動へ配送する。
// 既に解決済み・破棄済みの起動IDにはfalseを返し、結果は記録のうえ破棄される。
func (b *Bridge) Resolve(id string, result CallbackResult) bool {
	b.pendingMu.Lock()
	inv, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.pendingMu.Unlock()

	if !ok {
		b.logger.Warn("callback for unknown or stale invocation dropped",
			slog.String("invocation_id", id),
		)
		return false
	}

	inv.resultCh <- result
	return true
}

// Script は取得済みのウィジェットスクリプトを返す。未取得の場合はnil。
func (b *Bridge) Script() []byte {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()
	return b.script
}

// Stop はバックグラウンド処理を停止する。
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

// ensureLoaded はウィジェットスクリプトを取得してキャッシュする。
// URL検証とSSRF防止付きクライアントでの取得を行う。
func (b *Bridge) ensureLoaded(ctx context.Context) error {
	b.loadMu.Lock()
	defer b.loadMu.Unlock()

	if b.script != nil {
		return nil
	}

	if err := b.guard.ValidateURL(b.cfg.ScriptURL); err != nil {
		return fmt.Errorf("script URL rejected: %w", err)
	}

	client := b.guard.NewSafeClient(b.cfg.LoadTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.ScriptURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		b.logger.Error("widget script fetch failed",
			slog.String("url", b.cfg.ScriptURL),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("script source returned status %s", resp.Status)
	}

	script, err := io.ReadAll(io.LimitReader(resp.Body, maxScriptSize))
	if err != nil {
		return err
	}

	b.script = script
	b.logger.Info("widget script loaded",
		slog.String("url", b.cfg.ScriptURL),
		slog.Int("size_bytes", len(script)),
	)
	return nil
}

// discardLoop はTTLを超えた未解決の起動を定期的に破棄する。
func (b *Bridge) discardLoop() {
	ticker := time.NewTicker(b.cfg.PendingTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.discardStale()
		case <-b.stopCh:
			return
		}
	}
}

// discardStale はTTLを超えた起動をマップから取り除く。
// Awaitが進行中の起動を取り残さないよう、破棄も結末として配送する。
// チャネルは容量1で、マップに残っている起動は未配送が保証されているためブロックしない。
func (b *Bridge) discardStale() {
	cutoff := time.Now().Add(-b.cfg.PendingTTL)

	b.pendingMu.Lock()
	defer b.pendingMu.Unlock()

	for id, inv := range b.pending {
		if inv.createdAt.Before(cutoff) {
			delete(b.pending, id)
			inv.resultCh <- CallbackResult{ErrorMessage: expiredMessage}
			b.logger.Warn("stale checkout invocation discarded",
				slog.String("invocation_id", id),
			)
		}
	}
}
