// Package purchase は購入フローの状態機械を実装する。
package purchase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/culqipay/internal/checkout"
	"github.com/hitoshi/culqipay/internal/model"
)

// Bridge はチェックアウトウィジェットの起動インターフェース。
type Bridge interface {
	Open(ctx context.Context, amountCents int64, description, payerEmail string) (CheckoutInvocation, error)
}

// CheckoutInvocation はウィジェットの1回の起動。
type CheckoutInvocation interface {
	ID() string
	Settings() checkout.Settings
	Await(ctx context.Context) (*model.CulqiToken, error)
}

// Catalog はカタログスナップショットへの操作のインターフェース。
type Catalog interface {
	Refresh(ctx context.Context) error
	Product(id string) *model.Product
	IsOwned(id string) bool
}

// PaymentSubmitter は決済バックエンドへのトークン送信インターフェース。
type PaymentSubmitter interface {
	CreatePayment(ctx context.Context, accessToken, productID, tokenID string) (*model.Payment, error)
}

// SessionReader は現在のセッションの読み取りインターフェース。
type SessionReader interface {
	Current() *model.Session
}

// Recorder は購入フローの計測値の記録インターフェース。
type Recorder interface {
	RecordPurchaseSuccess()
	RecordPurchaseFailed(category string)
	RecordPurchaseCancelled()
	ObserveCheckoutLatency(d time.Duration)
	ObservePaymentLatency(d time.Duration)
}

// Config はオーケストレータの設定。
type Config struct {
	// CheckoutTimeout はウィジェットの結末を待つ上限。0の場合は無制限。
	CheckoutTimeout time.Duration
	// DisplayWindow は終端状態の表示時間。経過後に自動で選択状態へ戻る。
	// 0の場合は自動で戻らない。
	DisplayWindow time.Duration
}

// Snapshot は購入フローの観測可能な状態。
type Snapshot struct {
	State             model.PurchaseState
	SelectedProductID string
	Message           string
	InvocationID      string
	Settings          *checkout.Settings
	Payment           *model.Payment
}

// Orchestrator は購入フローの状態機械。
// 同時に進行できるフローは1つのみで、すべての状態遷移はmuの下で行われる。
// flowSeqはフローの世代番号であり、待機から復帰した処理は世代が一致する場合のみ
// 状態を変更できる。ResetやSelectで世代が進むと、古いフローの結末は破棄される。
type Orchestrator struct {
	bridge   Bridge
	catalog  Catalog
	payments PaymentSubmitter
	sessions SessionReader
	metrics  Recorder
	logger   *slog.Logger
	cfg      Config

	mu           sync.Mutex
	state        model.PurchaseState
	selected     *model.Product
	message      string
	invocationID string
	settings     *checkout.Settings
	payment      *model.Payment
	flowSeq      uint64
	revertTimer  *time.Timer
}

// NewOrchestrator はOrchestratorの新しいインスタンスを生成する。
func NewOrchestrator(bridge Bridge, catalog Catalog, payments PaymentSubmitter, sessions SessionReader, metrics Recorder, logger *slog.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		bridge:   bridge,
		catalog:  catalog,
		payments: payments,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
		state:    model.StateIdle,
	}
}

// Select は購入対象の商品を選択する。
// フロー進行中は選択を変更できない。未知の商品と購入済み商品は拒否する。
// 終端状態からの再選択は許可され、表示中の結末は破棄される。
func (o *Orchestrator) Select(productID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.InFlight() {
		return model.NewPurchaseInFlightError()
	}

	product := o.catalog.Product(productID)
	if product == nil {
		return model.NewProductNotFoundError(productID)
	}
	if o.catalog.IsOwned(productID) {
		return model.NewProductAlreadyOwnedError()
	}

	o.flowSeq++
	o.stopRevertTimerLocked()
	o.state = model.StateSelecting
	o.selected = product
	o.message = ""
	o.invocationID = ""
	o.settings = nil
	o.payment = nil

	o.logger.Info("product selected", slog.String("product_id", productID))
	return nil
}

// Purchase は選択済み商品の購入フローを実行する。
// ウィジェットの結末が届くまでブロックする。
// 前提条件違反（進行中・未選択・未認証・設定不備）はエラーとして返し、
// フロー自体の結末（成功・キャンセル・失敗）はスナップショットの状態として返す。
func (o *Orchestrator) Purchase(ctx context.Context) (*Snapshot, error) {
	o.mu.Lock()
	if o.state.InFlight() {
		o.mu.Unlock()
		return nil, model.NewPurchaseInFlightError()
	}
	if o.selected == nil {
		o.mu.Unlock()
		return nil, model.NewNoProductSelectedError()
	}
	sess := o.sessions.Current()
	if sess == nil {
		o.mu.Unlock()
		return nil, model.NewUnauthorizedError()
	}

	o.flowSeq++
	seq := o.flowSeq
	product := *o.selected
	o.stopRevertTimerLocked()
	o.state = model.StateAwaitingToken
	o.message = ""
	o.payment = nil
	o.mu.Unlock()

	inv, err := o.bridge.Open(ctx, product.PriceCents, product.Name, sess.User.Email)
	if err != nil {
		o.mu.Lock()
		if seq == o.flowSeq {
			o.state = model.StateSelecting
		}
		o.mu.Unlock()
		return nil, err
	}

	o.mu.Lock()
	if seq != o.flowSeq {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}
	o.invocationID = inv.ID()
	settings := inv.Settings()
	o.settings = &settings
	o.mu.Unlock()

	awaitCtx := ctx
	if o.cfg.CheckoutTimeout > 0 {
		var cancel context.CancelFunc
		awaitCtx, cancel = context.WithTimeout(ctx, o.cfg.CheckoutTimeout)
		defer cancel()
	}

	checkoutStart := time.Now()
	token, err := inv.Await(awaitCtx)
	o.metrics.ObserveCheckoutLatency(time.Since(checkoutStart))

	o.mu.Lock()
	if seq != o.flowSeq {
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}
	o.invocationID = ""
	o.settings = nil

	if err != nil {
		if model.IsCancelled(err) {
			o.state = model.StateCancelled
			o.message = model.NewCheckoutCancelledError().Message
			o.metrics.RecordPurchaseCancelled()
			o.logger.Info("checkout cancelled", slog.String("product_id", product.ID))
		} else {
			apiErr := model.ToAPIError(err)
			o.state = model.StateFailed
			o.message = apiErr.Message
			o.metrics.RecordPurchaseFailed(apiErr.Category)
			o.logger.Warn("checkout failed",
				slog.String("product_id", product.ID),
				slog.String("code", apiErr.Code),
			)
		}
		o.scheduleRevertLocked(seq)
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}

	o.state = model.StateSubmitting
	o.mu.Unlock()

	paymentStart := time.Now()
	payment, err := o.payments.CreatePayment(ctx, sess.AccessToken, product.ID, token.ID)
	o.metrics.ObservePaymentLatency(time.Since(paymentStart))

	if err != nil {
		apiErr := model.ToAPIError(err)
		o.mu.Lock()
		if seq == o.flowSeq {
			o.state = model.StateFailed
			o.message = apiErr.Message
			o.metrics.RecordPurchaseFailed(apiErr.Category)
			o.scheduleRevertLocked(seq)
			o.logger.Warn("payment failed",
				slog.String("product_id", product.ID),
				slog.String("code", apiErr.Code),
			)
		}
		snap := o.snapshotLocked()
		o.mu.Unlock()
		return snap, nil
	}

	// 成功の確定前にカタログを更新し、succeeded表示の時点で
	// 購入済みフラグが反映済みであることを保証する。更新失敗は結末を変えない。
	if refreshErr := o.catalog.Refresh(ctx); refreshErr != nil {
		o.logger.Warn("post-purchase catalog refresh failed",
			slog.String("error", refreshErr.Error()),
		)
	}

	o.mu.Lock()
	if seq == o.flowSeq {
		o.state = model.StateSucceeded
		o.selected = nil
		o.message = ""
		o.payment = payment
		o.metrics.RecordPurchaseSuccess()
		o.scheduleRevertLocked(seq)
		o.logger.Info("purchase succeeded",
			slog.String("product_id", product.ID),
			slog.String("payment_id", payment.ID),
		)
	}
	snap := o.snapshotLocked()
	o.mu.Unlock()
	return snap, nil
}

// Reset はフローを初期状態に戻す。
// 進行中のフローは世代が進むことで無効化され、その結末は破棄される。
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flowSeq++
	o.stopRevertTimerLocked()
	o.state = model.StateIdle
	o.selected = nil
	o.message = ""
	o.invocationID = ""
	o.settings = nil
	o.payment = nil
}

// State は現在の状態のスナップショットを返す。
func (o *Orchestrator) State() *Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// snapshotLocked はmuを保持した状態でスナップショットを生成する。
func (o *Orchestrator) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		State:        o.state,
		Message:      o.message,
		InvocationID: o.invocationID,
		Payment:      o.payment,
	}
	if o.selected != nil {
		snap.SelectedProductID = o.selected.ID
	}
	if o.settings != nil {
		settings := *o.settings
		snap.Settings = &settings
	}
	return snap
}

// scheduleRevertLocked は表示時間の経過後に終端状態を解除する処理を予約する。
// 予約時の世代が一致し、かつ終端状態のままの場合のみ遷移する。
func (o *Orchestrator) scheduleRevertLocked(seq uint64) {
	if o.cfg.DisplayWindow <= 0 {
		return
	}

	o.stopRevertTimerLocked()
	o.revertTimer = time.AfterFunc(o.cfg.DisplayWindow, func() {
		o.mu.Lock()
		defer o.mu.Unlock()

		if seq != o.flowSeq || !o.state.Terminal() {
			return
		}
		o.message = ""
		o.payment = nil
		if o.selected != nil {
			o.state = model.StateSelecting
		} else {
			o.state = model.StateIdle
		}
	})
}

// stopRevertTimerLocked は予約済みの解除処理を取り消す。
func (o *Orchestrator) stopRevertTimerLocked() {
	if o.revertTimer != nil {
		o.revertTimer.Stop()
		o.revertTimer = nil
	}
}
