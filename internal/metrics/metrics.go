// Package metrics は購入フローとバックエンド通信の計測値を公開する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector は購入フローのPrometheusメトリクスを保持する。
type Collector struct {
	registry *prometheus.Registry

	purchaseSuccess   prometheus.Counter
	purchaseFailed    *prometheus.CounterVec
	purchaseCancelled prometheus.Counter
	checkoutLatency   prometheus.Histogram
	paymentLatency    prometheus.Histogram
	backendStatus     *prometheus.CounterVec
}

// NewCollector はCollectorの新しいインスタンスを生成し、メトリクスを登録する。
func NewCollector(registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry: registry,
		purchaseSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "culqipay_purchase_success_total",
			Help: "Total number of completed purchases.",
		}),
		purchaseFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "culqipay_purchase_failed_total",
			Help: "Total number of failed purchases by error category.",
		}, []string{"category"}),
		purchaseCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "culqipay_purchase_cancelled_total",
			Help: "Total number of purchases cancelled at checkout.",
		}),
		checkoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "culqipay_checkout_latency_seconds",
			Help:    "Time from checkout open to widget outcome.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		paymentLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "culqipay_payment_latency_seconds",
			Help:    "Time spent submitting a token to the payment backend.",
			Buckets: prometheus.DefBuckets,
		}),
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "culqipay_backend_status_total",
			Help: "Backend responses by endpoint and HTTP status code.",
		}, []string{"endpoint", "status_code"}),
	}

	registry.MustRegister(
		c.purchaseSuccess,
		c.purchaseFailed,
		c.purchaseCancelled,
		c.checkoutLatency,
		c.paymentLatency,
		c.backendStatus,
	)

	return c
}

// RecordPurchaseSuccess は購入成功を記録する。
func (c *Collector) RecordPurchaseSuccess() {
	c.purchaseSuccess.Inc()
}

// RecordPurchaseFailed は購入失敗をエラーカテゴリ別に記録する。
func (c *Collector) RecordPurchaseFailed(category string) {
	c.purchaseFailed.WithLabelValues(category).Inc()
}

// RecordPurchaseCancelled はチェックアウトのキャンセルを記録する。
func (c *Collector) RecordPurchaseCancelled() {
	c.purchaseCancelled.Inc()
}

// ObserveCheckoutLatency はウィジェット起動から結末までの時間を記録する。
func (c *Collector) ObserveCheckoutLatency(d time.Duration) {
	c.checkoutLatency.Observe(d.Seconds())
}

// ObservePaymentLatency は決済バックエンドへの送信時間を記録する。
func (c *Collector) ObservePaymentLatency(d time.Duration) {
	c.paymentLatency.Observe(d.Seconds())
}

// RecordBackendStatus はバックエンド応答をエンドポイント・ステータス別に記録する。
func (c *Collector) RecordBackendStatus(endpoint string, statusCode int) {
	c.backendStatus.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// Handler はメトリクス公開用のHTTPハンドラを返す。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// InstrumentedTransport はバックエンド応答のステータスを記録するRoundTripper。
type InstrumentedTransport struct {
	Base      http.RoundTripper
	Collector *Collector
}

// RoundTrip はリクエストを転送し、応答ステータスをエンドポイント別に記録する。
func (t *InstrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Collector.RecordBackendStatus(req.URL.Path, 0)
		return nil, err
	}

	t.Collector.RecordBackendStatus(req.URL.Path, resp.StatusCode)
	return resp, nil
}
