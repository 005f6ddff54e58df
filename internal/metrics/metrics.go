// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method, route string, statusCode int, duration time.Duration)
	RecordInvoiceCreated()
	RecordInvoicePaid()
	RecordNotificationSent(kind string)
	RecordNotificationFailure(kind string)
	RecordTokenRevoked()
	RecordRevocationsPruned(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests      *prometheus.CounterVec
	httpLatency       *prometheus.HistogramVec
	invoicesCreated   prometheus.Counter
	invoicesPaid      prometheus.Counter
	notificationsSent *prometheus.CounterVec
	notificationFail  *prometheus.CounterVec
	tokensRevoked     prometheus.Counter
	revocationsPruned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiceapi_http_requests_total",
			Help: "メソッド・ルート・ステータスコード別のHTTPリクエスト数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "invoiceapi_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		invoicesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceapi_invoices_created_total",
			Help: "作成された請求書の合計数",
		}),
		invoicesPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceapi_invoices_paid_total",
			Help: "支払い済みになった請求書の合計数",
		}),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiceapi_notifications_sent_total",
			Help: "種別ごとの通知メール送信成功数",
		}, []string{"kind"}),
		notificationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "invoiceapi_notification_failures_total",
			Help: "種別ごとの通知メール送信失敗数",
		}, []string{"kind"}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceapi_tokens_revoked_total",
			Help: "ログアウトにより失効したトークンの合計数",
		}),
		revocationsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoiceapi_revocations_pruned_total",
			Help: "期限切れにより失効リストから削除されたトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.invoicesCreated,
		c.invoicesPaid,
		c.notificationsSent,
		c.notificationFail,
		c.tokensRevoked,
		c.revocationsPruned,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの結果と処理時間を記録する。
// routeにはchiのルートパターンを渡し、ラベルのカーディナリティを抑える。
func (c *Collector) RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordInvoiceCreated は請求書作成を記録する。
func (c *Collector) RecordInvoiceCreated() {
	c.invoicesCreated.Inc()
}

// RecordInvoicePaid は支払い済みへの遷移を記録する。
func (c *Collector) RecordInvoicePaid() {
	c.invoicesPaid.Inc()
}

// RecordNotificationSent は通知送信成功を記録する。
func (c *Collector) RecordNotificationSent(kind string) {
	c.notificationsSent.WithLabelValues(kind).Inc()
}

// RecordNotificationFailure は通知送信失敗を記録する。
func (c *Collector) RecordNotificationFailure(kind string) {
	c.notificationFail.WithLabelValues(kind).Inc()
}

// RecordTokenRevoked はトークン失効を記録する。
func (c *Collector) RecordTokenRevoked() {
	c.tokensRevoked.Inc()
}

// RecordRevocationsPruned は失効リストから削除した件数を記録する。
func (c *Collector) RecordRevocationsPruned(count int) {
	c.revocationsPruned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, string, int, time.Duration) {}
func (NopCollector) RecordInvoiceCreated()                                {}
func (NopCollector) RecordInvoicePaid()                                   {}
func (NopCollector) RecordNotificationSent(string)                        {}
func (NopCollector) RecordNotificationFailure(string)                     {}
func (NopCollector) RecordTokenRevoked()                                  {}
func (NopCollector) RecordRevocationsPruned(int)                          {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
