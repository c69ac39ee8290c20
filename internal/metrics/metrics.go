// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// 認証サービスや転送オーケストレーターから利用する。
type Recorder interface {
	// RecordAuthExchange はトークン交換の結果（success/failure）を記録する。
	RecordAuthExchange(result string)
	// RecordRevoke はトークン失効の結果（success/failure）を記録する。
	RecordRevoke(result string)
	// RecordSubmission は転送ジョブ提出の結果（success/failure）を記録する。
	RecordSubmission(result string)
	// RecordActivationFailure はエンドポイントアクティベーション失敗を記録する。
	RecordActivationFailure(endpointID string)
	// RecordRemoteCall はリモートAPI呼び出しのレイテンシを操作名つきで記録する。
	RecordRemoteCall(operation string, duration time.Duration)
	// RecordHTTPStatus はHTTPステータスコードを記録する。
	RecordHTTPStatus(statusCode int)
}

// Noop は何も記録しないRecorder。テストおよび未配線時に使用する。
type Noop struct{}

func (Noop) RecordAuthExchange(string)              {}
func (Noop) RecordRevoke(string)                    {}
func (Noop) RecordSubmission(string)                {}
func (Noop) RecordActivationFailure(string)         {}
func (Noop) RecordRemoteCall(string, time.Duration) {}
func (Noop) RecordHTTPStatus(int)                   {}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authExchange   *prometheus.CounterVec
	revoke         *prometheus.CounterVec
	submission     *prometheus.CounterVec
	activationFail *prometheus.CounterVec
	remoteLatency  *prometheus.HistogramVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authExchange: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_auth_exchange_total",
			Help: "トークン交換の結果別合計数",
		}, []string{"result"}),
		revoke: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_token_revoke_total",
			Help: "トークン失効の結果別合計数",
		}, []string{"result"}),
		submission: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_transfer_submission_total",
			Help: "転送ジョブ提出の結果別合計数",
		}, []string{"result"}),
		activationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_endpoint_activation_fail_total",
			Help: "エンドポイント別のアクティベーション失敗数",
		}, []string{"endpoint_id"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_remote_call_latency_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.authExchange,
		c.revoke,
		c.submission,
		c.activationFail,
		c.remoteLatency,
		c.httpStatus,
	)

	return c
}

// RecordAuthExchange はトークン交換の結果を記録する。
func (c *Collector) RecordAuthExchange(result string) {
	c.authExchange.WithLabelValues(result).Inc()
}

// RecordRevoke はトークン失効の結果を記録する。
func (c *Collector) RecordRevoke(result string) {
	c.revoke.WithLabelValues(result).Inc()
}

// RecordSubmission は転送ジョブ提出の結果を記録する。
func (c *Collector) RecordSubmission(result string) {
	c.submission.WithLabelValues(result).Inc()
}

// RecordActivationFailure はアクティベーション失敗を記録する。
func (c *Collector) RecordActivationFailure(endpointID string) {
	c.activationFail.WithLabelValues(endpointID).Inc()
}

// RecordRemoteCall はリモートAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordRemoteCall(operation string, duration time.Duration) {
	c.remoteLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ Recorder = (*Collector)(nil)
var _ Recorder = Noop{}
