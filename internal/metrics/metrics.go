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
// フィードクライアントとアラートサービスから利用する。
type MetricsCollector interface {
	RecordFetchSuccess(endpointType string)
	RecordFetchFailure(endpointType string, reason string)
	RecordUpstreamStatus(statusCode int)
	RecordFetchLatency(endpointType string, duration time.Duration)
	RecordEntitiesRejected(reason string, count int)
	RecordAlertsDeduplicated(count int)
	SetAlertsServed(count int)
}

// フェッチ失敗理由のラベル値。
const (
	ReasonNetwork    = "network"
	ReasonTimeout    = "timeout"
	ReasonHTTPStatus = "http_status"
	ReasonDecode     = "decode"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess     *prometheus.CounterVec
	fetchFail        *prometheus.CounterVec
	upstreamStatus   *prometheus.CounterVec
	fetchLatency     *prometheus.HistogramVec
	entitiesRejected *prometheus.CounterVec
	alertsDeduped    prometheus.Counter
	alertsServed     prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtaalerts_fetch_success_total",
			Help: "エンドポイント種別ごとのフィード取得成功数",
		}, []string{"endpoint_type"}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtaalerts_fetch_fail_total",
			Help: "エンドポイント種別・理由ごとのフィード取得失敗数",
		}, []string{"endpoint_type", "reason"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtaalerts_upstream_http_status_total",
			Help: "上流レスポンスのHTTPステータスコード別件数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mtaalerts_fetch_latency_seconds",
			Help:    "エンドポイント種別ごとのフィード取得レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint_type"}),
		entitiesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mtaalerts_entities_rejected_total",
			Help: "正規化で除外された上流エンティティ数",
		}, []string{"reason"}),
		alertsDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mtaalerts_alerts_deduplicated_total",
			Help: "重複として除去されたアラート数",
		}),
		alertsServed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mtaalerts_alerts_served",
			Help: "直近のレスポンスに含まれたアラート数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.upstreamStatus,
		c.fetchLatency,
		c.entitiesRejected,
		c.alertsDeduped,
		c.alertsServed,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess(endpointType string) {
	c.fetchSuccess.WithLabelValues(endpointType).Inc()
}

// RecordFetchFailure はフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure(endpointType string, reason string) {
	c.fetchFail.WithLabelValues(endpointType, reason).Inc()
}

// RecordUpstreamStatus は上流のHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(endpointType string, duration time.Duration) {
	c.fetchLatency.WithLabelValues(endpointType).Observe(duration.Seconds())
}

// RecordEntitiesRejected は除外されたエンティティ数を理由別に記録する。
func (c *Collector) RecordEntitiesRejected(reason string, count int) {
	if count <= 0 {
		return
	}
	c.entitiesRejected.WithLabelValues(reason).Add(float64(count))
}

// RecordAlertsDeduplicated は重複除去されたアラート数を記録する。
func (c *Collector) RecordAlertsDeduplicated(count int) {
	if count <= 0 {
		return
	}
	c.alertsDeduped.Add(float64(count))
}

// SetAlertsServed は直近に返したアラート数を設定する。
func (c *Collector) SetAlertsServed(count int) {
	c.alertsServed.Set(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやCLIの単発実行で使う。
type Nop struct{}

func (Nop) RecordFetchSuccess(string) {}
func (Nop) RecordFetchFailure(string, string) {}
func (Nop) RecordUpstreamStatus(int) {}
func (Nop) RecordFetchLatency(string, time.Duration) {}
func (Nop) RecordEntitiesRejected(string, int) {}
func (Nop) RecordAlertsDeduplicated(int) {}
func (Nop) SetAlertsServed(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
