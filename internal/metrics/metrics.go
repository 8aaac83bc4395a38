// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 画像探索の結果ラベル。
const (
	ImageFound   = "found"
	ImageMissing = "missing"
	ImageError   = "error"
	ImageSkipped = "skipped"
)

// 取り込みサイクルの結果ラベル。
const (
	CycleSuccess = "success"
	CycleFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 取り込みパイプライン、検索クライアント、削除ジョブから利用する。
type MetricsCollector interface {
	RecordSearchFailure(category string)
	RecordImageLookup(outcome string)
	RecordExtractionFailure()
	RecordItemSaved()
	RecordSaveFailure()
	RecordCycle(result string, duration time.Duration)
	RecordPurged(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	searchFail     *prometheus.CounterVec
	imageLookups   *prometheus.CounterVec
	extractionFail prometheus.Counter
	itemsSaved     prometheus.Counter
	saveFail       prometheus.Counter
	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	purged         prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "layofflens_search_query_failures_total",
			Help: "失敗した検索クエリの数（カテゴリ別）",
		}, []string{"category"}),
		imageLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "layofflens_image_lookups_total",
			Help: "画像探索の回数（結果別）",
		}, []string{"outcome"}),
		extractionFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "layofflens_extraction_failures_total",
			Help: "AI抽出に失敗したレコードの数",
		}),
		itemsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "layofflens_items_saved_total",
			Help: "保存されたレコードの合計数",
		}),
		saveFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "layofflens_save_failures_total",
			Help: "保存に失敗したレコードの合計数",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "layofflens_ingest_cycles_total",
			Help: "取り込みサイクルの実行回数（結果別）",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "layofflens_ingest_cycle_duration_seconds",
			Help:    "取り込みサイクルの所要時間（秒）",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "layofflens_records_purged_total",
			Help: "保持期間切れで削除されたレコードの合計数",
		}),
	}

	reg.MustRegister(
		c.searchFail,
		c.imageLookups,
		c.extractionFail,
		c.itemsSaved,
		c.saveFail,
		c.cycles,
		c.cycleDuration,
		c.purged,
	)

	return c
}

// RecordSearchFailure は検索クエリの失敗を記録する。categoryは news または video。
func (c *Collector) RecordSearchFailure(category string) {
	c.searchFail.WithLabelValues(category).Inc()
}

// RecordImageLookup は画像探索の結果を記録する。
func (c *Collector) RecordImageLookup(outcome string) {
	c.imageLookups.WithLabelValues(outcome).Inc()
}

// RecordExtractionFailure はAI抽出の失敗を記録する。
func (c *Collector) RecordExtractionFailure() {
	c.extractionFail.Inc()
}

// RecordItemSaved はレコード保存成功を記録する。
func (c *Collector) RecordItemSaved() {
	c.itemsSaved.Inc()
}

// RecordSaveFailure はレコード保存失敗を記録する。
func (c *Collector) RecordSaveFailure() {
	c.saveFail.Inc()
}

// RecordCycle は取り込みサイクルの結果と所要時間を記録する。
func (c *Collector) RecordCycle(result string, duration time.Duration) {
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(duration.Seconds())
}

// RecordPurged は削除件数を記録する。
func (c *Collector) RecordPurged(count int) {
	c.purged.Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。メトリクス不要のテストやワンショット実行で使う。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordSearchFailure(string) {}
func (Nop) RecordImageLookup(string) {}
func (Nop) RecordExtractionFailure() {}
func (Nop) RecordItemSaved() {}
func (Nop) RecordSaveFailure() {}
func (Nop) RecordCycle(string, time.Duration) {}
func (Nop) RecordPurged(int) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsのみを公開する独立したハンドラーを返す。
// workerコマンドがAPIサーバーを持たずにメトリクスを公開する場合に使う。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
