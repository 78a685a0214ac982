package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 采集过程指标
// 同时实现 extract.Observer / crawlers.FetchObserver / crawlers.WalkObserver
type Metrics struct {
	registry *prometheus.Registry

	PagesTotal      *prometheus.CounterVec
	RecordsAccepted prometheus.Counter
	RecordsRejected *prometheus.CounterVec
	ActiveFetches   prometheus.Gauge
	CategoriesDone  *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到独立的registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		PagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "列表页请求数,按结果分类",
			},
			[]string{"outcome"},
		),
		RecordsAccepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "harvest_records_accepted_total",
				Help: "通过校验的商品记录数",
			},
		),
		RecordsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_records_rejected_total",
				Help: "被过滤的商品记录数,按原因分类",
			},
			[]string{"reason"},
		),
		ActiveFetches: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvest_active_fetches",
				Help: "正在进行的列表页请求数",
			},
		),
		CategoriesDone: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_categories_done_total",
				Help: "已结束的类目数,按停止原因分类",
			},
			[]string{"stop"},
		),
	}

	m.registry.MustRegister(
		m.PagesTotal,
		m.RecordsAccepted,
		m.RecordsRejected,
		m.ActiveFetches,
		m.CategoriesDone,
	)
	return m
}

// Registry 返回指标registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAccepted 记录通过校验
func (m *Metrics) ObserveAccepted() {
	m.RecordsAccepted.Inc()
}

// ObserveRejected 记录过滤原因
func (m *Metrics) ObserveRejected(reason string) {
	m.RecordsRejected.WithLabelValues(reason).Inc()
}

// FetchStarted 请求开始
func (m *Metrics) FetchStarted() {
	m.ActiveFetches.Inc()
}

// FetchFinished 请求结束
func (m *Metrics) FetchFinished(kind models.OutcomeKind) {
	m.ActiveFetches.Dec()
	m.PagesTotal.WithLabelValues(kind.String()).Inc()
}

// CategoryDone 类目结束
func (m *Metrics) CategoryDone(stop models.StopReason) {
	m.CategoriesDone.WithLabelValues(string(stop)).Inc()
}

// Handler /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve 在addr上暴露/metrics,ctx结束时关闭
func (m *Metrics) Serve(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		utils.Infof("📈 指标服务: http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Errorf("指标服务异常退出: %v", err)
		}
	}()
}
