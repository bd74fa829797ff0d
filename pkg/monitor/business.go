package monitor

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	PayoutCreatedTotal     prometheus.Counter
	PayoutCompletedTotal   *prometheus.CounterVec
	PayoutFailedTotal      *prometheus.CounterVec
	PayoutAmountTotal      *prometheus.CounterVec
	ReconcileResolvedTotal *prometheus.CounterVec
	ChainSubmitDuration    *prometheus.HistogramVec
}

// Global Metrics Instance
var Business *BusinessMetrics

var businessOnce sync.Once

// InitBusinessMetrics 初始化业务指标。
// promauto 注册在 DefaultRegisterer 上，重复注册会 panic，所以只执行一次。
func InitBusinessMetrics() {
	businessOnce.Do(initBusinessMetrics)
}

func initBusinessMetrics() {
	Business = &BusinessMetrics{
		PayoutCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "payout_created_total",
			Help: "The total number of A2U payments created on the platform",
		}),
		PayoutCompletedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_completed_total",
			Help: "The total number of completed payouts",
		}, []string{"network"}),
		PayoutFailedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_failed_total",
			Help: "The total number of failed payouts, by failed step",
		}, []string{"step"}),
		PayoutAmountTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_amount_total",
			Help: "The total amount of Pi paid out",
		}, []string{"network"}),
		ReconcileResolvedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "payout_reconcile_resolved_total",
			Help: "Stale payments resolved by reconciliation, by action",
		}, []string{"action"}),
		ChainSubmitDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payout_chain_submit_duration_seconds",
			Help:    "Duration of chain transaction build+submit",
			Buckets: prometheus.DefBuckets,
		}, []string{"network"}),
	}
}

// 下面的辅助函数都带 nil 保护: 单元测试不经过 Init() 也能直接调用 Service 层。

func IncPayoutCreated() {
	if Business != nil {
		Business.PayoutCreatedTotal.Inc()
	}
}

func IncPayoutCompleted(network string, amount float64) {
	if Business != nil {
		Business.PayoutCompletedTotal.WithLabelValues(network).Inc()
		Business.PayoutAmountTotal.WithLabelValues(network).Add(amount)
	}
}

func IncPayoutFailed(step string) {
	if Business != nil {
		Business.PayoutFailedTotal.WithLabelValues(step).Inc()
	}
}

func IncReconcileResolved(action string) {
	if Business != nil {
		Business.ReconcileResolvedTotal.WithLabelValues(action).Inc()
	}
}

func ObserveChainSubmit(network string, seconds float64) {
	if Business != nil {
		Business.ChainSubmitDuration.WithLabelValues(network).Observe(seconds)
	}
}
