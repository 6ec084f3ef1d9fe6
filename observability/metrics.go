package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coreerrors "github.com/onda-protocol/onda-program-library-sub000/core/errors"
)

// LedgerMetrics wraps collectors tracking atomic ledger operations.
type LedgerMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	lockWait  *prometheus.HistogramVec
	batchSize prometheus.Histogram
	inflight  prometheus.Gauge
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// Ledger exposes the metrics registry for the ledger.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onda",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Total ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "onda",
				Subsystem: "ledger",
				Name:      "operation_errors_total",
				Help:      "Count of rejected ledger operations segmented by error kind.",
			}, []string{"operation", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "onda",
				Subsystem: "ledger",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "onda",
				Subsystem: "ledger",
				Name:      "asset_lock_wait_seconds",
				Help:      "Time spent waiting for the per-asset lock.",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			}, []string{"operation"}),
			batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "onda",
				Subsystem: "ledger",
				Name:      "commit_batch_size",
				Help:      "Number of key writes per committed operation.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			}),
			inflight: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "onda",
				Subsystem: "ledger",
				Name:      "operations_inflight",
				Help:      "Ledger operations currently holding an asset lock.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.requests,
			ledgerRegistry.errors,
			ledgerRegistry.latency,
			ledgerRegistry.lockWait,
			ledgerRegistry.batchSize,
			ledgerRegistry.inflight,
		)
	})
	return ledgerRegistry
}

func normalizeOperation(operation string) string {
	op := strings.TrimSpace(operation)
	if op == "" {
		return "unknown"
	}
	return op
}

// Observe records the execution metrics for a ledger operation.
func (m *LedgerMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := normalizeOperation(operation)
	outcome := "success"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(op, coreerrors.Kind(err)).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// ObserveLockWait records how long an operation queued for its asset lock.
func (m *LedgerMetrics) ObserveLockWait(operation string, wait time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.WithLabelValues(normalizeOperation(operation)).Observe(wait.Seconds())
}

// ObserveCommit records the size of a committed write batch.
func (m *LedgerMetrics) ObserveCommit(writes int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(writes))
}

// Enter marks an operation as holding its asset lock and returns the
// matching exit func.
func (m *LedgerMetrics) Enter() func() {
	if m == nil {
		return func() {}
	}
	m.inflight.Inc()
	return m.inflight.Dec
}
