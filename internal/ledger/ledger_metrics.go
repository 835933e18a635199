package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LedgerOpsTotal counts ledger operations by type.
	LedgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agora",
			Name:      "ledger_operations_total",
			Help:      "Total ledger operations by type.",
		},
		[]string{"type"},
	)

	// LedgerOpDuration observes operation latency by type.
	LedgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "agora",
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	// LedgerEscrowPool tracks the current escrow pool total.
	LedgerEscrowPool = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agora",
			Name:      "ledger_escrow_pool_total",
			Help:      "Tokens currently locked in escrow.",
		},
	)

	// LedgerTreasuryPool tracks the current treasury pool total.
	LedgerTreasuryPool = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "agora",
			Name:      "ledger_treasury_pool_total",
			Help:      "Tokens accrued to the treasury.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		LedgerOpsTotal,
		LedgerOpDuration,
		LedgerEscrowPool,
		LedgerTreasuryPool,
	)
}

// observeOp increments the operation counter and returns a function to observe duration.
func observeOp(opType string) func() {
	LedgerOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func() {
		LedgerOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}

func setPoolGauges(p Pools) {
	LedgerEscrowPool.Set(float64(p.Escrowed))
	LedgerTreasuryPool.Set(float64(p.Treasury))
}
