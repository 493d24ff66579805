package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	transfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "transfers_total",
			Help:      "Total number of transfers by terminal outcome",
		},
		[]string{"chain_id", "outcome"}, // completed or an error kind
	)

	transferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "transfer",
			Name:      "duration_seconds",
			Help:      "Time from validation to terminal state",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"chain_id"},
	)

	balanceReadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "balances",
			Name:      "read_failures_total",
			Help:      "Balance reads that failed and were omitted from results",
		},
		[]string{"chain_id", "kind"}, // native or token
	)

	priceFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "fallbacks_total",
			Help:      "Price lookups served from the static table after an API failure",
		},
		[]string{"symbol"},
	)

	withdrawalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "withdrawal",
			Name:      "submissions_total",
			Help:      "Withdrawal submissions by status",
		},
		[]string{"status"},
	)
)

// RecordTransfer records a transfer reaching a terminal state.
func RecordTransfer(chainID int64, outcome string, duration time.Duration) {
	chain := strconv.FormatInt(chainID, 10)
	transfersTotal.WithLabelValues(chain, outcome).Inc()
	transferDuration.WithLabelValues(chain).Observe(duration.Seconds())
}

// RecordBalanceReadFailure records one failed, omitted balance read.
func RecordBalanceReadFailure(chainID int64, kind string) {
	balanceReadFailuresTotal.WithLabelValues(strconv.FormatInt(chainID, 10), kind).Inc()
}

// RecordPriceFallback records a static-table price served after an API failure.
func RecordPriceFallback(symbol string) {
	priceFallbacksTotal.WithLabelValues(symbol).Inc()
}

// RecordWithdrawal records a withdrawal submission outcome.
func RecordWithdrawal(status string) {
	withdrawalsTotal.WithLabelValues(status).Inc()
}
