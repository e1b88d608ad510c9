package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "ento_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ledgerOpsTotal *prometheus.CounterVec

	packPurchaseTotal   *prometheus.CounterVec
	packPurchaseLatency *prometheus.HistogramVec

	usageReadingsTotal *prometheus.CounterVec
	usageReadingErrors *prometheus.CounterVec
	claimTotal         *prometheus.CounterVec
	claimLatency       *prometheus.HistogramVec

	exchangeFillsTotal *prometheus.CounterVec
	exchangeSwapsTotal *prometheus.CounterVec

	loanOpsTotal *prometheus.CounterVec

	governanceOpsTotal *prometheus.CounterVec

	statementExportTotal   *prometheus.CounterVec
	statementExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ledgerOpsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_ops_total",
				Help: "Total ledger operations by kind and result",
			},
			[]string{"kind", "result"},
		)

		packPurchaseTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pack_purchase_total",
				Help: "Total pack purchases by result",
			},
			[]string{"result"},
		)
		packPurchaseLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pack_purchase_latency_seconds",
				Help:    "Pack purchase latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		usageReadingsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "usage_readings_total",
				Help: "Total signed usage readings by result",
			},
			[]string{"result"},
		)
		usageReadingErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "usage_reading_errors_total",
				Help: "Total usage reading rejections by reason",
			},
			[]string{"reason"},
		)
		claimTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "savings_claim_total",
				Help: "Total savings claims by result",
			},
			[]string{"result"},
		)
		claimLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "savings_claim_latency_seconds",
				Help:    "Savings claim latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exchangeFillsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exchange_fills_total",
				Help: "Total order fills by result",
			},
			[]string{"result"},
		)
		exchangeSwapsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "exchange_swaps_total",
				Help: "Total pool swaps by side and result",
			},
			[]string{"side", "result"},
		)

		loanOpsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "loan_ops_total",
				Help: "Total loan operations by kind and result",
			},
			[]string{"kind", "result"},
		)

		governanceOpsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "governance_ops_total",
				Help: "Total governance operations by kind and result",
			},
			[]string{"kind", "result"},
		)

		statementExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statement_export_total",
				Help: "Total statement export operations by format and result",
			},
			[]string{"format", "result"},
		)
		statementExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "statement_export_latency_seconds",
				Help:    "Statement export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			ledgerOpsTotal,
			packPurchaseTotal,
			packPurchaseLatency,
			usageReadingsTotal,
			usageReadingErrors,
			claimTotal,
			claimLatency,
			exchangeFillsTotal,
			exchangeSwapsTotal,
			loanOpsTotal,
			governanceOpsTotal,
			statementExportTotal,
			statementExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncLedgerOp increments the ledger operation counter.
func IncLedgerOp(kind, result string) {
	if result == "" {
		result = resultSuccess
	}
	if ledgerOpsTotal != nil {
		ledgerOpsTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObservePackPurchase records pack purchase latency and result.
func ObservePackPurchase(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if packPurchaseTotal != nil {
		packPurchaseTotal.WithLabelValues(result).Inc()
	}
	if packPurchaseLatency != nil {
		packPurchaseLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncUsageReading increments the usage reading counter.
func IncUsageReading(result string) {
	if result == "" {
		result = resultSuccess
	}
	if usageReadingsTotal != nil {
		usageReadingsTotal.WithLabelValues(result).Inc()
	}
}

// IncUsageReadingError increments the usage rejection counter.
func IncUsageReadingError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if usageReadingErrors != nil {
		usageReadingErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveClaim records savings claim latency and result.
func ObserveClaim(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if claimTotal != nil {
		claimTotal.WithLabelValues(result).Inc()
	}
	if claimLatency != nil {
		claimLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncExchangeFill increments the order fill counter.
func IncExchangeFill(result string) {
	if result == "" {
		result = resultSuccess
	}
	if exchangeFillsTotal != nil {
		exchangeFillsTotal.WithLabelValues(result).Inc()
	}
}

// IncExchangeSwap increments the pool swap counter.
func IncExchangeSwap(side, result string) {
	if side == "" {
		side = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exchangeSwapsTotal != nil {
		exchangeSwapsTotal.WithLabelValues(side, result).Inc()
	}
}

// IncLoanOp increments the loan operation counter.
func IncLoanOp(kind, result string) {
	if result == "" {
		result = resultSuccess
	}
	if loanOpsTotal != nil {
		loanOpsTotal.WithLabelValues(kind, result).Inc()
	}
}

// IncGovernanceOp increments the governance operation counter.
func IncGovernanceOp(kind, result string) {
	if result == "" {
		result = resultSuccess
	}
	if governanceOpsTotal != nil {
		governanceOpsTotal.WithLabelValues(kind, result).Inc()
	}
}

// ObserveStatementExport records export latency and result.
func ObserveStatementExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if statementExportTotal != nil {
		statementExportTotal.WithLabelValues(format, result).Inc()
	}
	if statementExportLatency != nil {
		statementExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
