package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all Praktika metrics
const namespace = "praktika"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// HealthStatus is a gauge that tracks overall server health status
// Values: 0 = unhealthy, 1 = degraded, 2 = healthy
var HealthStatus = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_status",
		Help:      "Overall server health status (0=unhealthy, 1=degraded, 2=healthy)",
	},
)

// HealthCheckStatus tracks individual health check results
// Values: 0 = fail, 1 = warn, 2 = pass
var HealthCheckStatus = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Individual health check status (0=fail, 1=warn, 2=pass)",
	},
	[]string{"check"},
)

// HealthCheckLatency tracks the latency of individual health checks in milliseconds
var HealthCheckLatency = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_latency_ms",
		Help:      "Health check latency in milliseconds",
	},
	[]string{"check"},
)

// Workflow metrics

// WorkflowTransitionsTotal counts committed lifecycle transitions
var WorkflowTransitionsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_transitions_total",
		Help:      "Total number of committed workflow transitions",
	},
	[]string{"entity_type", "from", "to"},
)

// WorkflowRejectionsTotal counts refused transition requests
var WorkflowRejectionsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "workflow_rejections_total",
		Help:      "Total number of refused workflow transitions",
	},
	[]string{"entity_type", "reason"}, // reason: invalid_transition|unauthorized|guard_failed
)

// EvidenceReviewsTotal counts recorded evidence verdicts
var EvidenceReviewsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "evidence_reviews_total",
		Help:      "Total number of evidence review verdicts recorded",
	},
	[]string{"party", "verdict"},
)

// Ledger metrics

// LedgerEventsRecordedTotal counts events queued for append
var LedgerEventsRecordedTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_events_recorded_total",
		Help:      "Total number of ledger events recorded for append",
	},
	[]string{"entity_type"},
)

// LedgerEventsAppendedTotal counts events durably appended to their chain
var LedgerEventsAppendedTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_events_appended_total",
		Help:      "Total number of ledger events appended to their chain",
	},
	[]string{"entity_type"},
)

// LedgerAppendFailuresTotal counts append attempts that did not land
var LedgerAppendFailuresTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_append_failures_total",
		Help:      "Total number of failed ledger append attempts",
	},
	[]string{"entity_type", "reason"}, // reason: sequence_gap|write_error
)

// LedgerAppendLag tracks positions assigned but not yet appended across all chains
var LedgerAppendLag = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_append_lag",
		Help:      "Ledger positions assigned but not yet appended, summed over all chains",
	},
)

// LedgerChainsVerifiedTotal counts chains replayed by integrity sweeps
var LedgerChainsVerifiedTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_chains_verified_total",
		Help:      "Total number of ledger chains replayed by integrity verification",
	},
)

// LedgerChainCorruptionsTotal counts chains that failed integrity replay
var LedgerChainCorruptionsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_chain_corruptions_total",
		Help:      "Total number of ledger chains that failed integrity verification",
	},
	[]string{"entity_type"},
)

// Init initializes the metrics registry and sets version information
func Init(version, commit, buildDate string) {
	// Register default Go metrics (memory, goroutines, GC, etc.)
	Registry.MustRegister(collectors.NewGoCollector())

	// Register process metrics (CPU, memory, file descriptors)
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Set application version info (value is always 1, info is in labels)
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
