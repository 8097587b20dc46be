// Package ops serves the operational HTTP surface: liveness and readiness
// probes, a detailed health report, and the Prometheus scrape endpoint.
// This listener is the whole outward face of the server; business
// operations go through the domain services, not HTTP.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/metrics"
)

// checkTimeout bounds each individual health check so one slow dependency
// cannot starve the rest of the report.
const checkTimeout = 2 * time.Second

// appendLagWarnThreshold is the pending-append count above which the
// health report degrades. The pipeline normally drains within seconds, so
// a backlog this size means the workers are stuck or underprovisioned.
const appendLagWarnThreshold = 100

// HealthCheck is the health report served on /health.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult is the outcome of a single health check.
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthChecker runs the dependency checks behind the probe endpoints.
type HealthChecker struct {
	pool      *pgxpool.Pool
	ledger    ledger.Repository
	version   string
	gitCommit string
}

func NewHealthChecker(pool *pgxpool.Pool, led ledger.Repository, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		pool:      pool,
		ledger:    led,
		version:   version,
		gitCommit: gitCommit,
	}
}

// Handler returns the operational mux with all probe routes mounted.
func (h *HealthChecker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", h.Healthz())
	mux.Handle("/readyz", h.Readyz())
	mux.Handle("/health", h.Health())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

// Healthz is the liveness probe. It answers as long as the process serves
// requests; dependencies are deliberately not consulted.
func (h *HealthChecker) Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, "ok")
	}
}

// Readyz is the readiness probe: the server is ready once the database
// answers queries.
func (h *HealthChecker) Readyz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		defer cancel()

		if h.pool == nil {
			respond(w, http.StatusServiceUnavailable, "unready")
			return
		}
		var one int
		if err := h.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
			respond(w, http.StatusServiceUnavailable, "unready")
			return
		}
		respond(w, http.StatusOK, "ready")
	}
}

// Health runs every dependency check and serves the full report. Check
// outcomes are mirrored into the health gauges so dashboards see the same
// state the probe reports.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":   h.checkDatabase(ctx),
			"migrations": h.checkMigrations(ctx),
			"job_queue":  h.checkJobQueue(ctx),
			"append_lag": h.checkAppendLag(ctx),
		}

		overall := "healthy"
		statusCode := http.StatusOK
		for name, check := range checks {
			metrics.HealthCheckStatus.WithLabelValues(name).Set(statusLevel(check.Status))
			metrics.HealthCheckLatency.WithLabelValues(name).Set(float64(check.LatencyMs))
			switch check.Status {
			case "fail":
				overall = "unhealthy"
				statusCode = http.StatusServiceUnavailable
			case "warn":
				if overall == "healthy" {
					overall = "degraded"
				}
			}
		}
		switch overall {
		case "healthy":
			metrics.HealthStatus.Set(2)
		case "degraded":
			metrics.HealthStatus.Set(1)
		default:
			metrics.HealthStatus.Set(0)
		}

		response := HealthCheck{
			Status:    overall,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()

	if h.pool == nil {
		return CheckResult{
			Status:  "fail",
			Message: "Database pool not initialized",
			Details: map[string]any{
				"remediation": "Check that DATABASE_URL is set correctly and PostgreSQL is running",
			},
		}
	}

	dbCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var one int
	err := h.pool.QueryRow(dbCtx, "SELECT 1").Scan(&one)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Database query failed",
			LatencyMs: latency,
			Details: map[string]any{
				"error":       err.Error(),
				"remediation": "Check DATABASE_URL and PostgreSQL service status",
			},
		}
	}

	stats := h.pool.Stat()
	return CheckResult{
		Status:    "pass",
		Message:   "PostgreSQL connection successful",
		LatencyMs: latency,
		Details: map[string]any{
			"max_connections":      stats.MaxConns(),
			"total_connections":    stats.TotalConns(),
			"idle_connections":     stats.IdleConns(),
			"acquired_connections": stats.AcquiredConns(),
		},
	}
}

func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	start := time.Now()

	if h.pool == nil {
		return CheckResult{Status: "fail", Message: "Database pool not initialized"}
	}

	migCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var version int64
	var dirty bool
	err := h.pool.QueryRow(migCtx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to query migration version",
			LatencyMs: latency,
			Details: map[string]any{
				"error":       err.Error(),
				"remediation": "Run database migrations: praktika-server migrate up",
			},
		}
	}

	if dirty {
		return CheckResult{
			Status:    "fail",
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details: map[string]any{
				"version": version,
				"dirty":   dirty,
				"action":  "Do NOT run new migrations until this is resolved",
			},
		}
	}

	return CheckResult{
		Status:    "pass",
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details: map[string]any{
			"version": version,
			"dirty":   false,
		},
	}
}

func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	start := time.Now()

	if h.pool == nil {
		return CheckResult{Status: "fail", Message: "Database pool not initialized"}
	}

	jobCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	var tableExists bool
	err := h.pool.QueryRow(jobCtx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = 'river_job'
		)
	`).Scan(&tableExists)
	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to check job queue table existence",
			LatencyMs: time.Since(start).Milliseconds(),
			Details:   map[string]any{"error": err.Error()},
		}
	}

	if !tableExists {
		return CheckResult{
			Status:    "fail",
			Message:   "Job queue schema not installed",
			LatencyMs: time.Since(start).Milliseconds(),
			Details: map[string]any{
				"remediation": "Run database migrations: praktika-server migrate up",
			},
		}
	}

	var available, running, retryable, discarded int64
	err = h.pool.QueryRow(jobCtx, `
		SELECT
			COUNT(*) FILTER (WHERE state = 'available'),
			COUNT(*) FILTER (WHERE state = 'running'),
			COUNT(*) FILTER (WHERE state = 'retryable'),
			COUNT(*) FILTER (WHERE state = 'discarded' AND kind = $1)
		FROM river_job
	`, ledger.AppendJobKind).Scan(&available, &running, &retryable, &discarded)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to query job queue",
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}

	details := map[string]any{
		"available_jobs": available,
		"running_jobs":   running,
		"retryable_jobs": retryable,
	}

	// A discarded append job is an event that will never reach its chain
	// without operator intervention.
	if discarded > 0 {
		details["discarded_append_jobs"] = discarded
		return CheckResult{
			Status:    "fail",
			Message:   "Append jobs discarded; recorded events are missing from their chains",
			LatencyMs: latency,
			Details:   details,
		}
	}

	return CheckResult{
		Status:    "pass",
		Message:   "Job queue operational",
		LatencyMs: latency,
		Details:   details,
	}
}

func (h *HealthChecker) checkAppendLag(ctx context.Context) CheckResult {
	start := time.Now()

	if h.ledger == nil {
		return CheckResult{Status: "warn", Message: "Ledger repository not wired"}
	}

	lagCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	lag, err := h.ledger.Lag(lagCtx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return CheckResult{
			Status:    "fail",
			Message:   "Failed to measure append lag",
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}

	metrics.LedgerAppendLag.Set(float64(lag))

	if lag > appendLagWarnThreshold {
		return CheckResult{
			Status:    "warn",
			Message:   "Append pipeline is behind",
			LatencyMs: latency,
			Details: map[string]any{
				"pending_events": lag,
				"remediation":    "Check ledger queue workers and river_job for stuck append jobs",
			},
		}
	}

	return CheckResult{
		Status:    "pass",
		Message:   "Append pipeline current",
		LatencyMs: latency,
		Details:   map[string]any{"pending_events": lag},
	}
}

func statusLevel(status string) float64 {
	switch status {
	case "pass":
		return 2
	case "warn":
		return 1
	default:
		return 0
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

func respond(w http.ResponseWriter, status int, value string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(statusResponse{Status: value})
}
