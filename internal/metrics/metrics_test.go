package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river/rivertype"
)

func TestInit(t *testing.T) {
	// Test that Init doesn't panic
	Init("v1.0.0", "abc123", "2026-01-30")

	// Verify app_info metric exists
	if testutil.CollectAndCount(AppInfo) == 0 {
		t.Error("AppInfo metric should be registered")
	}
}

func TestWorkflowCountersRecordLabels(t *testing.T) {
	WorkflowTransitionsTotal.WithLabelValues("opportunity", "DRAFT", "OPEN").Inc()
	WorkflowRejectionsTotal.WithLabelValues("application", "guard_failed").Inc()

	if got := testutil.ToFloat64(WorkflowTransitionsTotal.WithLabelValues("opportunity", "DRAFT", "OPEN")); got < 1 {
		t.Errorf("expected transition counter >= 1, got %v", got)
	}
	if got := testutil.ToFloat64(WorkflowRejectionsTotal.WithLabelValues("application", "guard_failed")); got < 1 {
		t.Errorf("expected rejection counter >= 1, got %v", got)
	}
}

func TestLedgerGaugesAndCounters(t *testing.T) {
	LedgerAppendLag.Set(7)
	if got := testutil.ToFloat64(LedgerAppendLag); got != 7 {
		t.Errorf("expected lag gauge 7, got %v", got)
	}

	LedgerEventsAppendedTotal.WithLabelValues("application").Inc()
	LedgerAppendFailuresTotal.WithLabelValues("application", "sequence_gap").Inc()
	LedgerChainCorruptionsTotal.WithLabelValues("opportunity").Inc()

	if got := testutil.ToFloat64(LedgerEventsAppendedTotal.WithLabelValues("application")); got < 1 {
		t.Errorf("expected appended counter >= 1, got %v", got)
	}
}

func TestRiverMetricsHookTracksJobLifecycle(t *testing.T) {
	hook := NewRiverMetricsHook()
	job := &rivertype.JobRow{ID: 42, Kind: "ledger_append"}

	if err := hook.WorkBegin(t.Context(), job); err != nil {
		t.Fatalf("WorkBegin: %v", err)
	}
	if got := testutil.ToFloat64(RiverJobsInFlight.WithLabelValues("ledger_append")); got != 1 {
		t.Errorf("expected 1 job in flight, got %v", got)
	}

	if err := hook.WorkEnd(t.Context(), job, errors.New("boom")); err != nil {
		t.Fatalf("WorkEnd: %v", err)
	}
	if got := testutil.ToFloat64(RiverJobsInFlight.WithLabelValues("ledger_append")); got != 0 {
		t.Errorf("expected 0 jobs in flight, got %v", got)
	}
	if got := testutil.ToFloat64(RiverJobsCompleted.WithLabelValues("ledger_append", "error")); got < 1 {
		t.Errorf("expected error completion counted, got %v", got)
	}

	// Start-time bookkeeping is cleaned up after WorkEnd.
	hook.mu.Lock()
	_, tracked := hook.startTime[job.ID]
	hook.mu.Unlock()
	if tracked {
		t.Error("job start time should be deleted after WorkEnd")
	}
}
