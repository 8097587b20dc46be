package jobs

import (
	"testing"
	"time"

	"github.com/riverqueue/river/rivertype"

	"github.com/praktika-foundation/server/internal/domain/ledger"
)

func TestNewRetryPolicy(t *testing.T) {
	policy := NewRetryPolicy()

	if policy == nil {
		t.Fatal("NewRetryPolicy() returned nil")
	}

	if policy.Default.MaxAttempts != AppendMaxAttempts {
		t.Errorf("Default.MaxAttempts = %d, want %d", policy.Default.MaxAttempts, AppendMaxAttempts)
	}
	if policy.Default.BaseDelay != 30*time.Second {
		t.Errorf("Default.BaseDelay = %v, want 30s", policy.Default.BaseDelay)
	}
	if policy.Default.MaxDelay != 30*time.Minute {
		t.Errorf("Default.MaxDelay = %v, want 30m", policy.Default.MaxDelay)
	}

	tests := []struct {
		kind                string
		expectedMaxAttempts int
		expectedBaseDelay   time.Duration
		expectedMaxDelay    time.Duration
	}{
		{
			kind:                ledger.AppendJobKind,
			expectedMaxAttempts: AppendMaxAttempts,
			expectedBaseDelay:   5 * time.Second,
			expectedMaxDelay:    5 * time.Minute,
		},
		{
			kind:                JobKindChainVerify,
			expectedMaxAttempts: ChainVerifyMaxAttempts,
			expectedBaseDelay:   1 * time.Minute,
			expectedMaxDelay:    30 * time.Minute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			config, ok := policy.ByKind[tt.kind]
			if !ok {
				t.Fatalf("kind %s not found in ByKind map", tt.kind)
			}

			if config.MaxAttempts != tt.expectedMaxAttempts {
				t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, tt.expectedMaxAttempts)
			}
			if config.BaseDelay != tt.expectedBaseDelay {
				t.Errorf("BaseDelay = %v, want %v", config.BaseDelay, tt.expectedBaseDelay)
			}
			if config.MaxDelay != tt.expectedMaxDelay {
				t.Errorf("MaxDelay = %v, want %v", config.MaxDelay, tt.expectedMaxDelay)
			}
		})
	}
}

func TestRetryPolicy_NextRetry(t *testing.T) {
	policy := NewRetryPolicy()
	now := time.Now()

	tests := []struct {
		name           string
		kind           string
		attempt        int
		expectedDelay  time.Duration
		toleranceRange time.Duration // Allow some time difference due to execution
	}{
		{
			name:           "append first attempt",
			kind:           ledger.AppendJobKind,
			attempt:        1,
			expectedDelay:  5 * time.Second,
			toleranceRange: 2 * time.Second,
		},
		{
			name:           "append second attempt (exponential backoff)",
			kind:           ledger.AppendJobKind,
			attempt:        2,
			expectedDelay:  10 * time.Second,
			toleranceRange: 2 * time.Second,
		},
		{
			name:           "append fourth attempt",
			kind:           ledger.AppendJobKind,
			attempt:        4,
			expectedDelay:  40 * time.Second,
			toleranceRange: 2 * time.Second,
		},
		{
			name:           "append late attempt capped at max delay",
			kind:           ledger.AppendJobKind,
			attempt:        10,
			expectedDelay:  5 * time.Minute,
			toleranceRange: 2 * time.Second,
		},
		{
			name:           "chain verify first attempt",
			kind:           JobKindChainVerify,
			attempt:        1,
			expectedDelay:  1 * time.Minute,
			toleranceRange: 2 * time.Second,
		},
		{
			name:           "chain verify second attempt",
			kind:           JobKindChainVerify,
			attempt:        2,
			expectedDelay:  2 * time.Minute,
			toleranceRange: 2 * time.Second,
		},
		{
			name:           "unknown kind falls back to default",
			kind:           "unknown-kind",
			attempt:        1,
			expectedDelay:  30 * time.Second,
			toleranceRange: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &rivertype.JobRow{
				Kind:        tt.kind,
				Attempt:     tt.attempt,
				AttemptedAt: &now,
			}

			nextRetry := policy.NextRetry(job)
			actualDelay := nextRetry.Sub(now)

			diff := actualDelay - tt.expectedDelay
			if diff < 0 {
				diff = -diff
			}

			if diff > tt.toleranceRange {
				t.Errorf("NextRetry() delay = %v, want approximately %v (diff: %v)", actualDelay, tt.expectedDelay, diff)
			}
		})
	}
}

func TestNewClientConfig(t *testing.T) {
	config := NewClientConfig(ClientOptions{
		LedgerWorkers:      8,
		MaintenanceWorkers: 2,
	})

	if got := config.Queues[ledger.AppendQueue].MaxWorkers; got != 8 {
		t.Errorf("append queue MaxWorkers = %d, want 8", got)
	}
	if got := config.Queues[QueueMaintenance].MaxWorkers; got != 2 {
		t.Errorf("maintenance queue MaxWorkers = %d, want 2", got)
	}
	if config.MaxAttempts != AppendMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, AppendMaxAttempts)
	}
	if config.RetryPolicy == nil {
		t.Error("RetryPolicy is nil")
	}
	if config.ErrorHandler == nil {
		t.Error("ErrorHandler is nil")
	}
}

func TestNewClientConfigDefaults(t *testing.T) {
	config := NewClientConfig(ClientOptions{})

	if got := config.Queues[ledger.AppendQueue].MaxWorkers; got != 10 {
		t.Errorf("append queue MaxWorkers = %d, want 10", got)
	}
	if got := config.Queues[QueueMaintenance].MaxWorkers; got != 1 {
		t.Errorf("maintenance queue MaxWorkers = %d, want 1", got)
	}
}

func TestNewPeriodicJobs(t *testing.T) {
	jobs := NewPeriodicJobs(10 * time.Minute)

	if len(jobs) != 1 {
		t.Errorf("NewPeriodicJobs() returned %d jobs, want 1", len(jobs))
	}
	for i, job := range jobs {
		if job == nil {
			t.Errorf("NewPeriodicJobs()[%d] is nil", i)
		}
	}
}

func TestNewPeriodicJobsZeroInterval(t *testing.T) {
	jobs := NewPeriodicJobs(0)

	if len(jobs) != 1 {
		t.Errorf("NewPeriodicJobs(0) returned %d jobs, want 1", len(jobs))
	}
}

func TestJobKindConstants(t *testing.T) {
	kinds := []string{
		ledger.AppendJobKind,
		JobKindChainVerify,
	}

	seen := make(map[string]bool)
	for _, kind := range kinds {
		if kind == "" {
			t.Errorf("job kind constant is empty")
		}

		if seen[kind] {
			t.Errorf("duplicate job kind: %s", kind)
		}
		seen[kind] = true
	}

	if ledger.AppendQueue == QueueMaintenance {
		t.Error("append and maintenance queues share a name")
	}
}
