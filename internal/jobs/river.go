// Package jobs runs the background queues: the ledger append pipeline that
// makes recorded events durable, and the periodic integrity sweep that
// replays stored chains. Both ride on River over the same Postgres the
// repositories use, which is what lets Record enqueue appends inside
// business transactions.
package jobs

import (
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"

	"github.com/praktika-foundation/server/internal/domain/ledger"
)

// JobKindChainVerify replays every stored chain and reports corruption.
// The append kind is owned by the ledger package so recording does not
// depend on this one.
const JobKindChainVerify = "chain_verify"

// QueueMaintenance runs the integrity sweep apart from the append queue,
// so a sweep over a large ledger never starves appends.
const QueueMaintenance = "maintenance"

const (
	AppendMaxAttempts      = 10
	ChainVerifyMaxAttempts = 3
)

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

// NewRetryPolicy returns the default retry policy configuration. Append
// retries start short: a gap usually closes as soon as the predecessor's
// job lands, so long waits would just inflate append lag.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: AppendMaxAttempts,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			ledger.AppendJobKind: {
				MaxAttempts: AppendMaxAttempts,
				BaseDelay:   5 * time.Second,
				MaxDelay:    5 * time.Minute,
			},
			JobKindChainVerify: {
				MaxAttempts: ChainVerifyMaxAttempts,
				BaseDelay:   1 * time.Minute,
				MaxDelay:    30 * time.Minute,
			},
		},
	}
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}

	return time.Now().Add(delay)
}

// ClientOptions assembles a River client. Worker counts come from
// configuration; zero values fall back to sensible defaults.
type ClientOptions struct {
	Workers      *river.Workers
	Logger       *slog.Logger
	Notify       AlertFunc
	Hooks        []rivertype.Hook
	PeriodicJobs []*river.PeriodicJob

	LedgerWorkers      int
	MaintenanceWorkers int
	AppendMaxAttempts  int
}

// NewClientConfig builds a River client configuration with retry policy.
func NewClientConfig(opts ClientOptions) *river.Config {
	ledgerWorkers := opts.LedgerWorkers
	if ledgerWorkers <= 0 {
		ledgerWorkers = 10
	}
	maintenanceWorkers := opts.MaintenanceWorkers
	if maintenanceWorkers <= 0 {
		maintenanceWorkers = 1
	}
	maxAttempts := opts.AppendMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = AppendMaxAttempts
	}

	config := &river.Config{
		Workers:      opts.Workers,
		RetryPolicy:  NewRetryPolicy(),
		MaxAttempts:  maxAttempts,
		PeriodicJobs: opts.PeriodicJobs,
		Queues: map[string]river.QueueConfig{
			ledger.AppendQueue: {MaxWorkers: ledgerWorkers},
			QueueMaintenance:   {MaxWorkers: maintenanceWorkers},
		},
		Hooks:        opts.Hooks,
		ErrorHandler: NewAlertingErrorHandler(opts.Logger, opts.Notify),
	}
	if opts.Logger != nil {
		config.Logger = opts.Logger
	}
	return config
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, opts ClientOptions) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(opts))
}

// NewPeriodicJobs creates the default periodic job schedule: one chain
// verification sweep per interval, with a sweep on startup so corruption
// in a restored database surfaces before traffic does.
func NewPeriodicJobs(interval time.Duration) []*river.PeriodicJob {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(interval),
			func() (river.JobArgs, *river.InsertOpts) {
				return ChainVerifyArgs{}, &river.InsertOpts{
					Queue:       QueueMaintenance,
					MaxAttempts: ChainVerifyMaxAttempts,
				}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: AppendMaxAttempts, BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}
