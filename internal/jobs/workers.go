package jobs

import (
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/praktika-foundation/server/internal/audit"
	"github.com/praktika-foundation/server/internal/domain/ledger"
)

// WorkerDeps carries the shared dependencies the background workers need.
type WorkerDeps struct {
	Ledger    ledger.Repository
	Validator *ledger.Validator
	Auditor   *audit.Logger
	Logger    *slog.Logger
	Sweep     ledger.SweepOptions
}

// NewWorkers registers every worker the server runs.
func NewWorkers(deps WorkerDeps) *river.Workers {
	workers := river.NewWorkers()
	river.AddWorker[ledger.AppendArgs](workers, &LedgerAppendWorker{
		Ledger: deps.Ledger,
		Logger: deps.Logger,
	})
	river.AddWorker[ChainVerifyArgs](workers, &ChainVerifyWorker{
		Validator: deps.Validator,
		Auditor:   deps.Auditor,
		Logger:    deps.Logger,
		Options:   deps.Sweep,
	})
	return workers
}
