package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/praktika-foundation/server/internal/audit"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/metrics"
)

// ChainVerifyArgs triggers a full-ledger integrity sweep. The job carries
// no parameters; sweep bounds come from the worker's options.
type ChainVerifyArgs struct{}

func (ChainVerifyArgs) Kind() string { return JobKindChainVerify }

// ChainVerifyWorker replays every stored chain and raises audit alerts for
// the ones that fail. Corruption is reported, never retried: the stored
// bytes will not change between attempts, so the job succeeds once the
// sweep itself completes.
type ChainVerifyWorker struct {
	river.WorkerDefaults[ChainVerifyArgs]
	Validator *ledger.Validator
	Auditor   *audit.Logger
	Logger    *slog.Logger
	Options   ledger.SweepOptions
}

func (w *ChainVerifyWorker) Work(ctx context.Context, job *river.Job[ChainVerifyArgs]) error {
	report, err := w.Validator.ValidateAll(ctx, w.Options)
	if err != nil {
		w.Logger.ErrorContext(ctx, "chain verification sweep failed", "error", err)
		return err
	}

	metrics.LedgerChainsVerifiedTotal.Add(float64(report.Chains))
	metrics.LedgerAppendLag.Set(float64(report.Pending))

	for _, chain := range report.Corrupted {
		seq, detail := corruptionDetail(chain)
		metrics.LedgerChainCorruptionsTotal.WithLabelValues(chain.EntityType).Inc()
		w.Auditor.ChainCorruption(chain.EntityType, chain.EntityID, seq, detail)
		w.Logger.ErrorContext(ctx, "chain corruption detected",
			"entity_type", chain.EntityType,
			"entity_id", chain.EntityID,
			"seq", seq,
			"detail", detail)
	}

	w.Logger.InfoContext(ctx, "chain verification sweep complete",
		"chains", report.Chains,
		"pending", report.Pending,
		"corrupted", len(report.Corrupted))
	return nil
}

// corruptionDetail reduces a failed chain report to the first broken check.
func corruptionDetail(chain ledger.ChainReport) (int64, string) {
	failures := chain.Failures()
	if len(failures) == 0 {
		return chain.AssignedSeq, fmt.Sprintf("%d events appended but only %d positions assigned", chain.EventCount, chain.AssignedSeq)
	}
	first := failures[0]
	switch {
	case !first.HashOK && !first.LinkOK:
		return first.Seq, "stored hash and predecessor link both fail verification"
	case !first.HashOK:
		return first.Seq, "stored hash does not match recomputation"
	default:
		return first.Seq, "predecessor link broken"
	}
}
