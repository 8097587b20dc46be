package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/metrics"
)

const tracerName = "github.com/praktika-foundation/server/internal/jobs"

// appendGapSnooze is how long an out-of-order append waits for its
// predecessor. Gaps close as soon as the preceding job commits, so the
// window stays short; the retry policy takes over if the gap persists.
const appendGapSnooze = 2 * time.Second

// LedgerAppendWorker writes recorded events into their hash chains. One
// job per event, inserted transactionally by Record; the worker owns
// ordering, so a gap means the predecessor's job has not landed yet and
// the only correct move is to wait.
type LedgerAppendWorker struct {
	river.WorkerDefaults[ledger.AppendArgs]
	Ledger ledger.Repository
	Logger *slog.Logger
}

func (w *LedgerAppendWorker) Work(ctx context.Context, job *river.Job[ledger.AppendArgs]) error {
	ev := job.Args.Event

	ctx, span := otel.Tracer(tracerName).Start(ctx, "ledger.append",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("entity_type", ev.EntityType),
			attribute.String("entity_id", ev.EntityID),
			attribute.Int64("seq", ev.Seq),
		))
	defer span.End()

	err := w.Ledger.Append(ctx, ev)
	if err == nil {
		metrics.LedgerEventsAppendedTotal.WithLabelValues(ev.EntityType).Inc()
		return nil
	}

	if errors.Is(err, ledger.ErrSequenceGap) {
		metrics.LedgerAppendFailuresTotal.WithLabelValues(ev.EntityType, "sequence_gap").Inc()
		w.Logger.DebugContext(ctx, "append waiting on predecessor",
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
			"seq", ev.Seq)
		return river.JobSnooze(appendGapSnooze)
	}

	metrics.LedgerAppendFailuresTotal.WithLabelValues(ev.EntityType, "write_error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "append failed")
	w.Logger.ErrorContext(ctx, "ledger append failed",
		"entity_type", ev.EntityType,
		"entity_id", ev.EntityID,
		"seq", ev.Seq,
		"error", err)
	return err
}
