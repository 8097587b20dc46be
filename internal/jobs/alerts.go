package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/praktika-foundation/server/internal/audit"
	"github.com/praktika-foundation/server/internal/domain/ledger"
)

// AlertFunc is invoked when a job fails or panics.
type AlertFunc func(ctx context.Context, job *rivertype.JobRow, err error)

// AlertingErrorHandler logs and forwards job failures for alerting.
type AlertingErrorHandler struct {
	Logger *slog.Logger
	Notify AlertFunc
}

// NewAlertingErrorHandler builds an ErrorHandler that logs and forwards errors.
func NewAlertingErrorHandler(logger *slog.Logger, notify AlertFunc) *AlertingErrorHandler {
	return &AlertingErrorHandler{
		Logger: logger,
		Notify: notify,
	}
}

func (h *AlertingErrorHandler) HandleError(ctx context.Context, job *rivertype.JobRow, err error) *river.ErrorHandlerResult {
	if h.Logger != nil {
		h.Logger.Error("job failed", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", err)
	}
	if h.Notify != nil {
		h.Notify(ctx, job, err)
	}
	return nil
}

func (h *AlertingErrorHandler) HandlePanic(ctx context.Context, job *rivertype.JobRow, panicVal any, trace string) *river.ErrorHandlerResult {
	panicErr := fmt.Errorf("panic: %v", panicVal)
	if h.Logger != nil {
		h.Logger.Error("job panicked", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "error", panicErr, "trace", trace)
	}
	if h.Notify != nil {
		h.Notify(ctx, job, panicErr)
	}
	return nil
}

// NewAppendExhaustionNotifier returns an AlertFunc that raises an audit
// alert when an append job burns its final attempt. A recorded event with
// no surviving append job is the one failure mode that leaves a permanent
// hole in a chain, so it pages rather than just logs.
func NewAppendExhaustionNotifier(auditor *audit.Logger) AlertFunc {
	return func(_ context.Context, job *rivertype.JobRow, err error) {
		if job.Kind != ledger.AppendJobKind || job.Attempt < job.MaxAttempts {
			return
		}

		var args ledger.AppendArgs
		if jsonErr := json.Unmarshal(job.EncodedArgs, &args); jsonErr != nil {
			auditor.AppendExhausted("", "", 0, fmt.Sprintf("job %d exhausted, args undecodable: %v", job.ID, err))
			return
		}
		ev := args.Event
		auditor.AppendExhausted(ev.EntityType, ev.EntityID, ev.Seq, err.Error())
	}
}
