package applications

import (
	"context"
	"fmt"

	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/workflow"
)

// EvidenceReader is the wider environment the completion guard needs. The
// transaction-scoped env implements it alongside workflow.Env; the guard
// upgrades through a type assertion, the way an http handler upgrades a
// ResponseWriter to http.Flusher.
type EvidenceReader interface {
	EvidenceTally(ctx context.Context, applicationID string) (evidence.Tally, error)
}

// CompletionGuard blocks ACTIVE -> COMPLETED until every evidence record is
// settled and at least one was accepted. It reads through the transition's
// own transaction, and the application row lock is already held, so no
// concurrent review can change the tally between this check and the status
// write.
func CompletionGuard(ctx context.Context, env workflow.Env[Status, *Application], app *Application) error {
	reader, ok := env.(EvidenceReader)
	if !ok {
		return fmt.Errorf("workflow env %T cannot read evidence", env)
	}

	tally, err := reader.EvidenceTally(ctx, app.ID)
	if err != nil {
		return fmt.Errorf("tally evidence for application %s: %w", app.ID, err)
	}

	if tally.Unsettled > 0 {
		return workflow.GuardViolationError{
			EntityType: ledger.EntityApplication,
			EntityID:   app.ID,
			Target:     string(StatusCompleted),
			Reason:     "evidence reviews are still pending",
		}
	}
	if tally.Accepted == 0 {
		return workflow.GuardViolationError{
			EntityType: ledger.EntityApplication,
			EntityID:   app.ID,
			Target:     string(StatusCompleted),
			Reason:     "no accepted evidence",
		}
	}
	return nil
}
