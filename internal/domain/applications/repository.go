package applications

import (
	"context"
	"time"

	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
)

// CreateParams carries a new engagement into storage. EmployerID and
// InstitutionID are the opportunity's parties at apply time.
type CreateParams struct {
	ID            string
	OpportunityID string
	StudentID     string
	EmployerID    *string
	InstitutionID *string
	Status        Status
}

// TxCommitter finalizes a transaction opened by Repository.BeginTx.
type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository defines the storage contract for applications.
type Repository interface {
	// Create inserts a new engagement, returning ErrDuplicateApplication
	// when the student already applied to the opportunity.
	Create(ctx context.Context, params CreateParams) (*Application, error)
	Get(ctx context.Context, id string) (*Application, error)
	// GetForUpdate loads the application under an exclusive row lock held
	// for the rest of the transaction. Every lifecycle change, feedback
	// write, and evidence mutation serializes on this lock.
	GetForUpdate(ctx context.Context, id string) (*Application, error)
	ListByOpportunity(ctx context.Context, opportunityID string) ([]Application, error)
	// UpdateStatus writes to only when the stored status still equals from,
	// returning ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Application, error)
	SetFeedback(ctx context.Context, id string, rating int, comments *string, recordedAt time.Time) (*Application, error)

	// EvidenceTally counts the application's evidence by settlement within
	// the current transaction.
	EvidenceTally(ctx context.Context, applicationID string) (evidence.Tally, error)
	// GetOpportunityForShare loads the posting under a shared lock, so an
	// apply can hold the posting open until it commits without blocking
	// other applicants. Returns ErrOpportunityNotFound when missing.
	GetOpportunityForShare(ctx context.Context, id string) (*opportunities.Opportunity, error)
	// History returns the application's appended ledger chain in position
	// order.
	History(ctx context.Context, applicationID string) ([]ledger.Event, error)

	// RecordEvent queues a ledger event in the current transaction.
	RecordEvent(ctx context.Context, in ledger.RecordInput) error

	// BeginTx returns a repository bound to a new transaction and the
	// committer that finalizes it.
	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
}
