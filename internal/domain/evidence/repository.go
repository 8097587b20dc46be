package evidence

import (
	"context"

	"github.com/praktika-foundation/server/internal/domain/ledger"
)

// ApplicationContext is the slice of the parent application a submission or
// review needs: its lifecycle state, the student who owns it, and which
// counterparties exist.
type ApplicationContext struct {
	ID            string
	Status        string
	StudentID     string
	EmployerID    *string
	InstitutionID *string
}

func (c ApplicationContext) HasEmployer() bool {
	return c.EmployerID != nil
}

func (c ApplicationContext) HasInstitution() bool {
	return c.InstitutionID != nil
}

// CreateParams carries a validated, sanitized submission into storage.
type CreateParams struct {
	ID            string
	ApplicationID string
	Title         string
	AttachmentURL *string
	Status        Status
}

// TxCommitter finalizes a transaction opened by Repository.BeginTx.
type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository defines the storage contract for evidence. Mutating methods
// are called on a transaction-scoped repository obtained from BeginTx so a
// review, its derived status, and its ledger event commit together.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Evidence, error)
	Get(ctx context.Context, id string) (*Evidence, error)
	// GetForUpdate loads the evidence row under an exclusive lock held for
	// the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*Evidence, error)
	ListByApplication(ctx context.Context, applicationID string) ([]Evidence, error)
	// SetVerdicts persists both verdict slots and the derived status.
	SetVerdicts(ctx context.Context, id string, employer, institution *Verdict, status Status) (*Evidence, error)

	// GetApplicationContext loads the parent application without locking.
	GetApplicationContext(ctx context.Context, applicationID string) (*ApplicationContext, error)
	// GetApplicationContextForUpdate additionally takes the application's
	// row lock, serializing evidence mutations against lifecycle
	// transitions that read evidence state.
	GetApplicationContextForUpdate(ctx context.Context, applicationID string) (*ApplicationContext, error)

	// RecordEvent queues a ledger event in the current transaction.
	RecordEvent(ctx context.Context, in ledger.RecordInput) error

	// BeginTx returns a repository bound to a new transaction and the
	// committer that finalizes it.
	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
}
