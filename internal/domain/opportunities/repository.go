package opportunities

import (
	"context"
	"errors"

	"github.com/praktika-foundation/server/internal/domain/ledger"
)

var (
	// ErrNotFound is returned when an opportunity lookup fails.
	ErrNotFound = errors.New("opportunity not found")

	// ErrConflict is returned when a status write finds the stored state
	// changed since it was loaded.
	ErrConflict = errors.New("opportunity state changed concurrently")

	// ErrNoOwningParty is returned when a posting names neither an employer
	// nor an institution.
	ErrNoOwningParty = errors.New("opportunity requires an employer or institution")

	// ErrForbidden is returned when the access policy denies creating a
	// posting for the named parties.
	ErrForbidden = errors.New("actor may not create this opportunity")
)

// CreateParams carries a validated, sanitized posting into storage.
type CreateParams struct {
	ID            string
	EmployerID    *string
	InstitutionID *string
	Title         string
	Description   string
	Status        Status
}

// ListParams filters and pages posting listings.
type ListParams struct {
	// Status narrows the listing to one lifecycle state when set.
	Status Status
	// EmployerID narrows the listing to one employer's postings when set.
	EmployerID string
	// InstitutionID narrows the listing to one institution's postings when set.
	InstitutionID string
	Limit         int
	Offset        int
}

// TxCommitter finalizes a transaction opened by Repository.BeginTx.
type TxCommitter interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository defines the storage contract for opportunities.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Opportunity, error)
	Get(ctx context.Context, id string) (*Opportunity, error)
	// GetForUpdate loads the posting under an exclusive row lock held for
	// the rest of the transaction.
	GetForUpdate(ctx context.Context, id string) (*Opportunity, error)
	// UpdateStatus writes to only when the stored status still equals from,
	// returning ErrConflict otherwise.
	UpdateStatus(ctx context.Context, id string, from, to Status) (*Opportunity, error)
	List(ctx context.Context, params ListParams) ([]Opportunity, error)

	// RecordEvent queues a ledger event in the current transaction.
	RecordEvent(ctx context.Context, in ledger.RecordInput) error

	// BeginTx returns a repository bound to a new transaction and the
	// committer that finalizes it.
	BeginTx(ctx context.Context) (Repository, TxCommitter, error)
}
