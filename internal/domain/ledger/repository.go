package ledger

import (
	"context"
)

// EntityRef identifies one chain.
type EntityRef struct {
	EntityType string
	EntityID   string
}

// Repository is the durable ledger contract, implemented by the postgres
// layer. Record participates in the caller's transaction; the read methods
// observe committed chains only.
type Repository interface {
	// Record assigns the next chain position under the per-entity sequence
	// lock and queues the event for append after the enclosing transaction
	// commits. Concurrent recorders on the same entity serialize on that
	// lock, so positions are assigned in commit order. Nothing is queued if
	// the transaction rolls back.
	Record(ctx context.Context, in RecordInput) error

	// Append inserts the event row linked to the current chain head and
	// backfills its hash, atomically. Returns ErrSequenceGap when the
	// event's position is more than one past the head, and reports an
	// already-appended position as a no-op when the stored event carries
	// the same id.
	Append(ctx context.Context, ev Event) error

	// Head returns the event at the highest appended position, or
	// ErrNotFound for an empty chain.
	Head(ctx context.Context, entityType, entityID string) (*Event, error)

	// GetBySeq returns the appended event at the given position, or
	// ErrNotFound.
	GetBySeq(ctx context.Context, entityType, entityID string, seq int64) (*Event, error)

	// Chain returns all appended events for the entity in position order.
	Chain(ctx context.Context, entityType, entityID string) ([]Event, error)

	// AssignedSeq returns the highest position handed out for the entity,
	// zero when nothing was ever recorded. Assigned positions ahead of the
	// appended head are in flight with the append worker.
	AssignedSeq(ctx context.Context, entityType, entityID string) (int64, error)

	// Entities lists every chain known to the sequence table.
	Entities(ctx context.Context) ([]EntityRef, error)

	// Lag counts positions assigned but not yet appended across all
	// chains.
	Lag(ctx context.Context) (int64, error)
}
