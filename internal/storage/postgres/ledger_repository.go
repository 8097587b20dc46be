package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/metrics"
)

var _ ledger.Repository = (*LedgerRepository)(nil)

// LedgerRepository persists the hash-chained event log. Record runs inside
// the caller's transaction and only reserves a chain position plus an
// append job; the event row itself is written later by Append, which the
// queue worker calls after that transaction has committed.
type LedgerRepository struct {
	pool  *pgxpool.Pool
	tx    pgx.Tx
	queue *river.Client[pgx.Tx]
}

type ledgerEventRow struct {
	ID           string
	EntityType   string
	EntityID     string
	Seq          int64
	EventType    string
	ActorID      *string
	ActorRole    *string
	Payload      string
	OccurredAt   pgtype.Timestamptz
	PreviousHash *string
	Hash         *string
	AppendedAt   pgtype.Timestamptz
}

const ledgerEventColumns = `id, entity_type, entity_id, seq, event_type, actor_id, actor_role, payload, occurred_at, previous_hash, hash, appended_at`

func (r *LedgerRepository) Record(ctx context.Context, in ledger.RecordInput) error {
	if r.queue == nil {
		return fmt.Errorf("record ledger event: repository has no queue client")
	}
	if r.tx != nil {
		return r.record(ctx, r.tx, in)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("record ledger event: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.record(ctx, tx, in); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("record ledger event: commit: %w", err)
	}
	return nil
}

func (r *LedgerRepository) record(ctx context.Context, tx pgx.Tx, in ledger.RecordInput) error {
	// The upsert takes the entity's sequence row lock for the rest of the
	// transaction, so concurrent recorders on one entity serialize here and
	// positions are handed out in commit order.
	var seq int64
	err := tx.QueryRow(ctx, `
INSERT INTO ledger_sequences (entity_type, entity_id, last_seq)
VALUES ($1, $2, 1)
ON CONFLICT (entity_type, entity_id)
DO UPDATE SET last_seq = ledger_sequences.last_seq + 1
RETURNING last_seq
`, in.EntityType, in.EntityID).Scan(&seq)
	if err != nil {
		return fmt.Errorf("record ledger event: assign seq: %w", err)
	}

	ev, err := ledger.NewEvent(in, seq, time.Now())
	if err != nil {
		return fmt.Errorf("record ledger event: %w", err)
	}

	_, err = r.queue.InsertTx(ctx, tx, ledger.AppendArgs{Event: ev}, &river.InsertOpts{
		Queue:      ledger.AppendQueue,
		UniqueOpts: river.UniqueOpts{ByArgs: true},
	})
	if err != nil {
		return fmt.Errorf("record ledger event: enqueue append: %w", err)
	}

	metrics.LedgerEventsRecordedTotal.WithLabelValues(in.EntityType).Inc()
	return nil
}

func (r *LedgerRepository) Append(ctx context.Context, ev ledger.Event) error {
	if r.tx != nil {
		return r.append(ctx, r.tx, ev)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return ledger.WriteError{EntityType: ev.EntityType, EntityID: ev.EntityID, Seq: ev.Seq, Err: fmt.Errorf("begin: %w", err)}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := r.append(ctx, tx, ev); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return ledger.WriteError{EntityType: ev.EntityType, EntityID: ev.EntityID, Seq: ev.Seq, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (r *LedgerRepository) append(ctx context.Context, tx pgx.Tx, ev ledger.Event) error {
	fail := func(err error) error {
		return ledger.WriteError{EntityType: ev.EntityType, EntityID: ev.EntityID, Seq: ev.Seq, Err: err}
	}

	// Lock the chain head for the rest of the transaction. Appends to one
	// chain serialize here; genesis events have no row to lock and fall
	// back on the (entity_type, entity_id, seq) unique index instead.
	var headID string
	var headSeq int64
	var headHash *string
	err := tx.QueryRow(ctx, `
SELECT id, seq, hash
  FROM ledger_events
 WHERE entity_type = $1 AND entity_id = $2
 ORDER BY seq DESC
 LIMIT 1
   FOR UPDATE
`, ev.EntityType, ev.EntityID).Scan(&headID, &headSeq, &headHash)
	if err != nil && err != pgx.ErrNoRows {
		return fail(fmt.Errorf("lock head: %w", err))
	}

	if ev.Seq <= headSeq {
		// Position already taken. Same id means the queue redelivered an
		// append that committed; anything else is a chain fault.
		storedID := headID
		if ev.Seq < headSeq {
			if err := tx.QueryRow(ctx, `
SELECT id
  FROM ledger_events
 WHERE entity_type = $1 AND entity_id = $2 AND seq = $3
`, ev.EntityType, ev.EntityID, ev.Seq).Scan(&storedID); err != nil {
				return fail(fmt.Errorf("inspect occupied position: %w", err))
			}
		}
		if storedID == ev.ID {
			return nil
		}
		return fail(fmt.Errorf("position already holds event %s", storedID))
	}

	if ev.Seq > headSeq+1 {
		return fail(fmt.Errorf("head at %d: %w", headSeq, ledger.ErrSequenceGap))
	}

	if headSeq > 0 {
		if headHash == nil {
			return fail(fmt.Errorf("head %s has no hash", headID))
		}
		ev.PreviousHash = headHash
	} else {
		ev.PreviousHash = nil
	}

	// Payload is stored as text, not jsonb: jsonb normalizes key order and
	// number formatting, and the hash must digest the recorded bytes.
	_, err = tx.Exec(ctx, `
INSERT INTO ledger_events (
	id,
	entity_type,
	entity_id,
	seq,
	event_type,
	actor_id,
	actor_role,
	payload,
	occurred_at,
	previous_hash
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`,
		ev.ID,
		ev.EntityType,
		ev.EntityID,
		ev.Seq,
		ev.EventType,
		ev.ActorID,
		ev.ActorRole,
		string(ev.Payload),
		ev.OccurredAt,
		ev.PreviousHash,
	)
	if err != nil {
		return fail(fmt.Errorf("insert: %w", err))
	}

	if _, err := tx.Exec(ctx, `
UPDATE ledger_events
   SET hash = $1
 WHERE id = $2
`, ev.ComputeHash(), ev.ID); err != nil {
		return fail(fmt.Errorf("backfill hash: %w", err))
	}
	return nil
}

func (r *LedgerRepository) Head(ctx context.Context, entityType, entityID string) (*ledger.Event, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
SELECT `+ledgerEventColumns+`
  FROM ledger_events
 WHERE entity_type = $1 AND entity_id = $2
 ORDER BY seq DESC
 LIMIT 1
`, entityType, entityID)

	ev, err := scanLedgerEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("get chain head: %w", err)
	}
	return ev, nil
}

func (r *LedgerRepository) GetBySeq(ctx context.Context, entityType, entityID string, seq int64) (*ledger.Event, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
SELECT `+ledgerEventColumns+`
  FROM ledger_events
 WHERE entity_type = $1 AND entity_id = $2 AND seq = $3
`, entityType, entityID, seq)

	ev, err := scanLedgerEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("get event by seq: %w", err)
	}
	return ev, nil
}

func (r *LedgerRepository) Chain(ctx context.Context, entityType, entityID string) ([]ledger.Event, error) {
	queryer := r.queryer()

	rows, err := queryer.Query(ctx, `
SELECT `+ledgerEventColumns+`
  FROM ledger_events
 WHERE entity_type = $1 AND entity_id = $2
 ORDER BY seq ASC
`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list chain: %w", err)
	}
	defer rows.Close()

	var chain []ledger.Event
	for rows.Next() {
		ev, err := scanLedgerEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chain event: %w", err)
		}
		chain = append(chain, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chain: %w", err)
	}
	return chain, nil
}

func (r *LedgerRepository) AssignedSeq(ctx context.Context, entityType, entityID string) (int64, error) {
	queryer := r.queryer()

	var seq int64
	err := queryer.QueryRow(ctx, `
SELECT last_seq
  FROM ledger_sequences
 WHERE entity_type = $1 AND entity_id = $2
`, entityType, entityID).Scan(&seq)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("get assigned seq: %w", err)
	}
	return seq, nil
}

func (r *LedgerRepository) Entities(ctx context.Context) ([]ledger.EntityRef, error) {
	queryer := r.queryer()

	rows, err := queryer.Query(ctx, `
SELECT entity_type, entity_id
  FROM ledger_sequences
 ORDER BY entity_type, entity_id
`)
	if err != nil {
		return nil, fmt.Errorf("list ledger entities: %w", err)
	}
	defer rows.Close()

	var refs []ledger.EntityRef
	for rows.Next() {
		var ref ledger.EntityRef
		if err := rows.Scan(&ref.EntityType, &ref.EntityID); err != nil {
			return nil, fmt.Errorf("scan ledger entity: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledger entities: %w", err)
	}
	return refs, nil
}

func (r *LedgerRepository) Lag(ctx context.Context) (int64, error) {
	queryer := r.queryer()

	var lag int64
	err := queryer.QueryRow(ctx, `
SELECT COALESCE(SUM(s.last_seq - COALESCE(e.head_seq, 0)), 0)
  FROM ledger_sequences s
  LEFT JOIN (
	SELECT entity_type, entity_id, MAX(seq) AS head_seq
	  FROM ledger_events
	 GROUP BY entity_type, entity_id
  ) e ON e.entity_type = s.entity_type AND e.entity_id = s.entity_id
`).Scan(&lag)
	if err != nil {
		return 0, fmt.Errorf("compute ledger lag: %w", err)
	}
	return lag, nil
}

func (r *LedgerRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanLedgerEvent(row pgx.Row) (*ledger.Event, error) {
	var data ledgerEventRow
	if err := row.Scan(
		&data.ID,
		&data.EntityType,
		&data.EntityID,
		&data.Seq,
		&data.EventType,
		&data.ActorID,
		&data.ActorRole,
		&data.Payload,
		&data.OccurredAt,
		&data.PreviousHash,
		&data.Hash,
		&data.AppendedAt,
	); err != nil {
		return nil, err
	}
	return mapLedgerEventRow(data), nil
}

func mapLedgerEventRow(data ledgerEventRow) *ledger.Event {
	ev := &ledger.Event{
		ID:           data.ID,
		EntityType:   data.EntityType,
		EntityID:     data.EntityID,
		Seq:          data.Seq,
		EventType:    data.EventType,
		ActorID:      data.ActorID,
		ActorRole:    data.ActorRole,
		Payload:      []byte(data.Payload),
		PreviousHash: data.PreviousHash,
		Hash:         data.Hash,
	}
	if data.OccurredAt.Valid {
		ev.OccurredAt = data.OccurredAt.Time.UTC()
	}
	if data.AppendedAt.Valid {
		ev.AppendedAt = data.AppendedAt.Time.UTC()
	}
	return ev
}
