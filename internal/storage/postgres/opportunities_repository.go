package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
)

var _ opportunities.Repository = (*OpportunityRepository)(nil)

type OpportunityRepository struct {
	pool  *pgxpool.Pool
	tx    pgx.Tx
	queue *river.Client[pgx.Tx]
}

type opportunityRow struct {
	ID            string
	EmployerID    *string
	InstitutionID *string
	Title         string
	Description   string
	Status        string
	CreatedAt     pgtype.Timestamptz
	UpdatedAt     pgtype.Timestamptz
}

const opportunityColumns = `id, employer_id, institution_id, title, description, status, created_at, updated_at`

func (r *OpportunityRepository) Create(ctx context.Context, params opportunities.CreateParams) (*opportunities.Opportunity, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
INSERT INTO opportunities (
	id,
	employer_id,
	institution_id,
	title,
	description,
	status
) VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+opportunityColumns+`
`,
		params.ID,
		params.EmployerID,
		params.InstitutionID,
		params.Title,
		params.Description,
		string(params.Status),
	)

	opp, err := scanOpportunity(row)
	if err != nil {
		return nil, fmt.Errorf("create opportunity: %w", err)
	}
	return opp, nil
}

func (r *OpportunityRepository) Get(ctx context.Context, id string) (*opportunities.Opportunity, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
SELECT `+opportunityColumns+`
  FROM opportunities
 WHERE id = $1
`, id)

	opp, err := scanOpportunity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, opportunities.ErrNotFound
		}
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return opp, nil
}

func (r *OpportunityRepository) GetForUpdate(ctx context.Context, id string) (*opportunities.Opportunity, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("get opportunity for update: requires a transaction")
	}

	row := r.tx.QueryRow(ctx, `
SELECT `+opportunityColumns+`
  FROM opportunities
 WHERE id = $1
   FOR UPDATE
`, id)

	opp, err := scanOpportunity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, opportunities.ErrNotFound
		}
		return nil, fmt.Errorf("get opportunity for update: %w", err)
	}
	return opp, nil
}

func (r *OpportunityRepository) UpdateStatus(ctx context.Context, id string, from, to opportunities.Status) (*opportunities.Opportunity, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
UPDATE opportunities
   SET status = $3, updated_at = now()
 WHERE id = $1 AND status = $2
RETURNING `+opportunityColumns+`
`, id, string(from), string(to))

	opp, err := scanOpportunity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, r.updateStatusMiss(ctx, id)
		}
		return nil, fmt.Errorf("update opportunity status: %w", err)
	}
	return opp, nil
}

// updateStatusMiss decides why a guarded status write matched nothing: a
// missing row is ErrNotFound, a row whose status moved since it was loaded
// is ErrConflict.
func (r *OpportunityRepository) updateStatusMiss(ctx context.Context, id string) error {
	var exists bool
	if err := r.queryer().QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM opportunities WHERE id = $1)
`, id).Scan(&exists); err != nil {
		return fmt.Errorf("update opportunity status: %w", err)
	}
	if !exists {
		return opportunities.ErrNotFound
	}
	return opportunities.ErrConflict
}

func (r *OpportunityRepository) List(ctx context.Context, params opportunities.ListParams) ([]opportunities.Opportunity, error) {
	queryer := r.queryer()

	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := queryer.Query(ctx, `
SELECT `+opportunityColumns+`
  FROM opportunities
 WHERE ($1 = '' OR status = $1)
   AND ($2 = '' OR employer_id = $2)
   AND ($3 = '' OR institution_id = $3)
 ORDER BY created_at DESC, id DESC
 LIMIT $4 OFFSET $5
`, string(params.Status), params.EmployerID, params.InstitutionID, params.Limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	items := make([]opportunities.Opportunity, 0, params.Limit)
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		items = append(items, *opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	return items, nil
}

func (r *OpportunityRepository) RecordEvent(ctx context.Context, in ledger.RecordInput) error {
	led := &LedgerRepository{pool: r.pool, tx: r.tx, queue: r.queue}
	return led.Record(ctx, in)
}

func (r *OpportunityRepository) BeginTx(ctx context.Context) (opportunities.Repository, opportunities.TxCommitter, error) {
	if r.tx != nil {
		return nil, nil, fmt.Errorf("begin opportunities tx: already in a transaction")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin opportunities tx: %w", err)
	}
	return &OpportunityRepository{pool: r.pool, tx: tx, queue: r.queue}, tx, nil
}

func (r *OpportunityRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanOpportunity(row pgx.Row) (*opportunities.Opportunity, error) {
	var data opportunityRow
	if err := row.Scan(
		&data.ID,
		&data.EmployerID,
		&data.InstitutionID,
		&data.Title,
		&data.Description,
		&data.Status,
		&data.CreatedAt,
		&data.UpdatedAt,
	); err != nil {
		return nil, err
	}

	opp := &opportunities.Opportunity{
		ID:            data.ID,
		EmployerID:    data.EmployerID,
		InstitutionID: data.InstitutionID,
		Title:         data.Title,
		Description:   data.Description,
		Status:        opportunities.Status(data.Status),
	}
	if data.CreatedAt.Valid {
		opp.CreatedAt = data.CreatedAt.Time
	}
	if data.UpdatedAt.Valid {
		opp.UpdatedAt = data.UpdatedAt.Time
	}
	return opp, nil
}
