package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/praktika-foundation/server/internal/domain/applications"
	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
)

var _ applications.Repository = (*ApplicationRepository)(nil)

type ApplicationRepository struct {
	pool  *pgxpool.Pool
	tx    pgx.Tx
	queue *river.Client[pgx.Tx]
}

type applicationRow struct {
	ID                 string
	OpportunityID      string
	StudentID          string
	EmployerID         *string
	InstitutionID      *string
	Status             string
	FeedbackRating     *int
	FeedbackComments   *string
	FeedbackRecordedAt pgtype.Timestamptz
	CreatedAt          pgtype.Timestamptz
	UpdatedAt          pgtype.Timestamptz
}

const applicationColumns = `id, opportunity_id, student_id, employer_id, institution_id, status, feedback_rating, feedback_comments, feedback_recorded_at, created_at, updated_at`

func (r *ApplicationRepository) Create(ctx context.Context, params applications.CreateParams) (*applications.Application, error) {
	queryer := r.queryer()

	// ON CONFLICT DO NOTHING returns no row when the student already
	// applied, which is how the duplicate surfaces without racing a
	// separate existence check.
	row := queryer.QueryRow(ctx, `
INSERT INTO applications (
	id,
	opportunity_id,
	student_id,
	employer_id,
	institution_id,
	status
) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (opportunity_id, student_id) DO NOTHING
RETURNING `+applicationColumns+`
`,
		params.ID,
		params.OpportunityID,
		params.StudentID,
		params.EmployerID,
		params.InstitutionID,
		string(params.Status),
	)

	app, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, applications.ErrDuplicateApplication
		}
		return nil, fmt.Errorf("create application: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepository) Get(ctx context.Context, id string) (*applications.Application, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
SELECT `+applicationColumns+`
  FROM applications
 WHERE id = $1
`, id)

	app, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, applications.ErrNotFound
		}
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepository) GetForUpdate(ctx context.Context, id string) (*applications.Application, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("get application for update: requires a transaction")
	}

	row := r.tx.QueryRow(ctx, `
SELECT `+applicationColumns+`
  FROM applications
 WHERE id = $1
   FOR UPDATE
`, id)

	app, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, applications.ErrNotFound
		}
		return nil, fmt.Errorf("get application for update: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepository) ListByOpportunity(ctx context.Context, opportunityID string) ([]applications.Application, error) {
	queryer := r.queryer()

	rows, err := queryer.Query(ctx, `
SELECT `+applicationColumns+`
  FROM applications
 WHERE opportunity_id = $1
 ORDER BY created_at ASC, id ASC
`, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var items []applications.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		items = append(items, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return items, nil
}

func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id string, from, to applications.Status) (*applications.Application, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
UPDATE applications
   SET status = $3, updated_at = now()
 WHERE id = $1 AND status = $2
RETURNING `+applicationColumns+`
`, id, string(from), string(to))

	app, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, r.updateStatusMiss(ctx, id)
		}
		return nil, fmt.Errorf("update application status: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepository) updateStatusMiss(ctx context.Context, id string) error {
	var exists bool
	if err := r.queryer().QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)
`, id).Scan(&exists); err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if !exists {
		return applications.ErrNotFound
	}
	return applications.ErrConflict
}

func (r *ApplicationRepository) SetFeedback(ctx context.Context, id string, rating int, comments *string, recordedAt time.Time) (*applications.Application, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
UPDATE applications
   SET feedback_rating = $2, feedback_comments = $3, feedback_recorded_at = $4, updated_at = now()
 WHERE id = $1
RETURNING `+applicationColumns+`
`, id, rating, comments, recordedAt)

	app, err := scanApplication(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, applications.ErrNotFound
		}
		return nil, fmt.Errorf("set application feedback: %w", err)
	}
	return app, nil
}

func (r *ApplicationRepository) EvidenceTally(ctx context.Context, applicationID string) (evidence.Tally, error) {
	queryer := r.queryer()

	var tally evidence.Tally
	err := queryer.QueryRow(ctx, `
SELECT
	COUNT(*) FILTER (WHERE status = $2),
	COUNT(*) FILTER (WHERE status <> $2 AND status <> $3)
  FROM evidence
 WHERE application_id = $1
`, applicationID, string(evidence.StatusAccepted), string(evidence.StatusRejected)).Scan(&tally.Accepted, &tally.Unsettled)
	if err != nil {
		return evidence.Tally{}, fmt.Errorf("tally evidence: %w", err)
	}
	return tally, nil
}

func (r *ApplicationRepository) GetOpportunityForShare(ctx context.Context, id string) (*opportunities.Opportunity, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("get opportunity for share: requires a transaction")
	}

	// FOR SHARE keeps the posting's status stable until the apply commits
	// without blocking other applicants taking the same shared lock.
	row := r.tx.QueryRow(ctx, `
SELECT `+opportunityColumns+`
  FROM opportunities
 WHERE id = $1
   FOR SHARE
`, id)

	opp, err := scanOpportunity(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, applications.ErrOpportunityNotFound
		}
		return nil, fmt.Errorf("get opportunity for share: %w", err)
	}
	return opp, nil
}

func (r *ApplicationRepository) History(ctx context.Context, applicationID string) ([]ledger.Event, error) {
	led := &LedgerRepository{pool: r.pool, tx: r.tx, queue: r.queue}
	return led.Chain(ctx, ledger.EntityApplication, applicationID)
}

func (r *ApplicationRepository) RecordEvent(ctx context.Context, in ledger.RecordInput) error {
	led := &LedgerRepository{pool: r.pool, tx: r.tx, queue: r.queue}
	return led.Record(ctx, in)
}

func (r *ApplicationRepository) BeginTx(ctx context.Context) (applications.Repository, applications.TxCommitter, error) {
	if r.tx != nil {
		return nil, nil, fmt.Errorf("begin applications tx: already in a transaction")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin applications tx: %w", err)
	}
	return &ApplicationRepository{pool: r.pool, tx: tx, queue: r.queue}, tx, nil
}

func (r *ApplicationRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func scanApplication(row pgx.Row) (*applications.Application, error) {
	var data applicationRow
	if err := row.Scan(
		&data.ID,
		&data.OpportunityID,
		&data.StudentID,
		&data.EmployerID,
		&data.InstitutionID,
		&data.Status,
		&data.FeedbackRating,
		&data.FeedbackComments,
		&data.FeedbackRecordedAt,
		&data.CreatedAt,
		&data.UpdatedAt,
	); err != nil {
		return nil, err
	}

	app := &applications.Application{
		ID:               data.ID,
		OpportunityID:    data.OpportunityID,
		StudentID:        data.StudentID,
		EmployerID:       data.EmployerID,
		InstitutionID:    data.InstitutionID,
		Status:           applications.Status(data.Status),
		FeedbackRating:   data.FeedbackRating,
		FeedbackComments: data.FeedbackComments,
	}
	if data.FeedbackRecordedAt.Valid {
		recordedAt := data.FeedbackRecordedAt.Time
		app.FeedbackRecordedAt = &recordedAt
	}
	if data.CreatedAt.Valid {
		app.CreatedAt = data.CreatedAt.Time
	}
	if data.UpdatedAt.Valid {
		app.UpdatedAt = data.UpdatedAt.Time
	}
	return app, nil
}
