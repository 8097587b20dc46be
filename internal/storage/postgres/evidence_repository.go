package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/ledger"
)

var _ evidence.Repository = (*EvidenceRepository)(nil)

type EvidenceRepository struct {
	pool  *pgxpool.Pool
	tx    pgx.Tx
	queue *river.Client[pgx.Tx]
}

type evidenceRow struct {
	ID                 string
	ApplicationID      string
	Title              string
	AttachmentURL      *string
	EmployerVerdict    *string
	InstitutionVerdict *string
	Status             string
	SubmittedAt        pgtype.Timestamptz
	UpdatedAt          pgtype.Timestamptz
}

const evidenceColumns = `id, application_id, title, attachment_url, employer_verdict, institution_verdict, status, submitted_at, updated_at`

func (r *EvidenceRepository) Create(ctx context.Context, params evidence.CreateParams) (*evidence.Evidence, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
INSERT INTO evidence (
	id,
	application_id,
	title,
	attachment_url,
	status
) VALUES ($1, $2, $3, $4, $5)
RETURNING `+evidenceColumns+`
`,
		params.ID,
		params.ApplicationID,
		params.Title,
		params.AttachmentURL,
		string(params.Status),
	)

	ev, err := scanEvidence(row)
	if err != nil {
		return nil, fmt.Errorf("create evidence: %w", err)
	}
	return ev, nil
}

func (r *EvidenceRepository) Get(ctx context.Context, id string) (*evidence.Evidence, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
SELECT `+evidenceColumns+`
  FROM evidence
 WHERE id = $1
`, id)

	ev, err := scanEvidence(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, evidence.ErrNotFound
		}
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return ev, nil
}

func (r *EvidenceRepository) GetForUpdate(ctx context.Context, id string) (*evidence.Evidence, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("get evidence for update: requires a transaction")
	}

	row := r.tx.QueryRow(ctx, `
SELECT `+evidenceColumns+`
  FROM evidence
 WHERE id = $1
   FOR UPDATE
`, id)

	ev, err := scanEvidence(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, evidence.ErrNotFound
		}
		return nil, fmt.Errorf("get evidence for update: %w", err)
	}
	return ev, nil
}

func (r *EvidenceRepository) ListByApplication(ctx context.Context, applicationID string) ([]evidence.Evidence, error) {
	queryer := r.queryer()

	rows, err := queryer.Query(ctx, `
SELECT `+evidenceColumns+`
  FROM evidence
 WHERE application_id = $1
 ORDER BY submitted_at ASC, id ASC
`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var items []evidence.Evidence
	for rows.Next() {
		ev, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		items = append(items, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	return items, nil
}

func (r *EvidenceRepository) SetVerdicts(ctx context.Context, id string, employer, institution *evidence.Verdict, status evidence.Status) (*evidence.Evidence, error) {
	queryer := r.queryer()

	row := queryer.QueryRow(ctx, `
UPDATE evidence
   SET employer_verdict = $2, institution_verdict = $3, status = $4, updated_at = now()
 WHERE id = $1
RETURNING `+evidenceColumns+`
`, id, verdictValue(employer), verdictValue(institution), string(status))

	ev, err := scanEvidence(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, evidence.ErrNotFound
		}
		return nil, fmt.Errorf("set evidence verdicts: %w", err)
	}
	return ev, nil
}

func (r *EvidenceRepository) GetApplicationContext(ctx context.Context, applicationID string) (*evidence.ApplicationContext, error) {
	return r.applicationContext(ctx, applicationID, false)
}

func (r *EvidenceRepository) GetApplicationContextForUpdate(ctx context.Context, applicationID string) (*evidence.ApplicationContext, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("get application context for update: requires a transaction")
	}
	return r.applicationContext(ctx, applicationID, true)
}

func (r *EvidenceRepository) applicationContext(ctx context.Context, applicationID string, forUpdate bool) (*evidence.ApplicationContext, error) {
	query := `
SELECT id, status, student_id, employer_id, institution_id
  FROM applications
 WHERE id = $1
`
	if forUpdate {
		query += `   FOR UPDATE
`
	}

	var appCtx evidence.ApplicationContext
	err := r.queryer().QueryRow(ctx, query, applicationID).Scan(
		&appCtx.ID,
		&appCtx.Status,
		&appCtx.StudentID,
		&appCtx.EmployerID,
		&appCtx.InstitutionID,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, evidence.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("get application context: %w", err)
	}
	return &appCtx, nil
}

func (r *EvidenceRepository) RecordEvent(ctx context.Context, in ledger.RecordInput) error {
	led := &LedgerRepository{pool: r.pool, tx: r.tx, queue: r.queue}
	return led.Record(ctx, in)
}

func (r *EvidenceRepository) BeginTx(ctx context.Context) (evidence.Repository, evidence.TxCommitter, error) {
	if r.tx != nil {
		return nil, nil, fmt.Errorf("begin evidence tx: already in a transaction")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin evidence tx: %w", err)
	}
	return &EvidenceRepository{pool: r.pool, tx: tx, queue: r.queue}, tx, nil
}

func (r *EvidenceRepository) queryer() queryer {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func verdictValue(v *evidence.Verdict) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func scanEvidence(row pgx.Row) (*evidence.Evidence, error) {
	var data evidenceRow
	if err := row.Scan(
		&data.ID,
		&data.ApplicationID,
		&data.Title,
		&data.AttachmentURL,
		&data.EmployerVerdict,
		&data.InstitutionVerdict,
		&data.Status,
		&data.SubmittedAt,
		&data.UpdatedAt,
	); err != nil {
		return nil, err
	}

	ev := &evidence.Evidence{
		ID:            data.ID,
		ApplicationID: data.ApplicationID,
		Title:         data.Title,
		AttachmentURL: data.AttachmentURL,
		Status:        evidence.Status(data.Status),
	}
	if data.EmployerVerdict != nil {
		verdict := evidence.Verdict(*data.EmployerVerdict)
		ev.EmployerVerdict = &verdict
	}
	if data.InstitutionVerdict != nil {
		verdict := evidence.Verdict(*data.InstitutionVerdict)
		ev.InstitutionVerdict = &verdict
	}
	if data.SubmittedAt.Valid {
		ev.SubmittedAt = data.SubmittedAt.Time
	}
	if data.UpdatedAt.Valid {
		ev.UpdatedAt = data.UpdatedAt.Time
	}
	return ev, nil
}
