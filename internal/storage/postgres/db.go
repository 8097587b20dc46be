// Package postgres implements the storage repositories on pgx. Mutations
// run inside explicit transactions obtained through each repository's
// BeginTx; ledger recording inserts its append job through the River client
// in the same transaction, which is what makes the outbox transactional.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"

	"github.com/praktika-foundation/server/internal/domain/applications"
	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
	"github.com/praktika-foundation/server/internal/storage"
)

var _ storage.Repository = (*Repository)(nil)

type Repository struct {
	pool  *pgxpool.Pool
	tx    pgx.Tx
	queue *river.Client[pgx.Tx]
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres repository: pool is nil")
	}
	return &Repository{pool: pool}, nil
}

// WithQueue returns a repository whose ledger recorder enqueues append jobs
// on the given River client. The base repository is built before the client
// because the append worker itself needs the ledger repository; the serve
// command closes the loop with this call once both exist.
func (r *Repository) WithQueue(queue *river.Client[pgx.Tx]) *Repository {
	return &Repository{pool: r.pool, tx: r.tx, queue: queue}
}

func (r *Repository) Ledger() ledger.Repository {
	return &LedgerRepository{pool: r.pool, tx: r.tx, queue: r.queue}
}

func (r *Repository) Opportunities() opportunities.Repository {
	return &OpportunityRepository{pool: r.pool, tx: r.tx, queue: r.queue}
}

func (r *Repository) Applications() applications.Repository {
	return &ApplicationRepository{pool: r.pool, tx: r.tx, queue: r.queue}
}

func (r *Repository) Evidence() evidence.Repository {
	return &EvidenceRepository{pool: r.pool, tx: r.tx, queue: r.queue}
}

// queryer is the subset of pgx shared by pools and transactions. Every
// repository method runs against its transaction when one is bound and the
// pool otherwise.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
