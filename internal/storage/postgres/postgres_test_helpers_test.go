package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/praktika-foundation/server/internal/domain/applications"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
)

var (
	sharedOnce      sync.Once
	sharedInitErr   error
	sharedContainer *postgres.PostgresContainer
	sharedPool      *pgxpool.Pool
	sharedDBURL     string
)

const sharedContainerName = "praktika-storage-db"

func TestMain(m *testing.M) {
	code := m.Run()
	cleanupShared()
	os.Exit(code)
}

func setupPostgres(t *testing.T, ctx context.Context) (*pgxpool.Pool, string) {
	t.Helper()

	initShared(t)
	resetDatabase(t, sharedPool)

	return sharedPool, sharedDBURL
}

func initShared(t *testing.T) {
	t.Helper()
	sharedOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		// Disable ryuk (resource reaper) to prevent premature container cleanup
		_ = os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

		container, err := postgres.Run(
			ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("praktika"),
			postgres.WithUsername("praktika"),
			postgres.WithPassword("praktika_dev"),
			testcontainers.WithReuseByName(sharedContainerName),
		)
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedContainer = container

		dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedInitErr = err
			return
		}
		sharedDBURL = dbURL

		migrationsPath := filepath.Join(projectRoot(), DefaultMigrationsPath)
		if err := migrateWithRetry(dbURL, migrationsPath, 10*time.Second); err != nil {
			sharedInitErr = err
			return
		}

		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			sharedInitErr = err
			return
		}

		if err := MigrateRiver(ctx, pool); err != nil {
			sharedInitErr = err
			pool.Close()
			return
		}

		sharedPool = pool
	})

	require.NoError(t, sharedInitErr)
}

func cleanupShared() {
	if sharedPool != nil {
		sharedPool.Close()
	}
	// Note: Do NOT terminate the shared container - testcontainers will clean it up
	// Terminating it here causes connection errors in tests that haven't run yet
}

func resetDatabase(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if pool == nil {
		require.Fail(t, "shared pool is nil")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
SELECT tablename
  FROM pg_tables
 WHERE schemaname = 'public'
   AND tablename <> 'schema_migrations'
   AND tablename <> 'river_migration'
 ORDER BY tablename;
`)
	require.NoError(t, err)
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		if name == "" {
			continue
		}
		safe := strings.ReplaceAll(name, "\"", "\"\"")
		tables = append(tables, "\"public\".\""+safe+"\"")
	}
	require.NoError(t, rows.Err())

	if len(tables) == 0 {
		return
	}

	truncateSQL := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE;"
	_, err = pool.Exec(ctx, truncateSQL)
	require.NoError(t, err)
}

// newQueueClient returns an insert-only River client. Nothing works the
// queue in repository tests; enqueued jobs are asserted against river_job
// directly.
func newQueueClient(t *testing.T, pool *pgxpool.Pool) *river.Client[pgx.Tx] {
	t.Helper()
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	require.NoError(t, err)
	return client
}

func newRepository(t *testing.T, pool *pgxpool.Pool) *Repository {
	t.Helper()
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	return repo.WithQueue(newQueueClient(t, pool))
}

func insertOpportunity(t *testing.T, ctx context.Context, pool *pgxpool.Pool, title string, status opportunities.Status, employerID, institutionID *string) string {
	t.Helper()
	id := ulid.Make().String()
	_, err := pool.Exec(ctx,
		`INSERT INTO opportunities (id, employer_id, institution_id, title, description, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, employerID, institutionID, title, "placement for "+title, string(status),
	)
	require.NoError(t, err)
	return id
}

func insertApplication(t *testing.T, ctx context.Context, pool *pgxpool.Pool, opportunityID, studentID string, status applications.Status) string {
	t.Helper()
	id := ulid.Make().String()
	var employerID *string
	var institutionID *string
	err := pool.QueryRow(ctx,
		`SELECT employer_id, institution_id FROM opportunities WHERE id = $1`,
		opportunityID,
	).Scan(&employerID, &institutionID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO applications (id, opportunity_id, student_id, employer_id, institution_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, opportunityID, studentID, employerID, institutionID, string(status),
	)
	require.NoError(t, err)
	return id
}

func insertEvidenceRow(t *testing.T, ctx context.Context, pool *pgxpool.Pool, applicationID, title, status string) string {
	t.Helper()
	id := ulid.Make().String()
	_, err := pool.Exec(ctx,
		`INSERT INTO evidence (id, application_id, title, status) VALUES ($1, $2, $3, $4)`,
		id, applicationID, title, status,
	)
	require.NoError(t, err)
	return id
}

func strPtr(value string) *string {
	return &value
}

func projectRoot() string {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "."
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", "..", ".."))
}

func migrateWithRetry(databaseURL string, migrationsPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := MigrateUp(databaseURL, migrationsPath); err != nil {
			if time.Now().After(deadline) {
				return err
			}
			time.Sleep(500 * time.Millisecond)
			continue
		}
		return nil
	}
}
