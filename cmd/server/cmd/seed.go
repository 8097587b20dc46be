package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/praktika-foundation/server/internal/authz"
	"github.com/praktika-foundation/server/internal/config"
	"github.com/praktika-foundation/server/internal/domain/applications"
	"github.com/praktika-foundation/server/internal/domain/evidence"
	"github.com/praktika-foundation/server/internal/domain/opportunities"
	"github.com/praktika-foundation/server/internal/jobs"
	"github.com/praktika-foundation/server/internal/seed"
	"github.com/praktika-foundation/server/internal/storage/postgres"
)

var (
	seedFile  string
	seedDrain time.Duration
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load fixture data through the domain services",
	Long: `Load a YAML fixture file and apply it through the domain services.

Seeded postings, applications, and evidence take the same workflow
guards and ledger recording as live traffic, so every seeded mutation
lands on a verifiable hash chain. IDs are minted fresh on each run;
applying the same file twice creates two independent data sets.

The command starts the append workers, waits for the ledger outbox to
drain, and exits, leaving fully chained data behind.

Example fixture:

  opportunities:
    - key: summer-lab
      title: Summer research assistant
      employer_id: emp-acme
      institution_id: inst-tu
  applications:
    - opportunity: summer-lab
      student_id: stu-ana
      status: ACTIVE
      evidence:
        - title: Midterm report
          employer_verdict: ACCEPTED`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedFile == "" {
			return fmt.Errorf("--file is required")
		}
		return runSeed(cmd)
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "fixture file to apply (required)")
	seedCmd.Flags().DurationVar(&seedDrain, "drain-timeout", 30*time.Second, "how long to wait for the append pipeline to drain")
}

func runSeed(cmd *cobra.Command) error {
	fx, err := seed.Load(seedFile)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := config.NewLogger(cfg.Logging)

	ctx := context.Background()
	poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := newPool(poolCtx, cfg.Database)
	cancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	// The seeder records ledger events, so it needs the same append
	// pipeline as serve: workers, queue, and the queue-bound repository.
	slogger := newSlogLogger(cfg.Logging.Level)
	workers := jobs.NewWorkers(jobs.WorkerDeps{
		Ledger: repo.Ledger(),
		Logger: slogger,
	})
	queue, err := jobs.NewClient(pool, jobs.ClientOptions{
		Workers:           workers,
		Logger:            slogger,
		LedgerWorkers:     cfg.Jobs.LedgerWorkers,
		AppendMaxAttempts: cfg.Jobs.LedgerMaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("job client failed: %w", err)
	}
	repo = repo.WithQueue(queue)

	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("append workers failed to start: %w", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := queue.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("append workers shutdown error")
		}
	}()

	policy := authz.NewPolicy()
	oppSvc, err := opportunities.NewService(repo.Opportunities(), policy.CanManageOpportunity, policy.CanCreateOpportunity, logger)
	if err != nil {
		return err
	}
	appSvc, err := applications.NewService(repo.Applications(), policy, logger)
	if err != nil {
		return err
	}
	evSvc := evidence.NewService(repo.Evidence(), policy.CanActOnEvidence, logger)

	seeder := seed.NewSeeder(seed.Services{
		Opportunities: oppSvc,
		Applications:  appSvc,
		Evidence:      evSvc,
	}, logger)

	summary, err := seeder.Apply(ctx, fx)
	if err != nil {
		return fmt.Errorf("apply fixture: %w", err)
	}

	if err := waitForDrain(ctx, repo, seedDrain); err != nil {
		logger.Warn().Err(err).Msg("append pipeline still draining; events will land once serve runs")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d opportunit(ies), %d application(s), %d evidence record(s)\n",
		summary.Opportunities, summary.Applications, summary.Evidence)
	return nil
}

// waitForDrain polls the append lag until every recorded event has been
// appended to its chain or the timeout passes.
func waitForDrain(ctx context.Context, repo *postgres.Repository, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		lag, err := repo.Ledger().Lag(ctx)
		if err != nil {
			return fmt.Errorf("check append lag: %w", err)
		}
		if lag == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%d event(s) still in flight after %s", lag, timeout)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
