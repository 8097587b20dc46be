package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/praktika-foundation/server/internal/audit"
	"github.com/praktika-foundation/server/internal/config"
	"github.com/praktika-foundation/server/internal/domain/ledger"
	"github.com/praktika-foundation/server/internal/jobs"
	"github.com/praktika-foundation/server/internal/metrics"
	"github.com/praktika-foundation/server/internal/ops"
	"github.com/praktika-foundation/server/internal/storage/postgres"
	"github.com/praktika-foundation/server/internal/telemetry"
)

var (
	// Server flags (override config/env)
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Praktika server",
	Long: `Start the ledger append workers, periodic chain verification, and the
operational HTTP listener.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Start background append workers draining the ledger outbox
- Schedule periodic chain verification sweeps
- Serve health probes and Prometheus metrics over HTTP
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug

  # Start with custom config file
  server serve --config /etc/praktika/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	// Server-specific flags
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	// Override config with flags if provided
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	// Create logger
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting praktika server")

	// Initialize Prometheus metrics with version information
	metrics.Init(Version, GitCommit, BuildDate)
	logger.Info().Str("version", Version).Msg("metrics initialized")

	shutdownTracing, err := telemetry.InitTracing(context.Background(), cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing init failed: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	// Create database connection pool
	poolCtx, poolCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := newPool(poolCtx, cfg.Database)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	// The base repository exists before the job client because the append
	// worker needs the ledger repository, and the client needs the workers.
	// WithQueue closes the loop once both sides are built.
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	auditor := audit.NewLoggerWithZerolog(logger)
	validator := ledger.NewValidator(repo.Ledger())
	slogger := newSlogLogger(cfg.Logging.Level)

	workers := jobs.NewWorkers(jobs.WorkerDeps{
		Ledger:    repo.Ledger(),
		Validator: validator,
		Auditor:   auditor,
		Logger:    slogger,
		Sweep:     sweepOptions(cfg.Ledger),
	})

	queue, err := jobs.NewClient(pool, jobs.ClientOptions{
		Workers:            workers,
		Logger:             slogger,
		Notify:             jobs.NewAppendExhaustionNotifier(auditor),
		Hooks:              []rivertype.Hook{metrics.NewRiverMetricsHook()},
		PeriodicJobs:       jobs.NewPeriodicJobs(cfg.Ledger.SweepInterval),
		LedgerWorkers:      cfg.Jobs.LedgerWorkers,
		MaintenanceWorkers: cfg.Jobs.MaintenanceWorkers,
		AppendMaxAttempts:  cfg.Jobs.LedgerMaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("job client failed: %w", err)
	}
	repo = repo.WithQueue(queue)

	// Start background job workers
	// Append workers drain the ledger outbox; maintenance workers run the
	// periodic chain verification sweep
	riverCtx, riverCancel := context.WithCancel(context.Background())
	defer riverCancel()

	if err := queue.Start(riverCtx); err != nil {
		return fmt.Errorf("job workers failed to start: %w", err)
	}
	logger.Info().
		Int("ledger_workers", cfg.Jobs.LedgerWorkers).
		Int("maintenance_workers", cfg.Jobs.MaintenanceWorkers).
		Dur("sweep_interval", cfg.Ledger.SweepInterval).
		Msg("background job workers started")
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		if err := queue.Stop(stopCtx); err != nil {
			logger.Error().Err(err).Msg("job workers shutdown error")
		} else {
			logger.Info().Msg("job workers stopped")
		}
	}()

	// Start database metrics collector (collect every 15 seconds)
	dbCollector := metrics.NewDBCollector(pool)
	collectorCtx, collectorCancel := context.WithCancel(context.Background())
	go dbCollector.Start(collectorCtx, 15*time.Second)
	defer collectorCancel()
	defer dbCollector.Stop()
	logger.Info().Msg("database metrics collector started")

	// Create operational HTTP server
	health := ops.NewHealthChecker(pool, repo.Ledger(), Version, GitCommit)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           health.Handler(),
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		MaxHeaderBytes:    1 << 20,          // 1 MB max header size
	}

	// Start server in background
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// Wait for shutdown signal
	return gracefulShutdown(server, logger)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return config.Config{}, err
	}

	// Override logging from flags if provided
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	return cfg, nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	// pgxpool has no idle cap; MaxIdle maps to the warm minimum.
	if cfg.MaxIdle > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdle)
	}
	return pgxpool.NewWithConfig(ctx, poolCfg)
}

// newSlogLogger builds the slog logger River and the workers use. It
// follows the zerolog level so both streams filter consistently.
func newSlogLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func sweepOptions(cfg config.LedgerConfig) ledger.SweepOptions {
	return ledger.SweepOptions{
		Concurrency:     cfg.SweepConcurrency,
		ChainsPerSecond: float64(cfg.SweepRate),
	}
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
