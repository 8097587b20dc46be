// Package config loads runtime configuration. Values come from built-in
// defaults, then an optional YAML file, then environment variables, with
// later sources winning.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Jobs        JobsConfig
	Ledger      LedgerConfig
	Environment string
}

// ServerConfig describes the operational HTTP listener (health probes and
// Prometheus metrics).
type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// TracingConfig controls OpenTelemetry trace export. Disabled by default;
// "none" generates spans without exporting them.
type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

// JobsConfig sizes the background queues. Ledger workers drain the append
// queue; maintenance workers run periodic chain verification.
type JobsConfig struct {
	LedgerWorkers      int
	MaintenanceWorkers int
	LedgerMaxAttempts  int
}

// LedgerConfig controls the periodic chain verification sweep.
type LedgerConfig struct {
	SweepInterval    time.Duration
	SweepConcurrency int
	// SweepRate caps validated chains per second. Zero means no cap.
	SweepRate int
}

func Load() (Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads configuration, overlaying the YAML file at path when
// path is non-empty.
func LoadWithFile(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			MaxConnections: 25,
			MaxIdle:        5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "none",
			ServiceName:  "praktika-server",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   0.1,
		},
		Jobs: JobsConfig{
			LedgerWorkers:      10,
			MaintenanceWorkers: 2,
			LedgerMaxAttempts:  10,
		},
		Ledger: LedgerConfig{
			SweepInterval:    10 * time.Minute,
			SweepConcurrency: 4,
			SweepRate:        0,
		},
		Environment: "development",
	}
}

// fileConfig mirrors Config with pointer fields so absent YAML keys leave
// the current value untouched.
type fileConfig struct {
	Server struct {
		Host *string `yaml:"host"`
		Port *int    `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		URL            *string `yaml:"url"`
		MaxConnections *int    `yaml:"max_connections"`
		MaxIdle        *int    `yaml:"max_idle_connections"`
	} `yaml:"database"`
	Logging struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"logging"`
	Tracing struct {
		Enabled      *bool    `yaml:"enabled"`
		Exporter     *string  `yaml:"exporter"`
		ServiceName  *string  `yaml:"service_name"`
		OTLPEndpoint *string  `yaml:"otlp_endpoint"`
		SampleRate   *float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`
	Jobs struct {
		LedgerWorkers      *int `yaml:"ledger_workers"`
		MaintenanceWorkers *int `yaml:"maintenance_workers"`
		LedgerMaxAttempts  *int `yaml:"ledger_max_attempts"`
	} `yaml:"jobs"`
	Ledger struct {
		SweepInterval    *string `yaml:"sweep_interval"`
		SweepConcurrency *int    `yaml:"sweep_concurrency"`
		SweepRate        *int    `yaml:"sweep_chains_per_second"`
	} `yaml:"ledger"`
	Environment *string `yaml:"environment"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Server.Host, fc.Server.Host)
	setInt(&cfg.Server.Port, fc.Server.Port)
	setString(&cfg.Database.URL, fc.Database.URL)
	setInt(&cfg.Database.MaxConnections, fc.Database.MaxConnections)
	setInt(&cfg.Database.MaxIdle, fc.Database.MaxIdle)
	setString(&cfg.Logging.Level, fc.Logging.Level)
	setString(&cfg.Logging.Format, fc.Logging.Format)
	if fc.Tracing.Enabled != nil {
		cfg.Tracing.Enabled = *fc.Tracing.Enabled
	}
	setString(&cfg.Tracing.Exporter, fc.Tracing.Exporter)
	setString(&cfg.Tracing.ServiceName, fc.Tracing.ServiceName)
	setString(&cfg.Tracing.OTLPEndpoint, fc.Tracing.OTLPEndpoint)
	if fc.Tracing.SampleRate != nil {
		cfg.Tracing.SampleRate = *fc.Tracing.SampleRate
	}
	setInt(&cfg.Jobs.LedgerWorkers, fc.Jobs.LedgerWorkers)
	setInt(&cfg.Jobs.MaintenanceWorkers, fc.Jobs.MaintenanceWorkers)
	setInt(&cfg.Jobs.LedgerMaxAttempts, fc.Jobs.LedgerMaxAttempts)
	setInt(&cfg.Ledger.SweepConcurrency, fc.Ledger.SweepConcurrency)
	setInt(&cfg.Ledger.SweepRate, fc.Ledger.SweepRate)
	setString(&cfg.Environment, fc.Environment)

	if fc.Ledger.SweepInterval != nil {
		d, err := time.ParseDuration(*fc.Ledger.SweepInterval)
		if err != nil {
			return fmt.Errorf("parse ledger.sweep_interval: %w", err)
		}
		cfg.Ledger.SweepInterval = d
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Database.MaxConnections)
	cfg.Database.MaxIdle = getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", cfg.Database.MaxIdle)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("TRACING_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)
	cfg.Jobs.LedgerWorkers = getEnvInt("JOB_LEDGER_WORKERS", cfg.Jobs.LedgerWorkers)
	cfg.Jobs.MaintenanceWorkers = getEnvInt("JOB_MAINTENANCE_WORKERS", cfg.Jobs.MaintenanceWorkers)
	cfg.Jobs.LedgerMaxAttempts = getEnvInt("JOB_LEDGER_MAX_ATTEMPTS", cfg.Jobs.LedgerMaxAttempts)
	cfg.Ledger.SweepInterval = getEnvDuration("LEDGER_SWEEP_INTERVAL", cfg.Ledger.SweepInterval)
	cfg.Ledger.SweepConcurrency = getEnvInt("LEDGER_SWEEP_CONCURRENCY", cfg.Ledger.SweepConcurrency)
	cfg.Ledger.SweepRate = getEnvInt("LEDGER_SWEEP_CHAINS_PER_SECOND", cfg.Ledger.SweepRate)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
}

func (c Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp", "none":
		default:
			return fmt.Errorf("tracing.exporter %q not supported", c.Tracing.Exporter)
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate %g out of range", c.Tracing.SampleRate)
		}
	}
	if c.Jobs.LedgerWorkers < 1 {
		return fmt.Errorf("jobs.ledger_workers must be at least 1")
	}
	if c.Jobs.MaintenanceWorkers < 1 {
		return fmt.Errorf("jobs.maintenance_workers must be at least 1")
	}
	if c.Jobs.LedgerMaxAttempts < 1 {
		return fmt.Errorf("jobs.ledger_max_attempts must be at least 1")
	}
	if c.Ledger.SweepInterval <= 0 {
		return fmt.Errorf("ledger.sweep_interval must be positive")
	}
	if c.Ledger.SweepConcurrency < 1 {
		return fmt.Errorf("ledger.sweep_concurrency must be at least 1")
	}
	if c.Ledger.SweepRate < 0 {
		return fmt.Errorf("ledger.sweep_chains_per_second must not be negative")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
