package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Connection sources.
	SourcesFile  string // YAML file of connection sources
	EnvFile      string // optional .env file seeding ${VAR} substitution
	WatchSources bool   // reload the sources file on change

	// Workload.
	SlotCount  int    // cooperative scheduler slots (default 4)
	Tasks      int    // logical tasks to run the script with (default 1)
	ScriptFile string // optional SQL script, one statement per ';'

	// Logging.
	LogLevel slog.Level

	// Connection pool.
	PoolMaxConns        int           // default: 10
	PoolMaxIdleConns    int           // default: 2
	PoolMaxConnLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled        bool          // enable OpenTelemetry tracing and metrics
	OTelSampleRatio    float64       // fraction of root traces kept (default 1)
	OTelMetricInterval time.Duration // metric export interval; 0 keeps the SDK default
	AuditLog           string        // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	SourcesFile  *string
	EnvFile      *string
	ScriptFile   *string
	LogLevel     *string
	SlotCount    *int
	Tasks        *int
	AuditLog     *string
	OTelEnabled  bool
	WatchSources bool

	// Connection pool overrides.
	PoolMaxConns        *int
	PoolMaxIdleConns    *int
	PoolMaxConnLifetime *time.Duration
}

// Load builds a Config from environment variables, then applies CLI overrides,
// then validates the result. When an env file is named, its variables are
// loaded first without replacing variables already set.
func Load(overrides Overrides) (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if overrides.EnvFile != nil {
		envFile = *overrides.EnvFile
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	cfg := defaults()
	cfg.EnvFile = envFile

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		SlotCount:           4,
		Tasks:               1,
		PoolMaxConns:        10,
		PoolMaxIdleConns:    2,
		PoolMaxConnLifetime: 30 * time.Minute,
		OTelSampleRatio:     1,
	}
}

// loadEnvVars reads all supported environment variables into cfg.
func loadEnvVars(cfg *Config) error {
	cfg.SourcesFile = os.Getenv("SOURCES_FILE")
	cfg.ScriptFile = os.Getenv("SCRIPT_FILE")
	cfg.AuditLog = os.Getenv("AUDIT_LOG")

	if v := os.Getenv("SLOT_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid SLOT_COUNT value %q: must be a positive integer", v)
		}
		cfg.SlotCount = n
	}

	if v := os.Getenv("TASKS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid TASKS value %q: must be a positive integer", v)
		}
		cfg.Tasks = n
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	if v := os.Getenv("OTEL_SAMPLE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid OTEL_SAMPLE_RATIO value %q: %w", v, err)
		}
		cfg.OTelSampleRatio = f
	}

	if v := os.Getenv("OTEL_METRIC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_METRIC_INTERVAL value %q: %w", v, err)
		}
		cfg.OTelMetricInterval = d
	}

	if v := os.Getenv("WATCH_SOURCES"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WATCH_SOURCES value %q: %w", v, err)
		}
		cfg.WatchSources = b
	}

	if err := loadPoolEnvVars(cfg); err != nil {
		return err
	}

	return nil
}

// loadPoolEnvVars reads connection pool environment variables.
func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("POOL_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid POOL_MAX_CONNS value %q: must be a positive integer", v)
		}
		cfg.PoolMaxConns = n
	}
	if v := os.Getenv("POOL_MAX_IDLE_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid POOL_MAX_IDLE_CONNS value %q: must be a non-negative integer", v)
		}
		cfg.PoolMaxIdleConns = n
	}
	if v := os.Getenv("POOL_MAX_CONN_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid POOL_MAX_CONN_LIFETIME value %q: %w", v, err)
		}
		cfg.PoolMaxConnLifetime = d
	}
	return nil
}

// applyOverrides applies CLI flag values on top of the env-loaded config.
func applyOverrides(cfg *Config, o Overrides) error {
	if o.SourcesFile != nil {
		cfg.SourcesFile = *o.SourcesFile
	}
	if o.ScriptFile != nil {
		cfg.ScriptFile = *o.ScriptFile
	}
	if o.AuditLog != nil {
		cfg.AuditLog = *o.AuditLog
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.SlotCount != nil {
		if *o.SlotCount <= 0 {
			return fmt.Errorf("invalid --slots value: must be a positive integer")
		}
		cfg.SlotCount = *o.SlotCount
	}
	if o.Tasks != nil {
		if *o.Tasks <= 0 {
			return fmt.Errorf("invalid --tasks value: must be a positive integer")
		}
		cfg.Tasks = *o.Tasks
	}

	if err := applyPoolOverrides(cfg, o); err != nil {
		return err
	}

	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	cfg.WatchSources = cfg.WatchSources || o.WatchSources

	return nil
}

// applyPoolOverrides applies connection pool CLI flag overrides.
func applyPoolOverrides(cfg *Config, o Overrides) error {
	if o.PoolMaxConns != nil {
		if *o.PoolMaxConns <= 0 {
			return fmt.Errorf("invalid --pool-max-conns value: must be a positive integer")
		}
		cfg.PoolMaxConns = *o.PoolMaxConns
	}
	if o.PoolMaxIdleConns != nil {
		if *o.PoolMaxIdleConns < 0 {
			return fmt.Errorf("invalid --pool-max-idle-conns value: must be a non-negative integer")
		}
		cfg.PoolMaxIdleConns = *o.PoolMaxIdleConns
	}
	if o.PoolMaxConnLifetime != nil {
		cfg.PoolMaxConnLifetime = *o.PoolMaxConnLifetime
	}
	return nil
}

// validate checks cross-field constraints on the final config.
func validate(cfg *Config) error {
	if cfg.SourcesFile == "" {
		return fmt.Errorf("SOURCES_FILE is required (set via env var or --sources-file flag)")
	}

	if cfg.PoolMaxIdleConns > cfg.PoolMaxConns {
		return fmt.Errorf("POOL_MAX_IDLE_CONNS (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.PoolMaxIdleConns, cfg.PoolMaxConns)
	}

	if cfg.OTelSampleRatio < 0 || cfg.OTelSampleRatio > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATIO (%g) must be between 0 and 1", cfg.OTelSampleRatio)
	}

	// Every slot pins one connection for its whole run.
	if cfg.SlotCount > cfg.PoolMaxConns {
		return fmt.Errorf("SLOT_COUNT (%d) must not exceed POOL_MAX_CONNS (%d)", cfg.SlotCount, cfg.PoolMaxConns)
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
