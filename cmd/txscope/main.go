package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guillermoBallester/txscope/internal/adapter/postgres"
	"github.com/guillermoBallester/txscope/internal/adapter/sourcefile"
	"github.com/guillermoBallester/txscope/internal/adapter/sqldb"
	"github.com/guillermoBallester/txscope/internal/audit"
	"github.com/guillermoBallester/txscope/internal/config"
	"github.com/guillermoBallester/txscope/internal/core/domain"
	"github.com/guillermoBallester/txscope/internal/core/port"
	"github.com/guillermoBallester/txscope/internal/core/service"
	"github.com/guillermoBallester/txscope/internal/scheduler"
	"github.com/guillermoBallester/txscope/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var version = "dev"

const tracerName = "github.com/guillermoBallester/txscope"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags maps command-line flags onto config overrides. Only flags that
// were actually given are set.
func parseFlags(args []string) (config.Overrides, error) {
	fs := flag.NewFlagSet("txscope", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		o                   config.Overrides
		sourcesFile         = fs.String("sources-file", "", "YAML file of connection sources")
		envFile             = fs.String("env-file", "", ".env file loaded before reading the environment")
		scriptFile          = fs.String("script", "", "SQL script each task runs inside one context")
		tasks               = fs.Int("tasks", 0, "number of logical tasks")
		slots               = fs.Int("slots", 0, "number of scheduler slots")
		logLevel            = fs.String("log-level", "", "debug, info, warn or error")
		auditLog            = fs.String("audit-log", "", "NDJSON file receiving one line per context")
		poolMaxConns        = fs.Int("pool-max-conns", 0, "max open connections per source")
		poolMaxIdleConns    = fs.Int("pool-max-idle-conns", 0, "max idle connections per source")
		poolMaxConnLifetime = fs.Duration("pool-max-conn-lifetime", 0, "max connection lifetime")
	)
	fs.BoolVar(&o.OTelEnabled, "otel", false, "enable OpenTelemetry tracing and metrics")
	fs.BoolVar(&o.WatchSources, "watch-sources", false, "reload the sources file when it changes")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sources-file":
			o.SourcesFile = sourcesFile
		case "env-file":
			o.EnvFile = envFile
		case "script":
			o.ScriptFile = scriptFile
		case "tasks":
			o.Tasks = tasks
		case "slots":
			o.SlotCount = slots
		case "log-level":
			o.LogLevel = logLevel
		case "audit-log":
			o.AuditLog = auditLog
		case "pool-max-conns":
			o.PoolMaxConns = poolMaxConns
		case "pool-max-idle-conns":
			o.PoolMaxIdleConns = poolMaxIdleConns
		case "pool-max-conn-lifetime":
			o.PoolMaxConnLifetime = poolMaxConnLifetime
		}
	})
	return o, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	overrides, err := parseFlags(args)
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting txscope",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.String("sources_file", cfg.SourcesFile),
		slog.Int("slots", cfg.SlotCount),
		slog.Int("tasks", cfg.Tasks),
	)

	var tracer trace.Tracer
	var inst *telemetry.Instruments
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, telemetry.Options{
			ServiceName:    "txscope",
			Version:        version,
			Slots:          cfg.SlotCount,
			SampleRatio:    cfg.OTelSampleRatio,
			MetricInterval: cfg.OTelMetricInterval,
		})
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = otel.Tracer(tracerName)
		inst = telemetry.NewInstruments()
		logger.Info("opentelemetry enabled")
	} else {
		tracer = telemetry.NoopTracer()
		inst = telemetry.NoopInstruments()
	}

	var auditor port.ContextAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fa, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer func() { _ = fa.Close() }()
		auditor = fa
		logger.Info("audit log enabled", slog.String("path", cfg.AuditLog))
	}

	sched, err := scheduler.New(cfg.SlotCount, logger)
	if err != nil {
		return err
	}

	opener := sqldb.NewOpener(sqldb.PoolOptions{
		MaxOpenConns:    cfg.PoolMaxConns,
		MaxIdleConns:    cfg.PoolMaxIdleConns,
		ConnMaxLifetime: cfg.PoolMaxConnLifetime,
	}, logger)

	coord := service.NewCoordinator(opener, sched, logger,
		service.WithTracer(tracer),
		service.WithInstrumentation(inst),
		service.WithAuditor(auditor),
		service.WithClassifier(domain.PostgreSQL, postgres.Classifier{}),
	)
	defer func() {
		if err := coord.Close(); err != nil {
			logger.Warn("closing coordinator", slog.String("error", err.Error()))
		}
	}()

	settings, err := sourcefile.LoadFromFile(cfg.SourcesFile)
	if err != nil {
		return err
	}
	if err := coord.Initialize(settings); err != nil {
		return fmt.Errorf("initializing sources: %w", err)
	}

	if cfg.WatchSources {
		w, err := sourcefile.Watch(cfg.SourcesFile, coord.Initialize, logger)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		logger.Info("watching sources file", slog.String("path", cfg.SourcesFile))
	}

	facade := service.NewQueryService(coord, logger)

	if cfg.ScriptFile == "" {
		return checkDefault(ctx, facade, coord, logger)
	}

	script, err := os.ReadFile(cfg.ScriptFile)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	statements := splitStatements(string(script))
	if len(statements) == 0 {
		return errors.New("script contains no statements")
	}

	runner := &scriptRunner{coord: coord, facade: facade, logger: logger, statements: statements}
	tasks := make([]scheduler.Task, cfg.Tasks)
	for i := range tasks {
		tasks[i] = runner.run
	}

	start := time.Now()
	if err := sched.Run(ctx, tasks); err != nil {
		return fmt.Errorf("running script: %w", err)
	}
	logger.Info("script finished",
		slog.Int("tasks", cfg.Tasks),
		slog.Int("statements", len(statements)),
		slog.Float64("elapsed.ms", domain.Millis(time.Since(start))),
	)
	return nil
}

// checkDefault runs a trivial untracked query against the default source.
func checkDefault(ctx context.Context, facade *service.QueryService, coord *service.Coordinator, logger *slog.Logger) error {
	sources := coord.Sources()
	if len(sources) == 0 {
		return domain.ErrNoSources
	}
	if _, err := facade.Query(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("checking default source: %w", err)
	}
	logger.Info("default source reachable",
		slog.String("alias", sources[0].Alias),
		slog.String("db.system", sources[0].Kind.String()),
		slog.String("connection", sources[0].Redacted()),
	)
	return nil
}
