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

	"github.com/geobench-labs/geobench-go/internal/bench"
	"github.com/geobench-labs/geobench-go/internal/command"
	"github.com/geobench-labs/geobench-go/internal/config"
	"github.com/geobench-labs/geobench-go/internal/domain"
	"github.com/geobench-labs/geobench-go/internal/monitor"
	"github.com/geobench-labs/geobench-go/internal/platform/objectstore"
	"github.com/geobench-labs/geobench-go/internal/platform/postgres"
	"github.com/geobench-labs/geobench-go/internal/results"
	"github.com/geobench-labs/geobench-go/internal/runner"
	"github.com/geobench-labs/geobench-go/internal/scenario"
	"github.com/geobench-labs/geobench-go/internal/sysinfo"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliFlags struct {
	interval      time.Duration
	baseline      time.Duration
	baselineScope string
	timeout       time.Duration
	out           string
	repeat        int
	name          string
	recordSystem  bool
	systemInfo    bool
	files         []string
}

func parseFlags(args []string, cfg config.Config, stderr io.Writer) (cliFlags, error) {
	fs := flag.NewFlagSet("geobench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: geobench [flags] scenario.yaml [scenario.yaml ...]")
		fs.PrintDefaults()
	}

	var f cliFlags
	fs.DurationVar(&f.interval, "interval", cfg.Interval, "resource sampling interval")
	fs.DurationVar(&f.baseline, "baseline", cfg.BaselineDuration, "idle baseline duration (0 disables)")
	fs.StringVar(&f.baselineScope, "baseline-scope", string(cfg.BaselineScope), "baseline scope: invocation or scenario")
	fs.DurationVar(&f.timeout, "timeout", cfg.RunTimeout, "default per-run timeout (0 means unlimited)")
	fs.StringVar(&f.out, "out", cfg.OutputRoot, "results root (overrides scenario temp-directory)")
	fs.IntVar(&f.repeat, "repeat", 0, "override scenario repeat count")
	fs.StringVar(&f.name, "name", "", "override scenario name (single-scenario files only)")
	fs.BoolVar(&f.recordSystem, "record-system", cfg.RecordSystem, "sample the host alongside each run")
	fs.BoolVar(&f.systemInfo, "system-info", true, "write a system information document per invocation")
	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	f.files = fs.Args()
	if len(f.files) == 0 {
		fs.Usage()
		return cliFlags{}, errors.New("at least one scenario file is required")
	}
	if f.repeat < 0 {
		return cliFlags{}, errors.New("-repeat must not be negative")
	}
	return f, nil
}

func (f cliFlags) apply(cfg config.Config) config.Config {
	cfg.Interval = f.interval
	cfg.BaselineDuration = f.baseline
	cfg.BaselineScope = domain.BaselineScope(f.baselineScope)
	cfg.RunTimeout = f.timeout
	cfg.OutputRoot = f.out
	cfg.RecordSystem = f.recordSystem
	return cfg
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.ConfigFromEnv()
	if err != nil {
		slog.New(slog.NewJSONHandler(stderr, nil)).Error("invalid env", "error", err)
		return exitConfig
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	flags, err := parseFlags(args, cfg, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		logger.Error("invalid arguments", "error", err)
		return exitConfig
	}
	cfg = flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitConfig
	}

	var scenarios []domain.Scenario
	for _, path := range flags.files {
		loaded, err := scenario.Load(path, scenario.Overrides{Name: flags.name, Repeat: flags.repeat})
		if err != nil {
			logger.Error("invalid scenario file", "path", path, "error", err)
			return exitConfig
		}
		scenarios = append(scenarios, loaded...)
	}

	agg, closeSinks, err := buildAggregator(ctx, cfg, logger)
	if err != nil {
		logger.Error("results sinks unavailable", "error", err)
		return exitFailed
	}
	defer closeSinks()

	sampler := monitor.NewGopsutilSampler(ctx)
	executor := runner.NewExecutor(sampler, nil, runner.Options{
		Interval:     cfg.Interval,
		Timeout:      cfg.RunTimeout,
		KillGrace:    cfg.KillGrace,
		RecordSystem: cfg.RecordSystem,
	}, logger)

	opts := bench.Options{
		BaselineDuration: cfg.BaselineDuration,
		Interval:         cfg.Interval,
		Scope:            cfg.BaselineScope,
	}
	if flags.systemInfo {
		opts.SystemInfo = func(ctx context.Context, invocationID string) (any, error) {
			return sysinfo.Collect(ctx, invocationID, logger)
		}
	}
	b, err := bench.New(
		scenario.Expander{Registry: command.DefaultRegistry(cfg.Commands), OutputRoot: cfg.OutputRoot},
		executor,
		sampler,
		agg,
		opts,
		logger,
	)
	if err != nil {
		logger.Error("benchmark init failed", "error", err)
		return exitConfig
	}

	report, err := b.Run(ctx, scenarios)
	if err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) || errors.Is(err, results.ErrRecordExists) {
			logger.Error("benchmark not started", "error", err)
			return exitConfig
		}
		logger.Error("benchmark failed", "invocation_id", report.InvocationID, "error", err)
		return exitFailed
	}
	fmt.Fprintf(stdout, "invocation %s: %d runs, %d failed\n", report.InvocationID, len(report.Records), report.Failed())
	return exitOK
}

// buildAggregator wires the file sink plus the optional MinIO and Postgres
// mirrors. The returned func releases their connections.
func buildAggregator(ctx context.Context, cfg config.Config, logger *slog.Logger) (*results.Aggregator, func(), error) {
	closeFn := func() {}
	var mirrors []results.Sink

	if cfg.ObjectStore.Enabled {
		client, err := objectstore.NewMinIOClient(cfg.ObjectStore)
		if err != nil {
			return nil, closeFn, fmt.Errorf("object store client: %w", err)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = objectstore.EnsureBucket(startupCtx, client, cfg.ObjectStore)
		cancel()
		if err != nil {
			return nil, closeFn, fmt.Errorf("object store unavailable: %w", err)
		}
		store, err := objectstore.NewMinioStore(client)
		if err != nil {
			return nil, closeFn, err
		}
		sink, err := results.NewObjectStoreSink(store, cfg.ObjectStore.Bucket, cfg.ObjectStore.Prefix)
		if err != nil {
			return nil, closeFn, err
		}
		mirrors = append(mirrors, sink)
	}

	if cfg.Database.Enabled() {
		db, err := postgres.Open(ctx, cfg.Database, results.PostgresSchema()...)
		if err != nil {
			return nil, closeFn, fmt.Errorf("database unavailable: %w", err)
		}
		closeFn = func() { _ = db.Close() }
		mirrors = append(mirrors, results.NewPostgresSink(db))
	}

	agg, err := results.NewAggregator(results.NewFileSink(), logger, mirrors...)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return agg, closeFn, nil
}
