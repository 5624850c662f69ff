// Package bench drives a benchmark invocation: every scenario is expanded
// up front, the idle host is measured, and runs execute one at a time.
package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/geobench-labs/geobench-go/internal/domain"
	"github.com/geobench-labs/geobench-go/internal/layout"
	"github.com/geobench-labs/geobench-go/internal/monitor"
	"github.com/geobench-labs/geobench-go/internal/results"
	"github.com/geobench-labs/geobench-go/internal/scenario"
)

// Runner executes one RunSpec to completion.
type Runner interface {
	Execute(ctx context.Context, spec domain.RunSpec) domain.RunRecord
}

// SystemInfoFunc describes the host once per invocation.
type SystemInfoFunc func(ctx context.Context, invocationID string) (any, error)

type Options struct {
	BaselineDuration time.Duration
	Interval         time.Duration
	Scope            domain.BaselineScope
	SystemInfo       SystemInfoFunc
}

type Bench struct {
	expander   scenario.Expander
	runner     Runner
	sampler    monitor.Sampler
	aggregator *results.Aggregator
	opts       Options
	logger     *slog.Logger
}

func New(expander scenario.Expander, runner Runner, sampler monitor.Sampler, aggregator *results.Aggregator, opts Options, logger *slog.Logger) (*Bench, error) {
	if expander.Registry == nil {
		return nil, errors.New("command registry is required")
	}
	if runner == nil {
		return nil, errors.New("runner is required")
	}
	if aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	if opts.BaselineDuration > 0 && sampler == nil {
		return nil, errors.New("sampler is required for baseline measurement")
	}
	if opts.Scope == "" {
		opts.Scope = domain.BaselinePerInvocation
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bench{
		expander:   expander,
		runner:     runner,
		sampler:    sampler,
		aggregator: aggregator,
		opts:       opts,
		logger:     logger,
	}, nil
}

// Report is what an invocation produced.
type Report struct {
	InvocationID string
	Baselines    []domain.BaselineRecord
	Records      []domain.RunRecord
}

// Failed counts runs that did not succeed.
func (r Report) Failed() int {
	n := 0
	for _, rec := range r.Records {
		if !rec.Status.Success() {
			n++
		}
	}
	return n
}

type plan struct {
	scenario domain.Scenario
	policy   layout.Policy
	specs    []domain.RunSpec
}

// expand expands every scenario. Configuration errors from all scenarios are
// joined so one pass reports everything wrong with the batch.
func (b *Bench) expand(scenarios []domain.Scenario) ([]plan, error) {
	if len(scenarios) == 0 {
		return nil, &domain.ConfigurationError{Issues: []string{"no scenarios to run"}}
	}
	plans := make([]plan, 0, len(scenarios))
	var errs []error
	owners := make(map[string]string)
	for _, scn := range scenarios {
		specs, err := b.expander.Expand(scn)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, spec := range specs {
			if other, ok := owners[spec.Location.RecordFile]; ok {
				errs = append(errs, &domain.ConfigurationError{
					Scenario: scn.Name,
					Issues:   []string{fmt.Sprintf("result %s is also written by scenario %q", spec.Location.RecordFile, other)},
				})
				break
			}
			owners[spec.Location.RecordFile] = scn.Name
		}
		plans = append(plans, plan{
			scenario: scn,
			policy:   layout.Policy{Root: b.expander.Root(scn), Structure: scn.OutputStructure},
			specs:    specs,
		})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return plans, nil
}

// Run executes every run of every scenario in order. A run that fails is
// recorded and the sweep continues; Run only returns an error for invalid
// configuration, existing results, or a record that could not be stored.
// Cancelling ctx stops the sweep between runs, never during one.
func (b *Bench) Run(ctx context.Context, scenarios []domain.Scenario) (Report, error) {
	report := Report{InvocationID: uuid.NewString()}
	logger := b.logger.With("invocation_id", report.InvocationID)

	plans, err := b.expand(scenarios)
	if err != nil {
		return report, err
	}
	if err := b.checkFresh(plans, report.InvocationID); err != nil {
		return report, err
	}
	total := 0
	for _, p := range plans {
		total += len(p.specs)
	}
	logger.Info("benchmark starting", "scenarios", len(plans), "runs", total)

	b.writeSystemInfo(ctx, plans, report.InvocationID, logger)

	var shared *domain.BaselineRecord
	if b.opts.Scope == domain.BaselinePerInvocation {
		shared, err = b.baseline(ctx, report.InvocationID, "", plans, logger)
		if err != nil {
			return report, err
		}
		if shared != nil {
			report.Baselines = append(report.Baselines, *shared)
		}
	}

	for _, p := range plans {
		baseline := shared
		if b.opts.Scope == domain.BaselinePerScenario {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			baseline, err = b.baseline(ctx, report.InvocationID, p.scenario.Name, []plan{p}, logger)
			if err != nil {
				return report, err
			}
			if baseline != nil {
				report.Baselines = append(report.Baselines, *baseline)
			}
		}

		for _, spec := range p.specs {
			if err := ctx.Err(); err != nil {
				logger.Warn("benchmark interrupted", "completed_runs", len(report.Records), "runs", total)
				return report, err
			}
			rec := b.runner.Execute(ctx, spec)
			rec.InvocationID = report.InvocationID
			rec, err = b.aggregator.Persist(ctx, rec, baseline)
			report.Records = append(report.Records, rec)
			if err != nil {
				return report, fmt.Errorf("persist %s %s: %w", spec.Scenario, spec.Key(), err)
			}
		}
	}

	logger.Info("benchmark finished", "runs", len(report.Records), "failed", report.Failed())
	return report, nil
}

// baseline measures the idle host and stores the record under every root
// the given plans write to. A zero duration disables the measurement.
func (b *Bench) baseline(ctx context.Context, invocationID, scenarioName string, plans []plan, logger *slog.Logger) (*domain.BaselineRecord, error) {
	if b.opts.BaselineDuration <= 0 {
		return nil, nil
	}
	logger.Info("measuring baseline", "scenario", scenarioName, "duration", b.opts.BaselineDuration.String())
	rec := monitor.Baseline(ctx, b.sampler, monitor.BaselineOptions{
		Duration:     b.opts.BaselineDuration,
		Interval:     b.opts.Interval,
		Scope:        b.opts.Scope,
		Scenario:     scenarioName,
		InvocationID: invocationID,
		Logger:       logger,
	})

	seen := make(map[string]struct{})
	for _, p := range plans {
		path, key := p.policy.BaselineFile(b.opts.Scope, scenarioName, invocationID)
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		if err := b.aggregator.PersistBaseline(ctx, rec, results.BaselineTarget{Path: path, Key: key}); err != nil {
			return nil, fmt.Errorf("persist baseline: %w", err)
		}
	}
	return &rec, nil
}

func (b *Bench) writeSystemInfo(ctx context.Context, plans []plan, invocationID string, logger *slog.Logger) {
	if b.opts.SystemInfo == nil {
		return
	}
	doc, err := b.opts.SystemInfo(ctx, invocationID)
	if err != nil {
		logger.Warn("system information unavailable", "error", err)
		return
	}
	seen := make(map[string]struct{})
	for _, p := range plans {
		path := p.policy.SystemFile(invocationID)
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		if err := results.WriteDocument(path, doc); err != nil {
			logger.Warn("system information not written", "path", path, "error", err)
		}
	}
}

// checkFresh refuses to start when any document this invocation would
// write already exists, so a sweep never stops halfway on a collision.
func (b *Bench) checkFresh(plans []plan, invocationID string) error {
	var paths []string
	for _, p := range plans {
		for _, spec := range p.specs {
			paths = append(paths, spec.Location.RecordFile)
		}
		if b.opts.BaselineDuration > 0 {
			path, _ := p.policy.BaselineFile(b.opts.Scope, p.scenario.Name, invocationID)
			paths = append(paths, path)
		}
	}
	for _, path := range paths {
		_, err := os.Stat(path)
		if err == nil {
			return fmt.Errorf("%w: %s", results.ErrRecordExists, path)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return nil
}
