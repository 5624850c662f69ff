package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

type BaselineOptions struct {
	Duration     time.Duration
	Interval     time.Duration
	Scope        domain.BaselineScope
	Scenario     string
	InvocationID string
	Logger       *slog.Logger
}

// Baseline measures the idle host for the configured duration. A host that
// cannot be sampled yields a degraded record with an empty series instead
// of an error.
func Baseline(ctx context.Context, sampler Sampler, opts BaselineOptions) domain.BaselineRecord {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rec := domain.BaselineRecord{
		ID:           uuid.NewString(),
		InvocationID: opts.InvocationID,
		Scope:        opts.Scope,
		Scenario:     opts.Scenario,
	}

	session := NewHostSession(sampler, Options{Interval: opts.Interval, Logger: logger})
	rec.Interval = session.opts.Interval
	if err := session.Start(ctx); err != nil {
		rec.Degraded = true
		rec.Error = err.Error()
		return rec
	}

	if opts.Duration > 0 {
		timer := time.NewTimer(opts.Duration)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	session.Stop()

	rec.StartedAt = session.StartedAt()
	rec.EndedAt = session.StoppedAt()
	rec.Snapshots = session.Snapshots()
	if err := session.Err(); err != nil && len(rec.Snapshots) == 0 {
		rec.Degraded = true
		rec.Error = err.Error()
	} else if len(rec.Snapshots) == 0 {
		rec.Degraded = true
		rec.Error = "no host samples collected"
	}
	if rec.Degraded {
		logger.Warn("baseline degraded", "baseline_id", rec.ID, "error", rec.Error)
	}
	return rec
}
