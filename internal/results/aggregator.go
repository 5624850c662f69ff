package results

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

// Sink persists run and baseline documents.
type Sink interface {
	Name() string
	WriteRun(ctx context.Context, rec domain.RunRecord, doc RunDocument) error
	WriteBaseline(ctx context.Context, target BaselineTarget, doc BaselineDocument) error
}

// BaselineTarget is where a baseline document goes: a local path and an
// object key relative to the results root.
type BaselineTarget struct {
	Path string
	Key  string
}

// Aggregator summarizes records and hands them to its sinks. The primary
// sink must succeed before Persist returns; mirror sinks are best effort.
type Aggregator struct {
	primary Sink
	mirrors []Sink
	logger  *slog.Logger
}

func NewAggregator(primary Sink, logger *slog.Logger, mirrors ...Sink) (*Aggregator, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary sink is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	kept := make([]Sink, 0, len(mirrors))
	for _, m := range mirrors {
		if m != nil {
			kept = append(kept, m)
		}
	}
	return &Aggregator{primary: primary, mirrors: kept, logger: logger}, nil
}

// Persist fills rec.Summary and writes the run document. The returned
// record carries the summary.
func (a *Aggregator) Persist(ctx context.Context, rec domain.RunRecord, baseline *domain.BaselineRecord) (domain.RunRecord, error) {
	if a == nil || a.primary == nil {
		return rec, fmt.Errorf("aggregator not initialized")
	}
	if baseline != nil && rec.BaselineID == "" {
		rec.BaselineID = baseline.ID
	}
	rec.Summary = Summarize(rec, baseline)
	doc := NewRunDocument(rec)

	if err := a.primary.WriteRun(ctx, rec, doc); err != nil {
		return rec, fmt.Errorf("%s sink: %w", a.primary.Name(), err)
	}
	for _, m := range a.mirrors {
		if err := m.WriteRun(ctx, rec, doc); err != nil {
			a.logger.Error("mirror sink write failed",
				"sink", m.Name(),
				"scenario", rec.Spec.Scenario,
				"run_id", rec.RunID,
				"error", err,
			)
		}
	}
	return rec, nil
}

func (a *Aggregator) PersistBaseline(ctx context.Context, b domain.BaselineRecord, target BaselineTarget) error {
	if a == nil || a.primary == nil {
		return fmt.Errorf("aggregator not initialized")
	}
	doc := NewBaselineDocument(b)
	if err := a.primary.WriteBaseline(ctx, target, doc); err != nil {
		return fmt.Errorf("%s sink: %w", a.primary.Name(), err)
	}
	for _, m := range a.mirrors {
		if err := m.WriteBaseline(ctx, target, doc); err != nil {
			a.logger.Error("mirror sink write failed", "sink", m.Name(), "baseline_id", b.ID, "error", err)
		}
	}
	return nil
}
