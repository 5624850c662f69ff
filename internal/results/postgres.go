package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

// DB is the subset of *sql.DB the Postgres sink needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	createBaselinesTableQuery = `CREATE TABLE IF NOT EXISTS benchmark_baselines (
		baseline_id TEXT PRIMARY KEY,
		invocation_id TEXT NOT NULL,
		scope TEXT NOT NULL,
		scenario TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		degraded BOOLEAN NOT NULL DEFAULT FALSE,
		mean_cpu_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		mean_memory_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		document JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	createRunsTableQuery = `CREATE TABLE IF NOT EXISTS benchmark_runs (
		run_id TEXT PRIMARY KEY,
		invocation_id TEXT NOT NULL,
		baseline_id TEXT,
		scenario TEXT NOT NULL,
		execution_type TEXT NOT NULL,
		set_number INTEGER NOT NULL,
		repeat_number INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		exit_code INTEGER NOT NULL,
		started_at TIMESTAMPTZ,
		ended_at TIMESTAMPTZ,
		duration_seconds DOUBLE PRECISION NOT NULL,
		steps INTEGER NOT NULL,
		mean_cpu_percent DOUBLE PRECISION NOT NULL,
		peak_cpu_percent DOUBLE PRECISION NOT NULL,
		mean_memory_percent DOUBLE PRECISION NOT NULL,
		peak_memory_percent DOUBLE PRECISION NOT NULL,
		io_read_bytes BIGINT NOT NULL,
		io_write_bytes BIGINT NOT NULL,
		document JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

	insertBaselineQuery = `INSERT INTO benchmark_baselines (
		baseline_id,
		invocation_id,
		scope,
		scenario,
		started_at,
		ended_at,
		degraded,
		mean_cpu_percent,
		mean_memory_percent,
		document
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	ON CONFLICT (baseline_id) DO NOTHING`

	insertRunQuery = `INSERT INTO benchmark_runs (
		run_id,
		invocation_id,
		baseline_id,
		scenario,
		execution_type,
		set_number,
		repeat_number,
		outcome,
		exit_code,
		started_at,
		ended_at,
		duration_seconds,
		steps,
		mean_cpu_percent,
		peak_cpu_percent,
		mean_memory_percent,
		peak_memory_percent,
		io_read_bytes,
		io_write_bytes,
		document
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	ON CONFLICT (run_id) DO NOTHING`
)

// PostgresSink records run and baseline summaries with their full documents.
type PostgresSink struct {
	db DB
}

func NewPostgresSink(db DB) *PostgresSink {
	if db == nil {
		return nil
	}
	return &PostgresSink{db: db}
}

func (s *PostgresSink) Name() string {
	return "postgres"
}

// PostgresSchema creates the tables the sink writes to. It is applied when
// the database is opened.
func PostgresSchema() []string {
	return []string{createBaselinesTableQuery, createRunsTableQuery}
}

func (s *PostgresSink) WriteRun(ctx context.Context, rec domain.RunRecord, doc RunDocument) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres sink not initialized")
	}
	if strings.TrimSpace(rec.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode run document: %w", err)
	}
	sum := rec.Summary
	_, err = s.db.ExecContext(
		ctx,
		insertRunQuery,
		rec.RunID,
		rec.InvocationID,
		nullString(rec.BaselineID),
		rec.Spec.Scenario,
		string(rec.Spec.Type),
		rec.Spec.SetIndex+1,
		rec.Spec.RepeatIndex+1,
		string(rec.Status.Outcome),
		rec.Status.ExitCode,
		nullTime(rec.StartedAt),
		nullTime(rec.EndedAt),
		sum.DurationSeconds,
		sum.Steps,
		sum.Tree.MeanCPU,
		sum.Tree.PeakCPU,
		sum.Tree.MeanMemory,
		sum.Tree.PeakMemory,
		int64(sum.IOReadBytes),
		int64(sum.IOWriteBytes),
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *PostgresSink) WriteBaseline(ctx context.Context, _ BaselineTarget, doc BaselineDocument) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres sink not initialized")
	}
	if strings.TrimSpace(doc.BaselineID) == "" {
		return fmt.Errorf("baseline id is required")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode baseline document: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		insertBaselineQuery,
		doc.BaselineID,
		doc.InvocationID,
		doc.Scope,
		doc.Scenario,
		nullString(doc.StartedAt),
		nullString(doc.EndedAt),
		doc.Degraded,
		doc.Summary.MeanCPU,
		doc.Summary.MeanMemory,
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert baseline: %w", err)
	}
	return nil
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
