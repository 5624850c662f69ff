package results

import (
	"time"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

const (
	RunSchemaV1      = "geobench.run.v1"
	BaselineSchemaV1 = "geobench.baseline.v1"
)

type RunDocument struct {
	Schema          string             `json:"schema"`
	RunID           string             `json:"run_id"`
	InvocationID    string             `json:"invocation_id"`
	Scenario        string             `json:"scenario"`
	Type            string             `json:"type"`
	Set             int                `json:"set"`
	Repeat          int                `json:"repeat"`
	Parameters      []parameterPayload `json:"parameters"`
	Command         commandPayload     `json:"command"`
	Status          statusPayload      `json:"status"`
	PID             int32              `json:"pid,omitempty"`
	StartedAt       string             `json:"started_at"`
	EndedAt         string             `json:"ended_at"`
	DurationSeconds float64            `json:"duration_seconds"`
	BaselineID      string             `json:"baseline_id,omitempty"`
	Samples         []samplePayload    `json:"samples"`
	System          []snapshotPayload  `json:"system"`
	Summary         summaryPayload     `json:"summary"`
}

type parameterPayload struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	Positional bool   `json:"positional,omitempty"`
}

type commandPayload struct {
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
	Dir        string   `json:"dir,omitempty"`
}

type statusPayload struct {
	Outcome  string `json:"outcome"`
	ExitCode int    `json:"exit_code"`
	Signal   string `json:"signal,omitempty"`
	Error    string `json:"error,omitempty"`
}

type samplePayload struct {
	Step          int     `json:"step"`
	PID           int32   `json:"pid"`
	PPID          int32   `json:"ppid"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	RSSBytes      uint64  `json:"rss_bytes"`
	IOReadBytes   uint64  `json:"io_read_bytes"`
	IOWriteBytes  uint64  `json:"io_write_bytes"`
}

type snapshotPayload struct {
	Step          int       `json:"step"`
	CPUPercent    float64   `json:"cpu_percent"`
	PerCPUPercent []float64 `json:"per_cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	IOReadBytes   uint64    `json:"io_read_bytes"`
	IOWriteBytes  uint64    `json:"io_write_bytes"`
}

type statsPayload struct {
	Samples    int     `json:"samples"`
	MeanCPU    float64 `json:"mean_cpu_percent"`
	PeakCPU    float64 `json:"peak_cpu_percent"`
	MeanMemory float64 `json:"mean_memory_percent"`
	PeakMemory float64 `json:"peak_memory_percent"`
}

type summaryPayload struct {
	DurationSeconds    float64       `json:"duration_seconds"`
	Steps              int           `json:"steps"`
	Processes          int           `json:"processes"`
	Root               statsPayload  `json:"root"`
	Tree               statsPayload  `json:"tree"`
	System             *statsPayload `json:"system,omitempty"`
	IOReadBytes        uint64        `json:"io_read_bytes"`
	IOWriteBytes       uint64        `json:"io_write_bytes"`
	CPUOverBaseline    *float64      `json:"cpu_over_baseline_percent,omitempty"`
	MemoryOverBaseline *float64      `json:"memory_over_baseline_percent,omitempty"`
}

// NewRunDocument renders a record, including its summary, as the
// persisted run document.
func NewRunDocument(rec domain.RunRecord) RunDocument {
	doc := RunDocument{
		Schema:       RunSchemaV1,
		RunID:        rec.RunID,
		InvocationID: rec.InvocationID,
		Scenario:     rec.Spec.Scenario,
		Type:         string(rec.Spec.Type),
		Set:          rec.Spec.SetIndex + 1,
		Repeat:       rec.Spec.RepeatIndex + 1,
		Parameters:   make([]parameterPayload, 0, len(rec.Spec.Binding)),
		Command: commandPayload{
			Executable: rec.Spec.Command.Executable,
			Args:       append([]string{}, rec.Spec.Command.Args...),
			Dir:        rec.Spec.Command.Dir,
		},
		Status: statusPayload{
			Outcome:  string(rec.Status.Outcome),
			ExitCode: rec.Status.ExitCode,
			Signal:   rec.Status.Signal,
			Error:    rec.Status.Error,
		},
		PID:             rec.PID,
		StartedAt:       formatTime(rec.StartedAt),
		EndedAt:         formatTime(rec.EndedAt),
		DurationSeconds: rec.Duration().Seconds(),
		BaselineID:      rec.BaselineID,
		Samples:         make([]samplePayload, 0, len(rec.Samples)),
		System:          snapshotsPayload(rec.System),
		Summary:         newSummaryPayload(rec.Summary),
	}
	for _, a := range rec.Spec.Binding {
		doc.Parameters = append(doc.Parameters, parameterPayload{Name: a.Name, Value: a.Value, Positional: a.Positional})
	}
	for _, s := range rec.Samples {
		doc.Samples = append(doc.Samples, samplePayload{
			Step:          s.Step,
			PID:           s.PID,
			PPID:          s.PPID,
			CPUPercent:    s.CPUPercent,
			MemoryPercent: s.MemoryPercent,
			RSSBytes:      s.RSSBytes,
			IOReadBytes:   s.IOReadBytes,
			IOWriteBytes:  s.IOWriteBytes,
		})
	}
	return doc
}

type BaselineDocument struct {
	Schema          string            `json:"schema"`
	BaselineID      string            `json:"baseline_id"`
	InvocationID    string            `json:"invocation_id"`
	Scope           string            `json:"scope"`
	Scenario        string            `json:"scenario,omitempty"`
	StartedAt       string            `json:"started_at"`
	EndedAt         string            `json:"ended_at"`
	IntervalSeconds float64           `json:"interval_seconds"`
	Degraded        bool              `json:"degraded"`
	Error           string            `json:"error,omitempty"`
	Snapshots       []snapshotPayload `json:"snapshots"`
	Summary         statsPayload      `json:"summary"`
}

func NewBaselineDocument(b domain.BaselineRecord) BaselineDocument {
	return BaselineDocument{
		Schema:          BaselineSchemaV1,
		BaselineID:      b.ID,
		InvocationID:    b.InvocationID,
		Scope:           string(b.Scope),
		Scenario:        b.Scenario,
		StartedAt:       formatTime(b.StartedAt),
		EndedAt:         formatTime(b.EndedAt),
		IntervalSeconds: b.Interval.Seconds(),
		Degraded:        b.Degraded,
		Error:           b.Error,
		Snapshots:       snapshotsPayload(b.Snapshots),
		Summary:         newStatsPayload(SystemStats(b.Snapshots)),
	}
}

// indexLine is one entry of the per-scenario runs.ndjson index.
type indexLine struct {
	RunID           string  `json:"run_id"`
	Set             int     `json:"set"`
	Repeat          int     `json:"repeat"`
	Outcome         string  `json:"outcome"`
	ExitCode        int     `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
	Record          string  `json:"record"`
	StartedAt       string  `json:"started_at"`
}

func snapshotsPayload(snaps []domain.SystemSnapshot) []snapshotPayload {
	out := make([]snapshotPayload, 0, len(snaps))
	for _, s := range snaps {
		perCPU := s.PerCPUPercent
		if perCPU == nil {
			perCPU = []float64{}
		}
		out = append(out, snapshotPayload{
			Step:          s.Step,
			CPUPercent:    s.CPUPercent,
			PerCPUPercent: perCPU,
			MemoryPercent: s.MemoryPercent,
			IOReadBytes:   s.IOReadBytes,
			IOWriteBytes:  s.IOWriteBytes,
		})
	}
	return out
}

func newStatsPayload(s domain.SeriesStats) statsPayload {
	return statsPayload{
		Samples:    s.Samples,
		MeanCPU:    s.MeanCPU,
		PeakCPU:    s.PeakCPU,
		MeanMemory: s.MeanMemory,
		PeakMemory: s.PeakMemory,
	}
}

func newSummaryPayload(s domain.Summary) summaryPayload {
	out := summaryPayload{
		DurationSeconds: s.DurationSeconds,
		Steps:           s.Steps,
		Processes:       s.Processes,
		Root:            newStatsPayload(s.Root),
		Tree:            newStatsPayload(s.Tree),
		IOReadBytes:     s.IOReadBytes,
		IOWriteBytes:    s.IOWriteBytes,
	}
	if s.System.Samples > 0 {
		system := newStatsPayload(s.System)
		out.System = &system
	}
	if s.HasBaseline {
		cpu, mem := s.CPUOverBaseline, s.MemoryOverBaseline
		out.CPUOverBaseline = &cpu
		out.MemoryOverBaseline = &mem
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
