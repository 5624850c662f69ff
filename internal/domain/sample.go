package domain

import "time"

// ProcessSample is one process's resource reading at one timestep. Step is a
// relative index within its session, never a wall-clock value.
type ProcessSample struct {
	PID           int32
	PPID          int32
	Step          int
	CPUPercent    float64
	MemoryPercent float64
	RSSBytes      uint64
	IOReadBytes   uint64
	IOWriteBytes  uint64
}

// SystemSnapshot is the host-wide equivalent of a ProcessSample.
type SystemSnapshot struct {
	Step          int
	CPUPercent    float64
	PerCPUPercent []float64
	MemoryPercent float64
	IOReadBytes   uint64
	IOWriteBytes  uint64
}

// BaselineScope decides how often the idle host is measured.
type BaselineScope string

const (
	BaselinePerInvocation BaselineScope = "invocation"
	BaselinePerScenario   BaselineScope = "scenario"
)

// BaselineRecord is the idle-host reference captured before runs begin.
// It is shared read-only by every run it precedes.
type BaselineRecord struct {
	ID           string
	InvocationID string
	Scope        BaselineScope
	Scenario     string
	StartedAt    time.Time
	EndedAt      time.Time
	Interval     time.Duration
	Snapshots    []SystemSnapshot
	Degraded     bool
	Error        string
}

// SeriesStats summarizes one CPU/memory series.
type SeriesStats struct {
	Samples    int
	MeanCPU    float64
	PeakCPU    float64
	MeanMemory float64
	PeakMemory float64
}

// Summary holds the derived aggregates of a RunRecord.
type Summary struct {
	DurationSeconds    float64
	Steps              int
	Processes          int
	Root               SeriesStats
	Tree               SeriesStats
	System             SeriesStats
	IOReadBytes        uint64
	IOWriteBytes       uint64
	HasBaseline        bool
	CPUOverBaseline    float64
	MemoryOverBaseline float64
}
