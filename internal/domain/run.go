package domain

import (
	"fmt"
	"time"
)

// Assignment is one resolved parameter value.
type Assignment struct {
	Name       string
	Value      string
	Positional bool
}

// CommandSpec is the materialized process invocation for a run.
type CommandSpec struct {
	Executable string
	Args       []string
	Dir        string
	Env        map[string]string
}

// RunLocation is where a run's record and side files are written.
type RunLocation struct {
	Dir          string
	RecordFile   string
	IndexFile    string
	OutputPrefix string
	Key          string
}

// RunSpec is one concrete execution unit derived from a Scenario, identified
// by its parameter binding and repeat index. Expansion allocates fresh slices
// and maps for every RunSpec and nothing mutates them afterwards.
type RunSpec struct {
	Scenario    string
	Type        ExecutionType
	SetIndex    int
	SetCount    int
	RepeatIndex int
	Repeat      int
	Binding     []Assignment
	Command     CommandSpec
	Location    RunLocation
	Timeout     time.Duration
}

// Key is the stable identity of the run within its scenario.
func (s RunSpec) Key() string {
	return fmt.Sprintf("set_%d/run_%d", s.SetIndex+1, s.RepeatIndex+1)
}

// Outcome is the terminal result class of a run.
type Outcome string

const (
	OutcomeSucceeded    Outcome = "succeeded"
	OutcomeFailed       Outcome = "failed"
	OutcomeTimedOut     Outcome = "timed_out"
	OutcomeLaunchFailed Outcome = "launch_failed"
)

type ExitStatus struct {
	Outcome  Outcome
	ExitCode int
	Signal   string
	Error    string
}

func (s ExitStatus) Success() bool {
	return s.Outcome == OutcomeSucceeded
}

// RunRecord is the measured outcome of one RunSpec.
type RunRecord struct {
	RunID        string
	InvocationID string
	BaselineID   string
	Spec         RunSpec
	PID          int32
	StartedAt    time.Time
	EndedAt      time.Time
	Status       ExitStatus
	Steps        int
	Samples      []ProcessSample
	System       []SystemSnapshot
	Summary      Summary
}

func (r RunRecord) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
