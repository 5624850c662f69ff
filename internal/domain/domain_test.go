package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestCanTransitionSessionState(t *testing.T) {
	tests := []struct {
		current SessionState
		next    SessionState
		want    bool
	}{
		{SessionCreated, SessionRunning, true},
		{SessionRunning, SessionStopped, true},
		{SessionCreated, SessionStopped, true},
		{SessionStopped, SessionRunning, false},
		{SessionRunning, SessionCreated, false},
		{SessionStopped, SessionStopped, false},
		{"", SessionRunning, false},
	}
	for _, tt := range tests {
		if got := CanTransitionSessionState(tt.current, tt.next); got != tt.want {
			t.Fatalf("CanTransitionSessionState(%q, %q)=%v, want %v", tt.current, tt.next, got, tt.want)
		}
	}
}

func TestNormalizeExecutionType(t *testing.T) {
	tests := map[string]ExecutionType{
		"qgis-process":  ExecutionTypeQGISProcess,
		" QGIS_PROCESS": ExecutionTypeQGISProcess,
		"pyqgis":        ExecutionTypeQGISPython,
		"script":        ExecutionTypePython,
		"shell-script":  ExecutionTypeShell,
		"arcgis":        ExecutionType("arcgis"),
	}
	for in, want := range tests {
		if got := NormalizeExecutionType(in); got != want {
			t.Fatalf("NormalizeExecutionType(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Scenario)
		wantErr string
	}{
		{name: "ok", mutate: func(*Scenario) {}},
		{name: "zero repeat", mutate: func(s *Scenario) { s.Repeat = 0 }, wantErr: "repeat must be >= 1"},
		{name: "empty list", mutate: func(s *Scenario) {
			s.Parameters = append(s.Parameters, Parameter{Name: "SIZE", List: true})
		}, wantErr: "empty value list"},
		{name: "bad structure", mutate: func(s *Scenario) { s.OutputStructure = "tree" }, wantErr: "output-structure"},
		{name: "duplicate", mutate: func(s *Scenario) {
			s.Parameters = append(s.Parameters, Parameter{Name: "DISTANCE", Values: []string{"1"}})
		}, wantErr: "declared more than once"},
		{name: "output collision", mutate: func(s *Scenario) {
			s.Outputs = append(s.Outputs, NamedPath{Name: "INPUT", Path: "x.gpkg"})
		}, wantErr: "collides"},
	}
	for _, tt := range tests {
		scn := validScenario()
		tt.mutate(&scn)
		err := scn.Validate()
		if tt.wantErr == "" {
			if err != nil {
				t.Fatalf("%s: Validate() err=%v", tt.name, err)
			}
			continue
		}
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: Validate() err=%v, want *ConfigurationError", tt.name, err)
		}
		if !strings.Contains(err.Error(), tt.wantErr) {
			t.Fatalf("%s: Validate() err=%q, want substring %q", tt.name, err.Error(), tt.wantErr)
		}
	}
}

func TestConfigurationErrorUnwrap(t *testing.T) {
	err := &ConfigurationError{Scenario: "buffer", Err: ErrUnsupportedType}
	err.Add("")
	err.Add(fmt.Sprintf("no command builder registered for type %q", "arcgis"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("errors.Is(err, ErrUnsupportedType)=false")
	}
	if len(err.Issues) != 1 {
		t.Fatalf("Issues=%v, want one issue", err.Issues)
	}
	if (&ConfigurationError{}).OrNil() != nil {
		t.Fatalf("OrNil() on empty error should be nil")
	}
}

func TestRunRecordDuration(t *testing.T) {
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)
	rec := RunRecord{StartedAt: start, EndedAt: start.Add(1500 * time.Millisecond)}
	if got := rec.Duration(); got != 1500*time.Millisecond {
		t.Fatalf("Duration()=%v, want 1.5s", got)
	}
	rec.EndedAt = start.Add(-time.Second)
	if got := rec.Duration(); got != 0 {
		t.Fatalf("Duration()=%v, want 0 for inverted bounds", got)
	}
	spec := RunSpec{SetIndex: 2, RepeatIndex: 0}
	if spec.Key() != "set_3/run_1" {
		t.Fatalf("Key()=%q, want set_3/run_1", spec.Key())
	}
}

func validScenario() Scenario {
	return Scenario{
		Name:            "buffer",
		Type:            ExecutionTypeQGISProcess,
		Command:         "native:buffer",
		Repeat:          1,
		OutputStructure: OutputNested,
		Inputs: []Parameter{
			{Name: "INPUT", Values: []string{"data/roads.gpkg"}},
		},
		Outputs: []NamedPath{{Name: "OUTPUT", Path: "buffered.gpkg"}},
		Parameters: []Parameter{
			{Name: "DISTANCE", Values: []string{"10", "20"}, List: true},
		},
	}
}
