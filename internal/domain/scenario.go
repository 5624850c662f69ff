package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExecutionType selects the command adapter used to run a scenario.
type ExecutionType string

const (
	ExecutionTypeQGISProcess ExecutionType = "qgis-process"
	ExecutionTypeQGISPython  ExecutionType = "qgis-python"
	ExecutionTypePython      ExecutionType = "python"
	ExecutionTypeShell       ExecutionType = "shell"
)

// NormalizeExecutionType maps free-form type names to canonical execution types.
func NormalizeExecutionType(value string) ExecutionType {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(ExecutionTypeQGISProcess), "qgis_process":
		return ExecutionTypeQGISProcess
	case string(ExecutionTypeQGISPython), "qgis_python", "pyqgis":
		return ExecutionTypeQGISPython
	case string(ExecutionTypePython), "script":
		return ExecutionTypePython
	case string(ExecutionTypeShell), "shell-script", "sh":
		return ExecutionTypeShell
	default:
		return ExecutionType(strings.TrimSpace(value))
	}
}

// OutputStructure controls how run records and outputs are laid out on disk.
type OutputStructure string

const (
	OutputNested OutputStructure = "nested"
	OutputFlat   OutputStructure = "flat"
)

// Parameter is one declared scenario parameter. Values holds exactly one
// literal unless List is set, in which case every value is a sweep candidate.
type Parameter struct {
	Name       string
	Values     []string
	List       bool
	Positional bool
}

// NamedPath binds an output name to a file name or path.
type NamedPath struct {
	Name string
	Path string
}

// Scenario is a fully parsed benchmark definition. It is not modified after loading.
type Scenario struct {
	Name            string
	Type            ExecutionType
	Command         string
	Repeat          int
	TempDirectory   string
	WorkDir         string
	Inputs          []Parameter
	Outputs         []NamedPath
	Parameters      []Parameter
	OutputStructure OutputStructure
	Env             map[string]string
	Timeout         time.Duration
}

// Validate reports every structural problem with the scenario at once.
func (s Scenario) Validate() error {
	issues := &ConfigurationError{Scenario: s.Name}

	if strings.TrimSpace(s.Name) == "" {
		issues.Add("name is required")
	}
	if strings.TrimSpace(string(s.Type)) == "" {
		issues.Add("type is required")
	}
	if strings.TrimSpace(s.Command) == "" {
		issues.Add("command is required")
	}
	if s.Repeat < 1 {
		issues.Add(fmt.Sprintf("repeat must be >= 1, got %d", s.Repeat))
	}
	switch s.OutputStructure {
	case OutputNested, OutputFlat:
	default:
		issues.Add(fmt.Sprintf("output-structure %q must be nested or flat", s.OutputStructure))
	}
	if s.Timeout < 0 {
		issues.Add("timeout must be >= 0")
	}

	seen := make(map[string]struct{}, len(s.Parameters)+len(s.Inputs)+len(s.Outputs))
	check := func(kind string, p Parameter) {
		if !p.Positional && strings.TrimSpace(p.Name) == "" {
			issues.Add(fmt.Sprintf("%s name is required", kind))
			return
		}
		if p.List && len(p.Values) == 0 {
			issues.Add(fmt.Sprintf("%s %q has an empty value list", kind, p.Name))
		}
		if !p.List && len(p.Values) != 1 {
			issues.Add(fmt.Sprintf("%s %q must have exactly one value", kind, p.Name))
		}
		if _, ok := seen[p.Name]; ok {
			issues.Add(fmt.Sprintf("%s %q is declared more than once", kind, p.Name))
		}
		seen[p.Name] = struct{}{}
	}
	for _, p := range s.Parameters {
		check("parameter", p)
	}
	for _, p := range s.Inputs {
		check("input", p)
	}
	for _, out := range s.Outputs {
		if strings.TrimSpace(out.Name) == "" || strings.TrimSpace(out.Path) == "" {
			issues.Add("outputs must not contain empty names or paths")
			continue
		}
		if _, ok := seen[out.Name]; ok {
			issues.Add(fmt.Sprintf("output %q collides with a parameter or input", out.Name))
		}
		seen[out.Name] = struct{}{}
	}

	return issues.OrNil()
}
