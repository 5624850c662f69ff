package scenario

import (
	"fmt"
	"strings"

	"github.com/geobench-labs/geobench-go/internal/command"
	"github.com/geobench-labs/geobench-go/internal/domain"
	"github.com/geobench-labs/geobench-go/internal/layout"
)

const (
	DefaultOutputRoot = "geobench-results"
	maxRunsPerSweep   = 1_000_000
)

// Expander turns scenarios into ordered run specs.
type Expander struct {
	Registry *command.Registry
	// OutputRoot overrides the scenario temp-directory when set.
	OutputRoot string
}

// Root returns the directory under which the scenario's results are written.
func (e Expander) Root(scn domain.Scenario) string {
	if root := strings.TrimSpace(e.OutputRoot); root != "" {
		return root
	}
	if root := strings.TrimSpace(scn.TempDirectory); root != "" {
		return root
	}
	return DefaultOutputRoot
}

// Expand enumerates the Cartesian product of list-valued parameters, then
// list-valued inputs, in declaration order: the first dimension varies
// slowest. Each binding yields Repeat consecutive specs.
func (e Expander) Expand(scn domain.Scenario) ([]domain.RunSpec, error) {
	if err := scn.Validate(); err != nil {
		return nil, err
	}
	builder, err := e.Registry.Lookup(scn.Type)
	if err != nil {
		return nil, &domain.ConfigurationError{
			Scenario: scn.Name,
			Issues:   []string{fmt.Sprintf("no command builder registered for type %q", scn.Type)},
			Err:      err,
		}
	}

	dims := make([]domain.Parameter, 0, len(scn.Parameters)+len(scn.Inputs))
	dims = append(dims, scn.Parameters...)
	dims = append(dims, scn.Inputs...)

	tooLarge := &domain.ConfigurationError{
		Scenario: scn.Name,
		Issues:   []string{fmt.Sprintf("sweep exceeds %d runs", maxRunsPerSweep)},
	}
	if scn.Repeat > maxRunsPerSweep {
		return nil, tooLarge
	}
	setCount := 1
	for _, d := range dims {
		setCount *= len(d.Values)
		if setCount*scn.Repeat > maxRunsPerSweep {
			return nil, tooLarge
		}
	}

	policy := layout.Policy{Root: e.Root(scn), Structure: scn.OutputStructure}
	specs := make([]domain.RunSpec, 0, setCount*scn.Repeat)
	idx := make([]int, len(dims))
	for set := 0; set < setCount; set++ {
		for r := 0; r < scn.Repeat; r++ {
			binding := make([]domain.Assignment, len(dims))
			for i, d := range dims {
				binding[i] = domain.Assignment{Name: d.Name, Value: d.Values[idx[i]], Positional: d.Positional}
			}
			loc := policy.Locate(scn.Name, set, setCount, r, scn.Repeat)
			outputs := make([]domain.Assignment, len(scn.Outputs))
			for i, out := range scn.Outputs {
				outputs[i] = domain.Assignment{Name: out.Name, Value: layout.OutputPath(loc, out.Path)}
			}

			cmd, err := builder.Build(command.Invocation{Scenario: scn, Binding: binding, Outputs: outputs})
			if err != nil {
				return nil, &domain.ConfigurationError{Scenario: scn.Name, Issues: []string{err.Error()}, Err: err}
			}

			specs = append(specs, domain.RunSpec{
				Scenario:    scn.Name,
				Type:        scn.Type,
				SetIndex:    set,
				SetCount:    setCount,
				RepeatIndex: r,
				Repeat:      scn.Repeat,
				Binding:     binding,
				Command:     cmd,
				Location:    loc,
				Timeout:     scn.Timeout,
			})
		}
		advance(idx, dims)
	}
	return specs, nil
}

// advance increments the odometer with the last dimension varying fastest.
func advance(idx []int, dims []domain.Parameter) {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < len(dims[i].Values) {
			return
		}
		idx[i] = 0
	}
}
