// Package command turns a resolved parameter binding into a process invocation.
// One Builder exists per execution type and they are looked up through a Registry.
package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

// Invocation is the input of a Builder: the scenario, the resolved
// parameter and input values in declaration order, and the resolved output
// paths.
type Invocation struct {
	Scenario domain.Scenario
	Binding  []domain.Assignment
	Outputs  []domain.Assignment
}

// Builder materializes the command for one execution type.
type Builder interface {
	Kind() domain.ExecutionType
	Build(inv Invocation) (domain.CommandSpec, error)
}

type Registry struct {
	builders map[domain.ExecutionType]Builder
}

func NewRegistry(builders ...Builder) (*Registry, error) {
	r := &Registry{builders: make(map[domain.ExecutionType]Builder, len(builders))}
	for _, b := range builders {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry registers the qgis-process, qgis-python, python and shell adapters.
func DefaultRegistry(cfg Config) *Registry {
	r, err := NewRegistry(
		QGISProcessBuilder{Bin: cfg.QGISProcessBin, PrefixPath: cfg.QGISPrefixPath},
		QGISPythonBuilder{Bin: cfg.QGISPythonBin, PrefixPath: cfg.QGISPrefixPath},
		PythonBuilder{Bin: cfg.PythonBin},
		ShellBuilder{Bin: cfg.ShellBin},
	)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Register(b Builder) error {
	if r == nil {
		return fmt.Errorf("command registry not initialized")
	}
	if b == nil {
		return fmt.Errorf("builder is required")
	}
	kind := b.Kind()
	if strings.TrimSpace(string(kind)) == "" {
		return fmt.Errorf("builder kind is required")
	}
	if r.builders == nil {
		r.builders = make(map[domain.ExecutionType]Builder)
	}
	if _, ok := r.builders[kind]; ok {
		return fmt.Errorf("builder for type %q already registered", kind)
	}
	r.builders[kind] = b
	return nil
}

func (r *Registry) Lookup(kind domain.ExecutionType) (Builder, error) {
	if r != nil {
		if b, ok := r.builders[kind]; ok {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (registered: %v)", domain.ErrUnsupportedType, kind, r.Kinds())
}

func (r *Registry) Kinds() []domain.ExecutionType {
	if r == nil {
		return nil
	}
	out := make([]domain.ExecutionType, 0, len(r.builders))
	for kind := range r.builders {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
