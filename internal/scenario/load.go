// Package scenario reads benchmark scenario files and expands them into runs.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

var rangeExpr = regexp.MustCompile(`^(\d+):(\d+)(?::(\d+))?$`)

// Overrides are command-line values that take precedence over the file.
type Overrides struct {
	Name   string
	Repeat int
}

type document struct {
	Name            string            `yaml:"name"`
	Repeat          *int              `yaml:"repeat"`
	Type            string            `yaml:"type"`
	Command         string            `yaml:"command"`
	CommandFile     string            `yaml:"command-file"`
	WorkDir         string            `yaml:"workdir"`
	TempDirectory   string            `yaml:"temp-directory"`
	Inputs          yaml.Node         `yaml:"inputs"`
	Outputs         yaml.Node         `yaml:"outputs"`
	Parameters      yaml.Node         `yaml:"parameters"`
	OutputStructure string            `yaml:"output-structure"`
	Env             map[string]string `yaml:"env"`
	Timeout         string            `yaml:"timeout"`
}

// Load reads every scenario document in the YAML file at path. Relative
// command-file paths are resolved against the file's directory.
func Load(path string, overrides Overrides) ([]domain.Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	return Parse(raw, filepath.Dir(path), overrides)
}

// Parse decodes one or more YAML documents into validated scenarios.
func Parse(input []byte, baseDir string, overrides Overrides) ([]domain.Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(input))
	var out []domain.Scenario
	for i := 0; ; i++ {
		var doc document
		if err := dec.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &domain.ConfigurationError{Issues: []string{fmt.Sprintf("decode scenario document %d: %v", i+1, err)}, Err: err}
		}
		scn, err := doc.toScenario(baseDir, overrides)
		if err != nil {
			return nil, err
		}
		out = append(out, scn)
	}
	if len(out) == 0 {
		return nil, &domain.ConfigurationError{Issues: []string{"scenario file contains no documents"}}
	}
	return out, nil
}

func (d document) toScenario(baseDir string, overrides Overrides) (domain.Scenario, error) {
	issues := &domain.ConfigurationError{Scenario: strings.TrimSpace(d.Name)}

	scn := domain.Scenario{
		Name:            strings.TrimSpace(d.Name),
		Type:            domain.NormalizeExecutionType(d.Type),
		Command:         strings.TrimSpace(d.Command),
		Repeat:          1,
		TempDirectory:   strings.TrimSpace(d.TempDirectory),
		WorkDir:         strings.TrimSpace(d.WorkDir),
		OutputStructure: domain.OutputStructure(strings.ToLower(strings.TrimSpace(d.OutputStructure))),
		Env:             make(map[string]string, len(d.Env)),
	}
	if name := strings.TrimSpace(overrides.Name); name != "" {
		scn.Name = name
		issues.Scenario = name
	}
	if d.Repeat != nil {
		scn.Repeat = *d.Repeat
	}
	if overrides.Repeat > 0 {
		scn.Repeat = overrides.Repeat
	}
	if scn.OutputStructure == "" {
		scn.OutputStructure = domain.OutputNested
	}
	if file := strings.TrimSpace(d.CommandFile); file != "" {
		if scn.Command != "" {
			issues.Add("command and command-file are mutually exclusive")
		}
		if !filepath.IsAbs(file) && baseDir != "" {
			file = filepath.Join(baseDir, file)
		}
		scn.Command = file
	}
	for k, v := range d.Env {
		scn.Env[k] = v
	}
	if t := strings.TrimSpace(d.Timeout); t != "" {
		timeout, err := parseTimeout(t)
		if err != nil {
			issues.Add(err.Error())
		}
		scn.Timeout = timeout
	}

	var err error
	if scn.Parameters, err = parseParameters(&d.Parameters, "parameters", true); err != nil {
		issues.Add(err.Error())
	}
	if scn.Inputs, err = parseParameters(&d.Inputs, "inputs", false); err != nil {
		issues.Add(err.Error())
	}
	if scn.Outputs, err = parseOutputs(&d.Outputs); err != nil {
		issues.Add(err.Error())
	}

	if err := issues.OrNil(); err != nil {
		return domain.Scenario{}, err
	}
	if err := scn.Validate(); err != nil {
		return domain.Scenario{}, err
	}
	return scn, nil
}

// parseParameters keeps declaration order. A mapping yields named
// parameters; a sequence (when allowed) yields positional ones.
func parseParameters(node *yaml.Node, field string, allowPositional bool) ([]domain.Parameter, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		return nil, fmt.Errorf("%s must be a mapping", field)
	case yaml.MappingNode:
		out := make([]domain.Parameter, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := strings.TrimSpace(node.Content[i].Value)
			p, err := parseValue(node.Content[i+1], field, name)
			if err != nil {
				return nil, err
			}
			p.Name = name
			out = append(out, p)
		}
		return out, nil
	case yaml.SequenceNode:
		if !allowPositional {
			return nil, fmt.Errorf("%s must be a mapping", field)
		}
		out := make([]domain.Parameter, 0, len(node.Content))
		for i, item := range node.Content {
			name := "arg" + strconv.Itoa(i+1)
			p, err := parseValue(item, field, name)
			if err != nil {
				return nil, err
			}
			p.Name = name
			p.Positional = true
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be a mapping or a sequence", field)
	}
}

func parseValue(node *yaml.Node, field, name string) (domain.Parameter, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return domain.Parameter{Values: []string{node.Value}}, nil
	case yaml.SequenceNode:
		values := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return domain.Parameter{}, fmt.Errorf("%s.%s: list values must be scalars", field, name)
			}
			expanded, err := expandRange(item.Value)
			if err != nil {
				return domain.Parameter{}, fmt.Errorf("%s.%s: %w", field, name, err)
			}
			values = append(values, expanded...)
		}
		return domain.Parameter{Values: values, List: true}, nil
	default:
		return domain.Parameter{}, fmt.Errorf("%s.%s: value must be a scalar or a list", field, name)
	}
}

// expandRange turns "start:end[:step]" into the inclusive integer sequence.
// Any other value is returned unchanged.
func expandRange(value string) ([]string, error) {
	m := rangeExpr.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return []string{value}, nil
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("range %q: %w", value, err)
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("range %q: %w", value, err)
	}
	step := 1
	if m[3] != "" {
		if step, err = strconv.Atoi(m[3]); err != nil {
			return nil, fmt.Errorf("range %q: %w", value, err)
		}
	}
	if step <= 0 {
		return nil, fmt.Errorf("range %q: step must be > 0", value)
	}
	if end < start {
		return nil, fmt.Errorf("range %q: end must be >= start", value)
	}
	count := (end-start)/step + 1
	if count > maxRunsPerSweep {
		return nil, fmt.Errorf("range %q: %d values exceeds %d", value, count, maxRunsPerSweep)
	}
	out := make([]string, count)
	for i := range out {
		out[i] = strconv.Itoa(start + i*step)
	}
	return out, nil
}

func parseOutputs(node *yaml.Node) ([]domain.NamedPath, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
	case yaml.MappingNode:
		out := make([]domain.NamedPath, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("outputs.%s must be a single path", key.Value)
			}
			out = append(out, domain.NamedPath{Name: strings.TrimSpace(key.Value), Path: strings.TrimSpace(val.Value)})
		}
		return out, nil
	}
	return nil, errors.New("outputs must be a mapping")
}

// parseTimeout accepts Go durations ("90s", "5m") or plain seconds.
func parseTimeout(value string) (time.Duration, error) {
	if d, err := time.ParseDuration(value); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("timeout %q is not a duration", value)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
