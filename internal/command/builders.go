package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

const qgisPrefixEnv = "QGIS_PREFIX_PATH"

// QGISProcessBuilder renders `qgis_process run <algorithm> --NAME=VALUE ...`.
type QGISProcessBuilder struct {
	Bin        string
	PrefixPath string
}

func (QGISProcessBuilder) Kind() domain.ExecutionType {
	return domain.ExecutionTypeQGISProcess
}

func (b QGISProcessBuilder) Build(inv Invocation) (domain.CommandSpec, error) {
	alg := strings.TrimSpace(inv.Scenario.Command)
	if alg == "" {
		return domain.CommandSpec{}, fmt.Errorf("qgis-process: algorithm id is required")
	}
	args := []string{"run", alg}
	args = append(args, renderArgs(inv.Binding, inv.Outputs)...)
	return domain.CommandSpec{
		Executable: binOr(b.Bin, "qgis_process"),
		Args:       args,
		Dir:        inv.Scenario.WorkDir,
		Env:        withPrefix(inv.Scenario.Env, b.PrefixPath),
	}, nil
}

// QGISPythonBuilder runs processing.run(<algorithm>, {params}) inside a
// standalone QGIS application through the interpreter's -c flag.
type QGISPythonBuilder struct {
	Bin        string
	PrefixPath string
}

func (QGISPythonBuilder) Kind() domain.ExecutionType {
	return domain.ExecutionTypeQGISPython
}

func (b QGISPythonBuilder) Build(inv Invocation) (domain.CommandSpec, error) {
	alg := strings.TrimSpace(inv.Scenario.Command)
	if alg == "" {
		return domain.CommandSpec{}, fmt.Errorf("qgis-python: algorithm id is required")
	}
	params := make(map[string]string, len(inv.Binding)+len(inv.Outputs))
	for _, a := range append(append([]domain.Assignment(nil), inv.Binding...), inv.Outputs...) {
		if a.Positional {
			return domain.CommandSpec{}, fmt.Errorf("qgis-python: positional value %q is not supported", a.Value)
		}
		params[a.Name] = a.Value
	}
	program, err := qgisProgram(alg, params, b.PrefixPath)
	if err != nil {
		return domain.CommandSpec{}, err
	}
	return domain.CommandSpec{
		Executable: binOr(b.Bin, "python3"),
		Args:       []string{"-c", program},
		Dir:        inv.Scenario.WorkDir,
		Env:        withPrefix(inv.Scenario.Env, b.PrefixPath),
	}, nil
}

// PythonBuilder runs a script with the configured interpreter.
type PythonBuilder struct {
	Bin string
}

func (PythonBuilder) Kind() domain.ExecutionType {
	return domain.ExecutionTypePython
}

func (b PythonBuilder) Build(inv Invocation) (domain.CommandSpec, error) {
	script := strings.TrimSpace(inv.Scenario.Command)
	if script == "" {
		return domain.CommandSpec{}, fmt.Errorf("python: script is required")
	}
	args := append([]string{script}, renderArgs(inv.Binding, inv.Outputs)...)
	return domain.CommandSpec{
		Executable: binOr(b.Bin, "python3"),
		Args:       args,
		Dir:        inv.Scenario.WorkDir,
		Env:        copyEnv(inv.Scenario.Env),
	}, nil
}

// ShellBuilder runs a shell script or inline command with the configured shell.
type ShellBuilder struct {
	Bin string
}

func (ShellBuilder) Kind() domain.ExecutionType {
	return domain.ExecutionTypeShell
}

func (b ShellBuilder) Build(inv Invocation) (domain.CommandSpec, error) {
	script := strings.TrimSpace(inv.Scenario.Command)
	if script == "" {
		return domain.CommandSpec{}, fmt.Errorf("shell: command is required")
	}
	args := append([]string{script}, renderArgs(inv.Binding, inv.Outputs)...)
	return domain.CommandSpec{
		Executable: binOr(b.Bin, "sh"),
		Args:       args,
		Dir:        inv.Scenario.WorkDir,
		Env:        copyEnv(inv.Scenario.Env),
	}, nil
}

// renderArgs keeps declaration order: positional values are passed bare,
// named ones as --NAME=VALUE.
func renderArgs(binding, outputs []domain.Assignment) []string {
	out := make([]string, 0, len(binding)+len(outputs))
	for _, a := range binding {
		if a.Positional {
			out = append(out, a.Value)
			continue
		}
		out = append(out, "--"+a.Name+"="+a.Value)
	}
	for _, a := range outputs {
		out = append(out, "--"+a.Name+"="+a.Value)
	}
	return out
}

func qgisProgram(alg string, params map[string]string, prefix string) (string, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encode qgis parameters: %w", err)
	}
	quotedParams, err := json.Marshal(string(payload))
	if err != nil {
		return "", fmt.Errorf("encode qgis parameters: %w", err)
	}
	quotedAlg, err := json.Marshal(alg)
	if err != nil {
		return "", fmt.Errorf("encode qgis algorithm: %w", err)
	}

	var b strings.Builder
	b.WriteString("import json\n")
	b.WriteString("from qgis.core import QgsApplication\n")
	if strings.TrimSpace(prefix) != "" {
		quotedPrefix, err := json.Marshal(prefix)
		if err != nil {
			return "", fmt.Errorf("encode qgis prefix: %w", err)
		}
		fmt.Fprintf(&b, "QgsApplication.setPrefixPath(%s, True)\n", quotedPrefix)
	}
	b.WriteString("app = QgsApplication([], False)\n")
	b.WriteString("app.initQgis()\n")
	b.WriteString("from processing.core.Processing import Processing\n")
	b.WriteString("Processing.initialize()\n")
	b.WriteString("import processing\n")
	fmt.Fprintf(&b, "processing.run(%s, json.loads(%s))\n", quotedAlg, quotedParams)
	b.WriteString("app.exitQgis()\n")
	return b.String(), nil
}

func binOr(bin, def string) string {
	if strings.TrimSpace(bin) == "" {
		return def
	}
	return strings.TrimSpace(bin)
}

func copyEnv(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func withPrefix(in map[string]string, prefix string) map[string]string {
	out := copyEnv(in)
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return out
	}
	if _, ok := out[qgisPrefixEnv]; !ok {
		out[qgisPrefixEnv] = prefix
	}
	return out
}
