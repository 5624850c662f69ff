// Package layout decides where benchmark results land on disk.
package layout

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

const (
	RecordFileName   = "result.json"
	BaselineFileName = "baseline.json"
	SystemFileName   = "system.json"
	IndexFileName    = "runs.ndjson"
	StdoutFileName   = "stdout.log"
	StderrFileName   = "stderr.log"
)

var (
	nonWord    = regexp.MustCompile(`[^\w-]`)
	dashRepeat = regexp.MustCompile(`-+`)
)

// Policy maps runs to paths under Root according to the scenario's output structure.
type Policy struct {
	Root      string
	Structure domain.OutputStructure
}

// Slug turns a scenario name into a directory name.
func Slug(name string) string {
	slug := nonWord.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	slug = strings.Trim(dashRepeat.ReplaceAllString(slug, "-"), "-")
	if slug == "" {
		return "scenario"
	}
	return slug
}

func (p Policy) ScenarioDir(scenario string) string {
	return filepath.Join(p.Root, Slug(scenario))
}

// Locate returns the location of one run. Set and run numbers are 1-based and
// zero-padded to the width of the largest number in the sweep.
func (p Policy) Locate(scenario string, setIndex, setCount, repeatIndex, repeat int) domain.RunLocation {
	slug := Slug(scenario)
	set := pad(setIndex+1, setCount)
	run := pad(repeatIndex+1, repeat)

	if p.Structure == domain.OutputFlat {
		prefix := fmt.Sprintf("set_%s_run_%s_", set, run)
		return domain.RunLocation{
			Dir:          filepath.Join(p.Root, slug),
			RecordFile:   filepath.Join(p.Root, slug, prefix+RecordFileName),
			IndexFile:    filepath.Join(p.Root, slug, IndexFileName),
			OutputPrefix: prefix,
			Key:          slug + "/" + prefix + RecordFileName,
		}
	}

	rel := filepath.Join(slug, "set_"+set, "run_"+run)
	return domain.RunLocation{
		Dir:        filepath.Join(p.Root, rel),
		RecordFile: filepath.Join(p.Root, rel, RecordFileName),
		IndexFile:  filepath.Join(p.Root, slug, IndexFileName),
		Key:        filepath.ToSlash(filepath.Join(rel, RecordFileName)),
	}
}

// OutputPath resolves a declared output against a run location. Absolute
// paths are kept as declared.
func OutputPath(loc domain.RunLocation, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	dir, file := filepath.Split(path)
	return filepath.Join(loc.Dir, dir, loc.OutputPrefix+file)
}

// SideFile returns the path of a per-run auxiliary file such as a log.
func SideFile(loc domain.RunLocation, name string) string {
	return filepath.Join(loc.Dir, loc.OutputPrefix+name)
}

// InvocationDir holds the documents shared by every run of one invocation.
func (p Policy) InvocationDir(invocationID string) string {
	return filepath.Join(p.Root, "invocations", invocationID)
}

// BaselineFile returns the baseline document path and its object key.
// Scenario baselines sit next to the scenario's runs; invocation baselines
// go to the invocation directory.
func (p Policy) BaselineFile(scope domain.BaselineScope, scenario, invocationID string) (string, string) {
	if scope == domain.BaselinePerScenario && scenario != "" {
		slug := Slug(scenario)
		return filepath.Join(p.Root, slug, BaselineFileName), slug + "/" + BaselineFileName
	}
	return filepath.Join(p.InvocationDir(invocationID), BaselineFileName), BaselineFileName
}

func (p Policy) SystemFile(invocationID string) string {
	return filepath.Join(p.InvocationDir(invocationID), SystemFileName)
}

func pad(n, max int) string {
	width := len(strconv.Itoa(max))
	return fmt.Sprintf("%0*d", width, n)
}
