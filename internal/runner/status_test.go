package runner

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/usr/bin", "HOME=/root", "LANG=C"}
	got := mergeEnv(base, map[string]string{"LANG": "en_US.UTF-8", "QGIS_PREFIX_PATH": "/usr"})
	want := []string{"PATH=/usr/bin", "HOME=/root", "LANG=en_US.UTF-8", "QGIS_PREFIX_PATH=/usr"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("mergeEnv()=%v, want %v", got, want)
	}
	if got := mergeEnv(base, nil); !reflect.DeepEqual(got, base) {
		t.Fatalf("mergeEnv(nil)=%v, want base", got)
	}
}

func TestExitStatus(t *testing.T) {
	if got := exitStatus(nil, false, 0); got.Outcome != domain.OutcomeSucceeded || !got.Success() {
		t.Fatalf("exitStatus(nil)=%+v", got)
	}
	got := exitStatus(errors.New("wait: broken pipe"), false, 0)
	if got.Outcome != domain.OutcomeFailed || got.ExitCode != -1 {
		t.Fatalf("exitStatus(err)=%+v", got)
	}
	got = exitStatus(nil, true, 2*time.Second)
	if got.Outcome != domain.OutcomeTimedOut || got.Error != "run timed out after 2s" {
		t.Fatalf("exitStatus(timeout)=%+v", got)
	}
}
