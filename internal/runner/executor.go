// Package runner launches one run at a time and measures it while it executes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/geobench-labs/geobench-go/internal/domain"
	"github.com/geobench-labs/geobench-go/internal/layout"
	"github.com/geobench-labs/geobench-go/internal/monitor"
)

const DefaultKillGrace = 2 * time.Second

type Options struct {
	Interval time.Duration
	// Timeout applies to runs whose scenario sets none. Zero means unlimited.
	Timeout      time.Duration
	KillGrace    time.Duration
	RecordSystem bool
}

// Executor runs RunSpecs sequentially. Execute holds an exclusive lock for
// the whole run, so concurrent callers are serialized.
type Executor struct {
	mu      sync.Mutex
	opts    Options
	sampler monitor.Sampler
	tracker *monitor.TreeTracker
	logger  *slog.Logger
	now     func() time.Time
}

func NewExecutor(sampler monitor.Sampler, tracker *monitor.TreeTracker, opts Options, logger *slog.Logger) *Executor {
	if opts.Interval <= 0 {
		opts.Interval = monitor.DefaultInterval
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = DefaultKillGrace
	}
	if tracker == nil {
		tracker = monitor.NewTreeTracker(nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		opts:    opts,
		sampler: sampler,
		tracker: tracker,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Execute launches spec's command, samples its process tree until it exits
// or times out, and returns the record. Failures are reported in the
// record's status, never as an error. The run is not interrupted when ctx
// is cancelled; only the timeout stops it early.
func (e *Executor) Execute(ctx context.Context, spec domain.RunSpec) domain.RunRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	rec := domain.RunRecord{
		RunID:     uuid.NewString(),
		Spec:      spec,
		StartedAt: e.now(),
	}
	logger := e.logger.With(
		"scenario", spec.Scenario,
		"run_id", rec.RunID,
		"set", spec.SetIndex+1,
		"repeat", spec.RepeatIndex+1,
	)

	stdout, stderr, err := openLogs(spec.Location)
	if err != nil {
		return e.launchFailed(rec, logger, err)
	}
	defer stdout.Close()
	defer stderr.Close()

	cmd := exec.Command(spec.Command.Executable, spec.Command.Args...)
	cmd.Dir = spec.Command.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Command.Env)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setProcessGroup(cmd)

	rec.StartedAt = e.now()
	if err := cmd.Start(); err != nil {
		return e.launchFailed(rec, logger, &domain.LaunchError{Executable: spec.Command.Executable, Err: err})
	}
	pid := cmd.Process.Pid
	rec.PID = int32(pid)
	logger.Info("run started", "pid", pid, "executable", spec.Command.Executable)

	mopts := monitor.Options{Interval: e.opts.Interval, Logger: logger}
	procSession := monitor.NewProcessSession(int32(pid), e.tracker, e.sampler, mopts)
	if err := procSession.Start(ctx); err != nil {
		logger.Warn("process monitor not started", "error", err)
	}
	var hostSession *monitor.Session
	if e.opts.RecordSystem {
		hostSession = monitor.NewHostSession(e.sampler, mopts)
		if err := hostSession.Start(ctx); err != nil {
			logger.Warn("host monitor not started", "error", err)
		}
	}

	waitCh := make(chan error, 1)
	go func() {
		waitCh <- cmd.Wait()
	}()

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = e.opts.Timeout
	}
	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	var waitErr error
	timedOut := false
	select {
	case waitErr = <-waitCh:
	case <-timerC:
		timedOut = true
		logger.Warn("run timed out, terminating process tree", "pid", pid, "timeout", timeout.String())
		waitErr = e.terminate(ctx, pid, waitCh, logger)
	}
	rec.EndedAt = e.now()

	procSession.Stop()
	if hostSession != nil {
		hostSession.Stop()
		rec.System = hostSession.Snapshots()
	}
	rec.Samples = procSession.Samples()
	rec.Steps = procSession.Steps()
	rec.Status = exitStatus(waitErr, timedOut, timeout)

	logger.Info("run finished",
		"pid", pid,
		"outcome", string(rec.Status.Outcome),
		"exit_code", rec.Status.ExitCode,
		"duration", rec.Duration().String(),
		"steps", rec.Steps,
	)
	return rec
}

// terminate signals the process group and every tracked descendant, first
// politely and then with SIGKILL once the grace period expires.
func (e *Executor) terminate(ctx context.Context, pid int, waitCh <-chan error, logger *slog.Logger) error {
	tracked, err := e.tracker.Tree(ctx, int32(pid))
	if err != nil {
		logger.Debug("process tree unavailable during termination", "error", err)
	}
	signalTree(pid, tracked, terminateSignal())

	grace := time.NewTimer(e.opts.KillGrace)
	defer grace.Stop()
	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-grace.C:
		signalTree(pid, tracked, killSignal())
		waitErr = <-waitCh
	}
	// Descendants outside the group may have been reparented by now.
	signalTree(pid, tracked, killSignal())
	return waitErr
}

func (e *Executor) launchFailed(rec domain.RunRecord, logger *slog.Logger, err error) domain.RunRecord {
	rec.EndedAt = e.now()
	rec.Status = domain.ExitStatus{
		Outcome:  domain.OutcomeLaunchFailed,
		ExitCode: -1,
		Error:    err.Error(),
	}
	logger.Warn("run launch failed", "error", err)
	return rec
}

func exitStatus(err error, timedOut bool, timeout time.Duration) domain.ExitStatus {
	if timedOut {
		status := domain.ExitStatus{
			Outcome:  domain.OutcomeTimedOut,
			ExitCode: -1,
			Signal:   exitSignal(err),
			Error:    fmt.Sprintf("%v after %s", domain.ErrRunTimeout, timeout),
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status.ExitCode = exitErr.ExitCode()
		}
		return status
	}
	if err == nil {
		return domain.ExitStatus{Outcome: domain.OutcomeSucceeded}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return domain.ExitStatus{
			Outcome:  domain.OutcomeFailed,
			ExitCode: exitErr.ExitCode(),
			Signal:   exitSignal(err),
			Error:    exitErr.Error(),
		}
	}
	return domain.ExitStatus{Outcome: domain.OutcomeFailed, ExitCode: -1, Error: err.Error()}
}

func openLogs(loc domain.RunLocation) (*os.File, *os.File, error) {
	if err := os.MkdirAll(loc.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create run directory: %w", err)
	}
	stdout, err := os.Create(layout.SideFile(loc, layout.StdoutFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("create stdout log: %w", err)
	}
	stderr, err := os.Create(layout.SideFile(loc, layout.StderrFileName))
	if err != nil {
		stdout.Close()
		return nil, nil, fmt.Errorf("create stderr log: %w", err)
	}
	return stdout, stderr, nil
}

// mergeEnv overlays extra on base; keys from extra win.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(base)+len(keys))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, ok := extra[name]; ok {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}
