package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

const DefaultInterval = time.Second

type Options struct {
	Interval time.Duration
	// TickTimeout bounds one tick's sampling. Defaults to the interval.
	TickTimeout time.Duration
	Logger      *slog.Logger
}

func (o Options) normalized() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.TickTimeout <= 0 {
		o.TickTimeout = o.Interval
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Session is a background sampling loop bound to a process tree or to the
// host. It moves Created -> Running -> Stopped and never back. Steps are
// contiguous from zero: a tick that collects nothing does not consume an
// index. After Stop returns the series no longer changes.
type Session struct {
	opts    Options
	collect func(ctx context.Context, step int) (int, error)

	mu        sync.Mutex
	state     domain.SessionState
	started   bool
	startedAt time.Time
	stoppedAt time.Time
	step      int
	samples   []domain.ProcessSample
	snapshots []domain.SystemSnapshot
	lastErr   error

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func newSession(opts Options) *Session {
	return &Session{
		opts:   opts.normalized(),
		state:  domain.SessionCreated,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// NewProcessSession samples root and its live descendants on every tick.
func NewProcessSession(root int32, tracker *TreeTracker, sampler Sampler, opts Options) *Session {
	s := newSession(opts)
	s.collect = func(ctx context.Context, step int) (int, error) {
		pids, err := tracker.Tree(ctx, root)
		if err != nil {
			// The root is sampled even when the table cannot be read.
			s.opts.Logger.Debug("process tree unavailable", "pid", root, "error", err)
			pids = []int32{root}
		}
		batch := make([]domain.ProcessSample, 0, len(pids))
		var sampleErr error
		for _, pid := range pids {
			sample, err := sampler.SampleProcess(ctx, pid)
			if err != nil {
				if !errors.Is(err, domain.ErrProcessGone) {
					sampleErr = err
					s.opts.Logger.Debug("process sample failed", "pid", pid, "error", err)
				}
				continue
			}
			sample.PID = pid
			sample.Step = step
			batch = append(batch, sample)
		}
		if len(batch) > 0 {
			s.mu.Lock()
			s.samples = append(s.samples, batch...)
			s.mu.Unlock()
		}
		return len(batch), sampleErr
	}
	return s
}

// NewHostSession samples host-wide counters on every tick.
func NewHostSession(sampler Sampler, opts Options) *Session {
	s := newSession(opts)
	s.collect = func(ctx context.Context, step int) (int, error) {
		snap, err := sampler.SampleHost(ctx)
		if err != nil {
			return 0, err
		}
		snap.Step = step
		s.mu.Lock()
		s.snapshots = append(s.snapshots, snap)
		s.mu.Unlock()
		return 1, nil
	}
	return s
}

// Start records the start instant and launches the loop. The first tick
// happens immediately.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if !domain.CanTransitionSessionState(s.state, domain.SessionRunning) {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	s.state = domain.SessionRunning
	s.started = true
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	go s.loop(ctx)
	return nil
}

func (s *Session) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-s.stopCh:
			s.tick(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, s.opts.TickTimeout)
	defer cancel()

	s.mu.Lock()
	step := s.step
	s.mu.Unlock()

	n, err := s.collect(tctx, step)

	s.mu.Lock()
	if n > 0 {
		s.step++
	}
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
}

// Stop performs one final tick, waits for the loop to exit and marks the
// session stopped. It is safe to call from any goroutine, any number of times.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == domain.SessionCreated {
		s.state = domain.SessionStopped
		s.stoppedAt = time.Now().UTC()
	}
	s.mu.Unlock()

	s.stopOnce.Do(s.signalStop)
	<-s.done

	s.mu.Lock()
	if domain.CanTransitionSessionState(s.state, domain.SessionStopped) {
		s.state = domain.SessionStopped
		s.stoppedAt = time.Now().UTC()
	}
	s.mu.Unlock()
}

func (s *Session) signalStop() {
	close(s.stopCh)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		close(s.done)
	}
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Steps is the number of ticks that produced data.
func (s *Session) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

func (s *Session) StoppedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stoppedAt
}

func (s *Session) Samples() []domain.ProcessSample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProcessSample(nil), s.samples...)
}

func (s *Session) Snapshots() []domain.SystemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SystemSnapshot, len(s.snapshots))
	for i, snap := range s.snapshots {
		snap.PerCPUPercent = append([]float64(nil), snap.PerCPUPercent...)
		out[i] = snap
	}
	return out
}

// Err returns the most recent sampling failure other than a vanished process.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
