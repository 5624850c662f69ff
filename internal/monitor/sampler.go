// Package monitor samples process trees and the host at a fixed cadence.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

// Sampler reads resource counters at the instant of the call. SampleProcess
// fails with domain.ErrProcessGone when pid no longer resolves to a live
// process; SampleHost fails with domain.ErrSamplingUnavailable when the
// host denies access to its counters. The returned Step is always zero.
type Sampler interface {
	SampleProcess(ctx context.Context, pid int32) (domain.ProcessSample, error)
	SampleHost(ctx context.Context) (domain.SystemSnapshot, error)
}

type cpuMark struct {
	created int64
	busy    float64
	at      time.Time
	seen    time.Time
}

// GopsutilSampler reads /proc-style counters through gopsutil. CPU percent
// is computed from the delta against the previous reading of the same
// process (or host), so one instance should serve a whole invocation.
type GopsutilSampler struct {
	mu      sync.Mutex
	procs   map[int32]cpuMark
	host    []cpu.TimesStat
	hostAll []cpu.TimesStat
	now     func() time.Time
}

const (
	markCacheLimit = 4096
	markMaxAge     = time.Minute
)

func NewGopsutilSampler(ctx context.Context) *GopsutilSampler {
	s := &GopsutilSampler{
		procs: make(map[int32]cpuMark),
		now:   time.Now,
	}
	s.hostAll, _ = cpu.TimesWithContext(ctx, false)
	s.host, _ = cpu.TimesWithContext(ctx, true)
	return s
}

func (s *GopsutilSampler) SampleProcess(ctx context.Context, pid int32) (domain.ProcessSample, error) {
	if s == nil {
		return domain.ProcessSample{}, fmt.Errorf("sampler not initialized")
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return domain.ProcessSample{}, s.classify(ctx, pid, err)
	}
	times, err := p.TimesWithContext(ctx)
	if err != nil {
		return domain.ProcessSample{}, s.classify(ctx, pid, err)
	}
	memInfo, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return domain.ProcessSample{}, s.classify(ctx, pid, err)
	}
	memPct, err := p.MemoryPercentWithContext(ctx)
	if err != nil {
		return domain.ProcessSample{}, s.classify(ctx, pid, err)
	}
	created, _ := p.CreateTimeWithContext(ctx)
	ppid, _ := p.PpidWithContext(ctx)

	sample := domain.ProcessSample{
		PID:           pid,
		PPID:          ppid,
		MemoryPercent: float64(memPct),
		RSSBytes:      memInfo.RSS,
		CPUPercent:    s.processCPU(pid, created, times.User+times.System),
	}
	// I/O counters need elevated privileges on some platforms.
	if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
		sample.IOReadBytes = io.ReadBytes
		sample.IOWriteBytes = io.WriteBytes
	}
	return sample, nil
}

func (s *GopsutilSampler) classify(ctx context.Context, pid int32, err error) error {
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return fmt.Errorf("pid %d: %w", pid, domain.ErrProcessGone)
	}
	if alive, existsErr := process.PidExistsWithContext(ctx, pid); existsErr == nil && !alive {
		return fmt.Errorf("pid %d: %w", pid, domain.ErrProcessGone)
	}
	return fmt.Errorf("pid %d: %w: %v", pid, domain.ErrSamplingUnavailable, err)
}

// processCPU returns percent of one core since the previous reading. The
// first reading of a process averages over its lifetime.
func (s *GopsutilSampler) processCPU(pid int32, created int64, busy float64) float64 {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.procs[pid]
	s.procs[pid] = cpuMark{created: created, busy: busy, at: now, seen: now}
	s.prune(now)

	var elapsed, used float64
	if ok && prev.created == created {
		elapsed = now.Sub(prev.at).Seconds()
		used = busy - prev.busy
	} else if created > 0 {
		elapsed = now.Sub(time.UnixMilli(created)).Seconds()
		used = busy
	}
	if elapsed <= 0 || used < 0 {
		return 0
	}
	return used / elapsed * 100
}

func (s *GopsutilSampler) prune(now time.Time) {
	if len(s.procs) <= markCacheLimit {
		return
	}
	for pid, mark := range s.procs {
		if now.Sub(mark.seen) > markMaxAge {
			delete(s.procs, pid)
		}
	}
}

func (s *GopsutilSampler) SampleHost(ctx context.Context) (domain.SystemSnapshot, error) {
	if s == nil {
		return domain.SystemSnapshot{}, fmt.Errorf("sampler not initialized")
	}
	all, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return domain.SystemSnapshot{}, fmt.Errorf("cpu times: %w: %v", domain.ErrSamplingUnavailable, err)
	}
	perCPU, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return domain.SystemSnapshot{}, fmt.Errorf("per-cpu times: %w: %v", domain.ErrSamplingUnavailable, err)
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return domain.SystemSnapshot{}, fmt.Errorf("virtual memory: %w: %v", domain.ErrSamplingUnavailable, err)
	}

	snap := domain.SystemSnapshot{MemoryPercent: vm.UsedPercent}

	s.mu.Lock()
	if len(all) > 0 && len(s.hostAll) > 0 {
		snap.CPUPercent = busyPercent(s.hostAll[0], all[0])
	}
	snap.PerCPUPercent = make([]float64, len(perCPU))
	for i := range perCPU {
		if i < len(s.host) {
			snap.PerCPUPercent[i] = busyPercent(s.host[i], perCPU[i])
		}
	}
	s.hostAll, s.host = all, perCPU
	s.mu.Unlock()

	// Disk counters are unavailable in some containers; the series keeps CPU and memory.
	if counters, err := disk.IOCountersWithContext(ctx); err == nil {
		for _, c := range counters {
			snap.IOReadBytes += c.ReadBytes
			snap.IOWriteBytes += c.WriteBytes
		}
	}
	return snap, nil
}

func busyPercent(prev, cur cpu.TimesStat) float64 {
	total := cpuTotal(cur) - cpuTotal(prev)
	if total <= 0 {
		return 0
	}
	idle := (cur.Idle + cur.Iowait) - (prev.Idle + prev.Iowait)
	pct := (total - idle) / total * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// cpuTotal leaves out guest time, which Linux already counts in user time.
func cpuTotal(t cpu.TimesStat) float64 {
	return t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
}
