// Package results derives run summaries and persists run and baseline documents.
package results

import (
	"sort"

	"github.com/geobench-labs/geobench-go/internal/domain"
)

// Summarize computes the aggregates of one run. baseline may be nil.
//
// Root stats cover the root process series; tree stats sum every process
// per step first. I/O totals take the last cumulative counter of each
// process that ever appeared.
func Summarize(rec domain.RunRecord, baseline *domain.BaselineRecord) domain.Summary {
	sum := domain.Summary{
		DurationSeconds: rec.Duration().Seconds(),
		Steps:           rec.Steps,
	}

	var rootCPU, rootMem []float64
	type stepTotal struct{ cpu, mem float64 }
	perStep := make(map[int]*stepTotal)
	type lastIO struct {
		step        int
		read, write uint64
	}
	perPID := make(map[int32]lastIO)

	for _, s := range rec.Samples {
		if s.PID == rec.PID {
			rootCPU = append(rootCPU, s.CPUPercent)
			rootMem = append(rootMem, s.MemoryPercent)
		}
		t := perStep[s.Step]
		if t == nil {
			t = &stepTotal{}
			perStep[s.Step] = t
		}
		t.cpu += s.CPUPercent
		t.mem += s.MemoryPercent

		if prev, ok := perPID[s.PID]; !ok || s.Step >= prev.step {
			perPID[s.PID] = lastIO{step: s.Step, read: s.IOReadBytes, write: s.IOWriteBytes}
		}
	}

	steps := make([]int, 0, len(perStep))
	for step := range perStep {
		steps = append(steps, step)
	}
	sort.Ints(steps)
	treeCPU := make([]float64, 0, len(steps))
	treeMem := make([]float64, 0, len(steps))
	for _, step := range steps {
		treeCPU = append(treeCPU, perStep[step].cpu)
		treeMem = append(treeMem, perStep[step].mem)
	}

	for _, io := range perPID {
		sum.IOReadBytes += io.read
		sum.IOWriteBytes += io.write
	}
	sum.Processes = len(perPID)
	sum.Root = seriesStats(rootCPU, rootMem)
	sum.Tree = seriesStats(treeCPU, treeMem)
	sum.System = SystemStats(rec.System)

	if baseline != nil && len(baseline.Snapshots) > 0 && sum.System.Samples > 0 {
		idle := SystemStats(baseline.Snapshots)
		sum.HasBaseline = true
		sum.CPUOverBaseline = sum.System.MeanCPU - idle.MeanCPU
		sum.MemoryOverBaseline = sum.System.MeanMemory - idle.MeanMemory
	}
	return sum
}

// SystemStats summarizes a host series.
func SystemStats(snaps []domain.SystemSnapshot) domain.SeriesStats {
	cpu := make([]float64, len(snaps))
	mem := make([]float64, len(snaps))
	for i, s := range snaps {
		cpu[i] = s.CPUPercent
		mem[i] = s.MemoryPercent
	}
	return seriesStats(cpu, mem)
}

func seriesStats(cpu, mem []float64) domain.SeriesStats {
	out := domain.SeriesStats{Samples: len(cpu)}
	if len(cpu) == 0 {
		return out
	}
	out.MeanCPU, out.PeakCPU = meanPeak(cpu)
	out.MeanMemory, out.PeakMemory = meanPeak(mem)
	return out
}

func meanPeak(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var total float64
	peak := values[0]
	for _, v := range values {
		total += v
		if v > peak {
			peak = v
		}
	}
	mean := total / float64(len(values))
	// Rounding can push the mean of a constant series past its peak.
	if mean > peak {
		mean = peak
	}
	return mean, peak
}
