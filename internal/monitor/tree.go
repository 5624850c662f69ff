package monitor

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessRef is one entry of a process table listing.
type ProcessRef struct {
	PID  int32
	PPID int32
}

// ProcessTable lists live processes and reports which have already exited.
type ProcessTable interface {
	Snapshot(ctx context.Context) ([]ProcessRef, error)
	Exited(ctx context.Context, pid int32) bool
}

// GopsutilTable reads the host process table.
type GopsutilTable struct{}

func (GopsutilTable) Snapshot(ctx context.Context) ([]ProcessRef, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pids: %w", err)
	}
	out := make([]ProcessRef, 0, len(pids))
	for _, pid := range pids {
		p, err := process.NewProcessWithContext(ctx, pid)
		if err != nil {
			continue
		}
		ppid, err := p.PpidWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, ProcessRef{PID: pid, PPID: ppid})
	}
	return out, nil
}

// Exited reports true for processes that are gone or are zombies waiting
// to be reaped.
func (GopsutilTable) Exited(ctx context.Context, pid int32) bool {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return true
	}
	status, err := p.StatusWithContext(ctx)
	if err != nil {
		running, runErr := p.IsRunningWithContext(ctx)
		return runErr == nil && !running
	}
	for _, s := range status {
		if s == process.Zombie {
			return true
		}
	}
	return false
}

// TreeTracker resolves a root pid to itself plus all live descendants. It
// holds no state between calls; every call re-reads the process table.
type TreeTracker struct {
	Table ProcessTable
}

func NewTreeTracker(table ProcessTable) *TreeTracker {
	if table == nil {
		table = GopsutilTable{}
	}
	return &TreeTracker{Table: table}
}

// Tree returns the root first, then descendants in breadth-first order.
// An exited root yields an empty tree.
func (t *TreeTracker) Tree(ctx context.Context, root int32) ([]int32, error) {
	if t == nil || t.Table == nil {
		return nil, fmt.Errorf("tree tracker not initialized")
	}
	refs, err := t.Table.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	children := make(map[int32][]int32, len(refs))
	present := false
	for _, ref := range refs {
		if ref.PID == root {
			present = true
		}
		// pid 0 is its own parent on some platforms.
		if ref.PID != ref.PPID {
			children[ref.PPID] = append(children[ref.PPID], ref.PID)
		}
	}
	if !present {
		return nil, nil
	}

	out := make([]int32, 0, 8)
	visited := map[int32]struct{}{root: {}}
	queue := []int32{root}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		if !t.Table.Exited(ctx, pid) {
			out = append(out, pid)
		}
		for _, child := range children[pid] {
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}
			queue = append(queue, child)
		}
	}
	return out, nil
}
