// Package snapshot aggregates the three counter families into one
// dumpable unit and renders it as text or as an object tree, per
// spec.md §4.8.
package snapshot

import (
	"github.com/snippits/govpmu/vpmu"
)

// TimeSlot indexes Snapshot.TimeNanos in the fixed order spec.md §4.8
// names.
type TimeSlot int

const (
	TimeCPU TimeSlot = iota
	TimeBranch
	TimeCache
	TimeSystemMemory
	TimeIOMemory
	TimeEstimatedTotal
	TimeHostEmulation
	numTimeSlots
)

func (s TimeSlot) String() string {
	switch s {
	case TimeCPU:
		return "cpu"
	case TimeBranch:
		return "branch"
	case TimeCache:
		return "cache"
	case TimeSystemMemory:
		return "system_memory"
	case TimeIOMemory:
		return "io_memory"
	case TimeEstimatedTotal:
		return "estimated_total"
	case TimeHostEmulation:
		return "host_emulation"
	default:
		return "unknown"
	}
}

// Snapshot is one point-in-time aggregate across all three counter
// families plus the derived time breakdown.
type Snapshot struct {
	InsnData   vpmu.InsnData
	BranchData vpmu.BranchData
	CacheData  vpmu.CacheData
	TimeNanos  [numTimeSlots]float64
}

// New allocates a zero Snapshot sized for numCores cores and
// numCacheLevels cache levels.
func New(numCores, numCacheLevels int) Snapshot {
	return Snapshot{
		InsnData:   vpmu.NewInsnData(numCores),
		BranchData: vpmu.NewBranchData(numCores),
		CacheData:  vpmu.NewCacheData(numCacheLevels, numCores),
	}
}

// Add returns the element-wise sum of s and other.
func (s Snapshot) Add(other Snapshot) Snapshot {
	out := Snapshot{
		InsnData:   s.InsnData.Add(other.InsnData),
		BranchData: s.BranchData.Add(other.BranchData),
		CacheData:  s.CacheData.Add(other.CacheData),
	}
	for i := range out.TimeNanos {
		out.TimeNanos[i] = s.TimeNanos[i] + other.TimeNanos[i]
	}
	return out
}

// Sub returns the element-wise difference s - other.
func (s Snapshot) Sub(other Snapshot) Snapshot {
	out := Snapshot{
		InsnData:   s.InsnData.Sub(other.InsnData),
		BranchData: s.BranchData.Sub(other.BranchData),
		CacheData:  s.CacheData.Sub(other.CacheData),
	}
	for i := range out.TimeNanos {
		out.TimeNanos[i] = s.TimeNanos[i] - other.TimeNanos[i]
	}
	return out
}
