package vpmu

// InsnData holds per-{user,system} x per-core instruction totals.
// Zero value is a valid, empty accumulator.
type InsnData struct {
	User   []InsnCoreCounts
	System []InsnCoreCounts
}

// InsnCoreCounts are the totals tracked for a single core.
type InsnCoreCounts struct {
	Cycles     uint64
	TotalInsn  uint64
	LoadInsn   uint64
	StoreInsn  uint64
}

// NewInsnData allocates an InsnData sized for numCores.
func NewInsnData(numCores int) InsnData {
	return InsnData{
		User:   make([]InsnCoreCounts, numCores),
		System: make([]InsnCoreCounts, numCores),
	}
}

// Add returns the element-wise sum of d and other. Both must have the
// same core count.
func (d InsnData) Add(other InsnData) InsnData {
	out := NewInsnData(len(d.User))
	for i := range out.User {
		out.User[i] = addInsnCounts(d.User[i], other.User[i])
		out.System[i] = addInsnCounts(d.System[i], other.System[i])
	}
	return out
}

// Sub returns the element-wise difference d - other.
func (d InsnData) Sub(other InsnData) InsnData {
	out := NewInsnData(len(d.User))
	for i := range out.User {
		out.User[i] = subInsnCounts(d.User[i], other.User[i])
		out.System[i] = subInsnCounts(d.System[i], other.System[i])
	}
	return out
}

// Reduce sums counters across all cores, collapsing to one entry.
func (d InsnData) Reduce() InsnCoreCounts {
	var total InsnCoreCounts
	for _, c := range d.User {
		total = addInsnCounts(total, c)
	}
	for _, c := range d.System {
		total = addInsnCounts(total, c)
	}
	return total
}

func addInsnCounts(a, b InsnCoreCounts) InsnCoreCounts {
	return InsnCoreCounts{
		Cycles:    a.Cycles + b.Cycles,
		TotalInsn: a.TotalInsn + b.TotalInsn,
		LoadInsn:  a.LoadInsn + b.LoadInsn,
		StoreInsn: a.StoreInsn + b.StoreInsn,
	}
}

func subInsnCounts(a, b InsnCoreCounts) InsnCoreCounts {
	return InsnCoreCounts{
		Cycles:    a.Cycles - b.Cycles,
		TotalInsn: a.TotalInsn - b.TotalInsn,
		LoadInsn:  a.LoadInsn - b.LoadInsn,
		StoreInsn: a.StoreInsn - b.StoreInsn,
	}
}

// BranchData holds per-core predictor accuracy counters.
type BranchData struct {
	Cores []BranchCoreCounts
}

// BranchCoreCounts are the correct/wrong totals for one core.
type BranchCoreCounts struct {
	Correct uint64
	Wrong   uint64
}

// NewBranchData allocates a BranchData sized for numCores.
func NewBranchData(numCores int) BranchData {
	return BranchData{Cores: make([]BranchCoreCounts, numCores)}
}

// Add returns the element-wise sum of d and other.
func (d BranchData) Add(other BranchData) BranchData {
	out := NewBranchData(len(d.Cores))
	for i := range out.Cores {
		out.Cores[i] = BranchCoreCounts{
			Correct: d.Cores[i].Correct + other.Cores[i].Correct,
			Wrong:   d.Cores[i].Wrong + other.Cores[i].Wrong,
		}
	}
	return out
}

// Sub returns the element-wise difference d - other.
func (d BranchData) Sub(other BranchData) BranchData {
	out := NewBranchData(len(d.Cores))
	for i := range out.Cores {
		out.Cores[i] = BranchCoreCounts{
			Correct: d.Cores[i].Correct - other.Cores[i].Correct,
			Wrong:   d.Cores[i].Wrong - other.Cores[i].Wrong,
		}
	}
	return out
}

// CacheAccessKind indexes the four histogram buckets a cache level
// tracks per core.
type CacheAccessKind int

const (
	CacheRead CacheAccessKind = iota
	CacheReadMiss
	CacheWrite
	CacheWriteMiss
	numCacheAccessKinds
)

// CacheLevelCoreCounts is one {level, core} histogram.
type CacheLevelCoreCounts struct {
	Counts [numCacheAccessKinds]uint64
}

// CacheData holds per-{level x core} histograms plus scalar
// memory-access accounting. There is no processor-kind dimension:
// accesses from every processor kind share the same buckets.
type CacheData struct {
	// Levels[level][core]
	Levels           [][]CacheLevelCoreCounts
	MemoryAccesses   uint64
	MemoryTimeNanos  uint64
}

// NewCacheData allocates a CacheData for the given level/core shape.
func NewCacheData(numLevels, numCores int) CacheData {
	levels := make([][]CacheLevelCoreCounts, numLevels)
	for i := range levels {
		levels[i] = make([]CacheLevelCoreCounts, numCores)
	}
	return CacheData{Levels: levels}
}

// Add returns the element-wise sum of d and other.
func (d CacheData) Add(other CacheData) CacheData {
	out := NewCacheData(len(d.Levels), coreCount(d.Levels))
	for l := range out.Levels {
		for c := range out.Levels[l] {
			var sum CacheLevelCoreCounts
			for k := 0; k < int(numCacheAccessKinds); k++ {
				sum.Counts[k] = d.Levels[l][c].Counts[k] + other.Levels[l][c].Counts[k]
			}
			out.Levels[l][c] = sum
		}
	}
	out.MemoryAccesses = d.MemoryAccesses + other.MemoryAccesses
	out.MemoryTimeNanos = d.MemoryTimeNanos + other.MemoryTimeNanos
	return out
}

// Sub returns the element-wise difference d - other.
func (d CacheData) Sub(other CacheData) CacheData {
	out := NewCacheData(len(d.Levels), coreCount(d.Levels))
	for l := range out.Levels {
		for c := range out.Levels[l] {
			var diff CacheLevelCoreCounts
			for k := 0; k < int(numCacheAccessKinds); k++ {
				diff.Counts[k] = d.Levels[l][c].Counts[k] - other.Levels[l][c].Counts[k]
			}
			out.Levels[l][c] = diff
		}
	}
	out.MemoryAccesses = d.MemoryAccesses - other.MemoryAccesses
	out.MemoryTimeNanos = d.MemoryTimeNanos - other.MemoryTimeNanos
	return out
}

func coreCount(levels [][]CacheLevelCoreCounts) int {
	if len(levels) == 0 {
		return 0
	}
	return len(levels[0])
}

// CyclesForLevel computes the derived cycle cost of one cache level
// per spec: latency*misses + 1*hits, summed across cores.
func (d CacheData) CyclesForLevel(level int, latencyCycles uint64) uint64 {
	var cycles uint64
	for _, core := range d.Levels[level] {
		misses := core.Counts[CacheReadMiss] + core.Counts[CacheWriteMiss]
		hits := (core.Counts[CacheRead] - core.Counts[CacheReadMiss]) +
			(core.Counts[CacheWrite] - core.Counts[CacheWriteMiss])
		cycles += latencyCycles*misses + hits
	}
	return cycles
}

// MemoryCyclesNanos converts the tracked memory_time_ns into cycles
// given a core frequency in MHz, per spec's scale_factor formula.
func (d CacheData) MemoryCyclesNanos(frequencyMHz float64) float64 {
	if frequencyMHz <= 0 {
		return 0
	}
	scale := 1.0 / (frequencyMHz / 1000.0)
	return float64(d.MemoryTimeNanos) / scale
}

// CyclesToNanos converts a cycle count back to nanoseconds given a
// core frequency in MHz: the inverse of MemoryCyclesNanos's scale
// factor, used to fold a cycle-denominated cost (e.g.
// CyclesForLevel's output) into a snapshot's nanosecond time
// breakdown.
func CyclesToNanos(cycles uint64, frequencyMHz float64) float64 {
	if frequencyMHz <= 0 {
		return 0
	}
	scale := 1.0 / (frequencyMHz / 1000.0)
	return float64(cycles) * scale
}
