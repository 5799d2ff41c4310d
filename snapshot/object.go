package snapshot

import (
	"fmt"

	"github.com/snippits/govpmu/vpmu"
)

// ToObject renders a Snapshot as a nested keyed map for machine
// consumption (the "object tree" dump format of spec.md §4.8).
func (s Snapshot) ToObject() map[string]any {
	return map[string]any{
		"insn":    insnToObject(s.InsnData),
		"branch":  branchToObject(s.BranchData),
		"cache":   cacheToObject(s.CacheData),
		"time_ns": timeToObject(s.TimeNanos),
	}
}

func insnToObject(d vpmu.InsnData) map[string]any {
	return map[string]any{
		"user":   insnCoresToObject(d.User),
		"system": insnCoresToObject(d.System),
	}
}

func insnCoresToObject(cores []vpmu.InsnCoreCounts) []any {
	out := make([]any, len(cores))
	for i, c := range cores {
		out[i] = map[string]any{
			"cycles":     c.Cycles,
			"total_insn": c.TotalInsn,
			"load_insn":  c.LoadInsn,
			"store_insn": c.StoreInsn,
		}
	}
	return out
}

func branchToObject(d vpmu.BranchData) map[string]any {
	cores := make([]any, len(d.Cores))
	for i, c := range d.Cores {
		cores[i] = map[string]any{"correct": c.Correct, "wrong": c.Wrong}
	}
	return map[string]any{"cores": cores}
}

func cacheToObject(d vpmu.CacheData) map[string]any {
	levels := make([]any, len(d.Levels))
	for l, cores := range d.Levels {
		coreObjs := make([]any, len(cores))
		for c, counts := range cores {
			coreObjs[c] = map[string]any{
				"read":       counts.Counts[vpmu.CacheRead],
				"read_miss":  counts.Counts[vpmu.CacheReadMiss],
				"write":      counts.Counts[vpmu.CacheWrite],
				"write_miss": counts.Counts[vpmu.CacheWriteMiss],
			}
		}
		levels[l] = coreObjs
	}
	return map[string]any{
		"levels":          levels,
		"memory_accesses": d.MemoryAccesses,
		"memory_time_ns":  d.MemoryTimeNanos,
	}
}

func timeToObject(t [numTimeSlots]float64) map[string]any {
	out := make(map[string]any, numTimeSlots)
	for i := 0; i < int(numTimeSlots); i++ {
		out[TimeSlot(i).String()] = t[i]
	}
	return out
}

// FromObject reconstructs a Snapshot from the map produced by
// ToObject. The input must be well-formed (as produced by ToObject);
// malformed trees return an error rather than panicking.
func FromObject(o map[string]any) (Snapshot, error) {
	var s Snapshot

	insnObj, ok := o["insn"].(map[string]any)
	if !ok {
		return s, fmt.Errorf("snapshot object: missing or malformed %q", "insn")
	}
	insn, err := insnFromObject(insnObj)
	if err != nil {
		return s, err
	}
	s.InsnData = insn

	branchObj, ok := o["branch"].(map[string]any)
	if !ok {
		return s, fmt.Errorf("snapshot object: missing or malformed %q", "branch")
	}
	branch, err := branchFromObject(branchObj)
	if err != nil {
		return s, err
	}
	s.BranchData = branch

	cacheObj, ok := o["cache"].(map[string]any)
	if !ok {
		return s, fmt.Errorf("snapshot object: missing or malformed %q", "cache")
	}
	cache, err := cacheFromObject(cacheObj)
	if err != nil {
		return s, err
	}
	s.CacheData = cache

	timeObj, ok := o["time_ns"].(map[string]any)
	if !ok {
		return s, fmt.Errorf("snapshot object: missing or malformed %q", "time_ns")
	}
	for i := 0; i < int(numTimeSlots); i++ {
		v, ok := timeObj[TimeSlot(i).String()].(float64)
		if !ok {
			return s, fmt.Errorf("snapshot object: missing time_ns.%s", TimeSlot(i))
		}
		s.TimeNanos[i] = v
	}

	return s, nil
}

func insnFromObject(o map[string]any) (vpmu.InsnData, error) {
	user, err := insnCoresFromObject(o["user"])
	if err != nil {
		return vpmu.InsnData{}, err
	}
	system, err := insnCoresFromObject(o["system"])
	if err != nil {
		return vpmu.InsnData{}, err
	}
	return vpmu.InsnData{User: user, System: system}, nil
}

func insnCoresFromObject(v any) ([]vpmu.InsnCoreCounts, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("snapshot object: expected insn core list")
	}
	out := make([]vpmu.InsnCoreCounts, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("snapshot object: malformed insn core entry %d", i)
		}
		out[i] = vpmu.InsnCoreCounts{
			Cycles:    asUint64(m["cycles"]),
			TotalInsn: asUint64(m["total_insn"]),
			LoadInsn:  asUint64(m["load_insn"]),
			StoreInsn: asUint64(m["store_insn"]),
		}
	}
	return out, nil
}

func branchFromObject(o map[string]any) (vpmu.BranchData, error) {
	list, ok := o["cores"].([]any)
	if !ok {
		return vpmu.BranchData{}, fmt.Errorf("snapshot object: expected branch.cores list")
	}
	out := vpmu.NewBranchData(len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return vpmu.BranchData{}, fmt.Errorf("snapshot object: malformed branch core entry %d", i)
		}
		out.Cores[i] = vpmu.BranchCoreCounts{Correct: asUint64(m["correct"]), Wrong: asUint64(m["wrong"])}
	}
	return out, nil
}

func cacheFromObject(o map[string]any) (vpmu.CacheData, error) {
	levels, ok := o["levels"].([]any)
	if !ok {
		return vpmu.CacheData{}, fmt.Errorf("snapshot object: expected cache.levels list")
	}
	numCores := 0
	if len(levels) > 0 {
		if cores, ok := levels[0].([]any); ok {
			numCores = len(cores)
		}
	}
	out := vpmu.NewCacheData(len(levels), numCores)
	for l, lv := range levels {
		cores, ok := lv.([]any)
		if !ok {
			return vpmu.CacheData{}, fmt.Errorf("snapshot object: malformed cache level %d", l)
		}
		for c, item := range cores {
			m, ok := item.(map[string]any)
			if !ok {
				return vpmu.CacheData{}, fmt.Errorf("snapshot object: malformed cache core entry %d/%d", l, c)
			}
			var counts vpmu.CacheLevelCoreCounts
			counts.Counts[vpmu.CacheRead] = asUint64(m["read"])
			counts.Counts[vpmu.CacheReadMiss] = asUint64(m["read_miss"])
			counts.Counts[vpmu.CacheWrite] = asUint64(m["write"])
			counts.Counts[vpmu.CacheWriteMiss] = asUint64(m["write_miss"])
			out.Levels[l][c] = counts
		}
	}
	out.MemoryAccesses = asUint64(o["memory_accesses"])
	out.MemoryTimeNanos = asUint64(o["memory_time_ns"])
	return out, nil
}

// asUint64 accepts both uint64 (as ToObject produces) and float64
// (as a JSON round trip through encoding/json would produce), so
// FromObject tolerates either a directly-built tree or one that
// passed through a JSON encode/decode cycle.
func asUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case float64:
		return uint64(n)
	case int:
		return uint64(n)
	default:
		return 0
	}
}
