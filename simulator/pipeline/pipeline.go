// Package pipeline implements a per-ISA pipeline timer: each TB-info
// reference is decomposed by instruction class and charged a fixed
// per-class cycle cost, with optional dual-issue collapsing for
// models that declare it (the Intel-I7-style timer from
// original_source's simulator/Intel-I7.hpp, with one built-in class
// cost table).
package pipeline

import (
	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/snapshot"
	"github.com/snippits/govpmu/vpmu"
)

// Register installs the pipeline timer under its canonical name.
func Register(reg *simulator.Registry[vpmu.CPURef]) {
	reg.Register("pipeline-timer", func() simulator.Simulator[vpmu.CPURef] { return &Timer{} })
}

// ClassCost is a fixed per-instruction-class cycle cost table. Build
// always installs defaultCostTable (ALU 1, Bit 1, Load 2, Store 2);
// Timer has no way to select or override another table.
type ClassCost struct {
	ALU, Bit, Load, Store uint64
}

var defaultCostTable = ClassCost{ALU: 1, Bit: 1, Load: 2, Store: 2}

// Timer is the pipeline timer simulator.
type Timer struct {
	model vpmu.Model
	cost  ClassCost
	data  vpmu.InsnData

	// cpuTimeNanos is the derived-timing CPU contribution (spec.md
	// §4.5), recomputed on every packet from the accumulated cycle
	// total via vpmu.CyclesToNanos.
	cpuTimeNanos float64
}

func (t *Timer) Build(model vpmu.Model) error {
	t.model = model
	t.cost = defaultCostTable
	t.data = vpmu.NewInsnData(1)
	return nil
}

func (t *Timer) grow(core int) {
	for len(t.data.User) <= core {
		t.data.User = append(t.data.User, vpmu.InsnCoreCounts{})
		t.data.System = append(t.data.System, vpmu.InsnCoreCounts{})
	}
}

func (t *Timer) PacketProcessor(id int, ref vpmu.Reference[vpmu.CPURef]) simulator.Data {
	core := ref.Payload.Core
	t.grow(core)
	tb := ref.Payload.TBInfo
	if tb == nil {
		return t.data
	}

	cycles := t.cost.ALU*uint64(tb.NumALU) + t.cost.Bit*uint64(tb.NumBit) +
		t.cost.Load*uint64(tb.NumLoad) + t.cost.Store*uint64(tb.NumStore)
	if t.model.DualIssue {
		// Dual-issue collapsing: a pair of independent ALU/Bit
		// instructions can retire in the same cycle, so the model
		// halves that portion of the block's cycle count (the saved
		// half is rounded down, so an odd collapsible count keeps its
		// extra cycle).
		collapsible := t.cost.ALU*uint64(tb.NumALU) + t.cost.Bit*uint64(tb.NumBit)
		cycles = cycles - collapsible/2
	}

	counts := vpmu.InsnCoreCounts{
		Cycles:    cycles,
		TotalInsn: uint64(tb.NumInsn),
		LoadInsn:  uint64(tb.NumLoad),
		StoreInsn: uint64(tb.NumStore),
	}

	var bucket *vpmu.InsnCoreCounts
	if ref.Payload.Mode == vpmu.ModeSystem {
		bucket = &t.data.System[core]
	} else {
		bucket = &t.data.User[core]
	}
	bucket.Cycles += counts.Cycles
	bucket.TotalInsn += counts.TotalInsn
	bucket.LoadInsn += counts.LoadInsn
	bucket.StoreInsn += counts.StoreInsn

	t.cpuTimeNanos = vpmu.CyclesToNanos(t.data.Reduce().Cycles, t.model.FrequencyMHz)

	return t.data
}

// Snapshot returns the timer's current counters as a
// snapshot.Snapshot, with the CPU time slot populated from the
// derived-timing counter above; BranchData and CacheData are left
// zero for the caller to merge in from the other two simulator
// families.
func (t *Timer) Snapshot() snapshot.Snapshot {
	s := snapshot.Snapshot{InsnData: t.data}
	s.TimeNanos[snapshot.TimeCPU] = t.cpuTimeNanos
	return s
}

// ResetCounters zeroes every core's instruction/cycle totals and the
// derived-timing counter, leaving the cost table and dual-issue model
// configuration untouched.
func (t *Timer) ResetCounters() {
	t.data = vpmu.NewInsnData(len(t.data.User))
	t.cpuTimeNanos = 0
}

func (t *Timer) Destroy() {}
