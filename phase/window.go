// Package phase implements the PhaseDetector: a per-process window
// accumulator over the instruction stream, branch-footprint vector
// hashing, and a pluggable nearest-cluster classifier, per spec.md
// §4.7.
package phase

import (
	"fmt"

	"github.com/snippits/govpmu/vpmu"
)

// walkKey identifies one (start, end) basic-block walk for the
// code_walk_count histogram.
type walkKey struct {
	Start, End uint64
}

// Window is a bounded slice of instruction references accumulated
// until it crosses WindowSize instructions, at which point it is
// handed to a Classifier and reset.
type Window struct {
	BranchVector []float64

	InstructionCount uint64
	LoadInsn         uint64
	StoreInsn        uint64
	ALUInsn          uint64
	BitInsn          uint64
	BranchInsn       uint64

	CodeWalkCount map[walkKey]uint64

	// Timestamp is recorded when the first reference arrives; callers
	// supply it explicitly (no hidden wall-clock read) so windows
	// remain deterministic to replay and test.
	Timestamp int64

	// StackPointer and SubPhaseFlag implement the sub-phase
	// micro-detection hook (spec.md §9): a decrease in the guest
	// stack pointer between two updates flags a candidate sub-phase
	// boundary. No sub-phase object is ever promoted from this flag —
	// it is left as a reserved signal for a future extension, per
	// spec.md §9 ("do not implement unless required").
	StackPointer uint64
	SubPhaseFlag bool
}

// NewWindow allocates a Window with a branch vector of the given
// length. A zero-length vector is a configuration error: Update
// rejects it with an error (spec.md §8 boundary behavior).
func NewWindow(vectorSize int) *Window {
	return &Window{
		BranchVector:  make([]float64, vectorSize),
		CodeWalkCount: make(map[walkKey]uint64),
	}
}

// Update folds one translated block into the window: it increments
// the hashed branch-vector bucket, accumulates per-class instruction
// counters, records the block's walk key, and (if sp is nonzero)
// evaluates the sub-phase stack-pointer hook. timestamp stamps the
// window's start on its first reference.
func (w *Window) Update(tb vpmu.TBInfo, timestamp int64, sp uint64) error {
	if len(w.BranchVector) == 0 {
		return fmt.Errorf("phase: zero-length branch vector is a configuration error")
	}
	if w.InstructionCount == 0 && w.Timestamp == 0 {
		w.Timestamp = timestamp
	}

	idx := hashStartPC(tb.StartPC) % uint64(len(w.BranchVector))
	w.BranchVector[idx]++

	w.InstructionCount += uint64(tb.NumInsn)
	w.LoadInsn += uint64(tb.NumLoad)
	w.StoreInsn += uint64(tb.NumStore)
	w.ALUInsn += uint64(tb.NumALU)
	w.BitInsn += uint64(tb.NumBit)
	if tb.HasBranch {
		w.BranchInsn++
	}

	key := walkKey{Start: tb.StartPC, End: tb.StartPC + uint64(tb.Size)}
	w.CodeWalkCount[key]++

	if sp != 0 {
		if w.StackPointer != 0 && sp < w.StackPointer {
			w.SubPhaseFlag = true
		}
		w.StackPointer = sp
	}

	return nil
}

// hashStartPC is the branch-footprint hash: start_pc/4 folded into the
// vector's bucket count, per spec.md §4.7.
func hashStartPC(startPC uint64) uint64 {
	return startPC / 4
}

// CrossedWindowSize reports whether the window has accumulated more
// instructions than windowSize, per spec.md §3's promotion policy
// ("instruction_count > window_size").
func (w *Window) CrossedWindowSize(windowSize uint64) bool {
	return w.InstructionCount > windowSize
}
