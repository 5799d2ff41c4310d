package phase

import (
	"gonum.org/v1/gonum/floats"

	"github.com/snippits/govpmu/snapshot"
)

// Phase is an equivalence class of windows whose normalized branch
// signatures are close under a similarity threshold.
type Phase struct {
	ID int

	// BranchVector accumulates the raw (un-normalized) vectors of
	// every window folded into this phase; NearestCluster normalizes
	// a copy before measuring distance so the running sum stays exact.
	BranchVector []float64
	NumWindows   int

	CodeWalkCount map[walkKey]uint64

	Snapshot            snapshot.Snapshot
	LastProcessSnapshot snapshot.Snapshot
}

// HistoryEntry records one window's classification outcome.
type HistoryEntry struct {
	Timestamp int64
	PhaseID   int
}

// Classifier maps a Window against an existing phase list, returning
// the matching phase's index or found=false when none qualifies.
type Classifier interface {
	Classify(phases []*Phase, w *Window) (idx int, found bool)
}

// NearestCluster is the default Classifier: the first phase (lowest
// index) whose normalized branch vector lies within Threshold
// Euclidean distance of the window's normalized vector wins.
type NearestCluster struct {
	Threshold float64
}

// Classify implements Classifier.
func (c NearestCluster) Classify(phases []*Phase, w *Window) (int, bool) {
	normWindow := normalize(w.BranchVector)
	for i, p := range phases {
		normPhase := normalizeMean(p.BranchVector, p.NumWindows)
		if floats.Distance(normWindow, normPhase, 2) <= c.Threshold {
			return i, true
		}
	}
	return 0, false
}

// normalize returns the L2-normalized copy of v; the zero vector
// normalizes to itself (avoids a divide-by-zero).
func normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	norm := floats.Norm(out, 2)
	if norm == 0 {
		return out
	}
	floats.Scale(1/norm, out)
	return out
}

// normalizeMean normalizes a phase's accumulated vector by its window
// count before measuring distance, so a phase with many windows is
// compared on its per-window average footprint rather than the raw
// running sum.
func normalizeMean(sum []float64, numWindows int) []float64 {
	out := make([]float64, len(sum))
	copy(out, sum)
	if numWindows > 0 {
		floats.Scale(1/float64(numWindows), out)
	}
	return normalize(out)
}

// Detector ties together window sizing and classification for one
// stream of windows. It holds no per-process state itself — phase
// lists and history live on the owning tracer.Process — so multiple
// processes can share one Detector configuration.
type Detector struct {
	VectorSize int
	WindowSize uint64
	Classifier Classifier
}

// NewDetector builds a Detector with the default NearestCluster
// classifier at the given similarity threshold.
func NewDetector(vectorSize int, windowSize uint64, threshold float64) *Detector {
	return &Detector{
		VectorSize: vectorSize,
		WindowSize: windowSize,
		Classifier: NearestCluster{Threshold: threshold},
	}
}

// NewWindow allocates a Window sized for this Detector's VectorSize.
func (d *Detector) NewWindow() *Window {
	return NewWindow(d.VectorSize)
}

// Promote classifies w against phases and either folds it into the
// matching phase or appends a new one, returning the updated phase
// list and the history entry to append, then resets w in place. This
// is the spec.md §4.7 "phase maintenance" step, run once a window
// crosses WindowSize.
func (d *Detector) Promote(phases []*Phase, w *Window) ([]*Phase, HistoryEntry) {
	defer func() {
		for i := range w.BranchVector {
			w.BranchVector[i] = 0
		}
		*w = Window{BranchVector: w.BranchVector, CodeWalkCount: make(map[walkKey]uint64)}
	}()
	idx, found := d.Classifier.Classify(phases, w)
	if !found {
		p := &Phase{
			ID:            len(phases),
			BranchVector:  append([]float64(nil), w.BranchVector...),
			NumWindows:    1,
			CodeWalkCount: cloneWalkCount(w.CodeWalkCount),
		}
		phases = append(phases, p)
		return phases, HistoryEntry{Timestamp: w.Timestamp, PhaseID: p.ID}
	}

	p := phases[idx]
	for i, v := range w.BranchVector {
		p.BranchVector[i] += v
	}
	p.NumWindows++
	for k, v := range w.CodeWalkCount {
		p.CodeWalkCount[k] += v
	}
	return phases, HistoryEntry{Timestamp: w.Timestamp, PhaseID: p.ID}
}

func cloneWalkCount(m map[walkKey]uint64) map[walkKey]uint64 {
	out := make(map[walkKey]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UpdateSnapshot computes delta = current - LastProcessSnapshot,
// accumulates it into the phase's running Snapshot, and advances
// LastProcessSnapshot, per spec.md §4.8.
func (p *Phase) UpdateSnapshot(current snapshot.Snapshot) {
	delta := current.Sub(p.LastProcessSnapshot)
	p.Snapshot = p.Snapshot.Add(delta)
	p.LastProcessSnapshot = current
}
