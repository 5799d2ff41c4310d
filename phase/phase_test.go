package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snippits/govpmu/vpmu"
)

func vpmuTBInfo(startPC uint64, size uint32) vpmu.TBInfo {
	return vpmu.TBInfo{StartPC: startPC, Size: size, NumInsn: 1}
}

func vecWindow(v []float64) *Window {
	w := NewWindow(len(v))
	copy(w.BranchVector, v)
	return w
}

// TestPhaseClassificationScenario is scenario S4: window_size = 1000,
// vector length 8, threshold 0.05. Two identical synthetic windows
// merge into one phase with num_windows == 2; a dissimilar third
// window opens a second phase; phase_history accumulates 3 entries.
func TestPhaseClassificationScenario(t *testing.T) {
	d := NewDetector(8, 1000, 0.05)

	var phases []*Phase
	var history []HistoryEntry

	w1 := vecWindow([]float64{10, 0, 0, 0, 0, 0, 0, 0})
	phases, h := d.Promote(phases, w1)
	history = append(history, h)

	w2 := vecWindow([]float64{10, 0, 0, 0, 0, 0, 0, 0})
	phases, h = d.Promote(phases, w2)
	history = append(history, h)

	w3 := vecWindow([]float64{0, 10, 0, 0, 0, 0, 0, 0})
	phases, h = d.Promote(phases, w3)
	history = append(history, h)

	require.Len(t, phases, 2)
	assert.Equal(t, 2, phases[0].NumWindows)
	assert.Equal(t, 1, phases[1].NumWindows)
	assert.Len(t, history, 3)
	assert.Equal(t, []HistoryEntry{{PhaseID: 0}, {PhaseID: 0}, {PhaseID: 1}}, history)
}

func TestWindowUpdateRejectsZeroLengthVector(t *testing.T) {
	w := &Window{}
	err := w.Update(vpmuTBInfo(0x1000, 4), 1, 0)
	assert.Error(t, err)
}

func TestWindowUpdateHashesIntoBucket(t *testing.T) {
	w := NewWindow(4)
	require.NoError(t, w.Update(vpmuTBInfo(8, 4), 1, 0))
	assert.Equal(t, float64(1), w.BranchVector[2]) // 8/4 mod 4 == 2
}

func TestWindowCrossedWindowSize(t *testing.T) {
	w := NewWindow(4)
	w.InstructionCount = 1001
	assert.True(t, w.CrossedWindowSize(1000))
	w.InstructionCount = 1000
	assert.False(t, w.CrossedWindowSize(1000))
}

func TestSubPhaseFlagSetsOnStackPointerDecrease(t *testing.T) {
	w := NewWindow(4)
	require.NoError(t, w.Update(vpmuTBInfo(0, 4), 1, 100))
	assert.False(t, w.SubPhaseFlag)
	require.NoError(t, w.Update(vpmuTBInfo(0, 4), 2, 50))
	assert.True(t, w.SubPhaseFlag)
}
