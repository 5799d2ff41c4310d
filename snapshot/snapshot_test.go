package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snippits/govpmu/vpmu"
)

func sampleSnapshot() Snapshot {
	s := New(2, 2)
	s.InsnData.User[0] = vpmu.InsnCoreCounts{Cycles: 10, TotalInsn: 5, LoadInsn: 1, StoreInsn: 2}
	s.InsnData.System[1] = vpmu.InsnCoreCounts{Cycles: 3}
	s.BranchData.Cores[0] = vpmu.BranchCoreCounts{Correct: 4, Wrong: 2}
	s.CacheData.Levels[0][0].Counts[vpmu.CacheRead] = 100
	s.CacheData.Levels[0][0].Counts[vpmu.CacheReadMiss] = 7
	s.CacheData.MemoryAccesses = 7
	s.CacheData.MemoryTimeNanos = 700
	s.TimeNanos[TimeCPU] = 123.5
	s.TimeNanos[TimeEstimatedTotal] = 999
	return s
}

func TestAddSubAreInverses(t *testing.T) {
	a := sampleSnapshot()
	b := sampleSnapshot()
	sum := a.Add(b)
	back := sum.Sub(b)
	assert.Equal(t, a, back)
}

// TestObjectRoundTrip is testable property #6: converting a
// well-formed Snapshot to its object tree and back reproduces the
// original.
func TestObjectRoundTrip(t *testing.T) {
	s := sampleSnapshot()
	obj := s.ToObject()
	back, err := FromObject(obj)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestFromObjectRejectsMalformedTree(t *testing.T) {
	_, err := FromObject(map[string]any{"insn": "not a map"})
	assert.Error(t, err)
}

func TestTextRendererFoldsAtWidth(t *testing.T) {
	r := TextRenderer{Width: 30}
	out := r.Row([]Column{{"a", 1}, {"b", 2}, {"c", 3}})
	assert.Contains(t, out, "\n")
}

func TestTextRendererDefaultWidthIsEighty(t *testing.T) {
	r := TextRenderer{}
	assert.Equal(t, 80, r.width())
}
