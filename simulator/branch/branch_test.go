package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/vpmu"
)

func feed(t *testing.T, sim simulator.Simulator[vpmu.BranchRef], taken []bool) Data {
	t.Helper()
	require.NoError(t, sim.Build(vpmu.Model{Name: "branch-two-bit"}))
	var last simulator.Data
	for _, tk := range taken {
		last = sim.PacketProcessor(0, vpmu.Reference[vpmu.BranchRef]{
			Type:    vpmu.PacketData,
			Payload: vpmu.BranchRef{Core: 0, PC: 0x1000, Taken: tk},
		})
	}
	return last.(Data)
}

// TestTwoBitAccuracy is scenario S1: starting from state 0
// (strongly-not-taken), feeding taken sequence [1,1,0,1,1,1] must
// yield correct=4, wrong=2.
func TestTwoBitAccuracy(t *testing.T) {
	d := feed(t, &TwoBit{}, []bool{true, true, false, true, true, true})
	assert.Equal(t, uint64(4), d.Correct)
	assert.Equal(t, uint64(2), d.Wrong)
}

func TestTwoBitSaturatingTransitions(t *testing.T) {
	s := stateStronglyNotTaken
	s = s.next(true)
	assert.Equal(t, stateWeaklyNotTaken, s)
	s = s.next(true)
	assert.Equal(t, stateStronglyTaken, s)
	s = s.next(true)
	assert.Equal(t, stateStronglyTaken, s)
	s = s.next(false)
	assert.Equal(t, stateWeaklyTaken, s)
	s = s.next(false)
	assert.Equal(t, stateStronglyNotTaken, s)
}

func TestRegisterKnowsAllFourPredictors(t *testing.T) {
	reg := simulator.NewRegistry[vpmu.BranchRef]()
	Register(reg)
	for _, name := range []string{"branch-one-bit", "branch-two-bit", "branch-ght", "branch-alpha21264"} {
		sim, ok := reg.Create(name)
		require.True(t, ok, name)
		require.NoError(t, sim.Build(vpmu.Model{Name: name}))
	}
	_, ok := reg.Create("branch-nonexistent")
	assert.False(t, ok)
}

func TestAlpha21264TracksAccuracy(t *testing.T) {
	sim := &Alpha21264{}
	d := feed(t, sim, []bool{true, true, true, true, true, true, true, true})
	assert.Greater(t, d.Correct, uint64(0))
}
