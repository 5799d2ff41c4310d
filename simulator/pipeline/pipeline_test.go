package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snippits/govpmu/snapshot"
	"github.com/snippits/govpmu/vpmu"
)

func TestTimerChargesPerClassCost(t *testing.T) {
	tm := &Timer{}
	require.NoError(t, tm.Build(vpmu.Model{Name: "pipeline-timer"}))
	tb := &vpmu.TBInfo{NumALU: 2, NumLoad: 1, NumStore: 1, NumInsn: 4}
	d := tm.PacketProcessor(0, vpmu.Reference[vpmu.CPURef]{
		Payload: vpmu.CPURef{Core: 0, Mode: vpmu.ModeUser, TBInfo: tb},
	}).(vpmu.InsnData)

	want := defaultCostTable.ALU*2 + defaultCostTable.Load*1 + defaultCostTable.Store*1
	assert.Equal(t, want, d.User[0].Cycles)
	assert.Equal(t, uint64(4), d.User[0].TotalInsn)
	assert.Zero(t, d.System[0].Cycles)
}

func TestDualIssueCollapsesALUBitCycles(t *testing.T) {
	tm := &Timer{}
	require.NoError(t, tm.Build(vpmu.Model{Name: "pipeline-timer", DualIssue: true}))
	tb := &vpmu.TBInfo{NumALU: 4, NumInsn: 4}
	d := tm.PacketProcessor(0, vpmu.Reference[vpmu.CPURef]{
		Payload: vpmu.CPURef{Core: 0, TBInfo: tb},
	}).(vpmu.InsnData)

	full := defaultCostTable.ALU * 4
	assert.Equal(t, full-full/2, d.User[0].Cycles)
}

func TestSnapshotPopulatesCPUTimeNanosFromFrequency(t *testing.T) {
	tm := &Timer{}
	require.NoError(t, tm.Build(vpmu.Model{Name: "pipeline-timer", FrequencyMHz: 1000}))
	tb := &vpmu.TBInfo{NumALU: 2, NumLoad: 1, NumStore: 1, NumInsn: 4}
	tm.PacketProcessor(0, vpmu.Reference[vpmu.CPURef]{
		Payload: vpmu.CPURef{Core: 0, Mode: vpmu.ModeUser, TBInfo: tb},
	})

	snap := tm.Snapshot()
	require.NotZero(t, snap.InsnData.User[0].Cycles)
	assert.Equal(t, vpmu.CyclesToNanos(snap.InsnData.Reduce().Cycles, 1000), snap.TimeNanos[snapshot.TimeCPU])
	assert.NotZero(t, snap.TimeNanos[snapshot.TimeCPU])
}

func TestResetCountersZeroesDerivedCPUTime(t *testing.T) {
	tm := &Timer{}
	require.NoError(t, tm.Build(vpmu.Model{Name: "pipeline-timer", FrequencyMHz: 1000}))
	tb := &vpmu.TBInfo{NumALU: 2, NumInsn: 2}
	tm.PacketProcessor(0, vpmu.Reference[vpmu.CPURef]{Payload: vpmu.CPURef{Core: 0, TBInfo: tb}})
	require.NotZero(t, tm.Snapshot().TimeNanos[snapshot.TimeCPU])

	tm.ResetCounters()
	assert.Zero(t, tm.Snapshot().TimeNanos[snapshot.TimeCPU])
}

func TestSystemModeUsesSeparateBucket(t *testing.T) {
	tm := &Timer{}
	require.NoError(t, tm.Build(vpmu.Model{}))
	tb := &vpmu.TBInfo{NumALU: 1, NumInsn: 1}
	tm.PacketProcessor(0, vpmu.Reference[vpmu.CPURef]{Payload: vpmu.CPURef{Core: 0, Mode: vpmu.ModeSystem, TBInfo: tb}})
	d := tm.PacketProcessor(0, vpmu.Reference[vpmu.CPURef]{Payload: vpmu.CPURef{Core: 0, Mode: vpmu.ModeSystem, TBInfo: tb}}).(vpmu.InsnData)
	assert.Equal(t, uint64(2), d.System[0].TotalInsn)
	assert.Zero(t, d.User[0].TotalInsn)
}
