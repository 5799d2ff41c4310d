package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snippits/govpmu/config"
	"github.com/snippits/govpmu/internal/transport"
	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/simulator/branch"
	"github.com/snippits/govpmu/vpmu"
)

func newBranchRegistry() *simulator.Registry[vpmu.BranchRef] {
	reg := simulator.NewRegistry[vpmu.BranchRef]()
	branch.Register(reg)
	return reg
}

func buildSingleThreadStream(t *testing.T) *Stream[vpmu.BranchRef] {
	t.Helper()
	s := New[vpmu.BranchRef](transport.SingleThread, 2, config.RunConfig{}, nil, nil)
	cfg := config.StreamConfig{Simulators: []string{"branch-one-bit"}}
	require.NoError(t, s.Build(cfg, newBranchRegistry(), 1000))
	return s
}

func TestBuildRejectsUnregisteredSimulator(t *testing.T) {
	s := New[vpmu.BranchRef](transport.SingleThread, 1, config.RunConfig{}, nil, nil)
	cfg := config.StreamConfig{Simulators: []string{"not-a-real-simulator"}}
	err := s.Build(cfg, newBranchRegistry(), 1000)
	assert.Error(t, err)
}

func TestBuildRejectsEmptySimulatorList(t *testing.T) {
	s := New[vpmu.BranchRef](transport.SingleThread, 1, config.RunConfig{}, nil, nil)
	err := s.Build(config.StreamConfig{}, newBranchRegistry(), 1000)
	assert.Error(t, err)
}

// TestSendRefFlushesOnlyWhenBufferFills confirms the per-core local
// buffer defers every reference until it reaches localBufferCap, so a
// handful of SendRef calls produce no observable effect on the bound
// simulator until FlushAll (or a full buffer) forces them through.
func TestSendRefFlushesOnlyWhenBufferFills(t *testing.T) {
	s := buildSingleThreadStream(t)
	defer s.Destroy()

	for i := 0; i < localBufferCap-1; i++ {
		s.SendRef(0, vpmu.Reference[vpmu.BranchRef]{Payload: vpmu.BranchRef{Core: 0, Taken: i%2 == 0}})
	}
	assert.Equal(t, localBufferCap-1, s.locals[0].n, "buffer should not have flushed yet")

	s.SendRef(0, vpmu.Reference[vpmu.BranchRef]{Payload: vpmu.BranchRef{Core: 0, Taken: true}})
	assert.Equal(t, 0, s.locals[0].n, "buffer should flush once it fills")
}

func TestSyncFlushesPendingBufferAndReturnsPerWorkerSnapshot(t *testing.T) {
	s := buildSingleThreadStream(t)
	defer s.Destroy()

	s.SendRef(0, vpmu.Reference[vpmu.BranchRef]{Payload: vpmu.BranchRef{Core: 0, Taken: true}})

	results := s.Sync(1)
	require.Len(t, results, 1)
	data, ok := results[0].(branch.Data)
	require.True(t, ok)
	// OneBit starts core 0's predicted state at "not taken"; the
	// buffered reference (Taken=true) is a miss, flipping the state to
	// "taken". The SYNC_DATA control packet itself is then run through
	// packet_processor for snapshotting (spec's control-packet
	// dispatch rule), carrying a zero-value payload (Taken=false) —
	// against the now-"taken" state that is a second miss.
	assert.Equal(t, uint64(0), data.Correct)
	assert.Equal(t, uint64(2), data.Wrong)

	assert.Equal(t, 0, s.locals[0].n)
}

func TestDumpFlushesPendingBufferAndRendersEveryWorker(t *testing.T) {
	s := buildSingleThreadStream(t)
	defer s.Destroy()

	s.SendRef(0, vpmu.Reference[vpmu.BranchRef]{Payload: vpmu.BranchRef{Core: 0, Taken: true}})
	out := s.Dump(func(id int, data simulator.Data) string {
		d := data.(branch.Data)
		return "correct=" + string(rune('0'+d.Correct))
	})
	require.Len(t, out, 1)
	assert.Equal(t, "correct=0", out[0])
}

func TestBackendFromNameDefaultsToMultiProcess(t *testing.T) {
	assert.Equal(t, transport.MultiProcess, BackendFromName(""))
	assert.Equal(t, transport.MultiProcess, BackendFromName("bogus"))
	assert.Equal(t, transport.SingleThread, BackendFromName("single"))
	assert.Equal(t, transport.MultiThread, BackendFromName("multithread"))
}

func TestNumWorkersReportsConfiguredCount(t *testing.T) {
	s := buildSingleThreadStream(t)
	defer s.Destroy()
	assert.Equal(t, 1, s.NumWorkers())
}

// TestResetDropsPriorAccumulationButKeepsPredictorState exercises
// spec.md §8's reset property: a reset followed by n references and a
// sync must read back exactly the accumulation of those n references,
// not whatever had built up before the reset.
func TestResetDropsPriorAccumulationButKeepsPredictorState(t *testing.T) {
	s := buildSingleThreadStream(t)
	defer s.Destroy()

	// Build up a nonzero, all-wrong baseline: a reset that was a
	// silent no-op would leak this into the post-reset read-back.
	for i := 0; i < 5; i++ {
		s.SendRef(0, vpmu.Reference[vpmu.BranchRef]{Payload: vpmu.BranchRef{Core: 0, Taken: i%2 == 0}})
	}
	pre := s.Sync(1)
	preData := pre[0].(branch.Data)
	require.Equal(t, uint64(0), preData.Correct)
	require.Equal(t, uint64(6), preData.Wrong)

	s.Reset()

	// OneBit's predictor state survived the reset at "not taken" (the
	// last thing it saw was the SYNC_DATA control packet's zero-value
	// payload), so two more not-taken references are both correctly
	// predicted.
	s.SendRef(0, vpmu.Reference[vpmu.BranchRef]{Payload: vpmu.BranchRef{Core: 0, Taken: false}})
	s.SendRef(0, vpmu.Reference[vpmu.BranchRef]{Payload: vpmu.BranchRef{Core: 0, Taken: false}})

	post := s.Sync(2)
	postData := post[0].(branch.Data)
	assert.Equal(t, uint64(3), postData.Correct, "2 explicit refs + the sync packet's own reference, all correctly predicted")
	assert.Equal(t, uint64(0), postData.Wrong)
}
