package transport

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/simulator/branch"
	"github.com/snippits/govpmu/vpmu"
)

func buildMultiProcess(t *testing.T, producerAlive LivenessFunc) *MultiProcess[vpmu.BranchRef] {
	t.Helper()
	reg := simulator.NewRegistry[vpmu.BranchRef]()
	branch.Register(reg)
	sim, ok := reg.Create("branch-two-bit")
	require.True(t, ok)

	mp := NewMultiProcess[vpmu.BranchRef](2*time.Millisecond, 20*time.Millisecond, producerAlive)
	require.NoError(t, mp.Build([]simulator.Simulator[vpmu.BranchRef]{sim}, []vpmu.Model{{Name: "branch-two-bit"}}))
	return mp
}

// TestReaperKillsWorkersAndUnlinksRegionWhenProducerDead is scenario
// S6: a stalled heartbeat plus a dead producer must trigger the
// reaper, which force-stops workers and removes the shared region.
func TestReaperKillsWorkersAndUnlinksRegionWhenProducerDead(t *testing.T) {
	mp := buildMultiProcess(t, func() bool { return false })
	regionPath := mp.region.Path

	// Run the reaper directly without starting the heartbeat goroutine,
	// so the heartbeat genuinely never advances (as it wouldn't if the
	// producer that beats it were actually gone).
	go mp.reap()

	select {
	case <-mp.Reaped():
	case <-time.After(2 * time.Second):
		t.Fatal("reaper never fired")
	}

	select {
	case <-mp.stop:
	default:
		t.Fatal("workers were not signalled to stop")
	}

	_, err := os.Stat(regionPath)
	assert.True(t, os.IsNotExist(err), "shared region file should be unlinked after reap")
}

// TestReaperWaitsWhileProducerIsAlive ensures a stalled heartbeat
// alone never triggers a reap when the producer process still exists
// (e.g. it is merely ptrace-stopped).
func TestReaperWaitsWhileProducerIsAlive(t *testing.T) {
	mp := buildMultiProcess(t, func() bool { return true })
	defer mp.Destroy()

	go mp.reap()

	select {
	case <-mp.Reaped():
		t.Fatal("reaper should not fire while the producer is alive")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHeartbeatAdvancesPreventReap(t *testing.T) {
	mp := buildMultiProcess(t, func() bool { return false })
	defer mp.Destroy()

	go mp.beatHeartbeat()
	go mp.reap()

	select {
	case <-mp.Reaped():
		t.Fatal("reaper should not fire while heartbeats keep arriving")
	case <-time.After(100 * time.Millisecond):
	}
}
