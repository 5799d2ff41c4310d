// Package transport implements the three StreamImpl back-ends
// (single-thread, multi-thread, multi-process) that move references
// from the producer to a pool of worker simulators over a
// ringbuf.Channel and control.Plane, and the packet-dispatch pipeline
// each worker runs.
package transport

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snippits/govpmu/internal/control"
	"github.com/snippits/govpmu/internal/ringbuf"
	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/vpmu"
)

// Backend selects which StreamImpl variant a Stream binds to.
type Backend int

const (
	// SingleThread calls packet_processor inline, for determinism
	// and debugging.
	SingleThread Backend = iota
	// MultiThread runs workers as goroutines sharing the process
	// address space.
	MultiThread
	// MultiProcess is the default: workers additionally get a
	// shared-memory-backed control plane and a heartbeat reaper, as
	// if they were separate OS processes (see DESIGN.md for the
	// fork()-less simplification this implies in pure Go).
	MultiProcess
)

// localCap is each drain loop's stack-sized receive buffer, per
// spec's "no dynamic allocation on the steady-state hot path".
const localCap = 256

// syncRingDepth is the rolling snapshot depth per worker (spec:
// sync_data[worker][32]).
const syncRingDepth = 32

// worker owns exactly one configured simulator and the drain loop
// that feeds it.
type worker[T vpmu.Payload] struct {
	id  int
	sim simulator.Simulator[T]

	mu       sync.Mutex
	syncRing [syncRingDepth]simulator.Data

	log *logrus.Entry
}

func (w *worker[T]) storeSyncSlot(counter uint64, data simulator.Data) {
	w.mu.Lock()
	w.syncRing[counter%syncRingDepth] = data
	w.mu.Unlock()
}

func (w *worker[T]) syncSlot(counter uint64) simulator.Data {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncRing[counter%syncRingDepth]
}

// Impl is the contract every StreamImpl back-end satisfies. A Stream
// façade holds exactly one Impl[T] and never touches ringbuf/control
// directly.
type Impl[T vpmu.Payload] interface {
	// Build instantiates one worker per sim.
	Build(sims []simulator.Simulator[T], models []vpmu.Model) error
	// Run starts the worker pool (drain-loop goroutines for the
	// concurrent back-ends; a no-op for SingleThread, which dispatches
	// inline). Blocks until every worker has reached boot sync, and
	// returns an error if that does not happen within timeout.
	Run(timeout time.Duration) error
	// Send publishes one reference, applying ring back-pressure.
	Send(ref vpmu.Reference[T])
	// SendBulk publishes refs as one batch.
	SendBulk(refs []vpmu.Reference[T])
	// Sync pushes a SYNC_DATA control packet carrying id, waits for
	// every worker's sync counter to reach it, and returns each
	// worker's snapshot at that point.
	Sync(id uint64) []simulator.Data
	// Dump runs the strictly-ordered dump protocol: each worker
	// renders its own report via render, in worker-id order.
	Dump(render func(id int, data simulator.Data) string) []string
	// Reset pushes a RESET control packet to every worker.
	Reset()
	// NumWorkers reports the configured worker count.
	NumWorkers() int
	// Destroy stops workers and releases transport resources.
	Destroy()
}

// dispatch applies the spec's §4.3 dispatch rules for one reference
// against one worker, given its control plane and sync ring.
func dispatch[T vpmu.Payload](w *worker[T], plane *control.Plane, ref vpmu.Reference[T],
	dumpResults []string, dumpMu *sync.Mutex, render func(id int, data simulator.Data) string) {

	switch ref.Type.Base() {
	case vpmu.PacketBarrier, vpmu.PacketSyncData:
		if plane.AdvanceSync(w.id, ref.ID) {
			data := w.sim.PacketProcessor(w.id, ref)
			w.storeSyncSlot(plane.SyncCounter(w.id), data)
		}
	case vpmu.PacketDumpInfo:
		plane.AwaitTurn(w.id)
		data := w.sim.PacketProcessor(w.id, ref)
		text := render(w.id, data)
		dumpMu.Lock()
		dumpResults[w.id] = text
		dumpMu.Unlock()
		plane.FinishTurn(w.id)
	case vpmu.PacketReset:
		if r, ok := w.sim.(interface{ ResetCounters() }); ok {
			r.ResetCounters()
		}
	default:
		if ref.Type.IsHot() {
			if hp, ok := w.sim.(simulator.HotProcessor[T]); ok {
				hp.HotPacketProcessor(w.id, ref)
				return
			}
		}
		w.sim.PacketProcessor(w.id, ref)
	}
}

func drainLoop[T vpmu.Payload](w *worker[T], ring *ringbuf.Channel[T], plane *control.Plane,
	stop <-chan struct{}, dumpResults []string, dumpMu *sync.Mutex, render func(id int, data simulator.Data) string) {

	// Mark boot sync complete only once this goroutine is actually
	// scheduled and about to enter its wait loop, not merely once the
	// producer has called go on it.
	plane.SetSynced(w.id)

	local := make([]vpmu.Reference[T], localCap)
	for {
		select {
		case <-stop:
			return
		default:
		}
		plane.Wait(w.id)
		select {
		case <-stop:
			return
		default:
		}
		for ring.IsNotEmpty(w.id) {
			n := ring.PopBulk(w.id, local)
			for i := 0; i < n; i++ {
				dispatch(w, plane, local[i], dumpResults, dumpMu, render)
			}
		}
	}
}
