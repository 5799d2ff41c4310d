package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/snippits/govpmu/internal/control"
	"github.com/snippits/govpmu/internal/ringbuf"
	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/vpmu"
)

// ringCapacity is the trace buffer's per-Impl capacity (power of two).
const ringCapacity = 4096

// syncPollBackoff bounds how long Sync waits between checks of a
// worker's sync counter.
const syncPollBackoff = 20 * time.Microsecond

// Multi is the MultiThread back-end: workers are goroutines sharing
// the process address space, communicating over a real
// ringbuf.Channel and control.Plane, same as MultiProcess minus the
// shared-memory region and the reaper.
type Multi[T vpmu.Payload] struct {
	ring  *ringbuf.Channel[T]
	plane *control.Plane

	// newSemaphore builds the per-worker Semaphore; nil means
	// ChanSemaphore (in-process back-ends). MultiProcess overrides
	// this to hand out ShmSemaphores backed by its shared region
	// before calling into this Build.
	newSemaphore func(id int) control.Semaphore

	workers  []*worker[T]
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	dumpMu      sync.Mutex
	dumpResults []string
	render      func(id int, data simulator.Data) string
}

func (m *Multi[T]) Build(sims []simulator.Simulator[T], models []vpmu.Model) error {
	n := len(sims)
	m.ring = ringbuf.New[T](ringCapacity, n)
	sems := make([]control.Semaphore, n)
	for i := range sems {
		if m.newSemaphore != nil {
			sems[i] = m.newSemaphore(i)
		} else {
			sems[i] = control.NewChanSemaphore()
		}
	}
	m.plane = control.New(sems)
	m.workers = make([]*worker[T], n)
	m.dumpResults = make([]string, n)
	m.stop = make(chan struct{})

	for i, sim := range sims {
		if err := sim.Build(models[i]); err != nil {
			return err
		}
		m.workers[i] = &worker[T]{id: i, sim: sim}
	}
	return nil
}

// Run starts every worker's drain loop, then blocks until every
// worker has reached boot sync (drainLoop marks its own worker synced
// on entry) or timeout elapses, whichever comes first. Called once
// Build has succeeded; separated out so a Stream can report boot-sync
// timeouts distinctly from build failures.
func (m *Multi[T]) Run(timeout time.Duration) error {
	for _, w := range m.workers {
		m.wg.Add(1)
		go func(w *worker[T]) {
			defer m.wg.Done()
			drainLoop(w, m.ring, m.plane, m.stop, m.dumpResults, &m.dumpMu, m.renderFunc)
		}(w)
	}

	deadline := time.Now().Add(timeout)
	for {
		allSynced := true
		for i := range m.workers {
			if !m.plane.Synced(i) {
				allSynced = false
				break
			}
		}
		if allSynced {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("boot sync timed out after %s waiting for %d worker(s)", timeout, len(m.workers))
		}
		time.Sleep(syncPollBackoff)
	}
}

func (m *Multi[T]) renderFunc(id int, data simulator.Data) string {
	if m.render == nil {
		return ""
	}
	return m.render(id, data)
}

func (m *Multi[T]) Send(ref vpmu.Reference[T]) {
	m.ring.Push(ref)
	for i := range m.workers {
		m.plane.Post(i)
	}
}

func (m *Multi[T]) SendBulk(refs []vpmu.Reference[T]) {
	m.ring.PushBulk(refs)
	for i := range m.workers {
		m.plane.Post(i)
	}
}

func (m *Multi[T]) Sync(id uint64) []simulator.Data {
	m.Send(vpmu.Reference[T]{Type: vpmu.PacketSyncData, ID: id})
	for i := range m.workers {
		for m.plane.SyncCounter(i) < id {
			time.Sleep(syncPollBackoff)
		}
	}
	out := make([]simulator.Data, len(m.workers))
	for i, w := range m.workers {
		out[i] = w.syncSlot(id)
	}
	return out
}

func (m *Multi[T]) Dump(render func(id int, data simulator.Data) string) []string {
	m.render = render
	m.plane.BeginDump()
	m.Send(vpmu.Reference[T]{Type: vpmu.PacketDumpInfo})
	m.plane.AwaitAllDumped()
	return m.dumpResults
}

func (m *Multi[T]) Reset() {
	m.Send(vpmu.Reference[T]{Type: vpmu.PacketReset})
}

func (m *Multi[T]) NumWorkers() int { return len(m.workers) }

// closeStop closes the stop channel and wakes every worker exactly
// once, safe to call from both Destroy and a racing reaper.
func (m *Multi[T]) closeStop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		for i := range m.workers {
			m.plane.Post(i) // wake any worker blocked in Wait so it observes stop
		}
	})
}

func (m *Multi[T]) Destroy() {
	m.closeStop()
	m.wg.Wait()
	for _, w := range m.workers {
		w.sim.Destroy()
	}
}
