package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/snippits/govpmu/internal/control"
	"github.com/snippits/govpmu/simulator"
	"github.com/snippits/govpmu/vpmu"
)

// Single is the SingleThread back-end: the producer calls
// packet_processor inline and the ring is a trivial in-process queue
// with a single worker's worth of state. Intended for deterministic
// debugging, not throughput.
type Single[T vpmu.Payload] struct {
	workers []*worker[T]
	plane   *control.Plane
	nextID  uint64
}

func (s *Single[T]) Build(sims []simulator.Simulator[T], models []vpmu.Model) error {
	sems := make([]control.Semaphore, len(sims))
	for i := range sems {
		sems[i] = control.NewChanSemaphore()
	}
	s.plane = control.New(sems)
	s.workers = make([]*worker[T], len(sims))
	for i, sim := range sims {
		if err := sim.Build(models[i]); err != nil {
			return err
		}
		s.workers[i] = &worker[T]{id: i, sim: sim}
		s.plane.SetSynced(i)
	}
	return nil
}

// Run has no goroutines to start: Build already synced every worker
// inline, since SingleThread's simulator.Build calls are synchronous.
// It still checks Synced so a future Build that defers sync can't
// silently skip this contract.
func (s *Single[T]) Run(timeout time.Duration) error {
	for i := range s.workers {
		if !s.plane.Synced(i) {
			return fmt.Errorf("worker %d did not reach boot sync within %s", i, timeout)
		}
	}
	return nil
}

func (s *Single[T]) dispatchAll(ref vpmu.Reference[T], dumpResults []string, dumpMu *sync.Mutex, render func(int, simulator.Data) string) {
	for _, w := range s.workers {
		dispatch(w, s.plane, ref, dumpResults, dumpMu, render)
	}
}

func (s *Single[T]) Send(ref vpmu.Reference[T]) {
	s.dispatchAll(ref, nil, nil, nil)
}

func (s *Single[T]) SendBulk(refs []vpmu.Reference[T]) {
	for _, ref := range refs {
		s.Send(ref)
	}
}

func (s *Single[T]) Sync(id uint64) []simulator.Data {
	s.nextID = id
	s.dispatchAll(vpmu.Reference[T]{Type: vpmu.PacketSyncData, ID: id}, nil, nil, nil)
	out := make([]simulator.Data, len(s.workers))
	for i, w := range s.workers {
		out[i] = w.syncSlot(id)
	}
	return out
}

func (s *Single[T]) Dump(render func(id int, data simulator.Data) string) []string {
	results := make([]string, len(s.workers))
	var mu sync.Mutex
	s.plane.BeginDump()
	s.dispatchAll(vpmu.Reference[T]{Type: vpmu.PacketDumpInfo}, results, &mu, render)
	return results
}

func (s *Single[T]) Reset() {
	s.dispatchAll(vpmu.Reference[T]{Type: vpmu.PacketReset}, nil, nil, nil)
}

func (s *Single[T]) NumWorkers() int { return len(s.workers) }

func (s *Single[T]) Destroy() {
	for _, w := range s.workers {
		w.sim.Destroy()
	}
}
