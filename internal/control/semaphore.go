package control

import "sync/atomic"

// Semaphore is a counting semaphore the producer posts to and a
// worker waits on. ChanSemaphore backs the in-process back-ends
// (single-thread, multi-thread); the multi-process back-end uses
// ShmSemaphore, a poll-based semaphore over a shared-memory counter
// so it works across a fork/exec boundary where no native channel
// exists.
type Semaphore interface {
	Post()
	Wait()
}

// ChanSemaphore is a Semaphore backed by a buffered channel; cheap
// and wakes instantly, suitable when producer and worker share an
// address space.
type ChanSemaphore struct {
	ch chan struct{}
}

// NewChanSemaphore returns a ChanSemaphore with ample headroom so
// Post never blocks on a slow worker (the ring's own backpressure is
// what actually throttles the producer).
func NewChanSemaphore() *ChanSemaphore {
	return &ChanSemaphore{ch: make(chan struct{}, 1<<20)}
}

func (s *ChanSemaphore) Post() { s.ch <- struct{}{} }
func (s *ChanSemaphore) Wait() { <-s.ch }

// ShmSemaphore is a Semaphore backed by a counter living in a shared
// memory region. Post and Wait operate on that counter with atomic
// ops and a short poll backoff, so it is safe for producer and worker
// to live in different processes mapping the same region, at the
// cost of a worst-case poll-interval wake latency.
type ShmSemaphore struct {
	counter *atomic.Int64
}

// NewShmSemaphore wraps a counter slot inside an already-mapped
// shared-memory region.
func NewShmSemaphore(counter *atomic.Int64) *ShmSemaphore {
	return &ShmSemaphore{counter: counter}
}

func (s *ShmSemaphore) Post() { s.counter.Add(1) }

func (s *ShmSemaphore) Wait() {
	for {
		v := s.counter.Load()
		if v > 0 && s.counter.CompareAndSwap(v, v-1) {
			return
		}
		shmPollBackoff()
	}
}
