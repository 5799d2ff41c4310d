// Package ringbuf implements the bounded, lock-light single-producer /
// multi-consumer ring buffer that carries references from the
// emulator to every worker simulator. Capacity is a power of two so
// indexing reduces to a bitmask; there is no per-slot lock, only the
// producer's write cursor and each worker's independent read cursor
// over the same backing array.
package ringbuf

import (
	"sync/atomic"
	"time"

	"github.com/snippits/govpmu/vpmu"
)

// backoff is how long Push busy-waits between capacity checks when a
// worker is behind. Spec calls for microsecond-granularity busy wait.
const backoff = 2 * time.Microsecond

// Channel is a RingChannel over references of payload type T, shared
// by one producer and numWorkers independent consumers.
type Channel[T vpmu.Payload] struct {
	buf  []vpmu.Reference[T]
	mask uint64

	write atomic.Uint64
	read  []atomic.Uint64
}

// New allocates a Channel with the given capacity (rounded up to the
// next power of two) for numWorkers consumers.
func New[T vpmu.Payload](capacity int, numWorkers int) *Channel[T] {
	cap64 := nextPow2(uint64(capacity))
	return &Channel[T]{
		buf:  make([]vpmu.Reference[T], cap64),
		mask: cap64 - 1,
		read: make([]atomic.Uint64, numWorkers),
	}
}

func nextPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Capacity returns the ring's slot count.
func (c *Channel[T]) Capacity() uint64 { return c.mask + 1 }

// RemainingSpace returns capacity - (write - read[w]) for worker w.
func (c *Channel[T]) RemainingSpace(w int) uint64 {
	return c.Capacity() - (c.write.Load() - c.read[w].Load())
}

// IsNotEmpty reports whether worker w has unread references pending.
func (c *Channel[T]) IsNotEmpty(w int) bool {
	return c.write.Load() != c.read[w].Load()
}

// Push is producer-only. It busy-waits until every worker has at
// least one free slot, then publishes ref. Back-pressure is bounded
// by the slowest worker: no reference is ever dropped.
func (c *Channel[T]) Push(ref vpmu.Reference[T]) {
	c.waitForSpace(1)
	w := c.write.Load()
	c.buf[w&c.mask] = ref
	c.write.Store(w + 1) // release: publishes the slot write above
}

// PushBulk is producer-only. It busy-waits until every worker has n
// free slots, then publishes all of refs in order.
func (c *Channel[T]) PushBulk(refs []vpmu.Reference[T]) {
	n := uint64(len(refs))
	if n == 0 {
		return
	}
	c.waitForSpace(n)
	w := c.write.Load()
	for i, ref := range refs {
		c.buf[(w+uint64(i))&c.mask] = ref
	}
	c.write.Store(w + n)
}

func (c *Channel[T]) waitForSpace(n uint64) {
	for w := 0; w < len(c.read); w++ {
		for c.RemainingSpace(w) < n {
			time.Sleep(backoff)
		}
	}
}

// PopBulk is worker-only for worker id w. It drains up to len(dst)
// pending references into dst, advances w's read cursor (acquire:
// happens-after the producer's publishing store of write), and
// returns the count actually read.
func (c *Channel[T]) PopBulk(w int, dst []vpmu.Reference[T]) int {
	avail := c.write.Load() - c.read[w].Load() // acquire
	if avail == 0 {
		return 0
	}
	n := uint64(len(dst))
	if avail < n {
		n = avail
	}
	r := c.read[w].Load()
	for i := uint64(0); i < n; i++ {
		dst[i] = c.buf[(r+i)&c.mask]
	}
	c.read[w].Store(r + n)
	return int(n)
}
