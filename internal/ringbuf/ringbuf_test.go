package ringbuf

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snippits/govpmu/vpmu"
)

func TestCapacityRoundsToPowerOfTwo(t *testing.T) {
	c := New[vpmu.BranchRef](5, 1)
	assert.Equal(t, uint64(8), c.Capacity())
}

func TestRemainingSpaceInvariant(t *testing.T) {
	c := New[vpmu.BranchRef](8, 1)
	for i := 0; i < 5; i++ {
		c.Push(vpmu.Reference[vpmu.BranchRef]{Type: vpmu.PacketData})
	}
	written := c.write.Load()
	read := c.read[0].Load()
	assert.Equal(t, c.Capacity(), c.RemainingSpace(0)+(written-read))
}

func TestEmptyDrainReturnsZero(t *testing.T) {
	c := New[vpmu.BranchRef](8, 1)
	dst := make([]vpmu.Reference[vpmu.BranchRef], 4)
	n := c.PopBulk(0, dst)
	assert.Equal(t, 0, n)
	assert.False(t, c.IsNotEmpty(0))
}

// TestBackpressureBlocksSlowestWorker is scenario S2: capacity 8, one
// worker, producer pushes 32 refs while the worker sleeps; the
// producer must block once the worker falls behind by a full
// capacity, and every reference must eventually be drained in FIFO
// order once the worker resumes.
func TestBackpressureBlocksSlowestWorker(t *testing.T) {
	c := New[vpmu.BranchRef](8, 1)
	const total = 32

	pushed := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			c.Push(vpmu.Reference[vpmu.BranchRef]{Type: vpmu.PacketData, ID: uint64(i)})
		}
		close(pushed)
	}()

	// Give the producer a chance to fill the ring and start blocking.
	time.Sleep(20 * time.Millisecond)
	select {
	case <-pushed:
		t.Fatal("producer should still be blocked on backpressure")
	default:
	}

	var (
		mu   sync.Mutex
		got  []uint64
		dst  = make([]vpmu.Reference[vpmu.BranchRef], 4)
	)
	for len(got) < total {
		n := c.PopBulk(0, dst)
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		mu.Lock()
		for i := 0; i < n; i++ {
			got = append(got, dst[i].ID)
		}
		mu.Unlock()
	}

	select {
	case <-pushed:
	case <-time.After(time.Second):
		t.Fatal("producer never unblocked")
	}

	require.Len(t, got, total)
	for i, id := range got {
		assert.Equal(t, uint64(i), id, "references must be consumed in FIFO order")
	}
}
