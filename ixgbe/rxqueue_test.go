package ixgbe

import (
	"testing"

	"github.com/ixy-go/ixgbe/mempool"
	"github.com/ixy-go/ixgbe/mmio"
)

// Tests in this file require a mounted hugetlbfs at /mnt/huge (dma.Allocate
// backs every ring and pool with huge pages) and the privileges to mmap it,
// the same environmental requirement the original ixy.rs driver has.

func newTestPool(t *testing.T, numBufs uint32) *mempool.Pool {
	t.Helper()

	p, err := mempool.Allocate(numBufs, rxBufSize)
	if err != nil {
		t.Skipf("mempool.Allocate (requires hugetlbfs at /mnt/huge): %v", err)
	}
	t.Cleanup(func() { p.Close() })

	return p
}

func TestRxBatchIdleRingReturnsEmpty(t *testing.T) {
	pool := newTestPool(t, 16)

	q, err := newRXQueue(0, 8, pool)
	if err != nil {
		t.Fatalf("newRXQueue: %v", err)
	}
	t.Cleanup(func() { q.ring.Close() })

	// A live ring has every slot pre-armed by startRXQueue before RX is
	// enabled; a freshly allocated, not-yet-armed ring still carries the
	// 0xFF poison pattern and is not a state rx_batch is ever called
	// against, so the idle case under test is "armed and waiting".
	for i := uint32(0); i < q.entries; i++ {
		buf, err := pool.AllocBuf()
		if err != nil {
			t.Fatalf("AllocBuf: %v", err)
		}
		armRXDesc(rxDescAt(q.ring, i), pool.PhysOf(buf))
		q.bufs[i] = buf
	}

	reg := mmio.New(make([]byte, regRDT(0)+4))

	packets := q.rxBatch(reg, 32)
	if len(packets) != 0 {
		t.Fatalf("rxBatch on idle ring = %d packets, want 0", len(packets))
	}

	if got := reg.Read32(regRDT(0)); got != 0 {
		t.Fatalf("RDT modified on idle ring: got %d, want 0", got)
	}
}

func TestRxBatchCompletesDescriptor(t *testing.T) {
	pool := newTestPool(t, 16)

	q, err := newRXQueue(0, 8, pool)
	if err != nil {
		t.Fatalf("newRXQueue: %v", err)
	}
	t.Cleanup(func() { q.ring.Close() })

	// Prefill, as startRXQueue would.
	for i := uint32(0); i < q.entries; i++ {
		buf, err := pool.AllocBuf()
		if err != nil {
			t.Fatalf("AllocBuf: %v", err)
		}
		armRXDesc(rxDescAt(q.ring, i), pool.PhysOf(buf))
		q.bufs[i] = buf
	}

	reg := mmio.New(make([]byte, regRDT(0)+4))

	// Simulate the NIC completing descriptor 0: write DD|EOP status at
	// offset 8 and length at offset 12.
	desc := rxDescAt(q.ring, 0)
	desc[8] = byte(rxdStatDD | rxdStatEOP)
	desc[12] = 64
	desc[13] = 0

	before := pool.Free()

	packets := q.rxBatch(reg, 32)
	if len(packets) != 1 {
		t.Fatalf("rxBatch = %d packets, want 1", len(packets))
	}
	if packets[0].Len != 64 {
		t.Fatalf("packet len = %d, want 64", packets[0].Len)
	}

	if q.headIdx != 1 {
		t.Fatalf("headIdx = %d, want 1", q.headIdx)
	}

	if got := reg.Read32(regRDT(0)); got != 0 {
		t.Fatalf("RDT = %d, want 0 (the last consumed slot)", got)
	}

	// The pool is down one buffer: the completed buffer left in the
	// yielded packet and a fresh one refilled the slot -- conservation
	// holds once the yielded packet is freed.
	packets[0].Free()
	if pool.Free() != before {
		t.Fatalf("pool.Free() after packet.Free() = %d, want %d", pool.Free(), before)
	}
}

func TestRxBatchPanicsOnMissingEOP(t *testing.T) {
	pool := newTestPool(t, 16)

	q, err := newRXQueue(0, 8, pool)
	if err != nil {
		t.Fatalf("newRXQueue: %v", err)
	}
	t.Cleanup(func() { q.ring.Close() })

	buf, err := pool.AllocBuf()
	if err != nil {
		t.Fatalf("AllocBuf: %v", err)
	}
	armRXDesc(rxDescAt(q.ring, 0), pool.PhysOf(buf))
	q.bufs[0] = buf

	desc := rxDescAt(q.ring, 0)
	desc[8] = byte(rxdStatDD) // DD set, EOP clear

	reg := mmio.New(make([]byte, regRDT(0)+4))

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on DD-without-EOP")
		}
	}()

	q.rxBatch(reg, 32)
}

func TestWrapRing(t *testing.T) {
	cases := []struct{ idx, size, want uint32 }{
		{0, 8, 1},
		{6, 8, 7},
		{7, 8, 0},
	}

	for _, c := range cases {
		if got := wrapRing(c.idx, c.size); got != c.want {
			t.Errorf("wrapRing(%d, %d) = %d, want %d", c.idx, c.size, got, c.want)
		}
	}
}
