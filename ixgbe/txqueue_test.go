package ixgbe

import (
	"testing"

	"github.com/ixy-go/ixgbe/mempool"
	"github.com/ixy-go/ixgbe/mmio"
)

func newTestWindow(t *testing.T) *mmio.Window {
	t.Helper()

	size := regTDT(0) + 4
	if r := regTXDCTL(0) + 4; r > size {
		size = r
	}

	return mmio.New(make([]byte, size))
}

func TestTxBatchBackpressure(t *testing.T) {
	pool := newTestPool(t, 64)

	q, err := newTXQueue(0, 8)
	if err != nil {
		t.Fatalf("newTXQueue: %v", err)
	}
	t.Cleanup(func() { q.ring.Close() })

	reg := newTestWindow(t)

	var pkts []mempool.Packet
	for i := 0; i < 20; i++ {
		buf, err := pool.AllocBuf()
		if err != nil {
			t.Fatalf("AllocBuf: %v", err)
		}
		pkts = append(pkts, mempool.NewPacket(pool, buf, 64))
	}

	sent := q.txBatch(reg, pkts)

	// 8-entry ring, one slot kept empty to disambiguate full vs empty:
	// 7 packets fit.
	if sent != 7 {
		t.Fatalf("txBatch sent = %d, want 7", sent)
	}

	if got := reg.Read32(regTDT(0)); uint32(got) != q.txIdx {
		t.Fatalf("TDT = %d, want txIdx %d", got, q.txIdx)
	}
}

func TestTxCleanReclaimsInBatches(t *testing.T) {
	pool := newTestPool(t, 64)

	q, err := newTXQueue(0, 64)
	if err != nil {
		t.Fatalf("newTXQueue: %v", err)
	}
	t.Cleanup(func() { q.ring.Close() })

	reg := newTestWindow(t)

	var pkts []mempool.Packet
	for i := 0; i < TxCleanBatch; i++ {
		buf, err := pool.AllocBuf()
		if err != nil {
			t.Fatalf("AllocBuf: %v", err)
		}
		pkts = append(pkts, mempool.NewPacket(pool, buf, 64))
	}

	sent := q.txBatch(reg, pkts)
	if sent != TxCleanBatch {
		t.Fatalf("txBatch sent = %d, want %d", sent, TxCleanBatch)
	}

	if len(q.inflight) != TxCleanBatch {
		t.Fatalf("inflight len = %d, want %d", len(q.inflight), TxCleanBatch)
	}

	// Not yet marked done by "hardware": cleaning must not advance.
	q.clean(reg)
	if q.cleanIdx != 0 {
		t.Fatalf("cleanIdx advanced without DD set: %d", q.cleanIdx)
	}

	// Mark the last descriptor of the batch done.
	lastDesc := txDescAt(q.ring, TxCleanBatch-1)
	lastDesc[12] = byte(txdStatDD)

	before := pool.Free()

	q.clean(reg)
	if q.cleanIdx != TxCleanBatch {
		t.Fatalf("cleanIdx = %d, want %d", q.cleanIdx, TxCleanBatch)
	}
	if len(q.inflight) != 0 {
		t.Fatalf("inflight len after clean = %d, want 0", len(q.inflight))
	}
	if pool.Free() != before+TxCleanBatch {
		t.Fatalf("pool.Free() after clean = %d, want %d", pool.Free(), before+TxCleanBatch)
	}
}
