package ixgbe

import (
	"encoding/binary"
	"fmt"

	"github.com/ixy-go/ixgbe/dma"
	"github.com/ixy-go/ixgbe/mempool"
	"github.com/ixy-go/ixgbe/mmio"
)

const txDescSize = 16

// txQueue is a descriptor ring plus the FIFO of packets currently owned
// by the NIC (written but not yet reclaimed).
type txQueue struct {
	id         uint32
	ring       *dma.Region
	entries    uint32 // power of two
	cleanIdx   uint32
	txIdx      uint32
	inflight   []mempool.Packet // FIFO, index 0 is oldest
}

func txDescAt(ring *dma.Region, i uint32) []byte {
	off := i * txDescSize

	return ring.VirtBase[off : off+txDescSize]
}

func writeTXDesc(desc []byte, bufferAddr uint64, cmdTypeLen, olinfoStatus uint32) {
	binary.LittleEndian.PutUint64(desc[0:8], bufferAddr)
	binary.LittleEndian.PutUint32(desc[8:12], cmdTypeLen)
	binary.LittleEndian.PutUint32(desc[12:16], olinfoStatus)
}

func txDescStatus(desc []byte) uint32 {
	return binary.LittleEndian.Uint32(desc[12:16])
}

func newTXQueue(id, numEntries uint32) (*txQueue, error) {
	if numEntries == 0 || numEntries&(numEntries-1) != 0 {
		return nil, fmt.Errorf("ixgbe: tx queue size %d must be a power of two", numEntries)
	}

	ring, err := dma.Allocate(int(numEntries) * txDescSize)
	if err != nil {
		return nil, fmt.Errorf("ixgbe: allocate tx ring: %w", err)
	}

	for i := range ring.VirtBase {
		ring.VirtBase[i] = 0xFF
	}

	return &txQueue{
		id:      id,
		ring:    ring,
		entries: numEntries,
	}, nil
}

// txBatch first reclaims completed descriptors in batches of
// TxCleanBatch, then enqueues as many of pkts as fit, stopping (and
// returning the partial count) the moment the ring would become
// ambiguous with "empty".
func (q *txQueue) txBatch(reg *mmio.Window, pkts []mempool.Packet) int {
	q.clean(reg)

	sent := 0
	curIdx := q.txIdx

	for _, pkt := range pkts {
		next := wrapRing(curIdx, q.entries)
		if next == q.cleanIdx {
			// Ring full: one slot is deliberately kept empty so a
			// full ring is distinguishable from an empty one.
			break
		}

		desc := txDescAt(q.ring, curIdx)
		cmdTypeLen := txdCmdEOP | txdCmdRS | txdCmdIFCS | txdCmdDEXT | txdTypData | uint32(pkt.Len)
		olinfoStatus := uint32(pkt.Len) << txdPaylenShift

		writeTXDesc(desc, pkt.Phys(), cmdTypeLen, olinfoStatus)

		q.inflight = append(q.inflight, pkt)
		curIdx = next
		sent++
	}

	q.txIdx = curIdx
	reg.Write32(regTDT(q.id), q.txIdx)

	return sent
}

// clean reclaims finished descriptors TxCleanBatch at a time, checking
// only the DD bit of the last descriptor in each batch -- the device
// commits descriptors in order, so one read stands in for the whole
// batch. Each reclaimed packet is dropped, returning its buffer to the
// pool.
func (q *txQueue) clean(reg *mmio.Window) {
	for {
		cleanable := (q.txIdx - q.cleanIdx) & (q.entries - 1)
		if cleanable < TxCleanBatch {
			return
		}

		cleanupTo := (q.cleanIdx + TxCleanBatch - 1) & (q.entries - 1)

		status := txDescStatus(txDescAt(q.ring, cleanupTo))
		if status&txdStatDD == 0 {
			return
		}

		for i := uint32(0); i < TxCleanBatch; i++ {
			q.inflight[i].Free()
		}
		q.inflight = q.inflight[TxCleanBatch:]

		q.cleanIdx = wrapRing(cleanupTo, q.entries)
	}
}
