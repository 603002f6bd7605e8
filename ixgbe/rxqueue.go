package ixgbe

import (
	"encoding/binary"
	"fmt"

	"github.com/ixy-go/ixgbe/dma"
	"github.com/ixy-go/ixgbe/mempool"
	"github.com/ixy-go/ixgbe/mmio"
)

// rxDescSize is the size in bytes of one Advanced RX Descriptor. Software
// and hardware share the same 16-byte cell in two different formats (read
// format before arming, writeback format after completion): see spec
// §4.3 and the descriptor-aliasing note in spec §9. We expose it as a raw
// aligned byte window and read/write the two formats through offset
// accessors rather than overlaying two Go structs on the same memory,
// since that would invite the compiler to cache one view across a write
// to the other.
const rxDescSize = 16

// rxQueue is a descriptor ring plus the parallel index->buffer table that
// names, for every slot, which pool buffer currently sits in that
// descriptor.
type rxQueue struct {
	id      uint32
	ring    *dma.Region
	entries uint32 // power of two
	headIdx uint32
	bufs    []mempool.BufIndex
	pool    *mempool.Pool
}

func rxDescAt(ring *dma.Region, i uint32) []byte {
	off := i * rxDescSize

	return ring.VirtBase[off : off+rxDescSize]
}

// armRXDesc writes pkt_addr at offset 0 and zeroes hdr_addr at offset 8,
// the software "read format" of the descriptor.
func armRXDesc(desc []byte, phys uint64) {
	binary.LittleEndian.PutUint64(desc[0:8], phys)
	binary.LittleEndian.PutUint64(desc[8:16], 0)
}

// rxWriteback reads the device-written status (offset 8) and length
// (offset 12, lower 16 bits) out of a completed descriptor.
func rxWriteback(desc []byte) (length uint16, status uint32) {
	status = binary.LittleEndian.Uint32(desc[8:12])
	length = binary.LittleEndian.Uint16(desc[12:14])

	return length, status
}

func newRXQueue(id, numEntries uint32, pool *mempool.Pool) (*rxQueue, error) {
	if numEntries == 0 || numEntries&(numEntries-1) != 0 {
		return nil, fmt.Errorf("ixgbe: rx queue size %d must be a power of two", numEntries)
	}

	ring, err := dma.Allocate(int(numEntries) * rxDescSize)
	if err != nil {
		return nil, fmt.Errorf("ixgbe: allocate rx ring: %w", err)
	}

	// memset to 0xFF so no descriptor appears pre-completed (DD bit
	// would otherwise read as whatever garbage the page contained).
	for i := range ring.VirtBase {
		ring.VirtBase[i] = 0xFF
	}

	return &rxQueue{
		id:      id,
		ring:    ring,
		entries: numEntries,
		bufs:    make([]mempool.BufIndex, numEntries),
		pool:    pool,
	}, nil
}

// rxBatch polls up to max descriptors starting at headIdx, yielding a
// Packet for each completed one and refilling its slot with a fresh
// buffer. It never blocks: an empty or exhausted pool simply ends the
// loop early, leaving any remaining completions for the next call.
func (q *rxQueue) rxBatch(reg *mmio.Window, max int) []mempool.Packet {
	var packets []mempool.Packet

	rxIndex := q.headIdx
	lastRxIndex := rxIndex

	for i := 0; i < max; i++ {
		desc := rxDescAt(q.ring, rxIndex)
		length, status := rxWriteback(desc)

		if status&rxdStatDD == 0 {
			break
		}

		if status&rxdStatEOP == 0 {
			panic("ixgbe: descriptor DD set without EOP -- increase buffer size or decrease MTU")
		}

		buf := q.bufs[rxIndex]

		newBuf, err := q.pool.AllocBuf()
		if err != nil {
			// Pool exhausted: leave this descriptor untouched (still
			// DD, still owning buf) for the next call rather than
			// yielding it without a replacement buffer to refill with.
			break
		}

		packets = append(packets, mempool.NewPacket(q.pool, buf, length))

		armRXDesc(desc, q.pool.PhysOf(newBuf))
		q.bufs[rxIndex] = newBuf

		lastRxIndex = rxIndex
		rxIndex = wrapRing(rxIndex, q.entries)
	}

	if rxIndex != q.headIdx {
		reg.Write32(regRDT(q.id), lastRxIndex)
		q.headIdx = rxIndex
	}

	return packets
}

// wrapRing advances index by one slot modulo ringSize, carried over
// verbatim from the original driver's `wrap_ring` (spec §9 /
// original_source).
func wrapRing(index, ringSize uint32) uint32 {
	return (index + 1) & (ringSize - 1)
}
