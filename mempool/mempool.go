// Package mempool implements the fixed-size DMA buffer pool shared between
// an RX queue, the TX in-flight queue, and whatever user code is holding a
// Packet at any given moment. Allocation is LIFO: a freshly freed buffer is
// cache-warm and handed out again before any buffer that has sat idle
// longer, which is the same trade the original driver's free-list made.
package mempool

import (
	"errors"
	"fmt"

	"github.com/ixy-go/ixgbe/dma"
)

// ErrPoolExhausted is returned by AllocBuf when the free stack is empty.
var ErrPoolExhausted = errors.New("mempool: no free buffers")

// BufIndex names one buffer slot within a Pool.
type BufIndex uint32

// Pool is a slab of NumBufs equally sized buffers carved out of one DMA
// region. A buffer index is, at any instant, either sitting in freeStack or
// owned by exactly one of: an RX descriptor slot, a TX in-flight slot, or a
// live Packet. The pool itself never tracks which of those three — that's
// the caller's job — it only tracks the free set.
type Pool struct {
	region  *dma.Region
	BufSize uint32
	NumBufs uint32

	// freeStack holds indices of buffers currently owned by the pool.
	// Confined to the thread that owns the RX queue this pool backs;
	// see spec §5 on the pool's single-writer discipline.
	freeStack []BufIndex
}

// Allocate carves numBufs buffers of bufSize bytes out of a single new DMA
// region and pushes every index onto the free stack.
func Allocate(numBufs, bufSize uint32) (*Pool, error) {
	if bufSize == 0 || bufSize&(bufSize-1) != 0 {
		return nil, fmt.Errorf("mempool: buf size %d must be a power of two", bufSize)
	}

	region, err := dma.Allocate(int(numBufs) * int(bufSize))
	if err != nil {
		return nil, fmt.Errorf("mempool: allocate backing region: %w", err)
	}

	p := &Pool{
		region:    region,
		BufSize:   bufSize,
		NumBufs:   numBufs,
		freeStack: make([]BufIndex, 0, numBufs),
	}

	for i := uint32(0); i < numBufs; i++ {
		p.freeStack = append(p.freeStack, BufIndex(i))
	}

	return p, nil
}

// AllocBuf pops one buffer off the free stack.
func (p *Pool) AllocBuf() (BufIndex, error) {
	n := len(p.freeStack)
	if n == 0 {
		return 0, ErrPoolExhausted
	}

	buf := p.freeStack[n-1]
	p.freeStack = p.freeStack[:n-1]

	return buf, nil
}

// FreeBuf returns buf to the pool. Returning the same index twice without
// an intervening AllocBuf is a caller bug: the spec does not require
// idempotence here, and this pool does not attempt to detect it.
func (p *Pool) FreeBuf(buf BufIndex) {
	p.freeStack = append(p.freeStack, buf)
}

// Free reports the number of buffers currently owned by the pool, i.e. not
// checked out to a ring slot or a live Packet. Used by tests to assert
// conservation invariants.
func (p *Pool) Free() int {
	return len(p.freeStack)
}

// VirtOf returns the virtual address of buf's first byte.
func (p *Pool) VirtOf(buf BufIndex) []byte {
	off := uint32(buf) * p.BufSize

	return p.region.VirtBase[off : off+p.BufSize]
}

// PhysOf returns the physical address of buf's first byte, derived from
// the pool's backing region rather than a fresh page-table walk per call.
func (p *Pool) PhysOf(buf BufIndex) uint64 {
	return p.region.PhysBase + uint64(buf)*uint64(p.BufSize)
}

// Close releases the pool's backing DMA region. Callers must ensure no
// ring or Packet still references a buffer from this pool.
func (p *Pool) Close() error {
	return p.region.Close()
}

// Packet is a short-lived ticket naming one in-use buffer. Dropping it
// (calling Free) returns the buffer to its owning pool; a Packet must be
// freed or handed to a TX queue exactly once.
type Packet struct {
	Addr []byte
	Len  uint16

	pool *Pool
	buf  BufIndex
}

// NewPacket builds a Packet view over buf's first length bytes.
func NewPacket(pool *Pool, buf BufIndex, length uint16) Packet {
	return Packet{
		Addr: pool.VirtOf(buf)[:length],
		Len:  length,
		pool: pool,
		buf:  buf,
	}
}

// BufIndex returns the buffer index backing this packet, for callers (the
// TX ring) that need to track it in their own in-flight bookkeeping.
func (p Packet) BufIndex() BufIndex { return p.buf }

// Phys returns the physical address of the packet's first byte, for
// programming into a TX descriptor.
func (p Packet) Phys() uint64 { return p.pool.PhysOf(p.buf) }

// Free returns the packet's buffer to its pool. Calling Free twice on
// copies of the same Packet double-frees the buffer; callers must treat a
// Packet as a move-only value once it has been enqueued or freed.
func (p Packet) Free() {
	p.pool.FreeBuf(p.buf)
}
