// Package dma owns physically contiguous, page-pinned memory regions backed
// by Linux huge pages. It is the user-space equivalent of the DmaMemory
// collaborator the driver core treats as an external dependency: callers
// hand it a size, it hands back a region with both a virtual and a physical
// base address that stay in lockstep for the region's lifetime.
package dma

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ErrPagemapUnavailable indicates /proc/self/pagemap could not be read for
// this process, so virtual addresses cannot be translated to physical ones.
var ErrPagemapUnavailable = errors.New("dma: /proc/self/pagemap unavailable")

const (
	hugePageBits = 21 // 2 MiB huge pages
	hugePageSize = 1 << hugePageBits

	hugetlbfsBaseDir = "/mnt/huge"
)

// idCounter hands out unique huge-page-backed file names across the
// process, mirroring the Rust driver's `huge_page_id: &mut u32` pattern
// without requiring every caller to thread a counter through by hand.
var idCounter uint32

// Region is one physically contiguous, pinned allocation: a whole number of
// huge pages mapped at VirtBase, with PhysBase the matching physical
// address. VirtBase+off and PhysBase+off name the same byte for every
// off in [0, Size).
type Region struct {
	VirtBase []byte
	PhysBase uint64
	Size     int

	file *os.File
}

// Allocate reserves size bytes (rounded up to a whole number of huge
// pages), maps them at a fixed virtual address chosen by the kernel, and
// resolves the physical base via the page tables. The returned region is
// zeroed by the kernel on first fault, same as every other mmap.
func Allocate(size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("dma: invalid size %d", size)
	}

	numPages := (size + hugePageSize - 1) / hugePageSize
	allocSize := numPages * hugePageSize

	id := atomic.AddUint32(&idCounter, 1)
	path := fmt.Sprintf("%s/ixy-%d-%d", hugetlbfsBaseDir, os.Getpid(), id)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("dma: open hugetlbfs backing file: %w", err)
	}

	if err := f.Truncate(int64(allocSize)); err != nil {
		f.Close()
		os.Remove(path)

		return nil, fmt.Errorf("dma: truncate backing file: %w", err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, allocSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		f.Close()
		os.Remove(path)

		return nil, fmt.Errorf("dma: mmap hugetlbfs file: %w", err)
	}

	// The backing file is unlinked immediately; the mapping keeps the
	// pages alive for the lifetime of the process, same as the poisoned
	// anonymous mapping the teacher used for guest RAM.
	os.Remove(path)

	phys, err := virtToPhys(mem)
	if err != nil {
		unix.Munmap(mem)
		f.Close()

		return nil, err
	}

	return &Region{
		VirtBase: mem,
		PhysBase: phys,
		Size:     allocSize,
		file:     f,
	}, nil
}

// Close releases the mapping. Regions are expected to live for the
// lifetime of the owning ring or pool; Close is only ever called at
// process teardown.
func (r *Region) Close() error {
	if r == nil {
		return nil
	}

	err := unix.Munmap(r.VirtBase)
	if r.file != nil {
		r.file.Close()
	}

	return err
}

// virtToPhys resolves the physical address backing the first byte of buf
// via /proc/self/pagemap. It is undefined behavior to call this on memory
// that is not pinned (huge pages and mlock'd pages qualify; ordinary
// anonymous pages that can be swapped or moved do not).
func virtToPhys(buf []byte) (uint64, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("dma: virtToPhys on empty buffer")
	}

	pagemap, err := os.Open("/proc/self/pagemap")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPagemapUnavailable, err)
	}
	defer pagemap.Close()

	pageSize := os.Getpagesize()
	virt := uintptr(unsafe.Pointer(&buf[0]))

	pfnIndex := int64(virt) / int64(pageSize)

	entry := make([]byte, 8)
	if _, err := pagemap.ReadAt(entry, pfnIndex*8); err != nil {
		return 0, fmt.Errorf("dma: read pagemap entry: %w", err)
	}

	pfn := le64(entry) & ((1 << 55) - 1)
	if pfn == 0 {
		return 0, fmt.Errorf("dma: page not present in pagemap")
	}

	pageOffset := uint64(virt) % uint64(pageSize)

	return pfn*uint64(pageSize) + pageOffset, nil
}

func le64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}

	return v
}
