package slab

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/internal/mmap"
)

// Backing is the raw allocation primitive blocks are carved from.
//
// Alloc must return at least size bytes starting on a format.PageSize
// boundary, or an error. Free returns memory previously obtained from Alloc
// on the same Backing.
//
// Memory from a Backing is not scanned by the garbage collector for pointers
// stored in chunks; only pointer-free data may be kept there.
type Backing interface {
	Alloc(size int) ([]byte, error)
	Free(mem []byte) error
}

// HeapBacking allocates blocks on the Go heap. Free is a no-op; the garbage
// collector reclaims a block once the pool drops it.
type HeapBacking struct{}

// Alloc returns a page-aligned slice of size bytes.
func (HeapBacking) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("heap backing: invalid size %d", size)
	}
	raw := make([]byte, size+format.PageSize)
	off := alignOffset(raw, format.PageSize)
	return raw[off : off+size : off+size], nil
}

// Free does nothing.
func (HeapBacking) Free([]byte) error { return nil }

// MmapBacking maps each block as its own anonymous private mapping, so
// Release returns pages to the operating system immediately.
type MmapBacking struct{}

// Alloc maps size bytes rounded up to whole pages.
func (MmapBacking) Alloc(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap backing: invalid size %d", size)
	}
	data, err := mmap.Map(format.Align(size, format.PageSize))
	if err != nil {
		return nil, err
	}
	return data[:size], nil
}

// Free unmaps a block returned by Alloc.
func (MmapBacking) Free(mem []byte) error {
	return mmap.Unmap(mem[:cap(mem)])
}

// DefaultBacking returns MmapBacking where anonymous mappings are supported
// and HeapBacking elsewhere.
func DefaultBacking() Backing {
	if mmap.Supported {
		return MmapBacking{}
	}
	return HeapBacking{}
}

// alignOffset returns the offset of the first a-aligned byte in mem.
func alignOffset(mem []byte, a int) int {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
	return int((uintptr(a) - addr%uintptr(a)) % uintptr(a))
}

// addrOf returns the address of mem[0].
func addrOf(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
}
