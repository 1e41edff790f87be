// Package format describes the in-memory layout of slab blocks: the block
// header written at the start of every backing buffer, the chunk header that
// precedes every chunk, and the free-list link stored inside free chunks.
// Everything is encoded little-endian through internal/buf so the layout can
// be read back and validated without pointer casts.
package format

import (
	"os"
	"strconv"
	"unsafe"
)

var (
	// BlockSignature is the four-byte signature at the start of every block.
	// Layout:
	//   0x00  'S' 'L' 'A' 'B'
	BlockSignature = []byte{'S', 'L', 'A', 'B'}
)

const (
	// PointerSize is the machine word width. Chunk sizes are padded to it so
	// every free chunk can hold a free-list link.
	PointerSize = int(unsafe.Sizeof(uintptr(0)))

	// PageSize is the granularity used for backing allocations and the upper
	// bound for chunk alignment.
	PageSize = 4096

	// DefaultSlabBudget is the target footprint of one block when the chunk
	// count is auto-selected.
	DefaultSlabBudget = 4096

	// BlockHeaderSize is the size of the block header (before alignment).
	BlockHeaderSize = 0x20

	// ChunkHeaderSize is the size of the header preceding each chunk.
	ChunkHeaderSize = 0x10

	// LinkSize is the size of the free-list link stored in a free chunk.
	LinkSize = 8
)

// Block header field offsets.
//
//	Offset  Size  Field
//	0x00    4     'S' 'L' 'A' 'B'
//	0x04    4     Block id
//	0x08    4     Pool id
//	0x0C    4     Chunk count
//	0x10    4     Slot stride (bytes)
//	0x14    4     Chunk size (bytes)
//	0x18    8     Reserved
const (
	BlockSignatureOffset = 0x00
	BlockIDOffset        = 0x04
	BlockPoolOffset      = 0x08
	BlockCountOffset     = 0x0C
	BlockStrideOffset    = 0x10
	BlockChunkOffset     = 0x14
)

// Chunk header field offsets.
//
//	Offset  Size  Field
//	0x00    4     Owning block id
//	0x04    4     Slot index
//	0x08    4     Generation, bumped on every free
//	0x0C    4     State (ChunkFree / ChunkLive / ChunkRetiring)
const (
	ChunkBlockOffset = 0x00
	ChunkSlotOffset  = 0x04
	ChunkGenOffset   = 0x08
	ChunkStateOffset = 0x0C
)

// Chunk states.
const (
	ChunkFree     uint32 = 0
	ChunkLive     uint32 = 1
	ChunkRetiring uint32 = 2 // claimed for release, finalizer running
)

// EnvSlabBudget overrides DefaultSlabBudget for the process.
const EnvSlabBudget = "SLABKIT_SLAB_BUDGET"

// SlabBudget returns the process-wide default slab budget, honoring
// SLABKIT_SLAB_BUDGET when it holds a positive integer.
func SlabBudget() int {
	if v := os.Getenv(EnvSlabBudget); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSlabBudget
}
