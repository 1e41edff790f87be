// Package slab provides a fixed-size chunk pool (slab allocator).
//
// # Overview
//
// A Pool serves chunks of one size and alignment. Chunks are carved from
// blocks: single backing allocations that hold a block header followed by
// Layout.Count slots. Each slot is a chunk header (owner block, slot index,
// generation, state) followed by the chunk itself. Free chunks are threaded
// into a per-block singly linked free list whose links live in the first
// bytes of the free chunks, so the pool needs no side tables per chunk.
//
// # Block Lifecycle
//
//	Fresh    used == 0, usable queue (just generated)
//	Partial  0 < used < Count, usable queue
//	Full     used == Count, in no queue (registry only)
//	Empty    used == 0 after a free, freeable queue
//	Released memory returned to the Backing, unregistered
//
// A block moves between these states purely as a function of used. Release
// only ever returns Empty blocks; an allocation that finds no usable block
// revives an Empty one before generating a new block.
//
// # Usage Example
//
//	p, err := slab.New(slab.Config{ChunkSize: 96, Align: 32})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	ref, mem, err := p.Alloc()
//	if err != nil {
//	    return err
//	}
//	copy(mem, payload)
//
//	// Later, free the chunk
//	err = p.Free(ref)
//
// # References
//
// Alloc returns a Ref (block id, slot, generation) and the chunk bytes. Free
// validates the Ref against the pool's block registry and the chunk header,
// so foreign references fail with ErrForeignRef and double frees or frees of
// a reused chunk fail with ErrStaleRef instead of corrupting the free list.
// Lookup and FreeAddr recover the Ref from a bare chunk address by binary
// searching the address-ordered block index.
//
// # Layout
//
// The chunk size is padded to pointer width. The alignment is rounded up to a
// power of two no smaller than pointer width. With Count == 0 the pool picks
// the largest count whose block fits the slab budget (4096 bytes unless
// configured). Chunk data always starts on an Align boundary.
//
// # Thread Safety
//
// Pool instances are not thread-safe. Callers must synchronize access
// externally or use the typed package, which holds one lock per size class.
//
// # Teardown
//
// Close returns every block to the Backing, including blocks with chunks
// still handed out. Those chunks are not finalized; callers must free
// everything before closing.
package slab
