package slab

import (
	"fmt"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/format"
)

// block is one backing buffer carved into Layout.Count slots.
//
//	mem: [block header | pad][prefix | chunk 0][prefix | chunk 1]...
//
// The chunk header occupies the last format.ChunkHeaderSize bytes of each
// prefix, immediately in front of the chunk. Free chunks carry the free-list
// link in their first format.LinkSize bytes.
type block struct {
	pool *Pool
	id   uint32
	mem  []byte
	base uintptr // address of mem[0]

	head uint64 // free-list head as slot+1, 0 when no chunk is free
	used int

	// Queue membership.
	next  *block
	prev  *block
	queue *queue
}

// initialize writes the block header and threads the free list through every
// slot in ascending order.
func (b *block) initialize(p *Pool, id uint32, mem []byte) error {
	l := &p.layout
	if _, err := buf.CheckSlotBounds(len(mem), l.Meta, l.Count, l.Stride); err != nil {
		return fmt.Errorf("block %d: %w", id, err)
	}

	b.pool = p
	b.id = id
	b.mem = mem
	b.base = addrOf(mem)

	if err := format.PutBlockHeader(mem, format.BlockHeader{
		ID:     id,
		PoolID: p.id,
		Count:  uint32(l.Count),
		Stride: uint32(l.Stride),
		Chunk:  uint32(l.Chunk),
	}); err != nil {
		return fmt.Errorf("block %d: %w", id, err)
	}

	for i := range l.Count {
		slot := uint32(i)
		if err := format.PutChunkHeader(b.header(slot), format.ChunkHeader{
			Block: id,
			Slot:  slot,
			State: format.ChunkFree,
		}); err != nil {
			return fmt.Errorf("block %d slot %d: %w", id, i, err)
		}
		var next uint64
		if i+1 < l.Count {
			next = uint64(i + 2)
		}
		format.PutLink(b.chunk(slot), next)
	}

	b.head = 1
	b.used = 0
	return nil
}

// slotOffset returns the offset of the chunk in slot within mem.
func (b *block) slotOffset(slot uint32) int {
	l := &b.pool.layout
	return l.Meta + int(slot)*l.Stride + l.Prefix
}

// header returns the chunk header bytes of slot.
func (b *block) header(slot uint32) []byte {
	off := b.slotOffset(slot) - format.ChunkHeaderSize
	return b.mem[off : off+format.ChunkHeaderSize : off+format.ChunkHeaderSize]
}

// chunk returns the chunk bytes of slot, capacity-limited to the chunk size.
func (b *block) chunk(slot uint32) []byte {
	off := b.slotOffset(slot)
	end := off + b.pool.layout.Chunk
	return b.mem[off:end:end]
}

// state decodes the chunk header of slot.
func (b *block) state(slot uint32) format.ChunkHeader {
	h, _ := format.ReadChunkHeader(b.header(slot))
	return h
}

// get pops the free-list head, marks it live and returns its slot and
// generation. The chunk is zeroed. Precondition: !b.full().
func (b *block) get() (uint32, uint32) {
	slot := uint32(b.head - 1)
	c := b.chunk(slot)
	b.head = format.ReadLink(c)
	clear(c)

	hdr := b.header(slot)
	gen := buf.U32LE(hdr[format.ChunkGenOffset:])
	buf.PutU32LE(hdr[format.ChunkStateOffset:], format.ChunkLive)
	b.used++
	return slot, gen
}

// set pushes slot back onto the free-list head and bumps its generation so
// outstanding references to it go stale. Precondition: slot is live.
func (b *block) set(slot uint32) {
	hdr := b.header(slot)
	gen := buf.U32LE(hdr[format.ChunkGenOffset:])
	buf.PutU32LE(hdr[format.ChunkGenOffset:], gen+1)
	buf.PutU32LE(hdr[format.ChunkStateOffset:], format.ChunkFree)

	format.PutLink(b.chunk(slot), b.head)
	b.head = uint64(slot) + 1
	b.used--
}

// retire marks a live slot as claimed for release. Precondition: slot is live.
func (b *block) retire(slot uint32) {
	buf.PutU32LE(b.header(slot)[format.ChunkStateOffset:], format.ChunkRetiring)
}

func (b *block) full() bool  { return b.used == b.pool.layout.Count }
func (b *block) empty() bool { return b.used == 0 }

// contains reports whether addr falls inside the block's buffer.
func (b *block) contains(addr uintptr) bool {
	return addr >= b.base && addr < b.base+uintptr(len(b.mem))
}

// slotOf maps a chunk address inside the block to its slot. Reports false
// for addresses that do not point at the first byte of a chunk.
func (b *block) slotOf(addr uintptr) (uint32, bool) {
	if !b.contains(addr) {
		return 0, false
	}
	l := &b.pool.layout
	off := int(addr-b.base) - l.Meta - l.Prefix
	if off < 0 || off%l.Stride != 0 {
		return 0, false
	}
	slot := off / l.Stride
	if slot >= l.Count {
		return 0, false
	}
	return uint32(slot), true
}

// find recovers the owning block of a chunk address from the pool's
// address-ordered range index, then confirms the slot against the chunk
// header embedded in front of it.
func find(p *Pool, addr uintptr) (*block, uint32, error) {
	b := p.blockAt(addr)
	if b == nil {
		return nil, 0, fmt.Errorf("%w: address 0x%x", ErrForeignRef, addr)
	}
	slot, ok := b.slotOf(addr)
	if !ok {
		return nil, 0, fmt.Errorf("%w: address 0x%x is not a chunk start in block %d", ErrBadRef, addr, b.id)
	}
	h := b.state(slot)
	if h.Block != b.id || h.Slot != slot {
		return nil, 0, fmt.Errorf("%w: chunk header at block %d slot %d names block %d slot %d",
			ErrCorrupt, b.id, slot, h.Block, h.Slot)
	}
	return b, slot, nil
}

// freeLen walks the free list, stopping after limit steps.
func (b *block) freeLen(limit int) int {
	n := 0
	for next := b.head; next != 0 && n <= limit; n++ {
		slot := next - 1
		if slot >= uint64(b.pool.layout.Count) {
			return -1
		}
		next = format.ReadLink(b.chunk(uint32(slot)))
	}
	return n
}
