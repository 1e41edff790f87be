package slab

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/internal/testutil"
)

// TestPool_FillGenerateReinsert walks a two-chunk block through Full and back
// to Partial: two allocations fill the first block, the third generates a
// second block, and freeing a chunk of the first block makes it usable again.
func TestPool_FillGenerateReinsert(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 96, Align: 32, Count: 2})

	r1, _ := mustAlloc(t, p)
	b1 := p.blocks[r1.Block()]
	require.NotNil(t, b1)
	assert.True(t, p.usable.contains(b1), "fresh block should be usable")

	r2, _ := mustAlloc(t, p)
	assert.Equal(t, r1.Block(), r2.Block(), "second chunk should come from the same block")
	assert.True(t, b1.full())
	assert.False(t, p.usable.contains(b1), "full block must leave the usable queue")
	assert.Nil(t, b1.queue)
	assert.Equal(t, Counter{Generated: 1, Blocks: 1, Chunks: 2}, p.Count())

	r3, _ := mustAlloc(t, p)
	assert.NotEqual(t, r1.Block(), r3.Block(), "third allocation must come from a new block")
	assert.Equal(t, Counter{Generated: 2, Blocks: 2, Chunks: 3}, p.Count())
	assert.Equal(t, 1, p.Stats().AllocFastPath)
	assert.Equal(t, 2, p.Stats().AllocSlowPath)

	require.NoError(t, p.Free(r1))
	assert.True(t, p.usable.contains(b1), "freeing from a full block must reinsert it into usable")
	assert.False(t, b1.full())
	assert.Equal(t, 2, p.usable.len())
	assertInvariants(t, p)
}

func TestPool_EmptyBlockMovesToFreeable(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 32, Count: 4})

	r1, _ := mustAlloc(t, p)
	r2, _ := mustAlloc(t, p)
	b := p.blocks[r1.Block()]

	require.NoError(t, p.Free(r1))
	assert.True(t, p.usable.contains(b))
	require.NoError(t, p.Free(r2))
	assert.True(t, b.empty())
	assert.True(t, p.freeable.contains(b), "empty block must move to freeable")
	assert.False(t, p.usable.contains(b))
	assert.Equal(t, 1, p.Count().Blocks, "memory is retained until Release")
	assertInvariants(t, p)
}

func TestPool_SingleSlotBlock(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 64, Count: 1})

	r, _ := mustAlloc(t, p)
	b := p.blocks[r.Block()]
	assert.True(t, b.full())
	assert.Nil(t, b.queue)

	require.NoError(t, p.Free(r))
	assert.True(t, p.freeable.contains(b))
	assert.Zero(t, p.usable.len())
	assertInvariants(t, p)
}

func TestPool_AllocRevivesFreeableBlock(t *testing.T) {
	fb := failAfter(-1)
	p := newTestPool(t, Config{ChunkSize: 32, Count: 2, Backing: fb})

	r, _ := mustAlloc(t, p)
	require.NoError(t, p.Free(r))
	require.Equal(t, 1, p.freeable.len())

	r2, _ := mustAlloc(t, p)
	assert.Equal(t, r.Block(), r2.Block(), "empty block should be reused before generating")
	assert.Equal(t, 1, fb.Allocs())
	assert.Equal(t, 1, p.Stats().AllocReused)
	assert.Zero(t, p.freeable.len())
	assertInvariants(t, p)
}

func TestPool_AllocAlignedAndZeroed(t *testing.T) {
	for _, align := range []int{0, 16, 32, 64, 256} {
		p := newTestPool(t, Config{ChunkSize: 40, Align: align, Count: 8})
		l := p.Layout()

		for range 20 {
			_, mem := mustAlloc(t, p)
			require.Len(t, mem, l.Chunk)
			require.Equal(t, l.Chunk, cap(mem), "chunk slice must not expose the next slot")
			addr := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
			assert.Zero(t, addr%uintptr(l.Align), "align %d: chunk at 0x%x", l.Align, addr)
			for i, c := range mem {
				require.Zero(t, c, "byte %d not zeroed", i)
			}
			for i := range mem {
				mem[i] = 0xff
			}
		}
		assertInvariants(t, p)
	}
}

func TestPool_FreedChunkIsZeroedOnReuse(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 16, Count: 1})

	r, mem := mustAlloc(t, p)
	copy(mem, "0123456789abcdef")
	require.NoError(t, p.Free(r))

	_, mem2 := mustAlloc(t, p)
	assert.Equal(t, make([]byte, len(mem2)), mem2, "free-list link and old data must not leak")
}

func TestPool_RoundTripRestoresCounters(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 24})

	var keep []Ref
	for range 5 {
		r, _ := mustAlloc(t, p)
		keep = append(keep, r)
	}
	before := p.Count()

	r, _ := mustAlloc(t, p)
	require.NoError(t, p.Free(r))

	after := p.Count()
	assert.Equal(t, before.Chunks, after.Chunks)
	assert.Equal(t, before.Blocks, after.Blocks)
	assert.Len(t, keep, 5)
	assertInvariants(t, p)
}

func TestPool_NoAliasing(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 48, Count: 7})

	seen := make(map[uintptr]Ref)
	refs := make(map[Ref]bool)
	for range 100 {
		r, mem := mustAlloc(t, p)
		addr := uintptr(unsafe.Pointer(unsafe.SliceData(mem)))
		prev, dup := seen[addr]
		require.False(t, dup, "address 0x%x handed out twice (%s and %s)", addr, prev, r)
		seen[addr] = r
		require.False(t, refs[r], "ref %s handed out twice", r)
		refs[r] = true
	}
	assert.Equal(t, 100, p.Count().Chunks)
	assert.Equal(t, 15, p.Count().Blocks, "ceil(100/7) blocks")
}

func TestPool_Generate(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 64})

	n := p.Generate(3)
	assert.Equal(t, 3, n)
	assert.Equal(t, Counter{Generated: 3, Blocks: 3}, p.Count())
	assert.Equal(t, 3, p.usable.len())

	assert.Zero(t, p.Generate(0))
	assertInvariants(t, p)

	// Pre-warmed blocks serve allocations without generating.
	mustAlloc(t, p)
	assert.Equal(t, 3, p.Count().Blocks)
	assert.Equal(t, 1, p.Stats().AllocFastPath)
}

func TestPool_GenerateStopsOnBackingFailure(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 64, Backing: failAfter(2)})

	assert.Equal(t, 2, p.Generate(5))
	assert.Equal(t, 2, p.Count().Blocks)
	assert.Zero(t, p.Generate(1))
	assertInvariants(t, p)
}

func TestPool_AllocBackingFailureLeavesStateUntouched(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 64, Count: 1, Backing: failAfter(1)})

	r, _ := mustAlloc(t, p)
	before := p.Count()

	ref, mem, err := p.Alloc()
	require.ErrorIs(t, err, ErrNoMemory)
	require.ErrorIs(t, err, testutil.ErrExhausted)
	assert.True(t, ref.IsZero())
	assert.Nil(t, mem)
	assert.Equal(t, before, p.Count())
	assert.Equal(t, 1, p.Stats().AllocFailures)
	assertInvariants(t, p)

	require.NoError(t, p.Free(r))
}

func TestPool_Release(t *testing.T) {
	fb := failAfter(-1)
	p := newTestPool(t, Config{ChunkSize: 32, Count: 2, Backing: fb})

	var refs []Ref
	for range 6 {
		r, _ := mustAlloc(t, p)
		refs = append(refs, r)
	}
	require.Equal(t, 3, p.Count().Blocks)

	// Empty the first two blocks, leave one chunk in the third.
	for _, r := range refs[:5] {
		require.NoError(t, p.Free(r))
	}
	assert.Equal(t, 2, p.freeable.len())

	assert.Equal(t, 2, p.Release())
	assert.Equal(t, Counter{Generated: 3, Blocks: 1, Chunks: 1}, p.Count(),
		"Generated is cumulative, Blocks is live")
	assert.Equal(t, 2, fb.Frees())
	assert.Equal(t, 2, p.Stats().BlocksReleased)
	assertInvariants(t, p)

	// The surviving chunk is untouched.
	_, err := p.Bytes(refs[5])
	require.NoError(t, err)

	// Released blocks are gone: refs into them are foreign now.
	assert.ErrorIs(t, p.Free(refs[0]), ErrForeignRef)

	assert.Zero(t, p.Release(), "nothing left to release")
}

func TestPool_ReleaseSkipsFreshBlocks(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 32})
	p.Generate(2)
	assert.Zero(t, p.Release(), "fresh blocks are usable, not freeable")
	assert.Equal(t, 2, p.Count().Blocks)
}

func TestPool_ReleaseAfterDrainKeepsPrewarmedBlocks(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 32, Count: 2})
	r, _ := mustAlloc(t, p)
	require.Equal(t, 2, p.Generate(2))
	require.NoError(t, p.Free(r))

	assert.Equal(t, 1, p.Release())
	assert.Equal(t, Counter{Generated: 3, Blocks: 2}, p.Count())
	s := p.Stats()
	assert.Equal(t, 2, s.Usable)
	assert.Zero(t, s.Freeable)
	assertInvariants(t, p)
}

func TestPool_FreeErrors(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 32, Count: 4})
	other := newTestPool(t, Config{ChunkSize: 32, Count: 4})

	r, _ := mustAlloc(t, p)
	foreign, _ := mustAlloc(t, other)

	assert.ErrorIs(t, p.Free(Ref{}), ErrNilRef)
	assert.ErrorIs(t, p.Free(foreign), ErrForeignRef)
	assert.ErrorIs(t, p.Free(Ref{block: r.block, slot: 99, gen: 0}), ErrBadRef)
	assert.ErrorIs(t, p.Free(Ref{block: r.block, slot: r.slot, gen: r.gen + 1}), ErrStaleRef)

	require.NoError(t, p.Free(r))
	assert.ErrorIs(t, p.Free(r), ErrStaleRef, "double free must be detected")

	// The stale ref stays stale once the slot is reused.
	r2, _ := mustAlloc(t, p)
	assert.Equal(t, r.slot, r2.slot)
	assert.NotEqual(t, r.gen, r2.gen)
	assert.ErrorIs(t, p.Free(r), ErrStaleRef)
	require.NoError(t, p.Free(r2))

	assert.Equal(t, 6, p.Stats().FreeRejected)
	assertInvariants(t, p)
	assertInvariants(t, other)
}

func TestPool_Deallocate(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 16, Count: 4})

	r, _, err := p.Allocate(func(mem []byte) { copy(mem, "constructed") })
	require.NoError(t, err)

	mem, err := p.Bytes(r)
	require.NoError(t, err)
	assert.Equal(t, "constructed", string(mem[:11]))

	var seen string
	require.NoError(t, p.Deallocate(r, func(mem []byte) { seen = string(mem[:11]) }))
	assert.Equal(t, "constructed", seen)

	called := false
	assert.ErrorIs(t, p.Deallocate(r, func([]byte) { called = true }), ErrStaleRef)
	assert.False(t, called, "finalizer must not run for a stale ref")
	assertInvariants(t, p)
}

func TestPool_LookupAndFreeAddr(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 40, Align: 16, Count: 3})

	var refs []Ref
	var addrs []unsafe.Pointer
	for range 7 {
		r, mem := mustAlloc(t, p)
		refs = append(refs, r)
		addrs = append(addrs, unsafe.Pointer(unsafe.SliceData(mem)))
	}

	for i, addr := range addrs {
		got, err := p.Lookup(addr)
		require.NoError(t, err)
		assert.Equal(t, refs[i], got)
	}

	// Interior pointers and block headers are not chunk starts.
	_, err := p.Lookup(unsafe.Add(addrs[0], 8))
	assert.ErrorIs(t, err, ErrBadRef)
	b := p.blocks[refs[0].Block()]
	_, err = p.Lookup(unsafe.Pointer(unsafe.SliceData(b.mem)))
	assert.ErrorIs(t, err, ErrBadRef)

	// Memory the pool never handed out.
	outside := make([]byte, 64)
	_, err = p.Lookup(unsafe.Pointer(unsafe.SliceData(outside)))
	assert.ErrorIs(t, err, ErrForeignRef)
	assert.ErrorIs(t, p.FreeAddr(nil), ErrNilRef)

	require.NoError(t, p.FreeAddr(addrs[3]))
	assert.ErrorIs(t, p.FreeAddr(addrs[3]), ErrStaleRef)
	assert.Equal(t, 6, p.Count().Chunks)
	assertInvariants(t, p)
}

func TestPool_Retire(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 24, Count: 4})

	r, mem := mustAlloc(t, p)
	copy(mem, "retiring")
	addr := unsafe.Pointer(unsafe.SliceData(mem))

	got, err := p.Retire(addr)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	// A retiring chunk is claimed: address-based release fails.
	_, err = p.Retire(addr)
	assert.ErrorIs(t, err, ErrStaleRef)
	_, err = p.Lookup(addr)
	assert.ErrorIs(t, err, ErrStaleRef)
	assert.ErrorIs(t, p.FreeAddr(addr), ErrStaleRef)

	// It is still in use until freed by handle.
	b, err := p.Bytes(r)
	require.NoError(t, err)
	assert.Equal(t, "retiring", string(b[:8]))
	assert.Equal(t, 1, p.Count().Chunks)
	assertInvariants(t, p)

	require.NoError(t, p.Free(r))
	assert.ErrorIs(t, p.Free(r), ErrStaleRef)
	assert.Zero(t, p.Count().Chunks)
	assertInvariants(t, p)
}

func TestPool_RetireErrors(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 24, Count: 4})
	_, mem := mustAlloc(t, p)
	_, freed := mustAlloc(t, p)
	freedAddr := unsafe.Pointer(unsafe.SliceData(freed))
	require.NoError(t, p.FreeAddr(freedAddr))

	_, err := p.Retire(nil)
	assert.ErrorIs(t, err, ErrNilRef)
	outside := make([]byte, 64)
	_, err = p.Retire(unsafe.Pointer(unsafe.SliceData(outside)))
	assert.ErrorIs(t, err, ErrForeignRef)
	_, err = p.Retire(freedAddr)
	assert.ErrorIs(t, err, ErrStaleRef)
	_, err = p.Retire(unsafe.Add(unsafe.Pointer(unsafe.SliceData(mem)), 8))
	assert.ErrorIs(t, err, ErrBadRef)

	assert.Equal(t, 4, p.Stats().FreeRejected)
	assert.Equal(t, 1, p.Count().Chunks)
	assertInvariants(t, p)
}

func TestPool_Close(t *testing.T) {
	fb := failAfter(-1)
	p, err := New(Config{ChunkSize: 32, Count: 2, Backing: fb})
	require.NoError(t, err)

	r, _ := mustAlloc(t, p)
	mustAlloc(t, p)
	mustAlloc(t, p)
	p.Generate(1)

	require.NoError(t, p.Close())
	assert.Equal(t, 3, fb.Frees(), "every block is returned, live chunks included")
	assert.Equal(t, 0, p.Count().Blocks)
	assert.Equal(t, 3, p.Count().Generated)

	assert.ErrorIs(t, p.Close(), ErrClosed)
	_, _, err = p.Alloc()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Free(r), ErrClosed)
	assert.Zero(t, p.Generate(1))
	assert.Zero(t, p.Release())
	assert.NoError(t, p.CheckInvariants())
}

func TestPool_MmapBacking(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 128, Align: 64, Backing: DefaultBacking()})

	var refs []Ref
	for range 3 * p.Layout().Count {
		r, mem := mustAlloc(t, p)
		mem[0], mem[len(mem)-1] = 1, 2
		refs = append(refs, r)
	}
	for _, r := range refs {
		require.NoError(t, p.Free(r))
	}
	assert.Equal(t, 3, p.Release())
	assertInvariants(t, p)
}

func TestPool_DefaultName(t *testing.T) {
	p := newTestPool(t, Config{ChunkSize: 20, Align: 32})
	assert.Equal(t, "chunk24/align32", p.Name())
	assert.Contains(t, p.String(), "chunk24/align32")

	named := newTestPool(t, Config{Name: "ctrl-blocks", ChunkSize: 20})
	assert.Equal(t, "ctrl-blocks", named.Name())
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{ChunkSize: -1})
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = New(Config{ChunkSize: 8, Align: 1 << 20})
	assert.ErrorIs(t, err, ErrInvalidAlign)
}

func TestRef_String(t *testing.T) {
	assert.Equal(t, "nil", Ref{}.String())
	assert.Equal(t, "blk#3/slot#7@gen2", Ref{block: 3, slot: 7, gen: 2}.String())
}
