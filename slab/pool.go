package slab

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync/atomic"
	"unsafe"

	"github.com/joshuapare/slabkit/internal/logger"
)

// Block and pool ids are process-wide so a Ref minted by one pool is never
// mistaken for one of another pool's blocks.
var (
	nextPoolID  atomic.Uint32
	nextBlockID atomic.Uint32
)

// Pool hands out fixed-size chunks carved from blocks of Layout.Count slots.
//
// A block is in the usable queue while it has a free chunk, in neither queue
// while it is full, and in the freeable queue once its last chunk has been
// returned. Release gives freeable blocks back to the Backing.
//
// A Pool is not safe for concurrent use. The typed package wraps pools in a
// lock per size class.
type Pool struct {
	id      uint32
	name    string
	layout  Layout
	backing Backing

	usable   queue // blocks with at least one free chunk
	freeable queue // blocks with no chunk in use, pending release

	blocks map[uint32]*block // every live block, by id
	ranges []*block          // every live block, ordered by base address

	counter Counter
	stats   Stats
	closed  bool
}

// New creates an empty pool. No block is generated until the first
// allocation or an explicit Generate.
func New(cfg Config) (*Pool, error) {
	layout, err := ComputeLayout(cfg)
	if err != nil {
		return nil, err
	}
	backing := cfg.Backing
	if backing == nil {
		backing = DefaultBacking()
	}
	name := cfg.Name
	if name == "" {
		name = fmt.Sprintf("chunk%d/align%d", layout.Chunk, layout.Align)
	}
	return &Pool{
		id:      nextPoolID.Add(1),
		name:    name,
		layout:  layout,
		backing: backing,
		blocks:  make(map[uint32]*block),
	}, nil
}

// Name returns the pool label used in logs.
func (p *Pool) Name() string { return p.name }

// Layout returns the block layout.
func (p *Pool) Layout() Layout { return p.layout }

// Count returns the current usage counters.
func (p *Pool) Count() Counter { return p.counter }

// Stats returns call accounting and queue lengths.
func (p *Pool) Stats() Stats {
	s := p.stats
	s.Usable = p.usable.len()
	s.Freeable = p.freeable.len()
	return s
}

func (p *Pool) String() string {
	return fmt.Sprintf("slab.Pool(%s blocks=%d chunks=%d)", p.name, p.counter.Blocks, p.counter.Chunks)
}

// Alloc reserves one chunk and returns its handle and its bytes. The slice is
// zeroed, exactly Layout.Chunk bytes long and Layout.Align aligned.
//
// When no usable block exists, an empty block from the freeable queue is
// revived, and only if there is none a new block is generated. If the backing
// allocation fails Alloc returns ErrNoMemory and leaves the pool unchanged.
func (p *Pool) Alloc() (Ref, []byte, error) {
	if p.closed {
		return Ref{}, nil, ErrClosed
	}
	p.stats.AllocCalls++

	b := p.usable.peek()
	switch {
	case b != nil:
		p.stats.AllocFastPath++
	case p.freeable.len() > 0:
		b = p.freeable.dequeue()
		p.usable.enqueue(b)
		p.stats.AllocReused++
	default:
		var err error
		if b, err = p.generate(); err != nil {
			p.stats.AllocFailures++
			return Ref{}, nil, err
		}
		p.stats.AllocSlowPath++
	}

	slot, gen := b.get()
	if b.full() {
		p.usable.pop(b)
	}
	p.counter.Chunks++

	ref := Ref{block: b.id, slot: slot, gen: gen}
	if logger.TraceAlloc {
		logger.Debug("slab: alloc", "pool", p.name, "chunk", ref.String(), "used", b.used)
	}
	return ref, b.chunk(slot), nil
}

// Allocate reserves a chunk and runs init over it before returning. init may
// be nil.
func (p *Pool) Allocate(init func([]byte)) (Ref, []byte, error) {
	ref, mem, err := p.Alloc()
	if err != nil {
		return Ref{}, nil, err
	}
	if init != nil {
		init(mem)
	}
	return ref, mem, nil
}

// Free returns the chunk named by ref to its block.
//
// A zero ref yields ErrNilRef, a ref from another pool ErrForeignRef, and a
// ref whose chunk is already free or was handed out again ErrStaleRef. None
// of these change the pool.
func (p *Pool) Free(ref Ref) error {
	b, err := p.resolve(ref)
	if err != nil {
		p.stats.FreeRejected++
		return err
	}
	p.freeSlot(b, ref.slot)
	return nil
}

// Deallocate runs fini over the chunk named by ref and then frees it. fini
// only runs for a live chunk owned by this pool. fini may be nil.
func (p *Pool) Deallocate(ref Ref, fini func([]byte)) error {
	b, err := p.resolve(ref)
	if err != nil {
		p.stats.FreeRejected++
		return err
	}
	if fini != nil {
		fini(b.chunk(ref.slot))
	}
	p.freeSlot(b, ref.slot)
	return nil
}

// Bytes returns the chunk named by a live ref.
func (p *Pool) Bytes(ref Ref) ([]byte, error) {
	b, err := p.resolve(ref)
	if err != nil {
		return nil, err
	}
	return b.chunk(ref.slot), nil
}

// Lookup recovers the handle of the live chunk starting at addr.
func (p *Pool) Lookup(addr unsafe.Pointer) (Ref, error) {
	if p.closed {
		return Ref{}, ErrClosed
	}
	if addr == nil {
		return Ref{}, ErrNilRef
	}
	b, slot, err := find(p, uintptr(addr))
	if err != nil {
		return Ref{}, err
	}
	h := b.state(slot)
	if !h.Live() {
		return Ref{}, fmt.Errorf("%w: block %d slot %d is not live (state %d)", ErrStaleRef, b.id, slot, h.State)
	}
	return Ref{block: b.id, slot: slot, gen: h.Gen}, nil
}

// Retire claims the live chunk starting at addr for release and returns its
// handle. A retiring chunk is still in use, so Free and Bytes accept the
// handle, but Lookup, FreeAddr and a second Retire report ErrStaleRef. This
// lets a caller run a finalizer without holding its lock while a concurrent
// release of the same address fails up front.
func (p *Pool) Retire(addr unsafe.Pointer) (Ref, error) {
	ref, err := p.Lookup(addr)
	if err != nil {
		p.stats.FreeRejected++
		return Ref{}, err
	}
	p.blocks[ref.block].retire(ref.slot)
	return ref, nil
}

// FreeAddr frees the live chunk starting at addr.
func (p *Pool) FreeAddr(addr unsafe.Pointer) error {
	ref, err := p.Lookup(addr)
	if err != nil {
		p.stats.FreeRejected++
		return err
	}
	return p.Free(ref)
}

// Generate creates up to n blocks regardless of demand, appending each to the
// usable queue. It stops at the first backing failure and returns the number
// of blocks created.
func (p *Pool) Generate(n int) int {
	if p.closed {
		return 0
	}
	created := 0
	for range n {
		if _, err := p.generate(); err != nil {
			break
		}
		created++
	}
	return created
}

// Release returns every block in the freeable queue to the backing and
// reports how many were released. Blocks with chunks in use are never
// released.
func (p *Pool) Release() int {
	if p.closed {
		return 0
	}
	released := 0
	for b := p.freeable.dequeue(); b != nil; b = p.freeable.dequeue() {
		if err := p.destroy(b); err != nil {
			logger.Warn("slab: backing free failed", "pool", p.name, "block", b.id, "error", err)
		}
		released++
	}
	p.stats.BlocksReleased += released
	if released > 0 {
		logger.Debug("slab: released blocks", "pool", p.name, "count", released, "live", p.counter.Blocks)
	}
	return released
}

// Close releases every block unconditionally. Chunks still handed out are
// not finalized and must not be used afterwards. Every later call on the pool
// returns ErrClosed or does nothing.
func (p *Pool) Close() error {
	if p.closed {
		return ErrClosed
	}
	if p.counter.Chunks > 0 {
		logger.Warn("slab: closing pool with live chunks", "pool", p.name, "chunks", p.counter.Chunks)
	}

	var errs []error
	for _, b := range slices.Clone(p.ranges) {
		if b.queue != nil {
			b.queue.pop(b)
		}
		if err := p.destroy(b); err != nil {
			errs = append(errs, fmt.Errorf("block %d: %w", b.id, err))
		}
	}
	p.counter.Chunks = 0
	p.closed = true
	logger.Debug("slab: pool closed", "pool", p.name, "generated", p.counter.Generated)
	return errors.Join(errs...)
}

// generate allocates, initializes and registers one block and appends it to
// the usable queue.
func (p *Pool) generate() (*block, error) {
	mem, err := p.backing.Alloc(p.layout.BlockBytes)
	if err != nil {
		logger.Warn("slab: backing allocation failed", "pool", p.name, "bytes", p.layout.BlockBytes, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	if len(mem) < p.layout.BlockBytes || addrOf(mem)%uintptr(p.layout.Align) != 0 {
		_ = p.backing.Free(mem)
		return nil, fmt.Errorf("%w: backing returned %d bytes at 0x%x, need %d aligned to %d",
			ErrNoMemory, len(mem), addrOf(mem), p.layout.BlockBytes, p.layout.Align)
	}

	b := &block{}
	id := nextBlockID.Add(1)
	if err := b.initialize(p, id, mem); err != nil {
		_ = p.backing.Free(mem)
		return nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}

	p.blocks[id] = b
	i, _ := slices.BinarySearchFunc(p.ranges, b.base, func(e *block, base uintptr) int {
		switch {
		case e.base < base:
			return -1
		case e.base > base:
			return 1
		}
		return 0
	})
	p.ranges = slices.Insert(p.ranges, i, b)
	p.usable.enqueue(b)

	p.counter.Generated++
	p.counter.Blocks++
	p.stats.BlocksGenerated++
	logger.Debug("slab: block generated", "pool", p.name, "block", id, "count", p.layout.Count, "bytes", len(mem))
	return b, nil
}

// destroy unregisters b and hands its memory back to the backing. b must
// not be queued.
func (p *Pool) destroy(b *block) error {
	delete(p.blocks, b.id)
	if i := slices.Index(p.ranges, b); i >= 0 {
		p.ranges = slices.Delete(p.ranges, i, i+1)
	}
	p.counter.Blocks--

	mem := b.mem
	b.mem = nil
	return p.backing.Free(mem)
}

// resolve validates ref against the registry and the chunk header.
func (p *Pool) resolve(ref Ref) (*block, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if ref.IsZero() {
		return nil, ErrNilRef
	}
	b, ok := p.blocks[ref.block]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrForeignRef, ref)
	}
	if int(ref.slot) >= p.layout.Count {
		return nil, fmt.Errorf("%w: %s (count %d)", ErrBadRef, ref, p.layout.Count)
	}
	h := b.state(ref.slot)
	if !h.InUse() || h.Gen != ref.gen {
		return nil, fmt.Errorf("%w: %s (chunk gen %d, state %d)", ErrStaleRef, ref, h.Gen, h.State)
	}
	return b, nil
}

// freeSlot returns a validated live slot and moves b between queues.
func (p *Pool) freeSlot(b *block, slot uint32) {
	wasFull := b.full()
	b.set(slot)
	if wasFull {
		p.usable.enqueue(b)
	}
	if b.empty() {
		p.usable.pop(b)
		p.freeable.enqueue(b)
	}
	p.counter.Chunks--
	p.stats.FreeCalls++

	if logger.TraceAlloc {
		logger.Debug("slab: free", "pool", p.name, "block", b.id, "slot", slot, "used", b.used)
	}
}

// blockAt returns the live block whose buffer contains addr, or nil.
func (p *Pool) blockAt(addr uintptr) *block {
	i := sort.Search(len(p.ranges), func(i int) bool { return p.ranges[i].base > addr }) - 1
	if i < 0 || !p.ranges[i].contains(addr) {
		return nil
	}
	return p.ranges[i]
}
