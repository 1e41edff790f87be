package slab

import (
	"fmt"

	"github.com/joshuapare/slabkit/internal/format"
)

// CheckInvariants walks every block and verifies the bookkeeping:
//
//   - 0 <= used <= Count for every block
//   - the free list holds exactly Count-used distinct slots
//   - exactly used chunk headers are live or retiring
//   - full blocks are in no queue, partial blocks are usable, and blocks
//     with used == 0 are usable (never allocated from) or freeable
//   - no block with used > 0 is in the freeable queue
//   - the queues only hold registered blocks and their lengths match
//   - Counter.Blocks and Counter.Chunks match the registry
//
// It is O(total slots) and meant for tests and diagnostics.
func (p *Pool) CheckInvariants() error {
	if p.closed {
		return nil
	}
	count := p.layout.Count
	chunks := 0

	for id, b := range p.blocks {
		if b.id != id {
			return fmt.Errorf("%w: block %d registered under id %d", ErrCorrupt, b.id, id)
		}
		hdr, err := format.ReadBlockHeader(b.mem)
		if err != nil {
			return fmt.Errorf("%w: block %d: %w", ErrCorrupt, id, err)
		}
		if hdr.ID != id || hdr.PoolID != p.id || int(hdr.Count) != count || int(hdr.Stride) != p.layout.Stride {
			return fmt.Errorf("%w: block %d header %+v does not match pool %d", ErrCorrupt, id, hdr, p.id)
		}
		if b.used < 0 || b.used > count {
			return fmt.Errorf("%w: block %d used=%d outside [0,%d]", ErrCorrupt, id, b.used, count)
		}
		if n := b.freeLen(count); n != count-b.used {
			return fmt.Errorf("%w: block %d free list has %d entries, want %d", ErrCorrupt, id, n, count-b.used)
		}

		live := 0
		for s := range count {
			h := b.state(uint32(s))
			if h.Block != id || h.Slot != uint32(s) {
				return fmt.Errorf("%w: block %d slot %d header names block %d slot %d",
					ErrCorrupt, id, s, h.Block, h.Slot)
			}
			if h.State > format.ChunkRetiring {
				return fmt.Errorf("%w: block %d slot %d has unknown state %d", ErrCorrupt, id, s, h.State)
			}
			if h.InUse() {
				live++
			}
		}
		if live != b.used {
			return fmt.Errorf("%w: block %d has %d live headers, used=%d", ErrCorrupt, id, live, b.used)
		}

		switch {
		case b.full():
			if b.queue != nil {
				return fmt.Errorf("%w: full block %d is queued", ErrCorrupt, id)
			}
		case b.empty():
			if b.queue != &p.usable && b.queue != &p.freeable {
				return fmt.Errorf("%w: empty block %d is in no queue", ErrCorrupt, id)
			}
		default:
			if b.queue != &p.usable {
				return fmt.Errorf("%w: partial block %d (used=%d) is not usable", ErrCorrupt, id, b.used)
			}
		}
		chunks += b.used
	}

	if err := p.checkQueue(&p.usable, "usable"); err != nil {
		return err
	}
	if err := p.checkQueue(&p.freeable, "freeable"); err != nil {
		return err
	}
	for b := p.freeable.head; b != nil; b = b.next {
		if b.used != 0 {
			return fmt.Errorf("%w: freeable block %d has used=%d", ErrCorrupt, b.id, b.used)
		}
	}

	if len(p.ranges) != len(p.blocks) {
		return fmt.Errorf("%w: range index has %d blocks, registry %d", ErrCorrupt, len(p.ranges), len(p.blocks))
	}
	for i := 1; i < len(p.ranges); i++ {
		if p.ranges[i-1].base+uintptr(len(p.ranges[i-1].mem)) > p.ranges[i].base {
			return fmt.Errorf("%w: blocks %d and %d overlap or are unordered",
				ErrCorrupt, p.ranges[i-1].id, p.ranges[i].id)
		}
	}

	if p.counter.Blocks != len(p.blocks) {
		return fmt.Errorf("%w: counter blocks=%d, registry %d", ErrCorrupt, p.counter.Blocks, len(p.blocks))
	}
	if p.counter.Chunks != chunks {
		return fmt.Errorf("%w: counter chunks=%d, blocks report %d", ErrCorrupt, p.counter.Chunks, chunks)
	}
	return nil
}

func (p *Pool) checkQueue(q *queue, name string) error {
	n := 0
	var prev *block
	for b := q.head; b != nil; b = b.next {
		if b.queue != q {
			return fmt.Errorf("%w: block %d linked in %s but tagged elsewhere", ErrCorrupt, b.id, name)
		}
		if b.prev != prev {
			return fmt.Errorf("%w: %s queue back link broken at block %d", ErrCorrupt, name, b.id)
		}
		if p.blocks[b.id] != b {
			return fmt.Errorf("%w: %s queue holds unregistered block %d", ErrCorrupt, name, b.id)
		}
		prev = b
		n++
		if n > len(p.blocks) {
			return fmt.Errorf("%w: %s queue has a cycle", ErrCorrupt, name)
		}
	}
	if q.tail != prev {
		return fmt.Errorf("%w: %s queue tail mismatch", ErrCorrupt, name)
	}
	if n != q.len() {
		return fmt.Errorf("%w: %s queue walked %d blocks, len %d", ErrCorrupt, name, n, q.len())
	}
	return nil
}
