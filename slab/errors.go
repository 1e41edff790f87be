package slab

import "errors"

var (
	// ErrNoMemory indicates the backing allocator could not supply a block.
	ErrNoMemory = errors.New("slab: backing allocation failed")

	// ErrForeignRef indicates a reference or address not owned by this pool.
	ErrForeignRef = errors.New("slab: reference not owned by pool")

	// ErrBadRef indicates a reference that names an owned block but no valid slot.
	ErrBadRef = errors.New("slab: bad chunk reference")

	// ErrStaleRef indicates a chunk that is already free or was reused since the
	// reference was issued (double free or use after free).
	ErrStaleRef = errors.New("slab: stale chunk reference")

	// ErrNilRef indicates a zero reference or nil address.
	ErrNilRef = errors.New("slab: nil reference")

	// ErrClosed indicates the pool has been torn down.
	ErrClosed = errors.New("slab: pool closed")

	// ErrInvalidSize indicates a chunk size or count that cannot be laid out.
	ErrInvalidSize = errors.New("slab: invalid chunk size")

	// ErrInvalidAlign indicates an alignment larger than the page size.
	ErrInvalidAlign = errors.New("slab: invalid alignment")

	// ErrCorrupt indicates a broken pool invariant found by CheckInvariants.
	ErrCorrupt = errors.New("slab: invariant violated")
)
