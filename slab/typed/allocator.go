package typed

import (
	"fmt"
	"unsafe"

	"github.com/joshuapare/slabkit/slab"
)

// Destroyer is implemented by element types that need cleanup before their
// chunk is returned to the pool.
type Destroyer interface {
	Destroy()
}

// Allocator hands out *T values carved from the pool of T's size class.
// All methods are safe for concurrent use.
type Allocator[T any] struct {
	cls *class
}

// New binds an Allocator for T to the default registry. align is the
// requested alignment; zero selects T's natural alignment.
func New[T any](align int) (*Allocator[T], error) {
	return NewIn[T](Default(), align)
}

// NewIn binds an Allocator for T to reg.
func NewIn[T any](reg *Registry, align int) (*Allocator[T], error) {
	key, err := KeyOf[T](align)
	if err != nil {
		return nil, err
	}
	cls, err := reg.class(key)
	if err != nil {
		return nil, err
	}
	return &Allocator[T]{cls: cls}, nil
}

// Key returns the size class the allocator is bound to.
func (a *Allocator[T]) Key() Key { return a.cls.key }

// Allocate reserves a zeroed T and runs init over it. init may be nil.
func (a *Allocator[T]) Allocate(init func(*T)) (*T, error) {
	a.cls.lock.Lock()
	_, mem, err := a.cls.pool.Alloc()
	a.cls.lock.Unlock()
	if err != nil {
		return nil, err
	}

	v := (*T)(unsafe.Pointer(unsafe.SliceData(mem)))
	if init != nil {
		init(v)
	}
	return v, nil
}

// Deallocate returns v to the pool, calling Destroy first if *T implements
// Destroyer. A nil v returns slab.ErrNilRef; a pointer that did not come
// from this size class returns slab.ErrForeignRef. Destroy does not run on
// a failed call.
//
// The chunk is claimed under the lock before Destroy runs, so of two
// concurrent calls for the same pointer only one runs Destroy and the other
// returns slab.ErrStaleRef. If Destroy panics the chunk stays claimed and is
// not returned to the pool.
func (a *Allocator[T]) Deallocate(v *T) error {
	if v == nil {
		return slab.ErrNilRef
	}
	addr := unsafe.Pointer(v)

	a.cls.lock.Lock()
	ref, err := a.cls.pool.Retire(addr)
	a.cls.lock.Unlock()
	if err != nil {
		return fmt.Errorf("deallocate %T: %w", v, err)
	}

	if d, ok := any(v).(Destroyer); ok {
		d.Destroy()
	}

	a.cls.lock.Lock()
	defer a.cls.lock.Unlock()
	return a.cls.pool.Free(ref)
}

// Generate pre-warms the size class with up to n blocks.
func (a *Allocator[T]) Generate(n int) int {
	a.cls.lock.Lock()
	defer a.cls.lock.Unlock()
	return a.cls.pool.Generate(n)
}

// Release returns the size class's empty blocks to the backing.
func (a *Allocator[T]) Release() int {
	a.cls.lock.Lock()
	defer a.cls.lock.Unlock()
	return a.cls.pool.Release()
}

// Count returns the counters of the whole size class, including chunks
// allocated through other types that share it.
func (a *Allocator[T]) Count() slab.Counter {
	a.cls.lock.Lock()
	defer a.cls.lock.Unlock()
	return a.cls.pool.Count()
}

// Stats returns call accounting for the whole size class.
func (a *Allocator[T]) Stats() slab.Stats {
	a.cls.lock.Lock()
	defer a.cls.lock.Unlock()
	return a.cls.pool.Stats()
}

// Layout returns the block layout of the size class.
func (a *Allocator[T]) Layout() slab.Layout { return a.cls.pool.Layout() }

// CheckInvariants verifies the size-class pool under its lock.
func (a *Allocator[T]) CheckInvariants() error {
	a.cls.lock.Lock()
	defer a.cls.lock.Unlock()
	return a.cls.pool.CheckInvariants()
}
