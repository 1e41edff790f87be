// Package typed puts a concurrency-safe, per-type face on slab pools.
//
// An Allocator[T] maps T to a size class, the pair of T's pointer-padded
// size and its alignment, and binds to the one pool and lock a Registry keeps
// for that class. Unrelated types with the same shape share the class:
//
//	type vec3 struct{ X, Y, Z float64 }
//	type rgb24 struct{ R, G, B float64 }
//
//	a, _ := typed.New[vec3](0)
//	b, _ := typed.New[rgb24](0)
//	// a.Key() == b.Key(): both draw from one pool under one lock
//
// Every pool operation runs under the class lock. Allocation is two-step:
// the chunk is reserved under the lock and initialized after it is released,
// since the caller already owns it exclusively. Deallocate mirrors this by
// running Destroy before reacquiring the lock to return the chunk.
//
// Pool memory is not scanned by the garbage collector, so T must not contain
// Go pointers, strings, slices, maps, channels, funcs or interfaces. New
// reports ErrPointerType for such types.
package typed
