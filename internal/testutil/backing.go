// Package testutil holds test doubles shared by the slab packages.
package testutil

import (
	"errors"
	"sync/atomic"
)

// ErrExhausted is returned by a FailingBacking once its budget is used up.
var ErrExhausted = errors.New("testutil: backing exhausted")

// Backing mirrors slab.Backing so this package does not import slab.
type Backing interface {
	Alloc(size int) ([]byte, error)
	Free(mem []byte) error
}

// FailingBacking forwards to an inner backing until a fixed number of
// allocations has been served, then fails every later Alloc with
// ErrExhausted. It counts calls and is safe for concurrent use.
type FailingBacking struct {
	inner     Backing
	remaining atomic.Int64
	allocs    atomic.Int64
	frees     atomic.Int64
}

// FailAfter returns a FailingBacking that serves n allocations from inner.
// A negative n never fails.
//
// Example:
//
//	fb := testutil.FailAfter(slab.HeapBacking{}, 2)
//	pool, _ := slab.New(slab.Config{ChunkSize: 64, Backing: fb})
//	pool.Generate(5) // == 2
func FailAfter(inner Backing, n int) *FailingBacking {
	f := &FailingBacking{inner: inner}
	f.remaining.Store(int64(n))
	return f
}

// Alloc implements the backing interface.
func (f *FailingBacking) Alloc(size int) ([]byte, error) {
	for {
		r := f.remaining.Load()
		if r == 0 {
			return nil, ErrExhausted
		}
		if r < 0 || f.remaining.CompareAndSwap(r, r-1) {
			break
		}
	}
	mem, err := f.inner.Alloc(size)
	if err != nil {
		return nil, err
	}
	f.allocs.Add(1)
	return mem, nil
}

// Free implements the backing interface.
func (f *FailingBacking) Free(mem []byte) error {
	f.frees.Add(1)
	return f.inner.Free(mem)
}

// Allocs returns the number of successful allocations.
func (f *FailingBacking) Allocs() int { return int(f.allocs.Load()) }

// Frees returns the number of Free calls.
func (f *FailingBacking) Frees() int { return int(f.frees.Load()) }

// Live returns Allocs minus Frees.
func (f *FailingBacking) Live() int { return f.Allocs() - f.Frees() }
