package slab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/slabkit/internal/testutil"
)

// failAfter returns a heap backing that fails after n blocks. A negative n
// never fails.
func failAfter(n int) *testutil.FailingBacking {
	return testutil.FailAfter(HeapBacking{}, n)
}

// newTestPool creates a heap-backed pool that is closed when the test ends.
func newTestPool(t testing.TB, cfg Config) *Pool {
	t.Helper()
	if cfg.Backing == nil {
		cfg.Backing = HeapBacking{}
	}
	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

// assertInvariants fails the test if the pool bookkeeping is inconsistent.
func assertInvariants(t testing.TB, p *Pool) {
	t.Helper()
	require.NoError(t, p.CheckInvariants())
}

// mustAlloc allocates a chunk or fails the test.
func mustAlloc(t testing.TB, p *Pool) (Ref, []byte) {
	t.Helper()
	ref, mem, err := p.Alloc()
	require.NoError(t, err)
	require.False(t, ref.IsZero())
	return ref, mem
}
