package spin

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ sync.Locker = (*Lock)(nil)

func TestLockMutualExclusion(t *testing.T) {
	var (
		l       Lock
		wg      sync.WaitGroup
		counter int
	)
	const workers, iters = 8, 2000

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range iters {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iters, counter)
}

func TestTryLock(t *testing.T) {
	var l Lock
	require.True(t, l.TryLock())
	assert.False(t, l.TryLock(), "second TryLock must fail while held")
	l.Unlock()
	assert.True(t, l.TryLock())
	l.Unlock()
}

func TestUnlockUnlockedPanics(t *testing.T) {
	var l Lock
	assert.Panics(t, func() { l.Unlock() })
}

func BenchmarkLockUncontended(b *testing.B) {
	var l Lock
	b.ReportAllocs()
	for range b.N {
		l.Lock()
		l.Unlock()
	}
}
