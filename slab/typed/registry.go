package typed

import (
	"cmp"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/joshuapare/slabkit/internal/format"
	"github.com/joshuapare/slabkit/internal/logger"
	"github.com/joshuapare/slabkit/internal/spin"
	"github.com/joshuapare/slabkit/slab"
)

// Key identifies a size class.
type Key struct {
	Size  int // pointer-padded element size
	Align int // power of two, at least pointer width
}

func (k Key) String() string {
	return fmt.Sprintf("size%d/align%d", k.Size, k.Align)
}

// KeyOf returns the size class of T for the requested alignment. The
// effective alignment is the larger of align and T's natural alignment.
func KeyOf[T any](align int) (Key, error) {
	return keyOf(reflect.TypeFor[T](), align)
}

func keyOf(typ reflect.Type, align int) (Key, error) {
	if hasPointers(typ) {
		return Key{}, fmt.Errorf("%w: %s", ErrPointerType, typ)
	}
	if typ.Size() == 0 {
		return Key{}, fmt.Errorf("%w: %s is zero-sized", slab.ErrInvalidSize, typ)
	}
	if align < 0 || align > format.PageSize {
		return Key{}, fmt.Errorf("%w: %d", slab.ErrInvalidAlign, align)
	}
	return Key{
		Size:  format.AlignPtr(int(typ.Size())),
		Align: format.NormalizeAlign(max(align, typ.Align())),
	}, nil
}

// hasPointers reports whether values of typ contain anything the garbage
// collector would need to trace.
func hasPointers(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.Slice, reflect.String:
		return true
	case reflect.Array:
		return typ.Len() > 0 && hasPointers(typ.Elem())
	case reflect.Struct:
		for i := range typ.NumField() {
			if hasPointers(typ.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// class is one size class: a pool and the lock serializing access to it.
type class struct {
	key  Key
	lock spin.Lock
	pool *slab.Pool
}

// Options configures a Registry.
type Options struct {
	Backing    slab.Backing // Default: slab.DefaultBacking()
	SlabBudget int          // Default: format.SlabBudget()
}

// Registry owns one pool and lock per size class, created on first use.
// It is safe for concurrent use.
type Registry struct {
	opts Options

	mu      sync.RWMutex
	classes map[Key]*class
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, classes: make(map[Key]*class)}
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry used by New.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry(Options{})
	})
	return defaultReg
}

// class returns the size class for key, creating its pool if needed.
func (r *Registry) class(key Key) (*class, error) {
	r.mu.RLock()
	c, ok := r.classes[key]
	closed := r.closed
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	if closed {
		return nil, slab.ErrClosed
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, slab.ErrClosed
	}
	if c, ok := r.classes[key]; ok {
		return c, nil
	}
	pool, err := slab.New(slab.Config{
		Name:       key.String(),
		ChunkSize:  key.Size,
		Align:      key.Align,
		SlabBudget: r.opts.SlabBudget,
		Backing:    r.opts.Backing,
	})
	if err != nil {
		return nil, fmt.Errorf("size class %s: %w", key, err)
	}
	c = &class{key: key, pool: pool}
	r.classes[key] = c
	logger.Debug("typed: size class created", "class", key.String(), "count", pool.Layout().Count)
	return c, nil
}

// Keys returns the size classes created so far, ordered by size then
// alignment.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.classes))
	for k := range r.classes {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	slices.SortFunc(keys, func(a, b Key) int {
		if c := cmp.Compare(a.Size, b.Size); c != 0 {
			return c
		}
		return cmp.Compare(a.Align, b.Align)
	})
	return keys
}

// Len returns the number of size classes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.classes)
}

// Count returns the counters of the size class for key, and false if the
// class does not exist.
func (r *Registry) Count(key Key) (slab.Counter, bool) {
	r.mu.RLock()
	c, ok := r.classes[key]
	r.mu.RUnlock()
	if !ok {
		return slab.Counter{}, false
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pool.Count(), true
}

// Close tears down every pool. Chunks still handed out become invalid.
// Allocators bound to the registry return slab.ErrClosed afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return slab.ErrClosed
	}
	r.closed = true

	var errs []error
	for key, c := range r.classes {
		c.lock.Lock()
		if err := c.pool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("size class %s: %w", key, err))
		}
		c.lock.Unlock()
	}
	return errors.Join(errs...)
}
