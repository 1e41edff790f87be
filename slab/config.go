package slab

import (
	"fmt"
	"math"

	"github.com/joshuapare/slabkit/internal/buf"
	"github.com/joshuapare/slabkit/internal/format"
)

// Config configures a Pool.
type Config struct {
	// Name labels the pool in logs. Default: "chunk<size>/align<align>".
	Name string

	// ChunkSize is the requested chunk size. It is padded to pointer width.
	ChunkSize int

	// Align is the chunk alignment. It is rounded up to the next power of two
	// with a floor of pointer width. Zero selects pointer width.
	Align int

	// Count is the number of chunks per block. Zero selects the largest count
	// whose block fits in SlabBudget (at least one).
	Count int

	// SlabBudget is the target block footprint used when Count is zero.
	// Zero selects format.SlabBudget() (4096 unless overridden by the
	// SLABKIT_SLAB_BUDGET environment variable).
	SlabBudget int

	// Backing supplies block memory. Nil selects DefaultBacking().
	Backing Backing
}

// DefaultConfig returns a Config for chunkSize with every other field
// auto-selected.
func DefaultConfig(chunkSize int) Config {
	return Config{ChunkSize: chunkSize}
}

// ComputeLayout derives the block layout for cfg without allocating anything.
func ComputeLayout(cfg Config) (Layout, error) {
	if cfg.ChunkSize <= 0 || cfg.Count < 0 || cfg.SlabBudget < 0 {
		return Layout{}, fmt.Errorf("%w: chunk=%d count=%d budget=%d",
			ErrInvalidSize, cfg.ChunkSize, cfg.Count, cfg.SlabBudget)
	}
	if cfg.Align < 0 || cfg.Align > format.PageSize {
		return Layout{}, fmt.Errorf("%w: %d (max %d)", ErrInvalidAlign, cfg.Align, format.PageSize)
	}

	align := format.NormalizeAlign(cfg.Align)
	chunk := format.AlignPtr(max(cfg.ChunkSize, format.LinkSize))
	meta := format.Align(format.BlockHeaderSize, align)
	prefix := format.Align(format.ChunkHeaderSize, align)
	stride := format.Align(prefix+chunk, align)

	count := cfg.Count
	if count == 0 {
		budget := cfg.SlabBudget
		if budget == 0 {
			budget = format.SlabBudget()
		}
		count = max(1, (budget-meta)/stride)
	}
	if uint64(count) >= math.MaxUint32 || uint64(stride) > math.MaxUint32 {
		return Layout{}, fmt.Errorf("%w: count=%d stride=%d", ErrInvalidSize, count, stride)
	}

	total, ok := buf.MulOverflowSafe(count, stride)
	if ok {
		total, ok = buf.AddOverflowSafe(total, meta)
	}
	if !ok {
		return Layout{}, fmt.Errorf("%w: block size overflows (count=%d stride=%d)",
			ErrInvalidSize, count, stride)
	}

	return Layout{
		Chunk:      chunk,
		Align:      align,
		Count:      count,
		Meta:       meta,
		Prefix:     prefix,
		Stride:     stride,
		BlockBytes: total,
	}, nil
}
