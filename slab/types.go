package slab

import "fmt"

// Ref is a generation-checked handle to a chunk: the owning block id, the slot
// index inside that block, and the slot generation at the time the chunk was
// handed out. The zero Ref is the null handle.
type Ref struct {
	block uint32
	slot  uint32
	gen   uint32
}

// IsZero reports whether r is the null handle.
func (r Ref) IsZero() bool { return r.block == 0 }

// Block returns the id of the owning block.
func (r Ref) Block() uint32 { return r.block }

// Slot returns the slot index inside the owning block.
func (r Ref) Slot() uint32 { return r.slot }

// Gen returns the slot generation the handle was issued for.
func (r Ref) Gen() uint32 { return r.gen }

func (r Ref) String() string {
	if r.IsZero() {
		return "nil"
	}
	return fmt.Sprintf("blk#%d/slot#%d@gen%d", r.block, r.slot, r.gen)
}

// Counter is a snapshot of pool usage.
type Counter struct {
	// Generated is the cumulative number of blocks ever generated. It never
	// decreases, release included.
	Generated int `json:"generated"`
	// Blocks is the number of live blocks (generated and not yet released).
	Blocks int `json:"blocks"`
	// Chunks is the number of chunks currently handed out.
	Chunks int `json:"chunks"`
}

// Stats holds call accounting for testing and instrumentation.
type Stats struct {
	AllocCalls      int `json:"alloc_calls"`
	AllocFastPath   int `json:"alloc_fast_path"`   // served by a usable block
	AllocReused     int `json:"alloc_reused"`      // served by reviving a freeable block
	AllocSlowPath   int `json:"alloc_slow_path"`   // required a new block
	AllocFailures   int `json:"alloc_failures"`    // backing allocation failed
	FreeCalls       int `json:"free_calls"`        // successful frees
	FreeRejected    int `json:"free_rejected"`     // nil, foreign, bad or stale references
	BlocksGenerated int `json:"blocks_generated"`  // same as Counter.Generated
	BlocksReleased  int `json:"blocks_released"`   // returned to the backing by Release
	Usable          int `json:"usable"`            // current usable queue length
	Freeable        int `json:"freeable"`          // current freeable queue length
}

// Layout describes how one block is carved into chunks. All sizes are bytes.
type Layout struct {
	Chunk      int `json:"chunk"`       // padded chunk size
	Align      int `json:"align"`       // chunk alignment, power of two
	Count      int `json:"count"`       // chunks per block
	Meta       int `json:"meta"`        // block header, rounded to Align
	Prefix     int `json:"prefix"`      // chunk header area in front of each chunk
	Stride     int `json:"stride"`      // distance between consecutive chunks
	BlockBytes int `json:"block_bytes"` // total backing request per block
}

// Overhead returns the bytes of each block not available to callers.
func (l Layout) Overhead() int {
	return l.BlockBytes - l.Count*l.Chunk
}
