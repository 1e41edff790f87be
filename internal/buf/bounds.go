package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds two non-negative sizes, returning ok = false when
// either is negative or the sum would overflow int.
func AddOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 || a > math.MaxInt-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies two non-negative sizes, returning ok = false
// when either is negative or the product would overflow int.
// Used for count * stride when sizing blocks.
func MulOverflowSafe(a, b int) (int, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a != 0 && b > math.MaxInt/a {
		return 0, false
	}
	return a * b, true
}

// CheckSlotBounds validates that count slots of stride bytes fit in a buffer
// of bufLen bytes starting at offset, and returns the end offset.
//
//	end, err := buf.CheckSlotBounds(len(mem), meta, count, stride)
//	if err != nil {
//	    return fmt.Errorf("block: %w", err)
//	}
func CheckSlotBounds(bufLen, offset, count, stride int) (int, error) {
	if offset < 0 || count < 0 || stride < 0 {
		return 0, fmt.Errorf("negative slot geometry: offset=%d count=%d stride=%d", offset, count, stride)
	}
	size, ok := MulOverflowSafe(count, stride)
	if !ok {
		return 0, fmt.Errorf("overflow: count=%d * stride=%d", count, stride)
	}
	end, ok := AddOverflowSafe(offset, size)
	if !ok {
		return 0, fmt.Errorf("overflow: offset=%d + size=%d", offset, size)
	}
	if end > bufLen {
		return 0, fmt.Errorf("bounds: end=%d > len=%d", end, bufLen)
	}
	return end, nil
}

// Slice returns b[off:off+n] if it fits within len(b).
func Slice(b []byte, off, n int) ([]byte, bool) {
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > len(b) {
		return nil, false
	}
	return b[off:end], true
}

// Has reports whether b[off:off+n] is within bounds.
func Has(b []byte, off, n int) bool {
	_, ok := Slice(b, off, n)
	return ok
}
