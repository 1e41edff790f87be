package format

// Alignment utilities for slab layout computation. All alignments are powers
// of two.

// Align returns n aligned up to the next multiple of a. a must be a power of two.
//
// Example:
//
//	Align(1, 8)   = 8
//	Align(8, 8)   = 8
//	Align(9, 8)   = 16
//	Align(96, 32) = 96
func Align(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// AlignPtr returns n aligned up to PointerSize.
func AlignPtr(n int) int {
	return Align(n, PointerSize)
}

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPow2 returns the smallest power of two >= n. NextPow2(0) is 1.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// NormalizeAlign rounds a up to the next power of two with a floor of
// PointerSize. Zero selects PointerSize.
//
// Example (64-bit):
//
//	NormalizeAlign(0)  = 8
//	NormalizeAlign(3)  = 8
//	NormalizeAlign(24) = 32
func NormalizeAlign(a int) int {
	if a < PointerSize {
		return PointerSize
	}
	return NextPow2(a)
}
