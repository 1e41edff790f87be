//go:build !unix && !windows

// Package mmap provides platform-specific helpers for anonymous page mappings
// used as slab backing storage.
package mmap

import "fmt"

// Supported reports whether Map returns real page mappings on this platform.
const Supported = false

// Map allocates size bytes on the Go heap when mmap is not available.
func Map(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	return make([]byte, size), nil
}

// Unmap is a no-op; the garbage collector reclaims the slice.
func Unmap([]byte) error { return nil }
