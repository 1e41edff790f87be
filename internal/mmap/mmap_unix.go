//go:build unix

// Package mmap provides platform-specific helpers for anonymous page mappings
// used as slab backing storage.
package mmap

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Supported reports whether Map returns real page mappings on this platform.
const Supported = true

// Map returns a private, anonymous, read-write mapping of size bytes.
// The mapping is page aligned and zero filled.
func Map(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("mmap: map %d bytes: %w", size, err)
	}
	return data, nil
}

// Unmap releases a mapping returned by Map.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}
