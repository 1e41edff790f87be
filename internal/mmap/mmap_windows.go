//go:build windows

// Package mmap provides platform-specific helpers for anonymous page mappings
// used as slab backing storage.
package mmap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Supported reports whether Map returns real page mappings on this platform.
const Supported = true

// Map reserves and commits size bytes of read-write memory.
func Map(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("mmap: VirtualAlloc %d bytes: %w", size, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// Unmap releases memory returned by Map.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.VirtualFree(uintptr(unsafe.Pointer(&data[0])), 0, windows.MEM_RELEASE)
}
