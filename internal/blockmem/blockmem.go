// Package blockmem supplies the raw memory behind heap blocks.
//
// Block memory lives outside the Go heap where the platform allows it
// (anonymous mmap on unix, VirtualAlloc on windows) so that a heap of many
// 32 KiB blocks does not inflate the Go collector's working set. It only
// ever holds plain bytes; no Go pointers are stored in it.
package blockmem

import (
	"errors"
	"fmt"
)

// ErrSize indicates a non-positive mapping size.
var ErrSize = errors.New("blockmem: size must be positive")

// Anonymous maps zeroed, private, read-write memory. The zero value is ready
// to use.
type Anonymous struct{}

// Map returns size bytes of zeroed memory and a function that releases it.
// The release function is idempotent.
func (Anonymous) Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("%w (got %d)", ErrSize, size)
	}
	return mapAnon(size)
}

// GoHeap serves block memory from ordinary Go slices. Useful on platforms
// without anonymous mappings and in tests that want deterministic memory.
type GoHeap struct{}

// Map returns a fresh zeroed slice; its release function is a no-op.
func (GoHeap) Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("%w (got %d)", ErrSize, size)
	}
	return make([]byte, size), func() error { return nil }, nil
}
