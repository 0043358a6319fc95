package api

import "unsafe"

// Allocator interface for custom memory management.
type Allocator interface {
	// Alloc allocate a chunk of `n` bytes. Allocated memory is always
	// aligned to the pointer width. Returns nil when no free chunk of
	// `n` bytes is available.
	Alloc(n int64) unsafe.Pointer

	// Allocalign like Alloc, with the chunk aligned to `align` bytes,
	// a power of two.
	Allocalign(align, n int64) unsafe.Pointer

	// Realloc resize the chunk at ptr to `n` bytes, in place when the
	// neighbouring space allows, else by moving the contents to a
	// fresh chunk. A nil ptr behaves like Alloc, a zero `n` behaves
	// like Free. Returns nil, leaving ptr valid, when `n` bytes cannot
	// be served.
	Realloc(ptr unsafe.Pointer, n int64) unsafe.Pointer

	// Free chunk back to the allocator. Returns false when ptr is nil
	// or was not allocated by this allocator.
	Free(ptr unsafe.Pointer) bool

	// Chunklen return the length of the chunk usable by application.
	Chunklen(ptr unsafe.Pointer) int64

	// Info of memory accounting for this allocator.
	Info() (capacity, allocated, available int64)

	// Release the allocator and all its resources.
	Release()
}

// Upstream supplies and reclaims the raw byte range backing an
// allocator, called exactly once each across the allocator's lifetime.
type Upstream interface {
	// Alloc obtain a buffer of `n` bytes, nil when it cannot be
	// served.
	Alloc(n int64) unsafe.Pointer

	// Free return a buffer previously obtained from this upstream.
	Free(ptr unsafe.Pointer, n int64)
}
