package tlsf

import "sync"
import "unsafe"

import "github.com/bnclabs/tlsf/api"
import s "github.com/bnclabs/gosettings"

// SynchronizedResource serializes Resource calls with a mutex, for use
// from multiple goroutines. Note that mutual exclusion undermines the
// bounded latency of the underlying pool: a blocked caller waits for
// the owner of the lock. Latency sensitive applications may prefer one
// Resource per goroutine over a shared upstream.
//
// The mutex is held across each whole call, including a spill to the
// upstream allocator, but it is private to this resource: an upstream
// shared between resources must be safe on its own.
type SynchronizedResource struct {
	mu  sync.Mutex
	res *Resource
}

// NewSynchronizedResource create a synchronized resource over a fresh
// pool of `poolsize` bytes, nil when the pool cannot be constructed.
func NewSynchronizedResource(poolsize int64, setts s.Settings) *SynchronizedResource {
	res := NewResource(poolsize, setts)
	if res == nil {
		return nil
	}
	return &SynchronizedResource{res: res}
}

// NewSynchronizedResourceWith wrap an existing resource.
func NewSynchronizedResourceWith(res *Resource) *SynchronizedResource {
	return &SynchronizedResource{res: res}
}

// Allocate `bytes` of memory aligned to `align`.
func (sres *SynchronizedResource) Allocate(bytes, align int64) unsafe.Pointer {
	sres.mu.Lock()
	ptr := sres.res.Allocate(bytes, align)
	sres.mu.Unlock()
	return ptr
}

// Deallocate memory obtained through Allocate.
func (sres *SynchronizedResource) Deallocate(ptr unsafe.Pointer, bytes, align int64) {
	sres.mu.Lock()
	sres.res.Deallocate(ptr, bytes, align)
	sres.mu.Unlock()
}

// IsEqual two synchronized resources are interchangeable only when
// they manage the same backing buffer.
func (sres *SynchronizedResource) IsEqual(other *SynchronizedResource) bool {
	return other != nil && sres.res.IsEqual(other.res)
}

// Upstream the allocator exhausted requests spill to, nil when none.
func (sres *SynchronizedResource) Upstream() api.Allocator {
	return sres.res.Upstream()
}

// Release the underlying pool.
func (sres *SynchronizedResource) Release() {
	sres.mu.Lock()
	sres.res.Release()
	sres.mu.Unlock()
}
