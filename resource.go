package tlsf

import "unsafe"

import "github.com/bnclabs/tlsf/api"
import s "github.com/bnclabs/gosettings"

// Resource adapts a Pool to the byte-and-alignment allocation surface
// container types program against. Requests whose alignment exceeds
// the pool's baseline route through Allocalign, the rest through
// Alloc. When the pool is exhausted the request spills to the upstream
// allocator, if one is configured.
//
// The resource is stateful, it must outlive every object whose memory
// it allocated.
type Resource struct {
	pool     *Pool
	upstream api.Allocator
}

// NewResource create a resource over a fresh pool of `poolsize` bytes,
// nil when the pool cannot be constructed.
func NewResource(poolsize int64, setts s.Settings) *Resource {
	pool := NewPool(poolsize, setts)
	if pool == nil {
		return nil
	}
	return &Resource{pool: pool}
}

// NewResourceWith create a resource over an existing pool. `upstream`
// may be nil, in which case exhaustion panics with ErrorOutofMemory.
func NewResourceWith(pool *Pool, upstream api.Allocator) *Resource {
	return &Resource{pool: pool, upstream: upstream}
}

// Upstream the allocator exhausted requests spill to, nil when none.
func (res *Resource) Upstream() api.Allocator {
	return res.upstream
}

// Allocate `bytes` of memory aligned to `align`.
func (res *Resource) Allocate(bytes, align int64) unsafe.Pointer {
	var ptr unsafe.Pointer
	if align > Alignment {
		ptr = res.pool.Allocalign(align, bytes)
	} else {
		ptr = res.pool.Alloc(bytes)
	}
	if ptr == nil && bytes > 0 {
		if res.upstream == nil {
			panic(ErrorOutofMemory)
		}
		if align > Alignment {
			return res.upstream.Allocalign(align, bytes)
		}
		return res.upstream.Alloc(bytes)
	}
	return ptr
}

// Deallocate memory obtained through Allocate. The block already knows
// its own size, `bytes` and `align` are accepted for interface
// symmetry. Pointers the pool does not own are routed to the upstream.
func (res *Resource) Deallocate(ptr unsafe.Pointer, bytes, align int64) {
	if res.pool.Free(ptr) == false && ptr != nil && res.upstream != nil {
		res.upstream.Free(ptr)
	}
}

// IsEqual two resources are interchangeable only when they manage the
// same backing buffer.
func (res *Resource) IsEqual(other *Resource) bool {
	return other != nil && res.pool.Eq(other.pool)
}

// Release the underlying pool. The upstream, if any, is left alone.
func (res *Resource) Release() {
	res.pool.Release()
}
