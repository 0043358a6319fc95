// Functions and methods are not thread safe.

package tlsf

//#include <stdlib.h>
import "C"

import "unsafe"

// mallocUpstream obtains the backing buffer from the host allocator,
// outside the go heap. This is the default upstream.
type mallocUpstream struct{}

func (u mallocUpstream) Alloc(n int64) unsafe.Pointer {
	if n <= 0 {
		return nil
	}
	return C.malloc(C.size_t(n))
}

func (u mallocUpstream) Free(ptr unsafe.Pointer, n int64) {
	C.free(ptr)
}

// heapUpstream carves the backing buffer out of the go heap, holding a
// reference so the buffer stays alive until Free.
type heapUpstream struct {
	bufs map[uintptr][]byte
}

func newheapUpstream() *heapUpstream {
	return &heapUpstream{bufs: make(map[uintptr][]byte)}
}

func (u *heapUpstream) Alloc(n int64) unsafe.Pointer {
	if n <= 0 {
		return nil
	}
	buf := make([]byte, n)
	ptr := unsafe.Pointer(&buf[0])
	u.bufs[uintptr(ptr)] = buf
	return ptr
}

func (u *heapUpstream) Free(ptr unsafe.Pointer, n int64) {
	delete(u.bufs, uintptr(ptr))
}
