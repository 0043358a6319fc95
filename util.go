package tlsf

import "errors"
import "fmt"

import "github.com/bnclabs/tlsf/lib"

// ErrorOutofMemory no free block can satisfy the request and there is
// no upstream allocator to spill to.
var ErrorOutofMemory = errors.New("tlsf.outofmemory")

// alignUp rounds x up to the next multiple of align, a power of two.
func alignUp(x, align uintptr) uintptr {
	assertf(align&(align-1) == 0, "must align to a power of two")
	return (x + (align - 1)) &^ (align - 1)
}

// alignDown rounds x down to the previous multiple of align, a power
// of two.
func alignDown(x, align uintptr) uintptr {
	assertf(align&(align-1) == 0, "must align to a power of two")
	return x - (x & (align - 1))
}

// adjustRequestSize size as the pool will actually serve it: rounded
// up to align and to the minimum block footprint. Returns 0 when size
// is 0 or when the aligned size reaches blockSizeMax.
func adjustRequestSize(size, align uintptr) uintptr {
	if size == 0 || size >= blockSizeMax {
		return 0
	}
	aligned := alignUp(size, align)
	if aligned >= blockSizeMax {
		return 0
	}
	if aligned < blockSizeMin {
		aligned = blockSizeMin
	}
	return aligned
}

// mappingInsert compute the first and second level index of the free
// list that holds blocks of exactly this size class.
func mappingInsert(size uintptr) (fl, sl int) {
	if size < smallBlockSize {
		// all small blocks file under the first level zero.
		fl = 0
		sl = int(size) / (smallBlockSize / slIndexCount)
		return fl, sl
	}
	f := lib.Flsuint(size)
	sl = int(size>>(uint(f)-slIndexCountLog2)) ^ slIndexCount
	fl = f - (flIndexShift - 1)
	return fl, sl
}

// mappingSearch like mappingInsert, but rounds the request up to the
// next class boundary first, so that any block found at or after the
// returned index satisfies the request without a size comparison.
func mappingSearch(size uintptr) (fl, sl int) {
	if size >= smallBlockSize {
		round := uintptr(1)<<(uint(lib.Flsuint(size))-slIndexCountLog2) - 1
		size += round
	}
	return mappingInsert(size)
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
