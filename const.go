package tlsf

// ptrSize is the pointer width in bytes, 4 on 32-bit targets and 8 on
// 64-bit targets. Sizing constants below derive from it, so a single
// build covers both widths.
const ptrSize = 4 << (^uintptr(0) >> 63)

const (
	// all payload sizes and addresses are aligned to the pointer width.
	alignSizeLog2 = 2 + ptrSize>>3
	alignSize     = 1 << alignSizeLog2

	// log2 of the largest serviceable block, 2^30 on 32-bit targets
	// and 2^32 on 64-bit targets.
	flIndexMax = 28 + ptrSize>>1

	// log2 of number of linear subdivisions of block sizes within a
	// first level class, values of 4-5 typical.
	slIndexCountLog2 = 5
	slIndexCount     = 1 << slIndexCountLog2

	// Because second level lists linearly subdivide a first level
	// class, first level classes below slIndexCount*alignSize would
	// split into more slots than there are distinct sizes. Sizes below
	// smallBlockSize all file under first level index 0.
	flIndexShift   = slIndexCountLog2 + alignSizeLog2
	flIndexCount   = flIndexMax - flIndexShift + 1
	smallBlockSize = 1 << flIndexShift
)

const (
	// the two low bits of the size word carry the block status. Sizes
	// are multiples of alignSize so the bits never collide with them.
	blockFreeBit     uintptr = 1 << 0
	blockPrevFreeBit uintptr = 1 << 1
	blockFlagBits            = blockFreeBit | blockPrevFreeBit

	// only the size word is visible while a block is in use, the
	// prevPhys slot overlaps the tail of the preceding block's payload
	// and the free links overlap the head of this block's payload.
	blockHeaderOverhead = ptrSize
	blockStartOffset    = 2 * ptrSize

	// a free block must hold the size word and the two free links.
	blockSizeMin uintptr = 3 * ptrSize
	blockSizeMax uintptr = 1 << flIndexMax

	// buffer bytes not usable as payload: the leading word holding the
	// first block's never-read prevPhys slot, the first size word and
	// the trailing sentinel header.
	poolOverhead = blockStartOffset + blockHeaderOverhead
)

// Alignment baseline alignment, in bytes, of every pointer returned by
// the pool. Requests for stricter alignment go through Allocalign.
const Alignment = int64(alignSize)

// Maxpoolsize maximum size of a single pool's backing buffer, also the
// upper bound on a single allocation.
const Maxpoolsize = int64(blockSizeMax)

// Minpoolsize smallest backing buffer that still leaves room for one
// allocatable block next to the pool overhead.
const Minpoolsize = int64(poolOverhead) + int64(blockSizeMin)
