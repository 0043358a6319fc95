package tlsf

import "unsafe"

// blockHeader is a view over a block's metadata inside the backing
// buffer. A block, free or used, starts with the prevPhys slot and the
// size word; the two free links exist only while the block is free:
//
//  * prevPhys is valid only if the preceding physical block is free,
//    otherwise the slot holds the tail of that block's payload.
//  * nextFree/prevFree are valid only if this block is free, otherwise
//    the slots hold the head of this block's payload.
//
// So the only overhead visible while a block is in use is the size
// word. The two low bits of the size word carry the status flags,
// see blockFreeBit and blockPrevFreeBit.
type blockHeader struct {
	prevPhys *blockHeader
	size     uintptr
	nextFree *blockHeader
	prevFree *blockHeader
}

// offsetToBlock view the bytes at ptr+offset as a block header.
func offsetToBlock(ptr unsafe.Pointer, offset uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Add(ptr, offset))
}

// fromPayload recover the header from a pointer handed to the
// application.
func fromPayload(ptr unsafe.Pointer) *blockHeader {
	return (*blockHeader)(unsafe.Add(ptr, -blockStartOffset))
}

// payload the usable bytes, starting right after the size word.
func (block *blockHeader) payload() unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(block), blockStartOffset)
}

func (block *blockHeader) getsize() uintptr {
	return block.size &^ blockFlagBits
}

func (block *blockHeader) setsize(size uintptr) {
	// retain the two flag bits regardless of the new size.
	block.size = size | (block.size & blockFlagBits)
}

func (block *blockHeader) islast() bool {
	return block.getsize() == 0
}

func (block *blockHeader) isfree() bool {
	return block.size&blockFreeBit != 0
}

func (block *blockHeader) isprevfree() bool {
	return block.size&blockPrevFreeBit != 0
}

func (block *blockHeader) setfree()     { block.size |= blockFreeBit }
func (block *blockHeader) setused()     { block.size &^= blockFreeBit }
func (block *blockHeader) setprevfree() { block.size |= blockPrevFreeBit }
func (block *blockHeader) setprevused() { block.size &^= blockPrevFreeBit }

// next header of the physically next block, the size word right after
// this block's payload. Not meaningful on the sentinel.
func (block *blockHeader) next() *blockHeader {
	assertf(!block.islast(), "sentinel has no next block")
	return offsetToBlock(block.payload(), block.getsize()-blockHeaderOverhead)
}

// linkNext record this block in the successor's prevPhys slot, valid
// because the successor's slot overlaps this block's payload tail.
func (block *blockHeader) linkNext() *blockHeader {
	next := block.next()
	next.prevPhys = block
	return next
}

// markAsFree deliberately goes through linkNext: freeing a block both
// sets the successor's prev-free flag and records the back pointer the
// successor will follow when it coalesces backwards.
func (block *blockHeader) markAsFree() {
	next := block.linkNext()
	next.setprevfree()
	block.setfree()
}

func (block *blockHeader) markAsUsed() {
	next := block.next()
	next.setprevused()
	block.setused()
}

// canSplit whether a trailing remainder with a full free footprint
// fits behind the first `size` payload bytes.
func (block *blockHeader) canSplit(size uintptr) bool {
	return block.getsize() >= uintptr(unsafe.Sizeof(*block))+size
}

// split carve a free remainder out of the block's tail, leaving the
// block with exactly `size` payload bytes. Caller must have checked
// canSplit.
func (block *blockHeader) split(size uintptr) *blockHeader {
	remaining := offsetToBlock(block.payload(), size-blockHeaderOverhead)
	remainsize := block.getsize() - (size + blockHeaderOverhead)
	assertf(
		uintptr(remaining.payload())&(alignSize-1) == 0,
		"remaining block not aligned properly")
	remaining.setsize(remainsize)
	assertf(
		remaining.getsize() >= blockSizeMin,
		"block split with invalid (too small) size %v", remainsize)
	block.setsize(size)
	remaining.markAsFree()
	return remaining
}

// coalesce absorb the physically next block into this one. Flags are
// untouched, sizes are multiples of alignSize so the addition cannot
// reach the flag bits.
func (block *blockHeader) coalesce(next *blockHeader) *blockHeader {
	assertf(!block.islast(), "sentinel cannot coalesce")
	block.size += next.getsize() + blockHeaderOverhead
	block.linkNext()
	return block
}
