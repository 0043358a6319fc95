// Functions and methods are not thread safe.

package tlsf

import "fmt"
import "unsafe"

import "github.com/bnclabs/tlsf/api"
import "github.com/bnclabs/tlsf/lib"
import "github.com/bnclabs/golog"
import s "github.com/bnclabs/gosettings"
import humanize "github.com/dustin/go-humanize"

// Pool manages a single contiguous buffer as a physical chain of
// variable sized blocks, with free blocks segregated into two level
// size classed lists. Alloc, Allocalign and Free run in a bounded
// number of bit and pointer steps; Realloc adds a copy when it moves
// the block, and Validate walks the whole pool.
type Pool struct {
	// nullBlock marks the end of every free list. Pointing here, and
	// not at nil, keeps the list splicing branch free. It must always
	// self-loop.
	nullBlock blockHeader

	// bit i of flBitmap is set iff some list under first level i is
	// non-empty; bit j of slBitmap[i] is set iff heads[i][j] is
	// non-empty.
	flBitmap uint32
	slBitmap [flIndexCount]uint32
	heads    [flIndexCount][slIndexCount]*blockHeader

	base      unsafe.Pointer // backing buffer, alignSize aligned
	capacity  int64          // backing buffer size in bytes
	poolbytes int64          // usable payload in the initial free block
	allocated int64          // payload bytes currently handed out

	upstream api.Upstream

	// settings
	setts     s.Settings
	logprefix string
}

// NewPool create a pool over a fresh `poolsize` byte buffer obtained
// from the upstream named by the settings. Returns nil, without
// leaking the buffer, if the buffer cannot be obtained, is misaligned,
// or `poolsize` leaves no usable payload range.
func NewPool(poolsize int64, setts s.Settings) *Pool {
	setts = make(s.Settings).Mixin(Defaultsettings(), setts)
	var upstream api.Upstream
	switch name := setts.String("upstream"); name {
	case "malloc":
		upstream = mallocUpstream{}
	case "heap":
		upstream = newheapUpstream()
	default:
		panicerr("invalid upstream setting %q", name)
	}
	return NewPoolWith(poolsize, upstream, setts)
}

// NewPoolWith like NewPool, with the backing buffer obtained from the
// supplied upstream.
func NewPoolWith(poolsize int64, upstream api.Upstream, setts s.Settings) *Pool {
	pool := &Pool{
		capacity:  poolsize,
		upstream:  upstream,
		setts:     setts,
		logprefix: fmt.Sprintf("TLSF [%v]", humanize.Bytes(uint64(poolsize))),
	}
	if poolsize < Minpoolsize || poolsize > Maxpoolsize {
		fmsg := "%v poolsize must be between %v and %v bytes\n"
		log.Errorf(fmsg, pool.logprefix, Minpoolsize, Maxpoolsize)
		return nil
	}
	if _, _, free := getsysmem(); uint64(poolsize) > free {
		fmsg := "%v poolsize exceeds free system memory %v\n"
		log.Warnf(fmsg, pool.logprefix, humanize.Bytes(free))
	}

	buf := upstream.Alloc(poolsize)
	if buf == nil {
		log.Errorf("%v upstream failed for %v bytes\n", pool.logprefix, poolsize)
		return nil
	}
	if uintptr(buf)&(alignSize-1) != 0 {
		upstream.Free(buf, poolsize)
		log.Errorf("%v upstream buffer not %v byte aligned\n", pool.logprefix, alignSize)
		return nil
	}
	poolbytes := alignDown(uintptr(poolsize)-poolOverhead, alignSize)
	if poolbytes < blockSizeMin || poolbytes >= blockSizeMax {
		upstream.Free(buf, poolsize)
		log.Errorf("%v no usable payload range in %v bytes\n", pool.logprefix, poolsize)
		return nil
	}
	pool.base, pool.poolbytes = buf, int64(poolbytes)

	pool.nullBlock.nextFree = &pool.nullBlock
	pool.nullBlock.prevFree = &pool.nullBlock
	for fl := 0; fl < flIndexCount; fl++ {
		for sl := 0; sl < slIndexCount; sl++ {
			pool.heads[fl][sl] = &pool.nullBlock
		}
	}

	// Install the initial free block at the buffer's base. Its
	// prevPhys slot occupies the first word and is never read, the
	// block is created with prev marked used.
	block := offsetToBlock(buf, 0)
	block.setsize(poolbytes)
	block.setfree()
	block.setprevused()
	pool.blockInsert(block)

	// Terminate the chain with a zero size sentinel, so that walking
	// forward from any block lands on a header inside the buffer.
	sentinel := block.linkNext()
	sentinel.setsize(0)
	sentinel.setused()
	sentinel.setprevfree()

	log.Infof("%v created with capacity %v\n", pool.logprefix, poolsize)
	return pool
}

//---- operations

// Alloc implement api.Allocator{} interface.
func (pool *Pool) Alloc(n int64) unsafe.Pointer {
	if pool.base == nil {
		panicerr("pool released")
	}
	adjust := adjustRequestSize(uintptr(n), alignSize)
	if adjust == 0 {
		return nil
	}
	return pool.prepareUsed(pool.locateFree(adjust), adjust)
}

// Allocalign implement api.Allocator{} interface. The pool reserves
// enough slack to slide the payload up to the requested boundary; when
// the slack before the aligned payload can hold a free block it is
// trimmed off and returned to the pool, otherwise the payload advances
// to the next boundary so that it can.
func (pool *Pool) Allocalign(align, n int64) unsafe.Pointer {
	if pool.base == nil {
		panicerr("pool released")
	}
	assertf(align > 0 && align&(align-1) == 0, "align %v not a power of two", align)

	adjust := adjustRequestSize(uintptr(n), alignSize)

	// The slack must be at least a full header, because the block
	// preceding the aligned payload is in use: its prevPhys slot is
	// dead and the gap cannot be given to it by resizing.
	gapMinimum := uintptr(unsafe.Sizeof(blockHeader{}))
	sizeWithGap := adjustRequestSize(adjust+uintptr(align)+gapMinimum, uintptr(align))

	aligned := adjust
	if adjust != 0 && uintptr(align) > alignSize {
		aligned = sizeWithGap
	}

	block := pool.locateFree(aligned)
	if block != nil {
		ptr := uintptr(block.payload())
		alignedptr := alignUp(ptr, uintptr(align))
		gap := alignedptr - ptr
		if gap != 0 && gap < gapMinimum {
			offset := gapMinimum - gap
			if uintptr(align) > offset {
				offset = uintptr(align)
			}
			alignedptr = alignUp(alignedptr+offset, uintptr(align))
			gap = alignedptr - ptr
		}
		if gap != 0 {
			assertf(gap >= gapMinimum, "gap %v too small", gap)
			block = pool.trimFreeLeading(block, gap)
		}
	}
	return pool.prepareUsed(block, adjust)
}

// Realloc implement api.Allocator{} interface. The block grows in
// place when the physically next block is free and large enough,
// otherwise the contents move to a fresh chunk and the old chunk is
// freed. Shrinking trims the tail back to the pool.
func (pool *Pool) Realloc(ptr unsafe.Pointer, n int64) unsafe.Pointer {
	if pool.base == nil {
		panicerr("pool released")
	}
	if ptr != nil && n == 0 {
		pool.Free(ptr)
		return nil
	} else if ptr == nil {
		return pool.Alloc(n)
	}

	block := fromPayload(ptr)
	next := block.next()
	cursize := block.getsize()
	combined := cursize + next.getsize() + blockHeaderOverhead
	adjust := adjustRequestSize(uintptr(n), alignSize)
	if adjust == 0 { // request too large, leave the original intact
		return nil
	}
	assertf(!block.isfree(), "block already marked as free")

	if adjust > cursize && (!next.isfree() || adjust > combined) {
		p := pool.Alloc(n)
		if p != nil {
			minsize := cursize
			if uintptr(n) < minsize {
				minsize = uintptr(n)
			}
			lib.Memcpy(p, ptr, int(minsize))
			pool.Free(ptr)
		}
		return p
	}

	pool.allocated -= int64(cursize)
	if adjust > cursize {
		pool.mergeNext(block)
		block.markAsUsed()
	}
	pool.trimUsed(block, adjust)
	pool.allocated += int64(block.getsize())
	return ptr
}

// Free implement api.Allocator{} interface. Returns false for a nil
// ptr and for pointers outside the backing buffer, which a caller
// layer may then route to its own upstream.
func (pool *Pool) Free(ptr unsafe.Pointer) bool {
	if pool.base == nil {
		panicerr("pool released")
	}
	if ptr == nil {
		return false
	}
	block := fromPayload(ptr)
	base := uintptr(pool.base)
	if addr := uintptr(unsafe.Pointer(block)); addr < base || uintptr(ptr) >= base+uintptr(pool.capacity) {
		return false
	}
	assertf(!block.isfree(), "block already marked as free")
	pool.allocated -= int64(block.getsize())
	block.markAsFree()
	block = pool.mergePrev(block)
	block = pool.mergeNext(block)
	pool.blockInsert(block)
	return true
}

// Release implement api.Allocator{} interface. Returns the backing
// buffer to the upstream, exactly once; on a released pool Alloc,
// Allocalign, Realloc, Free and Validate panic.
func (pool *Pool) Release() {
	if pool.base == nil {
		return
	}
	log.Infof("%v released, allocated %v\n", pool.logprefix, pool.allocated)
	pool.upstream.Free(pool.base, pool.capacity)
	pool.base, pool.allocated = nil, 0
	pool.flBitmap, pool.slBitmap = 0, [flIndexCount]uint32{}
}

//---- statistics and maintenance

// Chunklen implement api.Allocator{} interface.
func (pool *Pool) Chunklen(ptr unsafe.Pointer) int64 {
	return int64(fromPayload(ptr).getsize())
}

// Info implement api.Allocator{} interface. `capacity` is the usable
// payload range, `allocated` the payload bytes handed out, `available`
// their difference; fragmentation and per block overhead can make an
// allocation of `available` bytes fail.
func (pool *Pool) Info() (capacity, allocated, available int64) {
	return pool.poolbytes, pool.allocated, pool.poolbytes - pool.allocated
}

// IsAllocated whether the pool still owns its backing buffer.
func (pool *Pool) IsAllocated() bool {
	return pool.base != nil
}

// Eq whether both pools manage the same backing buffer.
func (pool *Pool) Eq(other *Pool) bool {
	return other != nil && pool.base == other.base && pool.base != nil
}

func (pool *Pool) String() string {
	capacity, allocated, available := pool.Info()
	return fmt.Sprintf(
		"%v capacity:%v allocated:%v available:%v",
		pool.logprefix, humanize.Bytes(uint64(capacity)),
		humanize.Bytes(uint64(allocated)), humanize.Bytes(uint64(available)))
}

// Validate walk the physical chain, the segregated lists and the
// bitmaps, panic on any broken invariant. Cost is linear in the number
// of blocks, meant for tests and debugging.
func (pool *Pool) Validate() {
	if pool.base == nil {
		panicerr("pool released")
	}
	nullblock := &pool.nullBlock
	if nullblock.nextFree != nullblock || nullblock.prevFree != nullblock {
		panicerr("null block must self loop")
	}

	infree := make(map[*blockHeader]bool)
	for fl := 0; fl < flIndexCount; fl++ {
		nonempty := 0
		for sl := 0; sl < slIndexCount; sl++ {
			head := pool.heads[fl][sl]
			if x, y := pool.slBitmap[fl]&(1<<uint(sl)) != 0, head != nullblock; x != y {
				panicerr("sl bitmap (%v,%v) disagrees with its list", fl, sl)
			}
			if head != nullblock {
				nonempty++
			}
			prev := nullblock
			for block := head; block != nullblock; block = block.nextFree {
				if !block.isfree() {
					panicerr("used block in free list (%v,%v)", fl, sl)
				}
				if block.prevFree != prev {
					panicerr("free list back link broken at (%v,%v)", fl, sl)
				}
				if f, s := mappingInsert(block.getsize()); f != fl || s != sl {
					fmsg := "block of size %v filed under (%v,%v) instead of (%v,%v)"
					panicerr(fmsg, block.getsize(), fl, sl, f, s)
				}
				infree[block] = true
				prev = block
			}
		}
		if int(lib.Bit32(pool.slBitmap[fl]).Ones()) != nonempty {
			panicerr("sl bitmap %v population disagrees with its lists", fl)
		}
		if x, y := pool.flBitmap&(1<<uint(fl)) != 0, pool.slBitmap[fl] != 0; x != y {
			panicerr("fl bitmap bit %v disagrees with sl bitmap", fl)
		}
	}

	block, prevfree := offsetToBlock(pool.base, 0), false
	var prev *blockHeader
	for !block.islast() {
		if block.isprevfree() != prevfree {
			panicerr("prev-free flag out of sync on the chain")
		}
		if prevfree && block.prevPhys != prev {
			panicerr("prevPhys link broken on the chain")
		}
		if uintptr(block.payload())&(alignSize-1) != 0 {
			panicerr("payload misaligned on the chain")
		}
		if block.isfree() {
			if prevfree {
				panicerr("adjacent free blocks on the chain")
			}
			if !infree[block] {
				panicerr("free block of size %v missing from its list", block.getsize())
			}
			delete(infree, block)
			if size := block.getsize(); size < blockSizeMin || size >= blockSizeMax {
				panicerr("free block size %v out of bounds", size)
			}
		}
		prev, prevfree = block, block.isfree()
		block = offsetToBlock(block.payload(), block.getsize()-blockHeaderOverhead)
	}
	if block.isprevfree() != prevfree {
		panicerr("prev-free flag out of sync on the sentinel")
	}
	if len(infree) > 0 {
		panicerr("%v listed free blocks not on the chain", len(infree))
	}
}

//---- local functions

// locateFree detach a block of at least `size` payload bytes from the
// good fit class, nil when the pool is exhausted for that size.
func (pool *Pool) locateFree(size uintptr) *blockHeader {
	var block *blockHeader
	var fl, sl int
	if size > 0 {
		fl, sl = mappingSearch(size)
		if fl < flIndexCount {
			block = pool.searchSuitableBlock(&fl, &sl)
		}
	}
	if block != nil {
		assertf(block.getsize() >= size, "located block too small")
		pool.removeFreeBlock(block, fl, sl)
	}
	return block
}

// prepareUsed trim the block down to `size`, mark it used and hand out
// its payload.
func (pool *Pool) prepareUsed(block *blockHeader, size uintptr) unsafe.Pointer {
	if block == nil {
		return nil
	}
	assertf(size != 0, "size must be non-zero")
	pool.trimFree(block, size)
	block.markAsUsed()
	pool.allocated += int64(block.getsize())
	return block.payload()
}

// searchSuitableBlock head of the first non-empty list at or after
// (fl,sl), per the two bitmaps. fl and sl are updated to the list the
// block came from.
func (pool *Pool) searchSuitableBlock(fl, sl *int) *blockHeader {
	slmap := pool.slBitmap[*fl] & (^uint32(0) << uint(*sl))
	if slmap == 0 {
		// no block at or after sl in this class, move up a class.
		flmap := pool.flBitmap & (^uint32(0) << uint(*fl+1))
		if flmap == 0 { // memory exhausted for this size
			return nil
		}
		*fl = lib.Bit32(flmap).Findfirstset()
		slmap = pool.slBitmap[*fl]
	}
	assertf(slmap != 0, "second level bitmap empty for a set first level bit")
	*sl = lib.Bit32(slmap).Findfirstset()
	return pool.heads[*fl][*sl]
}

// insertFreeBlock push block at the head of list (fl,sl) and set the
// summary bits.
func (pool *Pool) insertFreeBlock(block *blockHeader, fl, sl int) {
	current := pool.heads[fl][sl]
	assertf(current != nil, "free list head cannot be nil")
	assertf(block != nil, "cannot insert a nil block")
	block.nextFree = current
	block.prevFree = &pool.nullBlock
	current.prevFree = block
	assertf(
		uintptr(block.payload())&(alignSize-1) == 0,
		"block not aligned properly")

	pool.heads[fl][sl] = block
	pool.flBitmap |= 1 << uint(fl)
	pool.slBitmap[fl] |= 1 << uint(sl)
}

// removeFreeBlock splice block out of list (fl,sl) and clear the
// summary bits when the list empties.
func (pool *Pool) removeFreeBlock(block *blockHeader, fl, sl int) {
	prev, next := block.prevFree, block.nextFree
	assertf(prev != nil, "prevFree field cannot be nil")
	assertf(next != nil, "nextFree field cannot be nil")
	next.prevFree = prev
	prev.nextFree = next

	if pool.heads[fl][sl] == block {
		pool.heads[fl][sl] = next
		if next == &pool.nullBlock {
			pool.slBitmap[fl] &^= 1 << uint(sl)
			if pool.slBitmap[fl] == 0 {
				pool.flBitmap &^= 1 << uint(fl)
			}
		}
	}
}

// blockInsert file block under the list for its exact size class.
func (pool *Pool) blockInsert(block *blockHeader) {
	fl, sl := mappingInsert(block.getsize())
	pool.insertFreeBlock(block, fl, sl)
}

func (pool *Pool) blockRemove(block *blockHeader) {
	fl, sl := mappingInsert(block.getsize())
	pool.removeFreeBlock(block, fl, sl)
}

// trimFree return any trailing space over `size` to the pool.
func (pool *Pool) trimFree(block *blockHeader, size uintptr) {
	assertf(block.isfree(), "block must be free")
	if block.canSplit(size) {
		remaining := block.split(size)
		block.linkNext()
		remaining.setprevfree()
		pool.blockInsert(remaining)
	}
}

// trimUsed return any trailing space over `size` of a used block to
// the pool, coalescing the trimmed tail with the next block when that
// one is free.
func (pool *Pool) trimUsed(block *blockHeader, size uintptr) {
	assertf(!block.isfree(), "block must be used")
	if block.canSplit(size) {
		remaining := block.split(size)
		remaining.setprevused()
		remaining = pool.mergeNext(remaining)
		pool.blockInsert(remaining)
	}
}

// trimFreeLeading split off the leading `size` bytes as a standalone
// free block and return the trailing block. The caller guarantees the
// leading part can hold a full free footprint.
func (pool *Pool) trimFreeLeading(block *blockHeader, size uintptr) *blockHeader {
	remaining := block
	if block.canSplit(size) {
		remaining = block.split(size - blockHeaderOverhead)
		remaining.setprevfree()
		block.linkNext()
		pool.blockInsert(block)
	}
	return remaining
}

// mergePrev coalesce with the physically previous block if free.
func (pool *Pool) mergePrev(block *blockHeader) *blockHeader {
	if block.isprevfree() {
		prev := block.prevPhys
		assertf(prev != nil, "prev physical block cannot be nil")
		assertf(prev.isfree(), "prev block marked free but is not")
		pool.blockRemove(prev)
		block = prev.coalesce(block)
	}
	return block
}

// mergeNext coalesce with the physically next block if free.
func (pool *Pool) mergeNext(block *blockHeader) *blockHeader {
	next := block.next()
	if next.isfree() {
		assertf(!block.islast(), "sentinel cannot merge")
		pool.blockRemove(next)
		block = block.coalesce(next)
	}
	return block
}
