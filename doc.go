// Package tlsf supplies a Two-Level Segregated Fit memory pool for
// applications that need dynamic allocation with a bounded worst case,
// with a limited scope:
//
//  * Types and Functions exported by this package are not thread safe,
//    use SynchronizedResource to serialize calls with a mutex.
//  * A pool manages a single contiguous buffer obtained from an
//    upstream source when the pool is created, the buffer never grows.
//  * Allocation, deallocation and reallocation cost a fixed number of
//    bit and pointer operations, independent of pool size and of the
//    number of live allocations. A reallocation that moves the block
//    also copies its contents.
//  * Memory returned by the pool is always aligned to the pointer
//    width, larger alignments can be requested with Allocalign.
//  * There is no pointer re-write, blocks are never relocated or
//    defragmented behind the application's back.
//
// Free blocks are segregated by size into a two level table, first
// level by power of two, second level by linear subdivision. Two
// bitmaps summarise table occupancy so that a good fit is found with
// two find-first-set lookups. Physically adjacent free blocks are
// coalesced eagerly on free.
package tlsf
