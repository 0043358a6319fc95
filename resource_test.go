package tlsf

import "testing"
import "unsafe"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

func TestResourceAllocate(t *testing.T) {
	res := NewResource(testpoolsize, Defaultsettings())
	require.NotNil(t, res)
	defer res.Release()

	ptr := res.Allocate(1024, Alignment)
	require.NotNil(t, ptr)
	assert.Equal(t, uintptr(0), uintptr(ptr)&uintptr(Alignment-1))
	res.Deallocate(ptr, 1024, Alignment)
	res.pool.Validate()

	// alignments above the baseline route through Allocalign.
	ptr = res.Allocate(100, 4096)
	require.NotNil(t, ptr)
	assert.Equal(t, uintptr(0), uintptr(ptr)&4095)
	res.Deallocate(ptr, 100, 4096)
	res.pool.Validate()

	// zero byte requests stay nil without panicking.
	assert.Nil(t, res.Allocate(0, Alignment))
}

func TestResourceExhausted(t *testing.T) {
	res := NewResource(Minpoolsize+1024, Defaultsettings())
	require.NotNil(t, res)
	defer res.Release()
	assert.Nil(t, res.Upstream())

	// without an upstream, exhaustion panics.
	assert.PanicsWithValue(t, ErrorOutofMemory, func() {
		res.Allocate(testpoolsize, Alignment)
	})
}

func TestResourceSpill(t *testing.T) {
	spill := NewPool(testpoolsize, Defaultsettings())
	require.NotNil(t, spill)
	defer spill.Release()

	small := NewPool(Minpoolsize+2048, Defaultsettings())
	require.NotNil(t, small)
	res := NewResourceWith(small, spill)
	defer res.Release()

	// a request beyond the small pool spills upstream.
	ptr := res.Allocate(64*1024, Alignment)
	require.NotNil(t, ptr)
	assert.False(t, small.Free(ptr))
	assert.Equal(t, int64(64*1024), spill.Chunklen(ptr))

	// deallocation routes back to the owner.
	res.Deallocate(ptr, 64*1024, Alignment)
	_, allocated, _ := spill.Info()
	assert.Equal(t, int64(0), allocated)
	small.Validate()
	spill.Validate()

	// aligned spills keep their alignment.
	ptr = res.Allocate(32*1024, 8192)
	require.NotNil(t, ptr)
	assert.Equal(t, uintptr(0), uintptr(ptr)&8191)
	res.Deallocate(ptr, 32*1024, 8192)
	spill.Validate()
}

func TestResourceIsEqual(t *testing.T) {
	pool := NewPool(testpoolsize, Defaultsettings())
	require.NotNil(t, pool)
	defer pool.Release()

	res1 := NewResourceWith(pool, nil)
	res2 := NewResourceWith(pool, nil)
	res3 := NewResource(testpoolsize, Defaultsettings())
	defer res3.Release()

	assert.True(t, res1.IsEqual(res2), "same pool, interchangeable")
	assert.True(t, res1.IsEqual(res1))
	assert.False(t, res1.IsEqual(res3), "distinct pools")
	assert.False(t, res1.IsEqual(nil))

	sres1 := NewSynchronizedResourceWith(res1)
	sres2 := NewSynchronizedResourceWith(res2)
	assert.True(t, sres1.IsEqual(sres2))
	assert.False(t, sres1.IsEqual(nil))
}

func TestResourceRoundtrip(t *testing.T) {
	res := NewResource(testpoolsize, Defaultsettings())
	require.NotNil(t, res)
	defer res.Release()

	ptrs := make([]unsafe.Pointer, 0, 128)
	for i := 0; i < 128; i++ {
		ptr := res.Allocate(int64(64+i*8), Alignment)
		require.NotNil(t, ptr)
		ptrs = append(ptrs, ptr)
	}
	res.pool.Validate()
	for _, ptr := range ptrs {
		res.Deallocate(ptr, 0, Alignment)
	}
	res.pool.Validate()
	n, _ := res.pool.countfree()
	assert.Equal(t, 1, n, "pool should coalesce back to one block")
}
