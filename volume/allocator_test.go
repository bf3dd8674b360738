package volume_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	fsim "github.com/anishh747/file-system-simulator"
	"github.com/anishh747/file-system-simulator/volume"
)

func TestNewAllocatorReservedBlocks(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)

	// One bitmap block covers 4096*8 = 32768 bits, more than enough for
	// 25600 blocks, so exactly block 0 and block 1 start out used.
	assert.EqualValues(t, 1, alloc.BitmapBlocks())
	assert.EqualValues(t, fsim.TotalBlocks, alloc.TotalBlocks())
	assert.True(t, alloc.IsBlockUsed(0))
	assert.True(t, alloc.IsBlockUsed(1))
	assert.False(t, alloc.IsBlockUsed(2))
	assert.EqualValues(t, 2, alloc.CountUsedBlocks())
	assert.EqualValues(t, fsim.TotalBlocks-2, alloc.CountFreeBlocks())
	assert.InDelta(t, 0.0078125, alloc.Utilization(), 1e-9)
}

func TestAllocateBlockOrdering(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)

	for _, want := range []uint64{2, 3, 4} {
		block, err := alloc.AllocateBlock()
		require.NoError(t, err)
		assert.EqualValues(t, want, block)
	}
}

func TestAllocateContiguousAfterHole(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)

	for i := 0; i < 4; i++ {
		_, err := alloc.AllocateBlock()
		require.NoError(t, err)
	}
	alloc.FreeBlock(3)
	alloc.FreeBlock(4)

	// The two-block hole at 3..4 can't satisfy a run of three, so the run
	// starts after the last allocated block.
	start, err := alloc.AllocateContiguous(3)
	require.NoError(t, err)
	assert.EqualValues(t, 6, start)

	for block := uint64(6); block < 9; block++ {
		assert.Truef(t, alloc.IsBlockUsed(block), "block %d should be used", block)
	}
	assert.False(t, alloc.IsBlockUsed(3))
	assert.False(t, alloc.IsBlockUsed(4))
}

func TestAllocateContiguousZeroCount(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)
	_, err := alloc.AllocateContiguous(0)
	assert.ErrorIs(t, err, fsim.ErrInvalidOffsetOrSize)
}

func TestAllocateContiguousNoRoom(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)
	_, err := alloc.AllocateContiguous(fsim.TotalBlocks)
	assert.ErrorIs(t, err, fsim.ErrNotEnoughContiguousSpace)
}

func TestAllocateUntilFull(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)

	for i := uint64(0); i < fsim.TotalBlocks-2; i++ {
		_, err := alloc.AllocateBlock()
		require.NoError(t, err)
	}
	assert.Zero(t, alloc.CountFreeBlocks())

	_, err := alloc.AllocateBlock()
	assert.ErrorIs(t, err, fsim.ErrDiskFull)
}

func TestFreeBlockOutOfRangeIgnored(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)
	used := alloc.CountUsedBlocks()

	alloc.FreeBlock(fsim.TotalBlocks)
	alloc.FreeBlock(1 << 40)
	assert.Equal(t, used, alloc.CountUsedBlocks())
}

func TestFreeBlocksRange(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)

	start, err := alloc.AllocateContiguous(5)
	require.NoError(t, err)

	alloc.FreeBlocks(start, 5)
	for block := start; block < start+5; block++ {
		assert.Falsef(t, alloc.IsBlockUsed(block), "block %d should be free", block)
	}
}

func TestIsBlockUsedOutOfRange(t *testing.T) {
	alloc := volume.NewAllocator(fsim.TotalBlocks)
	assert.True(t, alloc.IsBlockUsed(fsim.TotalBlocks))
	assert.True(t, alloc.IsBlockUsed(1<<40))
}

// The bitmap must survive a save/load round trip through its on-disk
// position bit for bit.
func TestAllocatorSaveLoadRoundTrip(t *testing.T) {
	image := make([]byte, 2*fsim.BlockSize)
	stream := bytesextra.NewReadWriteSeeker(image)

	alloc := volume.NewAllocator(fsim.TotalBlocks)
	for i := 0; i < 10; i++ {
		_, err := alloc.AllocateBlock()
		require.NoError(t, err)
	}
	alloc.FreeBlock(5)
	alloc.FreeBlock(8)
	require.NoError(t, alloc.Save(stream))

	loaded, err := volume.LoadAllocator(stream, fsim.TotalBlocks)
	require.NoError(t, err)

	assert.Equal(t, alloc.CountUsedBlocks(), loaded.CountUsedBlocks())
	for block := uint64(0); block < 32; block++ {
		assert.Equalf(t, alloc.IsBlockUsed(block), loaded.IsBlockUsed(block),
			"block %d allocation state changed across the round trip", block)
	}
}
