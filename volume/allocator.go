// Bitmap block allocator.
//
// The allocation bitmap lives immediately after block 0 and covers one bit
// per block, LSB-first within each byte. That is exactly the in-memory layout
// of bitmap.Bitmap, so Save and Load move the byte slice verbatim.

package volume

import (
	"fmt"
	"io"

	bitmap "github.com/boljen/go-bitmap"

	fsim "github.com/anishh747/file-system-simulator"
)

// Allocator tracks which blocks of the volume are in use.
type Allocator struct {
	totalBlocks  uint64
	bitmapBlocks uint64
	bits         bitmap.Bitmap
}

// CalculateBitmapBlocks gives the number of blocks the bitmap region itself
// occupies: one bit per block, BlockSize*8 bits per bitmap block.
func CalculateBitmapBlocks(totalBlocks uint64) uint64 {
	bitsPerBlock := uint64(fsim.BlockSize) * 8
	return (totalBlocks + bitsPerBlock - 1) / bitsPerBlock
}

// NewAllocator builds the allocator for a freshly formatted volume. Block 0
// and the bitmap region are pre-marked used; everything else is free.
func NewAllocator(totalBlocks uint64) *Allocator {
	alloc := &Allocator{
		totalBlocks:  totalBlocks,
		bitmapBlocks: CalculateBitmapBlocks(totalBlocks),
		bits:         bitmap.New(int(totalBlocks)),
	}

	reservedBlocks := alloc.bitmapBlocks + 1
	for block := uint64(0); block < reservedBlocks; block++ {
		alloc.bits.Set(int(block), true)
	}
	return alloc
}

// LoadAllocator reads the bitmap back from a device that already carries a
// formatted volume.
func LoadAllocator(dev io.ReadSeeker, totalBlocks uint64) (*Allocator, error) {
	bits := bitmap.New(int(totalBlocks))
	if _, err := dev.Seek(fsim.BlockSize, io.SeekStart); err != nil {
		return nil, fsim.ErrIOFailed.Wrap(err)
	}
	if _, err := io.ReadFull(dev, bits.Data(false)); err != nil {
		return nil, fsim.ErrIOFailed.Wrap(err)
	}

	return &Allocator{
		totalBlocks:  totalBlocks,
		bitmapBlocks: CalculateBitmapBlocks(totalBlocks),
		bits:         bits,
	}, nil
}

// Save writes the bitmap to its on-disk position. The volume calls this
// after every allocate or free so a reopen always observes the state implied
// by the last successful mutation.
func (alloc *Allocator) Save(dev io.WriteSeeker) error {
	if _, err := dev.Seek(fsim.BlockSize, io.SeekStart); err != nil {
		return fsim.ErrIOFailed.Wrap(err)
	}
	if _, err := dev.Write(alloc.bits.Data(false)); err != nil {
		return fsim.ErrIOFailed.Wrap(err)
	}
	return nil
}

// AllocateBlock allocates the lowest-numbered free block and returns its
// index.
func (alloc *Allocator) AllocateBlock() (uint64, error) {
	for block := uint64(0); block < alloc.totalBlocks; block++ {
		if !alloc.bits.Get(int(block)) {
			alloc.bits.Set(int(block), true)
			return block, nil
		}
	}
	return 0, fsim.ErrDiskFull
}

// AllocateContiguous allocates `count` adjacent blocks in a first-fit manner
// and returns the index of the first.
func (alloc *Allocator) AllocateContiguous(count uint64) (uint64, error) {
	if count == 0 {
		return 0, fsim.ErrInvalidOffsetOrSize.WithMessage("offset=0, size=0")
	}

	runStart := uint64(0)
	runSize := uint64(0)

	for block := uint64(0); block < alloc.totalBlocks; block++ {
		if alloc.bits.Get(int(block)) {
			// A used block ends the current run; start over after it.
			runSize = 0
			continue
		}

		if runSize == 0 {
			runStart = block
		}
		runSize++

		if runSize == count {
			for b := runStart; b < runStart+count; b++ {
				alloc.bits.Set(int(b), true)
			}
			return runStart, nil
		}
	}

	return 0, fsim.ErrNotEnoughContiguousSpace.WithMessage(
		fmt.Sprintf("requested %d blocks", count))
}

// FreeBlock marks a block free. Out-of-range block numbers are ignored.
func (alloc *Allocator) FreeBlock(block uint64) {
	if block < alloc.totalBlocks {
		alloc.bits.Set(int(block), false)
	}
}

// FreeBlocks frees `count` blocks starting at `start`.
func (alloc *Allocator) FreeBlocks(start, count uint64) {
	for block := start; block < start+count; block++ {
		alloc.FreeBlock(block)
	}
}

// IsBlockUsed reports whether a block is in use. Out-of-range blocks report
// used, so callers can never mistake an invalid block for allocatable space.
func (alloc *Allocator) IsBlockUsed(block uint64) bool {
	if block >= alloc.totalBlocks {
		return true
	}
	return alloc.bits.Get(int(block))
}

// CountFreeBlocks counts free blocks by linear scan.
func (alloc *Allocator) CountFreeBlocks() uint64 {
	count := uint64(0)
	for block := uint64(0); block < alloc.totalBlocks; block++ {
		if !alloc.bits.Get(int(block)) {
			count++
		}
	}
	return count
}

// CountUsedBlocks counts used blocks, including block 0 and the bitmap
// region.
func (alloc *Allocator) CountUsedBlocks() uint64 {
	return alloc.totalBlocks - alloc.CountFreeBlocks()
}

// Utilization returns the used fraction of the volume as a percentage in
// [0, 100]. Reserved blocks count as used; they are genuinely set in the
// bitmap.
func (alloc *Allocator) Utilization() float64 {
	return float64(alloc.CountUsedBlocks()) / float64(alloc.totalBlocks) * 100.0
}

// TotalBlocks returns the number of addressable blocks.
func (alloc *Allocator) TotalBlocks() uint64 {
	return alloc.totalBlocks
}

// BitmapBlocks returns the number of blocks the bitmap region occupies.
func (alloc *Allocator) BitmapBlocks() uint64 {
	return alloc.bitmapBlocks
}
