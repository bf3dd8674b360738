// Package volume owns one backing block device and everything on it: the
// allocation bitmap, positioned inode and directory-entry I/O, and the file
// and directory stores. A Volume assumes a single opener; concurrent use is
// not supported.
package volume

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	fsim "github.com/anishh747/file-system-simulator"
)

// BlockDevice is the minimal interface the volume needs from its backing
// storage. *os.File satisfies it, as does an in-memory image wrapped with
// bytesextra.NewReadWriteSeeker.
type BlockDevice interface {
	io.ReadWriteSeeker
}

// Devices that can sync, truncate, or close get those calls too; everything
// else is handled best-effort.
type syncer interface{ Sync() error }
type truncator interface{ Truncate(size int64) error }

// Volume is a mounted file system image.
type Volume struct {
	dev   BlockDevice
	alloc *Allocator
	super fsim.Superblock
	log   *logrus.Entry
}

// Open opens or creates a volume backed by the host file at `path`. A file
// that did not exist or was empty is formatted: truncated to DiskSize,
// stamped with a fresh superblock, and given a new allocation bitmap. An
// existing image has its superblock validated and its bitmap loaded.
func Open(path string) (*Volume, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fsim.ErrIOFailed.Wrap(err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fsim.ErrIOFailed.Wrap(err)
	}
	// Fresh means zero-length before truncation; anything else is presumed
	// to be a formatted image and must carry a valid superblock.
	fresh := info.Size() == 0

	if err := file.Truncate(fsim.DiskSize); err != nil {
		file.Close()
		return nil, fsim.ErrIOFailed.Wrap(err)
	}

	vol, err := newVolume(file, fresh, path)
	if err != nil {
		file.Close()
		return nil, err
	}
	return vol, nil
}

// OpenDevice opens a volume over an arbitrary block device, e.g. an
// in-memory image. Devices that support Truncate are sized to DiskSize;
// fixed-size devices must already be exactly DiskSize bytes. The device is
// fresh when its superblock region has never been written (zero magic).
func OpenDevice(dev BlockDevice) (*Volume, error) {
	size, err := dev.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fsim.ErrIOFailed.Wrap(err)
	}

	if size != fsim.DiskSize {
		tr, ok := dev.(truncator)
		if !ok {
			return nil, fsim.ErrInvalidOffsetOrSize.WithMessage(
				fmt.Sprintf("device is %d bytes, want %d", size, fsim.DiskSize))
		}
		if err := tr.Truncate(fsim.DiskSize); err != nil {
			return nil, fsim.ErrIOFailed.Wrap(err)
		}
	}

	magic := make([]byte, 4)
	if err := readAt(dev, 0, magic); err != nil {
		return nil, err
	}
	fresh := magic[0] == 0 && magic[1] == 0 && magic[2] == 0 && magic[3] == 0

	return newVolume(dev, fresh, "<device>")
}

func newVolume(dev BlockDevice, fresh bool, name string) (*Volume, error) {
	vol := &Volume{dev: dev}

	if fresh {
		vol.super = fsim.NewSuperblock()
		vol.alloc = NewAllocator(fsim.TotalBlocks)

		record, err := fsim.SuperblockToBytes(&vol.super)
		if err != nil {
			return nil, err
		}
		if err := writeAt(dev, 0, record); err != nil {
			return nil, err
		}
		if err := vol.SyncBitmap(); err != nil {
			return nil, err
		}
	} else {
		record := make([]byte, fsim.SuperblockSize)
		if err := readAt(dev, 0, record); err != nil {
			return nil, err
		}
		super, err := fsim.BytesToSuperblock(record)
		if err != nil {
			return nil, err
		}
		if super.BlockSize != fsim.BlockSize || super.TotalBlocks != fsim.TotalBlocks {
			return nil, fsim.ErrCorruptedFileSystem.WithMessage(fmt.Sprintf(
				"image formatted with %d blocks of %d bytes, this build uses %d of %d",
				super.TotalBlocks, super.BlockSize, fsim.TotalBlocks, fsim.BlockSize))
		}
		vol.super = super

		alloc, err := LoadAllocator(dev, fsim.TotalBlocks)
		if err != nil {
			return nil, err
		}
		vol.alloc = alloc
	}

	vol.log = logrus.WithFields(logrus.Fields{
		"image":  name,
		"volume": vol.super.VolumeID.String(),
	})
	vol.log.WithField("fresh", fresh).Debug("volume opened")
	return vol, nil
}

// Close flushes the bitmap and releases the backing device.
func (vol *Volume) Close() error {
	if err := vol.SyncBitmap(); err != nil {
		return err
	}
	if closer, ok := vol.dev.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fsim.ErrIOFailed.Wrap(err)
		}
	}
	vol.log.Debug("volume closed")
	return nil
}

// Superblock returns the identification record read or written at open.
func (vol *Volume) Superblock() fsim.Superblock {
	return vol.super
}

////////////////////////////////////////////////////////////////////////////////
// Positioned I/O

func readAt(dev BlockDevice, offset int64, buffer []byte) error {
	if _, err := dev.Seek(offset, io.SeekStart); err != nil {
		return fsim.ErrIOFailed.Wrap(err)
	}
	if _, err := io.ReadFull(dev, buffer); err != nil {
		return fsim.ErrIOFailed.Wrap(err)
	}
	return nil
}

func writeAt(dev BlockDevice, offset int64, data []byte) error {
	if _, err := dev.Seek(offset, io.SeekStart); err != nil {
		return fsim.ErrIOFailed.Wrap(err)
	}
	if _, err := dev.Write(data); err != nil {
		return fsim.ErrIOFailed.Wrap(err)
	}
	return nil
}

// sync flushes the device if it supports flushing.
func (vol *Volume) sync() error {
	if s, ok := vol.dev.(syncer); ok {
		if err := s.Sync(); err != nil {
			return fsim.ErrIOFailed.Wrap(err)
		}
	}
	return nil
}

// checkBlockNumber rejects block numbers outside the volume.
func (vol *Volume) checkBlockNumber(block uint64) error {
	if block >= vol.alloc.TotalBlocks() {
		return fsim.ErrInvalidOffsetOrSize.WithMessage(
			fmt.Sprintf("block %d not in range [0, %d)", block, vol.alloc.TotalBlocks()))
	}
	return nil
}

// WriteInode writes an inode record at the start of the given block and
// flushes.
func (vol *Volume) WriteInode(block uint64, ino *fsim.Inode) error {
	if err := vol.checkBlockNumber(block); err != nil {
		return err
	}
	record, err := fsim.InodeToBytes(ino)
	if err != nil {
		return err
	}
	if err := writeAt(vol.dev, int64(block)*fsim.BlockSize, record); err != nil {
		return err
	}
	return vol.sync()
}

// ReadInode reads and decodes the inode record stored in the given block.
func (vol *Volume) ReadInode(block uint64) (fsim.Inode, error) {
	if err := vol.checkBlockNumber(block); err != nil {
		return fsim.Inode{}, err
	}
	record := make([]byte, fsim.InodeSize)
	if err := readAt(vol.dev, int64(block)*fsim.BlockSize, record); err != nil {
		return fsim.Inode{}, err
	}
	return fsim.BytesToInode(record)
}

// dirEntryOffset gives the byte offset of a slot inside an entries block.
func dirEntryOffset(block uint64, slot int) int64 {
	return int64(block)*fsim.BlockSize + int64(slot)*fsim.DirEntrySize
}

func checkSlotIndex(slot int) error {
	if slot < 0 || slot >= fsim.EntriesPerBlock {
		return fsim.ErrInvalidOffsetOrSize.WithMessage(
			fmt.Sprintf("slot %d not in range [0, %d)", slot, fsim.EntriesPerBlock))
	}
	return nil
}

// WriteDirEntry writes a directory entry into slot `slot` of an entries
// block and flushes.
func (vol *Volume) WriteDirEntry(block uint64, slot int, entry *fsim.DirectoryEntry) error {
	if err := vol.checkBlockNumber(block); err != nil {
		return err
	}
	if err := checkSlotIndex(slot); err != nil {
		return err
	}
	record, err := fsim.DirEntryToBytes(entry)
	if err != nil {
		return err
	}
	if err := writeAt(vol.dev, dirEntryOffset(block, slot), record); err != nil {
		return err
	}
	return vol.sync()
}

// ReadDirEntry reads one slot of an entries block. An empty slot reports
// fsim.ErrInvalidMetadata; see fsim.BytesToDirEntry.
func (vol *Volume) ReadDirEntry(block uint64, slot int) (fsim.DirectoryEntry, error) {
	if err := vol.checkBlockNumber(block); err != nil {
		return fsim.DirectoryEntry{}, err
	}
	if err := checkSlotIndex(slot); err != nil {
		return fsim.DirectoryEntry{}, err
	}
	record := make([]byte, fsim.DirEntrySize)
	if err := readAt(vol.dev, dirEntryOffset(block, slot), record); err != nil {
		return fsim.DirectoryEntry{}, err
	}
	return fsim.BytesToDirEntry(record)
}

// clearDirEntry zeroes one slot of an entries block and flushes, returning
// it to the empty state.
func (vol *Volume) clearDirEntry(block uint64, slot int) error {
	zeros := make([]byte, fsim.DirEntrySize)
	if err := writeAt(vol.dev, dirEntryOffset(block, slot), zeros); err != nil {
		return err
	}
	return vol.sync()
}

// writeBlockData writes payload bytes at the start of a data block. `data`
// must not exceed BlockSize.
func (vol *Volume) writeBlockData(block uint64, data []byte) error {
	if err := vol.checkBlockNumber(block); err != nil {
		return err
	}
	if len(data) > fsim.BlockSize {
		return fsim.ErrInvalidOffsetOrSize.WithMessage(
			fmt.Sprintf("%d bytes do not fit in one block", len(data)))
	}
	return writeAt(vol.dev, int64(block)*fsim.BlockSize, data)
}

// readBlockData reads `length` payload bytes from the start of a data block.
func (vol *Volume) readBlockData(block uint64, length int) ([]byte, error) {
	if err := vol.checkBlockNumber(block); err != nil {
		return nil, err
	}
	if length < 0 || length > fsim.BlockSize {
		return nil, fsim.ErrInvalidOffsetOrSize.WithMessage(
			fmt.Sprintf("cannot read %d bytes from one block", length))
	}
	buffer := make([]byte, length)
	if err := readAt(vol.dev, int64(block)*fsim.BlockSize, buffer); err != nil {
		return nil, err
	}
	return buffer, nil
}

////////////////////////////////////////////////////////////////////////////////
// Allocator surface
//
// Every mutation is followed by a bitmap save so the on-disk state always
// reflects the last successful call.

// AllocateBlock allocates the lowest free block and persists the bitmap.
func (vol *Volume) AllocateBlock() (uint64, error) {
	block, err := vol.alloc.AllocateBlock()
	if err != nil {
		return 0, err
	}
	if err := vol.SyncBitmap(); err != nil {
		return 0, err
	}
	return block, nil
}

// AllocateContiguousBlocks allocates `count` adjacent blocks and persists
// the bitmap.
func (vol *Volume) AllocateContiguousBlocks(count uint64) (uint64, error) {
	start, err := vol.alloc.AllocateContiguous(count)
	if err != nil {
		return 0, err
	}
	if err := vol.SyncBitmap(); err != nil {
		return 0, err
	}
	return start, nil
}

// FreeBlock frees one block and persists the bitmap.
func (vol *Volume) FreeBlock(block uint64) error {
	vol.alloc.FreeBlock(block)
	return vol.SyncBitmap()
}

// FreeBlocks frees `count` blocks starting at `start` and persists the
// bitmap.
func (vol *Volume) FreeBlocks(start, count uint64) error {
	vol.alloc.FreeBlocks(start, count)
	return vol.SyncBitmap()
}

// SyncBitmap writes the allocation bitmap to disk and flushes.
func (vol *Volume) SyncBitmap() error {
	if err := vol.alloc.Save(vol.dev); err != nil {
		return err
	}
	return vol.sync()
}

// IsBlockUsed reports whether a block is allocated.
func (vol *Volume) IsBlockUsed(block uint64) bool {
	return vol.alloc.IsBlockUsed(block)
}

// TotalBlocks returns the number of addressable blocks.
func (vol *Volume) TotalBlocks() uint64 {
	return vol.alloc.TotalBlocks()
}

// UsedBlocksCount returns the number of allocated blocks, reserved region
// included.
func (vol *Volume) UsedBlocksCount() uint64 {
	return vol.alloc.CountUsedBlocks()
}

// FreeBlocksCount returns the number of free blocks.
func (vol *Volume) FreeBlocksCount() uint64 {
	return vol.alloc.CountFreeBlocks()
}

// Utilization returns the used fraction of the volume as a percentage.
func (vol *Volume) Utilization() float64 {
	return vol.alloc.Utilization()
}
