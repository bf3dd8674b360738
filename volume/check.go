package volume

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	fsim "github.com/anishh747/file-system-simulator"
)

// Check verifies the volume's structural invariants over a caller-supplied
// set of live inode blocks (the volume itself keeps no registry of inodes).
// It validates the reserved region, each inode's shape, the bitmap state of
// every referenced block, and cross-inode block ownership, and reports every
// violation found in one aggregated error. A nil result means the volume is
// consistent with respect to the given inodes.
func (vol *Volume) Check(inodeBlocks ...uint64) error {
	var result *multierror.Error

	// Block 0 and the bitmap region must always be marked used.
	reserved := vol.alloc.BitmapBlocks() + 1
	for block := uint64(0); block < reserved; block++ {
		if !vol.IsBlockUsed(block) {
			result = multierror.Append(result, fsim.ErrCorruptedFileSystem.WithMessage(
				fmt.Sprintf("reserved block %d is marked free", block)))
		}
	}

	// owners maps each referenced block to the inode block that claimed it.
	owners := make(map[uint64]uint64, len(inodeBlocks)*2)

	claim := func(block, owner uint64, what string) {
		if previous, taken := owners[block]; taken {
			result = multierror.Append(result, fsim.ErrCorruptedFileSystem.WithMessage(
				fmt.Sprintf("block %d is claimed by inode blocks %d and %d",
					block, previous, owner)))
			return
		}
		owners[block] = owner
		if !vol.IsBlockUsed(block) {
			result = multierror.Append(result, fsim.ErrCorruptedFileSystem.WithMessage(
				fmt.Sprintf("%s %d (inode block %d) is marked free", what, block, owner)))
		}
	}

	for _, inodeBlock := range inodeBlocks {
		claim(inodeBlock, inodeBlock, "inode block")

		ino, err := vol.ReadInode(inodeBlock)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		switch ino.Type {
		case fsim.FileTypeFile:
			vol.checkFileInode(inodeBlock, &ino, claim, &result)
		case fsim.FileTypeDirectory:
			vol.checkDirectoryInode(inodeBlock, &ino, claim, &result)
		}

		for i, block := range ino.IndirectBlocks {
			if block != 0 {
				result = multierror.Append(result, fsim.ErrCorruptedFileSystem.WithMessage(
					fmt.Sprintf("inode block %d: reserved indirect slot %d is %d",
						inodeBlock, i, block)))
			}
		}
	}

	return result.ErrorOrNil()
}

type claimFunc func(block, owner uint64, what string)

// checkFileInode validates the direct pointer shape of a file inode: the
// first BlockCount slots nonzero, distinct, in range and allocated, the
// remainder zero.
func (vol *Volume) checkFileInode(
	inodeBlock uint64,
	ino *fsim.Inode,
	claim claimFunc,
	result **multierror.Error,
) {
	if ino.BlockCount > fsim.DirectPointers {
		*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.WithMessage(
			fmt.Sprintf("inode block %d claims %d direct blocks, max is %d",
				inodeBlock, ino.BlockCount, fsim.DirectPointers)))
		return
	}

	maxBytes := ino.BlockCount * fsim.BlockSize
	if ino.Size > maxBytes {
		*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.WithMessage(
			fmt.Sprintf("inode block %d: size %d exceeds %d blocks",
				inodeBlock, ino.Size, ino.BlockCount)))
	}

	for i := uint64(0); i < fsim.DirectPointers; i++ {
		block := ino.DirectBlocks[i]
		if i < ino.BlockCount {
			if block == 0 {
				*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.WithMessage(
					fmt.Sprintf("inode block %d: live direct pointer %d is 0", inodeBlock, i)))
				continue
			}
			if block >= vol.TotalBlocks() {
				*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.WithMessage(
					fmt.Sprintf("inode block %d: direct pointer %d is out of range (%d)",
						inodeBlock, i, block)))
				continue
			}
			claim(block, inodeBlock, "data block")
		} else if block != 0 {
			*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.WithMessage(
				fmt.Sprintf("inode block %d: unused direct slot %d is %d",
					inodeBlock, i, block)))
		}
	}
}

// checkDirectoryInode validates a directory inode: exactly one live direct
// pointer, an allocated entries block, and well-formed occupied slots.
func (vol *Volume) checkDirectoryInode(
	inodeBlock uint64,
	ino *fsim.Inode,
	claim claimFunc,
	result **multierror.Error,
) {
	if ino.BlockCount != 1 {
		*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.WithMessage(
			fmt.Sprintf("directory inode block %d has block count %d, want 1",
				inodeBlock, ino.BlockCount)))
	}

	entriesBlock := ino.DirectBlocks[0]
	if entriesBlock == 0 {
		*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.WithMessage(
			fmt.Sprintf("directory inode block %d has no entries block", inodeBlock)))
		return
	}
	claim(entriesBlock, inodeBlock, "entries block")

	for i := uint64(1); i < fsim.DirectPointers; i++ {
		if ino.DirectBlocks[i] != 0 {
			*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.WithMessage(
				fmt.Sprintf("directory inode block %d: unused direct slot %d is %d",
					inodeBlock, i, ino.DirectBlocks[i])))
		}
	}

	for slot := 0; slot < fsim.EntriesPerBlock; slot++ {
		_, err := vol.ReadDirEntry(entriesBlock, slot)
		if err == nil || errors.Is(err, fsim.ErrInvalidMetadata) {
			continue
		}
		*result = multierror.Append(*result, fsim.ErrCorruptedFileSystem.Wrap(err))
	}
}
