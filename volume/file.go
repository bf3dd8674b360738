package volume

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	fsim "github.com/anishh747/file-system-simulator"
)

// readFileInode reads the inode in `block` and requires it to describe a
// regular file.
func (vol *Volume) readFileInode(block uint64) (fsim.Inode, error) {
	ino, err := vol.ReadInode(block)
	if err != nil {
		return fsim.Inode{}, err
	}
	if ino.Type != fsim.FileTypeFile {
		return fsim.Inode{}, fsim.ErrNotAFile.WithMessage(
			fmt.Sprintf("inode block %d holds a %s", block, ino.Type))
	}
	if ino.BlockCount > fsim.DirectPointers {
		return fsim.Inode{}, fsim.ErrCorruptedFileSystem.WithMessage(
			fmt.Sprintf("inode block %d claims %d direct blocks, max is %d",
				block, ino.BlockCount, fsim.DirectPointers))
	}
	return ino, nil
}

// CreateFile allocates an inode block for a new empty file and returns the
// block number, which identifies the file to all later calls.
func (vol *Volume) CreateFile(inodeNumber uint64, perm fsim.Permissions) (uint64, error) {
	inodeBlock, err := vol.AllocateBlock()
	if err != nil {
		return 0, err
	}

	ino := fsim.NewInode(inodeNumber, fsim.FileTypeFile, perm)
	if err := vol.WriteInode(inodeBlock, &ino); err != nil {
		return 0, err
	}

	vol.log.WithFields(logrus.Fields{
		"inode_block": inodeBlock,
		"inode":       inodeNumber,
	}).Debug("file created")
	return inodeBlock, nil
}

// WriteFile replaces the file's contents with `data`. The previous data
// blocks are freed first, then fresh blocks are allocated and filled one at
// a time. Partial writes and offsets are not supported; files larger than
// DirectPointers blocks are rejected.
func (vol *Volume) WriteFile(inodeBlock uint64, data []byte) error {
	ino, err := vol.readFileInode(inodeBlock)
	if err != nil {
		return err
	}

	blocksNeeded := (len(data) + fsim.BlockSize - 1) / fsim.BlockSize
	if blocksNeeded > fsim.DirectPointers {
		return fsim.ErrNotSupported.WithMessage(fmt.Sprintf(
			"file needs %d blocks but only %d direct pointers exist (max %d bytes)",
			blocksNeeded, fsim.DirectPointers, fsim.DirectPointers*fsim.BlockSize))
	}

	for i := uint64(0); i < ino.BlockCount; i++ {
		if ino.DirectBlocks[i] != 0 {
			if err := vol.FreeBlock(ino.DirectBlocks[i]); err != nil {
				return err
			}
		}
		ino.DirectBlocks[i] = 0
	}

	remaining := data
	for i := 0; i < blocksNeeded; i++ {
		block, err := vol.AllocateBlock()
		if err != nil {
			return err
		}
		ino.DirectBlocks[i] = block

		chunk := len(remaining)
		if chunk > fsim.BlockSize {
			chunk = fsim.BlockSize
		}
		if err := vol.writeBlockData(block, remaining[:chunk]); err != nil {
			return err
		}
		remaining = remaining[chunk:]
	}

	ino.Size = uint64(len(data))
	ino.BlockCount = uint64(blocksNeeded)
	ino.Modified = uint64(time.Now().Unix())
	if err := vol.WriteInode(inodeBlock, &ino); err != nil {
		return err
	}

	vol.log.WithFields(logrus.Fields{
		"inode_block": inodeBlock,
		"size":        len(data),
		"blocks":      blocksNeeded,
	}).Debug("file written")
	return nil
}

// ReadFile returns the file's full contents. Trailing bytes of the last
// block beyond the logical size never appear in the result.
func (vol *Volume) ReadFile(inodeBlock uint64) ([]byte, error) {
	ino, err := vol.readFileInode(inodeBlock)
	if err != nil {
		return nil, err
	}

	contents := make([]byte, 0, ino.Size)
	remaining := ino.Size
	for i := uint64(0); i < ino.BlockCount; i++ {
		block := ino.DirectBlocks[i]
		if block == 0 {
			return nil, fsim.ErrCorruptedFileSystem.WithMessage(fmt.Sprintf(
				"inode block %d: live direct pointer %d is 0", inodeBlock, i))
		}

		chunk := remaining
		if chunk > fsim.BlockSize {
			chunk = fsim.BlockSize
		}
		payload, err := vol.readBlockData(block, int(chunk))
		if err != nil {
			return nil, err
		}
		contents = append(contents, payload...)
		remaining -= chunk
	}

	return contents, nil
}

// DeleteFile frees the file's data blocks and then its inode block. The
// inode bytes are left in place; the bitmap is the source of truth for
// liveness.
func (vol *Volume) DeleteFile(inodeBlock uint64) error {
	ino, err := vol.readFileInode(inodeBlock)
	if err != nil {
		return err
	}

	for i := uint64(0); i < ino.BlockCount; i++ {
		if ino.DirectBlocks[i] != 0 {
			if err := vol.FreeBlock(ino.DirectBlocks[i]); err != nil {
				return err
			}
		}
	}
	if err := vol.FreeBlock(inodeBlock); err != nil {
		return err
	}

	vol.log.WithFields(logrus.Fields{
		"inode_block": inodeBlock,
		"blocks":      ino.BlockCount,
	}).Debug("file deleted")
	return nil
}

// GetFileInfo returns the file's inode.
func (vol *Volume) GetFileInfo(inodeBlock uint64) (fsim.Inode, error) {
	return vol.readFileInode(inodeBlock)
}
