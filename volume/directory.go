package volume

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	fsim "github.com/anishh747/file-system-simulator"
)

// readDirectoryInode reads the inode in `block` and requires it to describe
// a directory with a live entries block.
func (vol *Volume) readDirectoryInode(block uint64) (fsim.Inode, error) {
	ino, err := vol.ReadInode(block)
	if err != nil {
		return fsim.Inode{}, err
	}
	if ino.Type != fsim.FileTypeDirectory {
		return fsim.Inode{}, fsim.ErrNotADirectory.WithMessage(
			fmt.Sprintf("inode block %d holds a %s", block, ino.Type))
	}
	if ino.DirectBlocks[0] == 0 {
		return fsim.Inode{}, fsim.ErrCorruptedFileSystem.WithMessage(
			fmt.Sprintf("directory inode block %d has no entries block", block))
	}
	return ino, nil
}

// CreateDirectory allocates an inode block and an entries block for a new
// empty directory and returns the inode block number. The entries block is
// zeroed so every slot starts out empty even when the allocator hands back a
// recycled block.
func (vol *Volume) CreateDirectory(inodeNumber uint64, perm fsim.Permissions) (uint64, error) {
	inodeBlock, err := vol.AllocateBlock()
	if err != nil {
		return 0, err
	}
	entriesBlock, err := vol.AllocateBlock()
	if err != nil {
		return 0, err
	}

	if err := vol.writeBlockData(entriesBlock, make([]byte, fsim.BlockSize)); err != nil {
		return 0, err
	}

	ino := fsim.NewInode(inodeNumber, fsim.FileTypeDirectory, perm)
	ino.DirectBlocks[0] = entriesBlock
	ino.BlockCount = 1
	if err := vol.WriteInode(inodeBlock, &ino); err != nil {
		return 0, err
	}

	vol.log.WithFields(logrus.Fields{
		"inode_block":   inodeBlock,
		"entries_block": entriesBlock,
		"inode":         inodeNumber,
	}).Debug("directory created")
	return inodeBlock, nil
}

// AddDirectoryEntry writes `entry` into the first empty slot of the
// directory's entries block. Duplicate names are not rejected here; callers
// that need uniqueness check with FindDirectoryEntry first.
func (vol *Volume) AddDirectoryEntry(dirInodeBlock uint64, entry fsim.DirectoryEntry) error {
	ino, err := vol.readDirectoryInode(dirInodeBlock)
	if err != nil {
		return err
	}
	entriesBlock := ino.DirectBlocks[0]

	for slot := 0; slot < fsim.EntriesPerBlock; slot++ {
		_, err := vol.ReadDirEntry(entriesBlock, slot)
		if err == nil {
			// Slot is occupied.
			continue
		}
		if !errors.Is(err, fsim.ErrInvalidMetadata) {
			return err
		}

		// The empty-slot signal: claim this slot.
		if err := vol.WriteDirEntry(entriesBlock, slot, &entry); err != nil {
			return err
		}
		vol.log.WithFields(logrus.Fields{
			"inode_block": dirInodeBlock,
			"name":        entry.Name,
			"slot":        slot,
		}).Debug("directory entry added")
		return nil
	}

	return fsim.ErrNotSupported.WithMessage("directory is full")
}

// RemoveDirectoryEntry removes the first entry named `name` by zeroing its
// slot, and returns the removed entry's inode number.
func (vol *Volume) RemoveDirectoryEntry(dirInodeBlock uint64, name string) (uint64, error) {
	ino, err := vol.readDirectoryInode(dirInodeBlock)
	if err != nil {
		return 0, err
	}
	entriesBlock := ino.DirectBlocks[0]

	for slot := 0; slot < fsim.EntriesPerBlock; slot++ {
		entry, err := vol.ReadDirEntry(entriesBlock, slot)
		if errors.Is(err, fsim.ErrInvalidMetadata) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if entry.Name != name {
			continue
		}

		if err := vol.clearDirEntry(entriesBlock, slot); err != nil {
			return 0, err
		}
		vol.log.WithFields(logrus.Fields{
			"inode_block": dirInodeBlock,
			"name":        name,
			"slot":        slot,
		}).Debug("directory entry removed")
		return entry.InodeNumber, nil
	}

	return 0, fsim.ErrFileNotFound.WithMessage(name)
}

// ListDirectory returns every occupied entry of the directory, in slot
// order. Empty slots are skipped; any other decode failure surfaces.
func (vol *Volume) ListDirectory(dirInodeBlock uint64) ([]fsim.DirectoryEntry, error) {
	ino, err := vol.readDirectoryInode(dirInodeBlock)
	if err != nil {
		return nil, err
	}
	entriesBlock := ino.DirectBlocks[0]

	var entries []fsim.DirectoryEntry
	for slot := 0; slot < fsim.EntriesPerBlock; slot++ {
		entry, err := vol.ReadDirEntry(entriesBlock, slot)
		if errors.Is(err, fsim.ErrInvalidMetadata) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FindDirectoryEntry returns the entry named `name`.
func (vol *Volume) FindDirectoryEntry(dirInodeBlock uint64, name string) (fsim.DirectoryEntry, error) {
	entries, err := vol.ListDirectory(dirInodeBlock)
	if err != nil {
		return fsim.DirectoryEntry{}, err
	}
	for _, entry := range entries {
		if entry.Name == name {
			return entry, nil
		}
	}
	return fsim.DirectoryEntry{}, fsim.ErrFileNotFound.WithMessage(name)
}

// DeleteDirectory deletes an empty directory, freeing its entries block and
// then its inode block.
func (vol *Volume) DeleteDirectory(dirInodeBlock uint64) error {
	ino, err := vol.readDirectoryInode(dirInodeBlock)
	if err != nil {
		return err
	}

	entries, err := vol.ListDirectory(dirInodeBlock)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return fsim.ErrDirectoryNotEmpty.WithMessage(
			fmt.Sprintf("%d entries remain", len(entries)))
	}

	if err := vol.FreeBlock(ino.DirectBlocks[0]); err != nil {
		return err
	}
	if err := vol.FreeBlock(dirInodeBlock); err != nil {
		return err
	}

	vol.log.WithField("inode_block", dirInodeBlock).Debug("directory deleted")
	return nil
}

// GetDirectoryInfo returns the directory's inode.
func (vol *Volume) GetDirectoryInfo(dirInodeBlock uint64) (fsim.Inode, error) {
	return vol.readDirectoryInode(dirInodeBlock)
}
