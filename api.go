// Package fsim implements a single-user block-based file system stored inside
// one fixed-size host file treated as a raw block device. This package holds
// the on-disk format: the layout constants and the binary codecs for inodes,
// directory entries, and the superblock. The volume subpackage layers the
// allocator and the file/directory stores on top of it.
package fsim

import "fmt"

// Format constants. These are fixed by the on-disk format, not configuration;
// changing any of them produces images unreadable by every other build.
const (
	// BlockSize is the size of a single block, in bytes.
	BlockSize = 4096

	// DiskSize is the exact length the backing file is truncated to on open.
	DiskSize = 100 * 1024 * 1024

	// TotalBlocks is the number of addressable blocks on the volume.
	TotalBlocks = DiskSize / BlockSize

	// InodeSize is the size of the on-disk inode record, in bytes.
	InodeSize = 512

	// DirEntrySize is the size of a single directory entry slot, in bytes.
	DirEntrySize = 272

	// EntriesPerBlock is the number of entry slots in a directory's entries
	// block. The trailing BlockSize % DirEntrySize bytes are dead space.
	EntriesPerBlock = BlockSize / DirEntrySize

	// MaxFilenameLength is the longest allowed entry name, in bytes.
	MaxFilenameLength = 255

	// DirectPointers is the number of direct block pointers in an inode.
	DirectPointers = 12

	// IndirectPointers is the number of reserved indirect pointer slots. The
	// slots keep the record layout stable for a future indirection extension;
	// nothing dereferences them.
	IndirectPointers = 3
)

// InodeMagic is the first field of every live inode record. The value spells
// "INOD" in ASCII; stored little-endian, the record's first four bytes are
// "DONI".
const InodeMagic uint32 = 0x494E4F44

// FileType is the stored type byte of an inode or directory entry.
type FileType uint8

const (
	FileTypeFile      FileType = 1
	FileTypeDirectory FileType = 2
)

// FileTypeFromByte validates a stored type byte.
func FileTypeFromByte(value uint8) (FileType, error) {
	switch FileType(value) {
	case FileTypeFile, FileTypeDirectory:
		return FileType(value), nil
	}
	return 0, ErrInvalidMetadata.WithMessage(
		fmt.Sprintf("invalid file type: %d", value))
}

func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDirectory:
		return "directory"
	}
	return fmt.Sprintf("FileType(%d)", uint8(t))
}

// Permissions is the stored permission byte. Only the low three bits are
// meaningful; they are persisted but never enforced by the core.
type Permissions uint8

const (
	PermRead    Permissions = 1 << iota // bit 0
	PermWrite                           // bit 1
	PermExecute                         // bit 2
)

// NewPermissions builds a permission byte from individual flags.
func NewPermissions(read, write, execute bool) Permissions {
	var perm Permissions
	if read {
		perm |= PermRead
	}
	if write {
		perm |= PermWrite
	}
	if execute {
		perm |= PermExecute
	}
	return perm
}

func (p Permissions) CanRead() bool    { return p&PermRead != 0 }
func (p Permissions) CanWrite() bool   { return p&PermWrite != 0 }
func (p Permissions) CanExecute() bool { return p&PermExecute != 0 }

func (p Permissions) String() string {
	flags := []byte("---")
	if p.CanRead() {
		flags[0] = 'r'
	}
	if p.CanWrite() {
		flags[1] = 'w'
	}
	if p.CanExecute() {
		flags[2] = 'x'
	}
	return string(flags)
}
