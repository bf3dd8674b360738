package fsim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/noxer/bytewriter"
)

// Inode is the in-memory form of the 512-byte on-disk inode record. Callers
// identify an inode by the number of the block it is stored in; InodeNumber
// is an application-assigned identifier carried along but never interpreted.
type Inode struct {
	InodeNumber uint64
	Type        FileType
	Permissions Permissions
	LinkCount   uint16
	// Size is the logical byte size of the file.
	Size uint64
	// BlockCount is the number of populated direct pointer slots.
	BlockCount uint64
	// Timestamps are seconds since the Unix epoch.
	Created  uint64
	Modified uint64
	Accessed uint64
	// DirectBlocks holds block numbers of the file's data blocks, in order.
	// A zero slot is unused.
	DirectBlocks [DirectPointers]uint64
	// IndirectBlocks is reserved space; always zero.
	IndirectBlocks [IndirectPointers]uint64
}

// rawInode is the exact wire layout of the leading 176 bytes of an inode
// record. The remaining bytes up to InodeSize are reserved and zero.
type rawInode struct {
	Magic          uint32
	InodeNumber    uint64
	FileType       uint8
	Permissions    uint8
	LinkCount      uint16
	Size           uint64
	BlockCount     uint64
	Created        uint64
	Modified       uint64
	Accessed       uint64
	DirectBlocks   [DirectPointers]uint64
	IndirectBlocks [IndirectPointers]uint64
}

// NewInode builds a fresh inode with link count 1, no blocks, and all three
// timestamps set to the current time.
func NewInode(inodeNumber uint64, fileType FileType, perm Permissions) Inode {
	now := uint64(time.Now().Unix())
	return Inode{
		InodeNumber: inodeNumber,
		Type:        fileType,
		Permissions: perm,
		LinkCount:   1,
		Created:     now,
		Modified:    now,
		Accessed:    now,
	}
}

// InodeToBytes serializes an inode into its fixed 512-byte record.
func InodeToBytes(ino *Inode) ([]byte, error) {
	raw := rawInode{
		Magic:          InodeMagic,
		InodeNumber:    ino.InodeNumber,
		FileType:       uint8(ino.Type),
		Permissions:    uint8(ino.Permissions),
		LinkCount:      ino.LinkCount,
		Size:           ino.Size,
		BlockCount:     ino.BlockCount,
		Created:        ino.Created,
		Modified:       ino.Modified,
		Accessed:       ino.Accessed,
		DirectBlocks:   ino.DirectBlocks,
		IndirectBlocks: ino.IndirectBlocks,
	}

	buffer := make([]byte, InodeSize)
	writer := bytewriter.New(buffer)
	if err := binary.Write(writer, binary.LittleEndian, &raw); err != nil {
		return nil, ErrSerialization.Wrap(err)
	}
	return buffer, nil
}

// BytesToInode deserializes an inode record. The slice must be at least
// InodeSize bytes; a wrong magic number reports a corrupted file system.
func BytesToInode(data []byte) (Inode, error) {
	if len(data) < InodeSize {
		return Inode{}, ErrInvalidMetadata.WithMessage(
			fmt.Sprintf("inode data too short: %d bytes", len(data)))
	}

	var raw rawInode
	reader := bytes.NewReader(data)
	if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
		return Inode{}, ErrDeserialization.Wrap(err)
	}

	if raw.Magic != InodeMagic {
		return Inode{}, ErrCorruptedFileSystem.WithMessage(
			fmt.Sprintf("invalid inode magic number: 0x%08X", raw.Magic))
	}

	fileType, err := FileTypeFromByte(raw.FileType)
	if err != nil {
		return Inode{}, err
	}

	return Inode{
		InodeNumber:    raw.InodeNumber,
		Type:           fileType,
		Permissions:    Permissions(raw.Permissions),
		LinkCount:      raw.LinkCount,
		Size:           raw.Size,
		BlockCount:     raw.BlockCount,
		Created:        raw.Created,
		Modified:       raw.Modified,
		Accessed:       raw.Accessed,
		DirectBlocks:   raw.DirectBlocks,
		IndirectBlocks: raw.IndirectBlocks,
	}, nil
}
