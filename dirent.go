package fsim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/noxer/bytewriter"
)

// DirectoryEntry is the in-memory form of a 272-byte directory entry slot.
// A slot whose stored inode number is zero is empty; BytesToDirEntry reports
// it as ErrInvalidMetadata, which directory scans treat as the empty-slot
// signal rather than a failure.
type DirectoryEntry struct {
	InodeNumber uint64
	Type        FileType
	Name        string
}

// rawDirEntry is the exact wire layout of a directory entry slot.
type rawDirEntry struct {
	InodeNumber uint64
	FileType    uint8
	NameLength  uint8
	Name        [MaxFilenameLength]byte
	Reserved    [7]byte
}

// NewDirEntry builds a directory entry, validating the name. Names must be
// 1 to MaxFilenameLength bytes.
func NewDirEntry(inodeNumber uint64, fileType FileType, name string) (DirectoryEntry, error) {
	if len(name) > MaxFilenameLength {
		return DirectoryEntry{}, ErrInvalidFileName.WithMessage(
			fmt.Sprintf("name too long: %d bytes (max %d)", len(name), MaxFilenameLength))
	}
	if len(name) == 0 {
		return DirectoryEntry{}, ErrInvalidFileName.WithMessage("name is empty")
	}

	return DirectoryEntry{
		InodeNumber: inodeNumber,
		Type:        fileType,
		Name:        name,
	}, nil
}

// DirEntryToBytes serializes a directory entry into its fixed 272-byte slot
// form. The name is zero-padded to MaxFilenameLength bytes.
func DirEntryToBytes(entry *DirectoryEntry) ([]byte, error) {
	if len(entry.Name) > MaxFilenameLength {
		return nil, ErrInvalidFileName.WithMessage(
			fmt.Sprintf("name too long: %d bytes (max %d)", len(entry.Name), MaxFilenameLength))
	}

	raw := rawDirEntry{
		InodeNumber: entry.InodeNumber,
		FileType:    uint8(entry.Type),
		NameLength:  uint8(len(entry.Name)),
	}
	copy(raw.Name[:], entry.Name)

	buffer := make([]byte, DirEntrySize)
	writer := bytewriter.New(buffer)
	if err := binary.Write(writer, binary.LittleEndian, &raw); err != nil {
		return nil, ErrSerialization.Wrap(err)
	}
	return buffer, nil
}

// BytesToDirEntry deserializes a directory entry slot. An all-zero slot
// (inode number 0) reports ErrInvalidMetadata with an "empty directory
// entry" message; scanners recognize the sentinel with errors.Is.
func BytesToDirEntry(data []byte) (DirectoryEntry, error) {
	if len(data) < DirEntrySize {
		return DirectoryEntry{}, ErrInvalidMetadata.WithMessage(
			fmt.Sprintf("directory entry data too short: %d bytes", len(data)))
	}

	var raw rawDirEntry
	reader := bytes.NewReader(data)
	if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
		return DirectoryEntry{}, ErrDeserialization.Wrap(err)
	}

	if raw.InodeNumber == 0 {
		return DirectoryEntry{}, ErrInvalidMetadata.WithMessage("empty directory entry")
	}

	fileType, err := FileTypeFromByte(raw.FileType)
	if err != nil {
		return DirectoryEntry{}, err
	}

	// NameLength is a uint8 so it can't exceed MaxFilenameLength; the stored
	// name bytes still have to be valid UTF-8.
	name := raw.Name[:raw.NameLength]
	if !utf8.Valid(name) {
		return DirectoryEntry{}, ErrDeserialization.WithMessage(
			fmt.Sprintf("entry name for inode %d is not valid UTF-8", raw.InodeNumber))
	}

	return DirectoryEntry{
		InodeNumber: raw.InodeNumber,
		Type:        fileType,
		Name:        string(name),
	}, nil
}
