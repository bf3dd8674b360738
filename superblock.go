package fsim

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/noxer/bytewriter"
)

// SuperblockMagic is the first four bytes of block 0 on a formatted volume,
// "FSIM" when read as little-endian ASCII. A zero magic means the block has
// never been written, i.e. the device is fresh.
const SuperblockMagic uint32 = 0x4D495346

// SuperblockVersion is the current format version.
const SuperblockVersion uint32 = 1

// SuperblockSize is the length of the identification record at the start of
// block 0. The rest of the block is zero.
const SuperblockSize = 48

// Superblock is the identification record stored in block 0. It pins the
// geometry the volume was formatted with so a reopen can reject images built
// with different constants, and stamps each volume with a unique ID.
type Superblock struct {
	Version     uint32
	BlockSize   uint64
	TotalBlocks uint64
	// Created is the format time, seconds since the Unix epoch.
	Created  uint64
	VolumeID uuid.UUID
}

type rawSuperblock struct {
	Magic       uint32
	Version     uint32
	BlockSize   uint64
	TotalBlocks uint64
	Created     uint64
	VolumeID    [16]byte
}

// NewSuperblock builds the record written when a device is formatted.
func NewSuperblock() Superblock {
	return Superblock{
		Version:     SuperblockVersion,
		BlockSize:   BlockSize,
		TotalBlocks: TotalBlocks,
		Created:     uint64(time.Now().Unix()),
		VolumeID:    uuid.New(),
	}
}

// SuperblockToBytes serializes the record into SuperblockSize bytes.
func SuperblockToBytes(sb *Superblock) ([]byte, error) {
	raw := rawSuperblock{
		Magic:       SuperblockMagic,
		Version:     sb.Version,
		BlockSize:   sb.BlockSize,
		TotalBlocks: sb.TotalBlocks,
		Created:     sb.Created,
		VolumeID:    [16]byte(sb.VolumeID),
	}

	buffer := make([]byte, SuperblockSize)
	writer := bytewriter.New(buffer)
	if err := binary.Write(writer, binary.LittleEndian, &raw); err != nil {
		return nil, ErrSerialization.Wrap(err)
	}
	return buffer, nil
}

// BytesToSuperblock deserializes and validates the block 0 record.
func BytesToSuperblock(data []byte) (Superblock, error) {
	if len(data) < SuperblockSize {
		return Superblock{}, ErrInvalidMetadata.WithMessage(
			fmt.Sprintf("superblock data too short: %d bytes", len(data)))
	}

	var raw rawSuperblock
	reader := bytes.NewReader(data)
	if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
		return Superblock{}, ErrDeserialization.Wrap(err)
	}

	if raw.Magic != SuperblockMagic {
		return Superblock{}, ErrCorruptedFileSystem.WithMessage(
			fmt.Sprintf("invalid superblock magic number: 0x%08X", raw.Magic))
	}
	if raw.Version != SuperblockVersion {
		return Superblock{}, ErrNotSupported.WithMessage(
			fmt.Sprintf("format version %d (this build reads version %d)",
				raw.Version, SuperblockVersion))
	}

	return Superblock{
		Version:     raw.Version,
		BlockSize:   raw.BlockSize,
		TotalBlocks: raw.TotalBlocks,
		Created:     raw.Created,
		VolumeID:    uuid.UUID(raw.VolumeID),
	}, nil
}
