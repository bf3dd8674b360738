package fsim

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInode() Inode {
	ino := Inode{
		InodeNumber: 42,
		Type:        FileTypeFile,
		Permissions: NewPermissions(true, true, false),
		LinkCount:   1,
		Size:        10000,
		BlockCount:  3,
		Created:     1700000000,
		Modified:    1700000100,
		Accessed:    1700000200,
	}
	ino.DirectBlocks[0] = 7
	ino.DirectBlocks[1] = 8
	ino.DirectBlocks[2] = 200
	return ino
}

func TestInodeRoundTrip(t *testing.T) {
	original := sampleInode()

	data, err := InodeToBytes(&original)
	require.NoError(t, err)
	require.Len(t, data, InodeSize)

	decoded, err := BytesToInode(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestInodeFieldOffsets(t *testing.T) {
	ino := sampleInode()
	data, err := InodeToBytes(&ino)
	require.NoError(t, err)

	// The record layout is fixed: magic, inode number, type, permissions,
	// link count, size, block count, three timestamps, direct pointers,
	// indirect pointers.
	assert.EqualValues(t, InodeMagic, binary.LittleEndian.Uint32(data[0:4]))
	assert.EqualValues(t, 42, binary.LittleEndian.Uint64(data[4:12]))
	assert.EqualValues(t, FileTypeFile, data[12])
	assert.EqualValues(t, NewPermissions(true, true, false), data[13])
	assert.EqualValues(t, 1, binary.LittleEndian.Uint16(data[14:16]))
	assert.EqualValues(t, 10000, binary.LittleEndian.Uint64(data[16:24]))
	assert.EqualValues(t, 3, binary.LittleEndian.Uint64(data[24:32]))
	assert.EqualValues(t, 1700000000, binary.LittleEndian.Uint64(data[32:40]))
	assert.EqualValues(t, 7, binary.LittleEndian.Uint64(data[56:64]))
	assert.EqualValues(t, 200, binary.LittleEndian.Uint64(data[72:80]))

	// Indirect pointers and the reserved tail are zero.
	for i := 152; i < InodeSize; i++ {
		if data[i] != 0 {
			t.Fatalf("byte %d of the record should be zero, got %#x", i, data[i])
		}
	}
}

func TestInodeDecodeTooShort(t *testing.T) {
	_, err := BytesToInode(make([]byte, InodeSize-1))
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestInodeDecodeBadMagic(t *testing.T) {
	ino := sampleInode()
	data, err := InodeToBytes(&ino)
	require.NoError(t, err)

	data[0] ^= 0xFF
	_, err = BytesToInode(data)
	assert.ErrorIs(t, err, ErrCorruptedFileSystem)
}

func TestInodeDecodeBadFileType(t *testing.T) {
	ino := sampleInode()
	data, err := InodeToBytes(&ino)
	require.NoError(t, err)

	data[12] = 99
	_, err = BytesToInode(data)
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestNewInode(t *testing.T) {
	ino := NewInode(7, FileTypeDirectory, NewPermissions(true, false, true))

	assert.EqualValues(t, 7, ino.InodeNumber)
	assert.Equal(t, FileTypeDirectory, ino.Type)
	assert.True(t, ino.Permissions.CanRead())
	assert.False(t, ino.Permissions.CanWrite())
	assert.True(t, ino.Permissions.CanExecute())
	assert.EqualValues(t, 1, ino.LinkCount)
	assert.Zero(t, ino.Size)
	assert.Zero(t, ino.BlockCount)
	assert.NotZero(t, ino.Created)
	assert.Equal(t, ino.Created, ino.Modified)
	assert.Equal(t, ino.Created, ino.Accessed)
}
