package fsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuperblockRoundTrip(t *testing.T) {
	original := NewSuperblock()
	require.EqualValues(t, BlockSize, original.BlockSize)
	require.EqualValues(t, TotalBlocks, original.TotalBlocks)
	require.NotZero(t, original.VolumeID)

	data, err := SuperblockToBytes(&original)
	require.NoError(t, err)
	require.Len(t, data, SuperblockSize)

	decoded, err := BytesToSuperblock(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestSuperblockDecodeBadMagic(t *testing.T) {
	sb := NewSuperblock()
	data, err := SuperblockToBytes(&sb)
	require.NoError(t, err)

	data[0] ^= 0xFF
	_, err = BytesToSuperblock(data)
	assert.ErrorIs(t, err, ErrCorruptedFileSystem)
}

func TestSuperblockDecodeUnknownVersion(t *testing.T) {
	sb := NewSuperblock()
	sb.Version = SuperblockVersion + 1
	data, err := SuperblockToBytes(&sb)
	require.NoError(t, err)

	_, err = BytesToSuperblock(data)
	assert.ErrorIs(t, err, ErrNotSupported)
}

func TestSuperblockDecodeTooShort(t *testing.T) {
	_, err := BytesToSuperblock(make([]byte, SuperblockSize-1))
	assert.ErrorIs(t, err, ErrInvalidMetadata)
}
