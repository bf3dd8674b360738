package volume_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsim "github.com/anishh747/file-system-simulator"
)

func TestCheckCleanVolume(t *testing.T) {
	vol, _ := openTestVolume(t)
	defer vol.Close()

	fileBlock, err := vol.CreateFile(1, fsim.NewPermissions(true, true, false))
	require.NoError(t, err)
	require.NoError(t, vol.WriteFile(fileBlock, make([]byte, 2*fsim.BlockSize+17)))

	dirBlock, err := vol.CreateDirectory(0, fsim.NewPermissions(true, true, true))
	require.NoError(t, err)
	require.NoError(t, vol.AddDirectoryEntry(dirBlock, mustEntry(t, 1, fsim.FileTypeFile, "a.txt")))

	assert.NoError(t, vol.Check(fileBlock, dirBlock))
}

func TestCheckDetectsFreedDataBlock(t *testing.T) {
	vol, _ := openTestVolume(t)
	defer vol.Close()

	fileBlock, err := vol.CreateFile(1, fsim.NewPermissions(true, true, false))
	require.NoError(t, err)
	require.NoError(t, vol.WriteFile(fileBlock, []byte("payload")))

	info, err := vol.GetFileInfo(fileBlock)
	require.NoError(t, err)
	require.NoError(t, vol.FreeBlock(info.DirectBlocks[0]))

	err = vol.Check(fileBlock)
	require.Error(t, err)
	assert.ErrorIs(t, err, fsim.ErrCorruptedFileSystem)
	assert.Contains(t, err.Error(), "marked free")
}

func TestCheckDetectsDoubleClaim(t *testing.T) {
	vol, _ := openTestVolume(t)
	defer vol.Close()

	first, err := vol.CreateFile(1, fsim.NewPermissions(true, true, false))
	require.NoError(t, err)
	require.NoError(t, vol.WriteFile(first, []byte("payload")))

	info, err := vol.GetFileInfo(first)
	require.NoError(t, err)

	// Hand-craft a second inode that claims the first file's data block.
	secondBlock, err := vol.AllocateBlock()
	require.NoError(t, err)
	rogue := fsim.NewInode(2, fsim.FileTypeFile, fsim.NewPermissions(true, true, false))
	rogue.Size = 7
	rogue.BlockCount = 1
	rogue.DirectBlocks[0] = info.DirectBlocks[0]
	require.NoError(t, vol.WriteInode(secondBlock, &rogue))

	err = vol.Check(first, secondBlock)
	require.Error(t, err)
	assert.ErrorIs(t, err, fsim.ErrCorruptedFileSystem)
	assert.Contains(t, err.Error(), "claimed by inode blocks")
}

func TestCheckReportsEveryViolation(t *testing.T) {
	vol, _ := openTestVolume(t)
	defer vol.Close()

	fileBlock, err := vol.CreateFile(1, fsim.NewPermissions(true, true, false))
	require.NoError(t, err)
	require.NoError(t, vol.WriteFile(fileBlock, []byte("payload")))

	info, err := vol.GetFileInfo(fileBlock)
	require.NoError(t, err)

	// Two independent problems: the data block and the inode block both end
	// up free. Check aggregates rather than stopping at the first.
	require.NoError(t, vol.FreeBlock(info.DirectBlocks[0]))
	require.NoError(t, vol.FreeBlock(fileBlock))

	err = vol.Check(fileBlock)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
}

func TestCheckDetectsCorruptDirectoryShape(t *testing.T) {
	vol, _ := openTestVolume(t)
	defer vol.Close()

	dirBlock, err := vol.CreateDirectory(0, fsim.NewPermissions(true, true, true))
	require.NoError(t, err)

	// Corrupt the directory inode: a second live direct pointer.
	ino, err := vol.GetDirectoryInfo(dirBlock)
	require.NoError(t, err)
	ino.DirectBlocks[1] = 12
	require.NoError(t, vol.WriteInode(dirBlock, &ino))

	err = vol.Check(dirBlock)
	require.Error(t, err)
	assert.ErrorIs(t, err, fsim.ErrCorruptedFileSystem)
}
