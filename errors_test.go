package fsim_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	fsim "github.com/anishh747/file-system-simulator"
)

func TestFSErrorWithMessage(t *testing.T) {
	newErr := fsim.ErrNotSupported.WithMessage("directory is full")
	assert.Equal(
		t, "operation not supported: directory is full", newErr.Error(),
		"error message is wrong")
	assert.ErrorIs(t, newErr, fsim.ErrNotSupported)
}

func TestFSErrorWrap(t *testing.T) {
	originalErr := errors.New("original error")
	newErr := fsim.ErrIOFailed.Wrap(originalErr)
	expectedMessage := "input/output error: original error"

	assert.EqualValues(t, expectedMessage, newErr.Error(), "error message is wrong")
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, fsim.ErrIOFailed, "sentinel not set as parent")
}

func TestFSErrorSentinelsAreDistinct(t *testing.T) {
	err := fsim.ErrInvalidMetadata.WithMessage("empty directory entry")
	assert.NotErrorIs(t, err, fsim.ErrCorruptedFileSystem)
	assert.NotErrorIs(t, err, fsim.ErrIOFailed)
}
