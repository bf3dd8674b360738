package fsim

import "fmt"

// FSError is the base type for every error condition the file system reports.
// The constants below are sentinels; operations attach context with
// WithMessage or Wrap, and callers match with errors.Is against the sentinel.
type FSError string

const ErrIOFailed = FSError("input/output error")
const ErrDiskFull = FSError("disk is full - no free blocks available")
const ErrNotEnoughContiguousSpace = FSError("not enough contiguous space")
const ErrInvalidOffsetOrSize = FSError("invalid offset or size")
const ErrInvalidMetadata = FSError("invalid metadata")
const ErrCorruptedFileSystem = FSError("corrupted file system")
const ErrNotAFile = FSError("not a file")
const ErrNotADirectory = FSError("not a directory")
const ErrFileNotFound = FSError("file not found")
const ErrDirectoryNotEmpty = FSError("directory not empty")
const ErrInvalidFileName = FSError("invalid file name")
const ErrNotSupported = FSError("operation not supported")
const ErrSerialization = FSError("serialization error")
const ErrDeserialization = FSError("deserialization error")

func (e FSError) Error() string {
	return string(e)
}

// WithMessage returns an error that carries `message` as context and matches
// the receiver under errors.Is.
func (e FSError) WithMessage(message string) error {
	return wrappedError{
		message: fmt.Sprintf("%s: %s", string(e), message),
		parents: []error{e},
	}
}

// Wrap returns an error that matches both the receiver and `err` under
// errors.Is.
func (e FSError) Wrap(err error) error {
	return wrappedError{
		message: fmt.Sprintf("%s: %s", string(e), err.Error()),
		parents: []error{e, err},
	}
}

type wrappedError struct {
	message string
	parents []error
}

func (e wrappedError) Error() string {
	return e.message
}

func (e wrappedError) Unwrap() []error {
	return e.parents
}
