// Package status exports errors produced by the vfs package.
//
// Host adapters map these sentinels to their own status codes.
package status

import (
	"github.com/paninifs/panini/pkg/errors"
)

var (
	// ErrNotFound indicates that the named entry does not exist
	ErrNotFound = errors.New("no such file or directory")

	// ErrPathNotFound indicates that an intermediate directory does not exist
	ErrPathNotFound = errors.New("path not found")

	// ErrInvalidName indicates a malformed path
	ErrInvalidName = errors.New("invalid name")

	// ErrExists indicates that the entry already exists
	ErrExists = errors.New("file exists")

	// ErrNotADirectory indicates that a directory was expected
	ErrNotADirectory = errors.New("not a directory")

	// ErrIsADirectory indicates that a file was expected
	ErrIsADirectory = errors.New("is a directory")

	// ErrDirectoryNotEmpty indicates that a directory still has children
	ErrDirectoryNotEmpty = errors.New("directory not empty")

	// ErrAccessDenied indicates that the entry cannot be modified this way
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidParameter indicates that an argument is out of range
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidHandle indicates an unknown handle
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrOutOfOrder indicates an operation issued in the wrong lifecycle state of a handle
	ErrOutOfOrder = errors.New("operation out of order")

	// ErrLockConflict indicates that a byte range is locked by another handle
	ErrLockConflict = errors.New("byte range lock conflict")

	// ErrNotLocked indicates that the byte range to unlock is not held
	ErrNotLocked = errors.New("byte range not locked")

	// ErrIO indicates a failure of the underlying blob store
	ErrIO = errors.New("i/o error")

	// ErrNotImplemented indicates an operation which is not supported
	ErrNotImplemented = errors.New("not implemented")
)

// IsProtocol tells if an error reports a misuse of handles rather than a file system condition
func IsProtocol(err error) bool {
	return errors.Is(err, ErrInvalidHandle) || errors.Is(err, ErrOutOfOrder)
}
