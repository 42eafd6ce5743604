// Package status exports errors produced by the fuse package.
package status

import (
	"github.com/paninifs/panini/pkg/errors"
)

var (
	// ErrNoFileSystem indicates that no file system was provided to serve the mount
	ErrNoFileSystem = errors.New("no file system to mount")

	// ErrMountPoint is an error while preparing the mount point directory
	ErrMountPoint = errors.New("cannot prepare mount point")

	// ErrNotMounted is returned when waiting on a file system which is not mounted
	ErrNotMounted = errors.New("file system is not mounted")
)
