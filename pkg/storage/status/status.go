// Copyright © 2018 One Concern

// Package status declares the errors returned by storage backends.
//
// They live apart from pkg/storage so that backends and the blob store
// may share them without an import cycle.
package status

import "github.com/paninifs/panini/pkg/errors"

var (
	// ErrNotExists is returned when the requested key holds no object
	ErrNotExists = errors.New("object doesn't exist")

	// ErrExists is returned by a put without overwrite on an existing key
	ErrExists = errors.New("exists already")

	// ErrInvalidResource is returned for keys a backend cannot hold, such as its own staging area
	ErrInvalidResource = errors.New("invalid storage resource name")

	// ErrStorageAPI wraps any other failure of the underlying file system
	ErrStorageAPI = errors.New("storage API error")
)
