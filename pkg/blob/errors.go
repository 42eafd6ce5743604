package blob

import "github.com/paninifs/panini/pkg/errors"

var (
	// ErrNotFound is returned when no blob exists for a reference
	ErrNotFound = errors.New("blob not found")

	// ErrCorrupt is returned when the content read back does not match its address
	ErrCorrupt = errors.New("blob content does not match its address")

	// ErrIO wraps any failure of the storage backend
	ErrIO = errors.New("blob storage error")

	// ErrInvalidRef is returned for references which cannot designate a blob
	ErrInvalidRef = errors.New("invalid blob reference")
)
