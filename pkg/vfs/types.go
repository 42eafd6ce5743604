package vfs

import (
	"time"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/model"
)

const (
	// FileSystemName is reported in volume information
	FileSystemName = "PaniniFS"

	// DefaultVolumeLabel is used when no label is configured
	DefaultVolumeLabel = "panini"

	// MaxFileSize is the largest file size accepted by writes and size changes
	MaxFileSize int64 = 1 << 34
)

// Access requested when opening an entry
type Access uint8

// Access rights
const (
	AccessRead Access = 1 << iota
	AccessWrite
	AccessDelete
)

// Has tells if all rights in mask are requested
func (a Access) Has(mask Access) bool {
	return a&mask == mask
}

// Disposition tells Open what to do when the entry exists, or does not
type Disposition uint8

// Dispositions
const (
	// Open an existing entry, fail if it does not exist
	Open Disposition = iota
	// CreateNew creates an entry, fail if it exists
	CreateNew
	// Create creates an entry, or overwrites an existing file
	Create
	// OpenOrCreate opens an existing entry, or creates it
	OpenOrCreate
	// Truncate opens an existing file and empties it
	Truncate
	// Append opens or creates a file, every write goes to its end
	Append
)

var dispositionNames = [...]string{"open", "createNew", "create", "openOrCreate", "truncate", "append"}

func (d Disposition) String() string {
	if int(d) < len(dispositionNames) {
		return dispositionNames[d]
	}
	return "unknown"
}

func (d Disposition) creates() bool {
	return d != Open && d != Truncate
}

func (d Disposition) resets() bool {
	return d == Create || d == Truncate
}

// OpenRequest describes an Open call
type OpenRequest struct {
	Path        string
	Access      Access
	Disposition Disposition

	// Directory is set when the caller expects or creates a directory
	Directory bool

	// NonDirectory is set when the caller insists on a file
	NonDirectory bool

	// DeleteOnClose marks the entry for deletion once the handle is cleaned up
	DeleteOnClose bool

	// Attributes of a created entry
	Attributes model.Attributes
}

// OpenResult tells what Open found
type OpenResult struct {
	// Existed is set when the entry was already there
	Existed bool
	IsDir   bool
}

// FileInfo describes an entry
type FileInfo struct {
	Name       string           `json:"name" yaml:"name"`
	Path       string           `json:"path" yaml:"path"`
	IsDir      bool             `json:"isDir" yaml:"isDir"`
	Size       int64            `json:"size" yaml:"size"`
	Attributes model.Attributes `json:"attributes" yaml:"attributes"`
	Created    time.Time        `json:"created" yaml:"created"`
	Accessed   time.Time        `json:"accessed" yaml:"accessed"`
	Written    time.Time        `json:"written" yaml:"written"`
	Ref        blob.Ref         `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Volume information
type Volume struct {
	Label              string `json:"label" yaml:"label"`
	SerialNumber       uint32 `json:"serialNumber" yaml:"serialNumber"`
	MaxComponentLength int    `json:"maxComponentLength" yaml:"maxComponentLength"`
	FileSystemName     string `json:"fileSystemName" yaml:"fileSystemName"`
	CaseSensitive      bool   `json:"caseSensitive" yaml:"caseSensitive"`
}

// Space reports the free space of the device hosting the blobs
type Space struct {
	FreeBytesAvailable uint64 `json:"freeBytesAvailable" yaml:"freeBytesAvailable"`
	TotalBytes         uint64 `json:"totalBytes" yaml:"totalBytes"`
	TotalFreeBytes     uint64 `json:"totalFreeBytes" yaml:"totalFreeBytes"`
}

// Stream describes a data stream of a file
type Stream struct {
	Name string `json:"name" yaml:"name"`
	Size int64  `json:"size" yaml:"size"`
}
