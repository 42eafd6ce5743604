package driver

import (
	"time"

	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/vfs"
)

// FileAccess are the access rights requested by the host
type FileAccess uint32

// Access rights
const (
	ReadData     FileAccess = 0x00000001
	WriteData    FileAccess = 0x00000002
	AppendData   FileAccess = 0x00000004
	Delete       FileAccess = 0x00010000
	GenericAll   FileAccess = 0x10000000
	GenericWrite FileAccess = 0x40000000
	GenericRead  FileAccess = 0x80000000

	readMask  = ReadData | GenericRead | GenericAll
	writeMask = WriteData | AppendData | GenericWrite | GenericAll
)

// FileMode is the creation disposition requested by the host
type FileMode uint8

// Creation dispositions
const (
	CreateNew FileMode = iota + 1
	Create
	Open
	OpenOrCreate
	Truncate
	Append
)

var dispositions = map[FileMode]vfs.Disposition{
	CreateNew:    vfs.CreateNew,
	Create:       vfs.Create,
	Open:         vfs.Open,
	OpenOrCreate: vfs.OpenOrCreate,
	Truncate:     vfs.Truncate,
	Append:       vfs.Append,
}

// CreateOptions are the create flags passed by the host
type CreateOptions uint32

// Create flags
const (
	DirectoryFile    CreateOptions = 0x00000001
	NonDirectoryFile CreateOptions = 0x00000040
	DeleteOnClose    CreateOptions = 0x00001000
)

// FileSystemFeatures are the capabilities reported with the volume information
type FileSystemFeatures uint32

// Volume capabilities
const (
	CaseSensitiveSearch FileSystemFeatures = 0x00000001
	CasePreservedNames  FileSystemFeatures = 0x00000002
	UnicodeOnDisk       FileSystemFeatures = 0x00000004
	VolumeIsCompressed  FileSystemFeatures = 0x00008000

	// DefaultFeatures are reported for every volume
	DefaultFeatures = CaseSensitiveSearch | CasePreservedNames | UnicodeOnDisk | VolumeIsCompressed
)

// FileInfo is the per-handle state shared with the host
type FileInfo struct {
	// Context is the handle allocated by CreateFile
	Context vfs.HandleID

	// IsDirectory is set by the host when it expects a directory, and by CreateFile after resolution
	IsDirectory bool

	// DeleteOnClose is set by the host before DeleteFile and DeleteDirectory
	DeleteOnClose bool
}

// FileInformation describes an entry to the host
type FileInformation struct {
	FileName       string
	Attributes     model.Attributes
	CreationTime   time.Time
	LastAccessTime time.Time
	LastWriteTime  time.Time
	Length         int64
}

// VolumeInformation describes the volume to the host
type VolumeInformation struct {
	VolumeLabel            string
	SerialNumber           uint32
	Features               FileSystemFeatures
	FileSystemName         string
	MaximumComponentLength int
}

func fromFileInfo(info vfs.FileInfo) FileInformation {
	return FileInformation{
		FileName:       info.Name,
		Attributes:     info.Attributes,
		CreationTime:   info.Created,
		LastAccessTime: info.Accessed,
		LastWriteTime:  info.Written,
		Length:         info.Size,
	}
}
