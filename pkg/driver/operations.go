package driver

import (
	"context"
	"time"

	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/vfs"
)

// FillFindData receives the entries listed by FindFiles. Returning false stops the listing.
type FillFindData func(FileInformation) bool

// FillFindStreamData receives the streams listed by FindStreams. Returning false stops the listing.
type FillFindStreamData func(vfs.Stream) bool

// Operations is the set of verbs a host calls on a mounted volume.
//
// Every verb reports its outcome as a NtStatus. File names use either separator.
type Operations interface {
	CreateFile(ctx context.Context, fileName string, info *FileInfo, access FileAccess, mode FileMode, options CreateOptions, attrs model.Attributes) NtStatus
	Cleanup(ctx context.Context, fileName string, info *FileInfo) NtStatus
	CloseFile(ctx context.Context, fileName string, info *FileInfo) NtStatus

	ReadFile(ctx context.Context, fileName string, buffer []byte, offset int64, info *FileInfo) (int, NtStatus)
	WriteFile(ctx context.Context, fileName string, data []byte, offset int64, info *FileInfo) (int, NtStatus)
	FlushFileBuffers(ctx context.Context, fileName string, info *FileInfo) NtStatus

	GetFileInformation(ctx context.Context, fileName string, info *FileInfo) (FileInformation, NtStatus)
	FindFiles(ctx context.Context, fileName string, fill FillFindData, info *FileInfo) NtStatus
	FindFilesWithPattern(ctx context.Context, fileName, pattern string, fill FillFindData, info *FileInfo) NtStatus
	SetFileAttributes(ctx context.Context, fileName string, attrs model.Attributes, info *FileInfo) NtStatus
	SetFileTime(ctx context.Context, fileName string, created, accessed, written time.Time, info *FileInfo) NtStatus

	DeleteFile(ctx context.Context, fileName string, info *FileInfo) NtStatus
	DeleteDirectory(ctx context.Context, fileName string, info *FileInfo) NtStatus
	MoveFile(ctx context.Context, fileName, newFileName string, replaceIfExisting bool, info *FileInfo) NtStatus

	SetEndOfFile(ctx context.Context, fileName string, length int64, info *FileInfo) NtStatus
	SetAllocationSize(ctx context.Context, fileName string, length int64, info *FileInfo) NtStatus
	LockFile(ctx context.Context, fileName string, offset, length int64, info *FileInfo) NtStatus
	UnlockFile(ctx context.Context, fileName string, offset, length int64, info *FileInfo) NtStatus

	GetDiskFreeSpace(ctx context.Context) (vfs.Space, NtStatus)
	GetVolumeInformation(ctx context.Context) (VolumeInformation, NtStatus)
	Mounted(ctx context.Context) NtStatus
	Unmounted(ctx context.Context) NtStatus

	GetFileSecurity(ctx context.Context, fileName string, info *FileInfo) ([]byte, NtStatus)
	SetFileSecurity(ctx context.Context, fileName string, descriptor []byte, info *FileInfo) NtStatus
	FindStreams(ctx context.Context, fileName string, fill FillFindStreamData, info *FileInfo) NtStatus
}
