// Package driver exposes the virtual file system through the verbs of a
// user-mode file system host.
//
// Each verb resolves the host state it receives, calls the file system and
// maps the outcome to a host status code.
package driver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/vfs"
	"github.com/paninifs/panini/pkg/vfs/status"
)

var _ Operations = &Driver{}

// Driver serves host verbs from a virtual file system
type Driver struct {
	fs *vfs.FS
	l  *zap.Logger
}

// Option for the driver
type Option func(*Driver)

// Logger sets a logger for the driver
func Logger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.l = l
		}
	}
}

// New driver over a file system
func New(fs *vfs.FS, opts ...Option) *Driver {
	d := &Driver{
		fs: fs,
		l:  zap.NewNop(),
	}
	for _, apply := range opts {
		apply(d)
	}
	return d
}

func (d *Driver) opStart(verb, fileName string) time.Time {
	d.l.Debug("Start", zap.String("Request", verb), zap.String("file", fileName))
	return time.Now()
}

func (d *Driver) opEnd(t0 time.Time, verb, fileName string, st *NtStatus, err *error) {
	d.l.Debug("End",
		zap.String("Request", verb),
		zap.String("file", fileName),
		zap.Stringer("status", *st),
		zap.Duration("elapsed", time.Since(t0)),
		zap.Error(*err),
	)
}

// result sets the status of a call from its error
func result(st *NtStatus, err error) NtStatus {
	*st = ToNtStatus(err)
	return *st
}

func toAccess(access FileAccess) vfs.Access {
	var res vfs.Access
	if access&readMask != 0 {
		res |= vfs.AccessRead
	}
	if access&writeMask != 0 {
		res |= vfs.AccessWrite
	}
	if access&(Delete|GenericAll) != 0 {
		res |= vfs.AccessDelete
	}
	return res
}

// CreateFile opens or creates an entry and allocates its context.
//
// Opening an existing entry with Create or OpenOrCreate reports ObjectNameCollision,
// the context remains allocated and must be cleaned up and closed by the host.
func (d *Driver) CreateFile(ctx context.Context, fileName string, info *FileInfo, access FileAccess, mode FileMode, options CreateOptions, attrs model.Attributes) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("CreateFile", fileName), "CreateFile", fileName, &st, &err)

	disposition, ok := dispositions[mode]
	if !ok {
		err = status.ErrInvalidParameter
		return result(&st, err)
	}

	h, res, err := d.fs.Open(ctx, vfs.OpenRequest{
		Path:          fileName,
		Access:        toAccess(access),
		Disposition:   disposition,
		Directory:     info.IsDirectory || options&DirectoryFile != 0,
		NonDirectory:  options&NonDirectoryFile != 0,
		DeleteOnClose: options&DeleteOnClose != 0,
		Attributes:    attrs,
	})
	if err != nil {
		return result(&st, err)
	}

	info.Context = h
	info.IsDirectory = res.IsDir
	info.DeleteOnClose = options&DeleteOnClose != 0

	if res.Existed && (mode == Create || mode == OpenOrCreate) {
		st = StatusAlreadyExists
		return st
	}
	return result(&st, nil)
}

// Cleanup is the first notification that the host is done with a context
func (d *Driver) Cleanup(ctx context.Context, fileName string, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("Cleanup", fileName), "Cleanup", fileName, &st, &err)

	err = d.fs.Cleanup(ctx, info.Context)
	return result(&st, err)
}

// CloseFile releases a context
func (d *Driver) CloseFile(ctx context.Context, fileName string, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("CloseFile", fileName), "CloseFile", fileName, &st, &err)

	err = d.fs.Close(ctx, info.Context)
	return result(&st, err)
}

// ReadFile reads from a context
func (d *Driver) ReadFile(ctx context.Context, fileName string, buffer []byte, offset int64, info *FileInfo) (n int, st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("ReadFile", fileName), "ReadFile", fileName, &st, &err)

	n, err = d.fs.Read(ctx, info.Context, buffer, offset)
	return n, result(&st, err)
}

// WriteFile writes to a context
func (d *Driver) WriteFile(ctx context.Context, fileName string, data []byte, offset int64, info *FileInfo) (n int, st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("WriteFile", fileName), "WriteFile", fileName, &st, &err)

	n, err = d.fs.Write(ctx, info.Context, data, offset)
	return n, result(&st, err)
}

// FlushFileBuffers commits the data written on a context
func (d *Driver) FlushFileBuffers(ctx context.Context, fileName string, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("FlushFileBuffers", fileName), "FlushFileBuffers", fileName, &st, &err)

	err = d.fs.Flush(ctx, info.Context)
	return result(&st, err)
}

// GetFileInformation describes the entry behind a context
func (d *Driver) GetFileInformation(ctx context.Context, fileName string, info *FileInfo) (res FileInformation, st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("GetFileInformation", fileName), "GetFileInformation", fileName, &st, &err)

	fi, err := d.fs.StatHandle(ctx, info.Context)
	if err != nil {
		return res, result(&st, err)
	}
	return fromFileInfo(fi), result(&st, nil)
}

// FindFiles lists a directory
func (d *Driver) FindFiles(ctx context.Context, fileName string, fill FillFindData, info *FileInfo) NtStatus {
	return d.FindFilesWithPattern(ctx, fileName, "", fill, info)
}

// FindFilesWithPattern lists the entries of a directory matching a wildcard pattern
func (d *Driver) FindFilesWithPattern(ctx context.Context, fileName, pattern string, fill FillFindData, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("FindFilesWithPattern", fileName), "FindFilesWithPattern", fileName, &st, &err)

	entries, err := d.fs.Enumerate(ctx, fileName, pattern)
	if err != nil {
		return result(&st, err)
	}
	for _, entry := range entries {
		if !fill(fromFileInfo(entry)) {
			break
		}
	}
	return result(&st, nil)
}

// SetFileAttributes changes the attributes of an entry
func (d *Driver) SetFileAttributes(ctx context.Context, fileName string, attrs model.Attributes, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("SetFileAttributes", fileName), "SetFileAttributes", fileName, &st, &err)

	err = d.fs.SetAttributes(ctx, fileName, attrs)
	return result(&st, err)
}

// SetFileTime changes the times of an entry. Zero times are left unchanged.
func (d *Driver) SetFileTime(ctx context.Context, fileName string, created, accessed, written time.Time, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("SetFileTime", fileName), "SetFileTime", fileName, &st, &err)

	err = d.fs.SetTimes(ctx, fileName, created, accessed, written)
	return result(&st, err)
}

// DeleteFile checks that a file may be deleted and marks it for deletion at cleanup
func (d *Driver) DeleteFile(ctx context.Context, fileName string, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("DeleteFile", fileName), "DeleteFile", fileName, &st, &err)

	err = d.delete(ctx, info, false)
	return result(&st, err)
}

// DeleteDirectory checks that a directory may be deleted and marks it for deletion at cleanup
func (d *Driver) DeleteDirectory(ctx context.Context, fileName string, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("DeleteDirectory", fileName), "DeleteDirectory", fileName, &st, &err)

	err = d.delete(ctx, info, true)
	return result(&st, err)
}

func (d *Driver) delete(ctx context.Context, info *FileInfo, dir bool) error {
	fi, err := d.fs.StatHandle(ctx, info.Context)
	if err != nil {
		return err
	}
	switch {
	case dir && !fi.IsDir:
		return status.ErrNotADirectory
	case !dir && fi.IsDir:
		return status.ErrAccessDenied
	}
	return d.fs.Delete(ctx, info.Context, info.DeleteOnClose)
}

// MoveFile renames an entry
func (d *Driver) MoveFile(ctx context.Context, fileName, newFileName string, replaceIfExisting bool, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("MoveFile", fileName), "MoveFile", fileName, &st, &err)

	err = d.fs.Move(ctx, fileName, newFileName, replaceIfExisting)
	return result(&st, err)
}

// SetEndOfFile sets the size of the file behind a context
func (d *Driver) SetEndOfFile(ctx context.Context, fileName string, length int64, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("SetEndOfFile", fileName), "SetEndOfFile", fileName, &st, &err)

	err = d.fs.SetEndOfFile(ctx, info.Context, length)
	return result(&st, err)
}

// SetAllocationSize truncates the file behind a context when it is larger than length
func (d *Driver) SetAllocationSize(ctx context.Context, fileName string, length int64, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("SetAllocationSize", fileName), "SetAllocationSize", fileName, &st, &err)

	err = d.fs.SetAllocationSize(ctx, info.Context, length)
	return result(&st, err)
}

// LockFile takes an exclusive lock on a byte range
func (d *Driver) LockFile(ctx context.Context, fileName string, offset, length int64, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("LockFile", fileName), "LockFile", fileName, &st, &err)

	err = d.fs.Lock(ctx, info.Context, offset, length)
	return result(&st, err)
}

// UnlockFile releases a byte range lock held by the context
func (d *Driver) UnlockFile(ctx context.Context, fileName string, offset, length int64, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("UnlockFile", fileName), "UnlockFile", fileName, &st, &err)

	err = d.fs.Unlock(ctx, info.Context, offset, length)
	return result(&st, err)
}

// GetDiskFreeSpace reports the space left on the device hosting the blobs
func (d *Driver) GetDiskFreeSpace(ctx context.Context) (space vfs.Space, st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("GetDiskFreeSpace", ""), "GetDiskFreeSpace", "", &st, &err)

	space, err = d.fs.DiskFreeSpace()
	return space, result(&st, err)
}

// GetVolumeInformation describes the volume
func (d *Driver) GetVolumeInformation(ctx context.Context) (VolumeInformation, NtStatus) {
	volume := d.fs.VolumeInfo()
	return VolumeInformation{
		VolumeLabel:            volume.Label,
		SerialNumber:           volume.SerialNumber,
		Features:               DefaultFeatures,
		FileSystemName:         volume.FileSystemName,
		MaximumComponentLength: volume.MaxComponentLength,
	}, StatusSuccess
}

// Mounted is called once the volume is available to the host
func (d *Driver) Mounted(ctx context.Context) NtStatus {
	volume := d.fs.VolumeInfo()
	d.l.Info("volume mounted", zap.String("label", volume.Label), zap.Uint32("serial", volume.SerialNumber))
	return StatusSuccess
}

// Unmounted commits the data of the contexts the host left open
func (d *Driver) Unmounted(ctx context.Context) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("Unmounted", ""), "Unmounted", "", &st, &err)

	err = d.fs.Unmounted(ctx)
	if err != nil {
		d.l.Error("could not commit open files at unmount", zap.Error(err))
	} else {
		d.l.Info("volume unmounted", zap.String("label", d.fs.VolumeInfo().Label))
	}
	return result(&st, err)
}

// GetFileSecurity lets the host apply its default security descriptor
func (d *Driver) GetFileSecurity(ctx context.Context, fileName string, info *FileInfo) ([]byte, NtStatus) {
	return nil, StatusNotImplemented
}

// SetFileSecurity lets the host apply its default security descriptor
func (d *Driver) SetFileSecurity(ctx context.Context, fileName string, descriptor []byte, info *FileInfo) NtStatus {
	return StatusNotImplemented
}

// FindStreams lists the data streams of an entry
func (d *Driver) FindStreams(ctx context.Context, fileName string, fill FillFindStreamData, info *FileInfo) (st NtStatus) {
	var err error
	defer d.opEnd(d.opStart("FindStreams", fileName), "FindStreams", fileName, &st, &err)

	streams, err := d.fs.Streams(ctx, fileName)
	if err != nil {
		return result(&st, err)
	}
	for _, stream := range streams {
		if !fill(stream) {
			break
		}
	}
	return result(&st, nil)
}
