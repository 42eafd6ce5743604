package fuse

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"go.uber.org/zap"

	jfuse "github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"golang.org/x/sys/unix"

	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/metrics"
	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/vfs"
	"github.com/paninifs/panini/pkg/vfs/status"
)

var _ fuseutil.FileSystem = &fsMutable{}

type fsMutable struct {
	fuseutil.NotImplementedFileSystem

	// Backing file system
	vfs *vfs.FS

	// Inodes known to the kernel
	inodes *inodeTable

	// Open handles: file handles are the handles of the backing file system
	lock          sync.Mutex
	files         map[fuseops.HandleID]fuseops.InodeID
	dirs          map[fuseops.HandleID]*dirHandle
	nextDirHandle fuseops.HandleID

	uid, gid uint32
	ttl      time.Duration

	// logger
	l *zap.Logger

	metrics.Enable
	m *M
}

// dirHandle holds the listing of a directory taken when it was opened
type dirHandle struct {
	entries []fuseutil.Dirent

	// inodes allocated for this listing only
	unreferenced []fuseops.InodeID
}

func (fs *fsMutable) opStart(op interface{}) time.Time {
	logger := fs.l.With(zap.String("Request", fmt.Sprintf("%T", op)))
	switch t := op.(type) {
	case *fuseops.StatFSOp:
		logger.Debug("Start")
	case *fuseops.ReadFileOp:
		logger.Debug("Start", zap.Uint64("inode", uint64(t.Inode)), zap.Int("buffer", len(t.Dst)), zap.Int64("offset", t.Offset))
	case *fuseops.WriteFileOp:
		logger.Debug("Start", zap.Uint64("inode", uint64(t.Inode)), zap.Int("size", len(t.Data)), zap.Int64("offset", t.Offset))
	case *fuseops.ReadDirOp:
		logger.Debug("Start", zap.Uint64("inode", uint64(t.Inode)), zap.Uint64("offset", uint64(t.Offset)))
	case *fuseops.LookUpInodeOp:
		logger.Debug("Start", zap.Uint64("parent", uint64(t.Parent)), zap.String("child", t.Name))
	case *fuseops.GetInodeAttributesOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Inode)))
	case *fuseops.SetInodeAttributesOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Inode)))
	case *fuseops.ForgetInodeOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Inode)), zap.Uint64("lookups", t.N))
	case *fuseops.MkDirOp:
		logger.Debug("Start", zap.Uint64("parent", uint64(t.Parent)), zap.String("name", t.Name))
	case *fuseops.CreateFileOp:
		logger.Debug("Start", zap.Uint64("parent", uint64(t.Parent)), zap.String("name", t.Name))
	case *fuseops.RenameOp:
		logger.Debug("Start", zap.Uint64("oldP", uint64(t.OldParent)), zap.String("oldN", t.OldName),
			zap.Uint64("nP", uint64(t.NewParent)), zap.String("nN", t.NewName))
	case *fuseops.OpenDirOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Inode)))
	case *fuseops.ReleaseDirHandleOp:
		logger.Debug("Start", zap.Uint64("hndl", uint64(t.Handle)))
	case *fuseops.OpenFileOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Inode)))
	case *fuseops.SyncFileOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Inode)), zap.Uint64("hndl", uint64(t.Handle)))
	case *fuseops.FlushFileOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Inode)), zap.Uint64("hndl", uint64(t.Handle)))
	case *fuseops.ReleaseFileHandleOp:
		logger.Debug("Start", zap.Uint64("hndl", uint64(t.Handle)))
	case *fuseops.RmDirOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Parent)), zap.String("name", t.Name))
	case *fuseops.UnlinkOp:
		logger.Debug("Start", zap.Uint64("id", uint64(t.Parent)), zap.String("name", t.Name))
	default:
		logger.Debug("Start", zap.Any("op", op))
	}
	return time.Now()
}

func (fs *fsMutable) opEnd(t0 time.Time, op interface{}, err error) {
	opName := fmt.Sprintf("%T", op)
	logger := fs.l.With(zap.String("Request", opName))
	switch t := op.(type) {
	case *fuseops.StatFSOp:
		logger.Debug("End", zap.Uint64("blocks", t.Blocks), zap.Uint64("free", t.BlocksFree), zap.Error(err))
	case *fuseops.ReadFileOp:
		logger.Debug("End", zap.Uint64("inode", uint64(t.Inode)), zap.Int("read", t.BytesRead), zap.Error(err))
	case *fuseops.WriteFileOp:
		logger.Debug("End", zap.Uint64("inode", uint64(t.Inode)), zap.Error(err))
	case *fuseops.ReadDirOp:
		logger.Debug("End", zap.Uint64("inode", uint64(t.Inode)), zap.Int("read", t.BytesRead), zap.Error(err))
	case *fuseops.LookUpInodeOp:
		logger.Debug("End", zap.Uint64("parent", uint64(t.Parent)), zap.String("child", t.Name),
			zap.Uint64("inode", uint64(t.Entry.Child)), zap.Error(err))
	case *fuseops.CreateFileOp:
		logger.Debug("End", zap.Uint64("parent", uint64(t.Parent)), zap.String("name", t.Name),
			zap.Uint64("inode", uint64(t.Entry.Child)), zap.Uint64("hndl", uint64(t.Handle)), zap.Error(err))
	case *fuseops.OpenFileOp:
		logger.Debug("End", zap.Uint64("id", uint64(t.Inode)), zap.Uint64("hndl", uint64(t.Handle)), zap.Error(err))
	case *fuseops.OpenDirOp:
		logger.Debug("End", zap.Uint64("id", uint64(t.Inode)), zap.Uint64("hndl", uint64(t.Handle)), zap.Error(err))
	default:
		logger.Debug("End", zap.Error(err))
	}
	if fs.MetricsEnabled() {
		fs.m.Usage.UsedAll(t0, opName)(err)
		switch t := op.(type) {
		case *fuseops.ReadFileOp:
			fs.m.Volume.IO.IORecord(t0, opName)(int64(t.BytesRead), err)
		case *fuseops.WriteFileOp:
			fs.m.Volume.IO.IORecord(t0, opName)(int64(len(t.Data)), err)
		}
	}
}

var intSize = unsafe.Sizeof(uint64(0))

func formKey(id fuseops.InodeID) []byte {
	b := make([]byte, intSize)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

var errnoMap = []struct {
	err   error
	errno error
}{
	{err: status.ErrNotFound, errno: jfuse.ENOENT},
	{err: status.ErrPathNotFound, errno: jfuse.ENOENT},
	{err: status.ErrInvalidName, errno: jfuse.EINVAL},
	{err: status.ErrInvalidParameter, errno: jfuse.EINVAL},
	{err: status.ErrExists, errno: jfuse.EEXIST},
	{err: status.ErrNotADirectory, errno: jfuse.ENOTDIR},
	{err: status.ErrIsADirectory, errno: unix.EISDIR},
	{err: status.ErrDirectoryNotEmpty, errno: jfuse.ENOTEMPTY},
	{err: status.ErrAccessDenied, errno: unix.EACCES},
	{err: status.ErrInvalidHandle, errno: unix.EBADF},
	{err: status.ErrOutOfOrder, errno: unix.EBADF},
	{err: status.ErrLockConflict, errno: unix.EAGAIN},
	{err: status.ErrNotLocked, errno: unix.ENOLCK},
	{err: status.ErrNotImplemented, errno: jfuse.ENOSYS},
}

// toErrno maps an error from the file system to the errno returned to the kernel
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	for _, m := range errnoMap {
		if errors.Is(err, m.err) {
			return m.errno
		}
	}
	return jfuse.EIO
}

// attributes of an entry, as reported to the kernel
func (fs *fsMutable) attributes(info vfs.FileInfo) fuseops.InodeAttributes {
	attr := fuseops.InodeAttributes{
		Size:   uint64(info.Size),
		Nlink:  fileLinkCount,
		Mode:   fileDefaultMode,
		Atime:  info.Accessed,
		Mtime:  info.Written,
		Ctime:  info.Written,
		Crtime: info.Created,
		Uid:    fs.uid,
		Gid:    fs.gid,
	}
	readOnly := info.Attributes.Has(model.AttrReadOnly)
	switch {
	case info.IsDir && readOnly:
		attr.Nlink, attr.Mode, attr.Size = dirLinkCount, dirReadOnlyMode, dirInitialSize
	case info.IsDir:
		attr.Nlink, attr.Mode, attr.Size = dirLinkCount, dirDefaultMode, dirInitialSize
	case readOnly:
		attr.Mode = fileReadOnlyMode
	}
	return attr
}

func (fs *fsMutable) expiration() time.Time {
	return time.Now().Add(fs.ttl)
}
