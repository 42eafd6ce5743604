package fuse

import (
	"context"
	"math"
	"path"
	"time"

	"go.uber.org/zap"

	jfuse "github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/vfs"
	"github.com/paninifs/panini/pkg/vfs/status"
)

const (
	blockSize     = 4096
	ioSize        = 1 << 16
	reportedNodes = 1 << 32
)

func (fs *fsMutable) StatFS(
	ctx context.Context,
	op *fuseops.StatFSOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	space, e := fs.vfs.DiskFreeSpace()
	if e != nil {
		fs.l.Warn("cannot stat device", zap.Error(e))
		return toErrno(e)
	}
	op.BlockSize = blockSize
	op.IoSize = ioSize
	op.Blocks = space.TotalBytes / blockSize
	op.BlocksFree = space.TotalFreeBytes / blockSize
	op.BlocksAvailable = space.FreeBytesAvailable / blockSize
	op.Inodes = reportedNodes
	op.InodesFree = reportedNodes - uint64(fs.inodes.len())
	return nil
}

// childPath resolves the path of a named child of a directory inode
func (fs *fsMutable) childPath(parent fuseops.InodeID, name string) (string, error) {
	dir, found := fs.inodes.pathOf(parent)
	if !found {
		return "", jfuse.ENOENT
	}
	return path.Join(dir, name), nil
}

// stat describes an inode, including the data not yet committed by its open handles
func (fs *fsMutable) stat(ctx context.Context, iNode fuseops.InodeID) (vfs.FileInfo, error) {
	if h, found := fs.openHandle(iNode); found {
		info, err := fs.vfs.StatHandle(ctx, h)
		if err == nil {
			return info, nil
		}
	}
	pth, found := fs.inodes.pathOf(iNode)
	if !found {
		return vfs.FileInfo{}, jfuse.ENOENT
	}
	info, err := fs.vfs.Stat(ctx, pth)
	return info, toErrno(err)
}

func (fs *fsMutable) openHandle(iNode fuseops.InodeID) (vfs.HandleID, bool) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	for h, owner := range fs.files {
		if owner == iNode {
			return vfs.HandleID(h), true
		}
	}
	return 0, false
}

func (fs *fsMutable) fillEntry(entry *fuseops.ChildInodeEntry, iNode fuseops.InodeID, info vfs.FileInfo) {
	entry.Child = iNode
	entry.Generation = 1
	entry.Attributes = fs.attributes(info)
	entry.AttributesExpiration = fs.expiration()
	entry.EntryExpiration = entry.AttributesExpiration
}

func (fs *fsMutable) LookUpInode(
	ctx context.Context,
	op *fuseops.LookUpInodeOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	pth, err := fs.childPath(op.Parent, op.Name)
	if err != nil {
		return err
	}
	info, e := fs.vfs.Stat(ctx, pth)
	if e != nil {
		return toErrno(e)
	}
	fs.fillEntry(&op.Entry, fs.inodes.ref(pth, 1), info)
	return nil
}

func (fs *fsMutable) GetInodeAttributes(
	ctx context.Context,
	op *fuseops.GetInodeAttributesOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	info, err := fs.stat(ctx, op.Inode)
	if err != nil {
		return err
	}
	op.Attributes = fs.attributes(info)
	op.AttributesExpiration = fs.expiration()
	return nil
}

func (fs *fsMutable) SetInodeAttributes(
	ctx context.Context,
	op *fuseops.SetInodeAttributesOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	pth, found := fs.inodes.pathOf(op.Inode)
	if !found {
		return jfuse.ENOENT
	}

	if op.Size != nil {
		if *op.Size > math.MaxInt64 {
			fs.l.Error("Received size greater than MaxInt64", zap.Uint64("size", *op.Size), zap.Uint64("inode", uint64(op.Inode)))
			return jfuse.EINVAL
		}
		if err = fs.truncate(ctx, op.Inode, pth, int64(*op.Size)); err != nil {
			return err
		}
	}

	if op.Mode != nil {
		// only the owner write bit is kept, as the read-only attribute
		info, e := fs.vfs.Stat(ctx, pth)
		if e != nil {
			return toErrno(e)
		}
		attrs := info.Attributes & model.AttrSettable
		if *op.Mode&0200 == 0 {
			attrs |= model.AttrReadOnly
		} else {
			attrs &^= model.AttrReadOnly
		}
		if attrs == 0 {
			attrs = model.AttrNormal
		}
		if e = fs.vfs.SetAttributes(ctx, pth, attrs); e != nil {
			return toErrno(e)
		}
	}

	if op.Atime != nil || op.Mtime != nil {
		var accessed, written time.Time
		if op.Atime != nil {
			accessed = *op.Atime
		}
		if op.Mtime != nil {
			written = *op.Mtime
		}
		if e := fs.vfs.SetTimes(ctx, pth, time.Time{}, accessed, written); e != nil {
			return toErrno(e)
		}
	}

	info, err := fs.stat(ctx, op.Inode)
	if err != nil {
		return err
	}
	op.Attributes = fs.attributes(info)
	op.AttributesExpiration = fs.expiration()
	return nil
}

// truncate resizes a file through one of its open handles, or a transient one
func (fs *fsMutable) truncate(ctx context.Context, iNode fuseops.InodeID, pth string, size int64) error {
	if h, found := fs.openHandle(iNode); found {
		err := fs.vfs.SetEndOfFile(ctx, h, size)
		if err == nil || !errors.Is(err, status.ErrAccessDenied) {
			return toErrno(err)
		}
	}
	return toErrno(fs.vfs.Truncate(ctx, pth, size))
}

func (fs *fsMutable) ForgetInode(
	ctx context.Context,
	op *fuseops.ForgetInodeOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	fs.inodes.forget(op.Inode, op.N)
	return nil
}

func (fs *fsMutable) MkDir(
	ctx context.Context,
	op *fuseops.MkDirOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	pth, err := fs.childPath(op.Parent, op.Name)
	if err != nil {
		return err
	}
	if e := fs.vfs.Mkdir(ctx, pth); e != nil {
		return toErrno(e)
	}
	info, e := fs.vfs.Stat(ctx, pth)
	if e != nil {
		return toErrno(e)
	}
	fs.fillEntry(&op.Entry, fs.inodes.ref(pth, 1), info)
	return nil
}

func (fs *fsMutable) CreateFile(
	ctx context.Context,
	op *fuseops.CreateFileOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	pth, err := fs.childPath(op.Parent, op.Name)
	if err != nil {
		return err
	}
	var attrs model.Attributes
	if op.Mode&0200 == 0 {
		attrs = model.AttrReadOnly
	}
	h, _, e := fs.vfs.Open(ctx, vfs.OpenRequest{
		Path:         pth,
		Access:       vfs.AccessRead | vfs.AccessWrite,
		Disposition:  vfs.CreateNew,
		NonDirectory: true,
		Attributes:   attrs,
	})
	if e != nil {
		return toErrno(e)
	}
	info, e := fs.vfs.StatHandle(ctx, h)
	if e != nil {
		_ = fs.releaseHandle(ctx, h)
		return toErrno(e)
	}

	iNode := fs.inodes.ref(pth, 1)
	fs.trackFile(fuseops.HandleID(h), iNode)
	fs.fillEntry(&op.Entry, iNode, info)
	op.Handle = fuseops.HandleID(h)
	return nil
}

// From man 2 rename:
// If newpath exists but the operation fails for some reason, rename() guarantees to leave an instance of newpath in place.
// oldpath can specify a directory.  In this case, newpath must either not exist, or it must specify an empty directory.
func (fs *fsMutable) Rename(
	ctx context.Context,
	op *fuseops.RenameOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	oldPath, err := fs.childPath(op.OldParent, op.OldName)
	if err != nil {
		return err
	}
	newPath, err := fs.childPath(op.NewParent, op.NewName)
	if err != nil {
		return err
	}

	source, e := fs.vfs.Stat(ctx, oldPath)
	if e != nil {
		return toErrno(e)
	}
	if target, e := fs.vfs.Stat(ctx, newPath); e == nil && oldPath != newPath {
		switch {
		case target.IsDir && !source.IsDir:
			return toErrno(status.ErrIsADirectory)
		case !target.IsDir && source.IsDir:
			return toErrno(status.ErrNotADirectory)
		case target.IsDir:
			// an empty directory may be replaced
			if e = fs.vfs.Remove(ctx, newPath); e != nil {
				return toErrno(e)
			}
			fs.inodes.unlink(newPath)
		}
	}

	if e = fs.vfs.Move(ctx, oldPath, newPath, true); e != nil {
		return toErrno(e)
	}
	fs.inodes.move(oldPath, newPath)
	return nil
}

func (fs *fsMutable) RmDir(
	ctx context.Context,
	op *fuseops.RmDirOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	return fs.remove(ctx, op.Parent, op.Name, true)
}

func (fs *fsMutable) Unlink(
	ctx context.Context,
	op *fuseops.UnlinkOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	return fs.remove(ctx, op.Parent, op.Name, false)
}

func (fs *fsMutable) remove(ctx context.Context, parent fuseops.InodeID, name string, dir bool) error {
	pth, err := fs.childPath(parent, name)
	if err != nil {
		return err
	}
	info, err := fs.vfs.Stat(ctx, pth)
	if err != nil {
		return toErrno(err)
	}
	switch {
	case dir && !info.IsDir:
		return toErrno(status.ErrNotADirectory)
	case !dir && info.IsDir:
		return toErrno(status.ErrIsADirectory)
	}
	if err = fs.vfs.Remove(ctx, pth); err != nil {
		return toErrno(err)
	}
	fs.inodes.unlink(pth)
	return nil
}

func (fs *fsMutable) OpenDir(
	ctx context.Context,
	op *fuseops.OpenDirOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	pth, found := fs.inodes.pathOf(op.Inode)
	if !found {
		return jfuse.ENOENT
	}
	children, e := fs.vfs.Enumerate(ctx, pth, "")
	if e != nil {
		return toErrno(e)
	}

	d := &dirHandle{entries: make([]fuseutil.Dirent, 0, len(children))}
	for i, child := range children {
		iNode, known := fs.inodes.inodeOf(child.Path)
		if !known {
			iNode = fs.inodes.ref(child.Path, 0)
			d.unreferenced = append(d.unreferenced, iNode)
		}
		typ := fuseutil.DT_File
		if child.IsDir {
			typ = fuseutil.DT_Directory
		}
		d.entries = append(d.entries, fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  iNode,
			Name:   child.Name,
			Type:   typ,
		})
	}

	fs.lock.Lock()
	fs.nextDirHandle++
	op.Handle = fs.nextDirHandle
	fs.dirs[op.Handle] = d
	fs.lock.Unlock()
	return nil
}

func (fs *fsMutable) ReadDir(
	ctx context.Context,
	op *fuseops.ReadDirOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	fs.lock.Lock()
	d, found := fs.dirs[op.Handle]
	fs.lock.Unlock()
	if !found {
		return toErrno(status.ErrInvalidHandle)
	}

	offset := int(op.Offset)
	if offset > len(d.entries) {
		return nil
	}
	for _, entry := range d.entries[offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], entry)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *fsMutable) ReleaseDirHandle(
	ctx context.Context,
	op *fuseops.ReleaseDirHandleOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	fs.lock.Lock()
	d, found := fs.dirs[op.Handle]
	delete(fs.dirs, op.Handle)
	fs.lock.Unlock()
	if !found {
		return nil
	}
	for _, iNode := range d.unreferenced {
		fs.inodes.release(iNode)
	}
	return nil
}

func (fs *fsMutable) OpenFile(
	ctx context.Context,
	op *fuseops.OpenFileOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	pth, found := fs.inodes.pathOf(op.Inode)
	if !found {
		return jfuse.ENOENT
	}
	info, e := fs.vfs.Stat(ctx, pth)
	if e != nil {
		return toErrno(e)
	}
	access := vfs.AccessRead | vfs.AccessWrite
	if info.Attributes.Has(model.AttrReadOnly) {
		access = vfs.AccessRead
	}
	h, _, e := fs.vfs.Open(ctx, vfs.OpenRequest{
		Path:         pth,
		Access:       access,
		Disposition:  vfs.Open,
		NonDirectory: true,
	})
	if e != nil {
		return toErrno(e)
	}
	fs.trackFile(fuseops.HandleID(h), op.Inode)
	op.Handle = fuseops.HandleID(h)
	return nil
}

func (fs *fsMutable) ReadFile(
	ctx context.Context,
	op *fuseops.ReadFileOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	op.BytesRead, err = fs.vfs.Read(ctx, vfs.HandleID(op.Handle), op.Dst, op.Offset)
	return toErrno(err)
}

func (fs *fsMutable) WriteFile(
	ctx context.Context,
	op *fuseops.WriteFileOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	_, err = fs.vfs.Write(ctx, vfs.HandleID(op.Handle), op.Data, op.Offset)
	return toErrno(err)
}

func (fs *fsMutable) SyncFile(
	ctx context.Context,
	op *fuseops.SyncFileOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	return toErrno(fs.vfs.Flush(ctx, vfs.HandleID(op.Handle)))
}

func (fs *fsMutable) FlushFile(
	ctx context.Context,
	op *fuseops.FlushFileOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	return toErrno(fs.vfs.Flush(ctx, vfs.HandleID(op.Handle)))
}

func (fs *fsMutable) ReleaseFileHandle(
	ctx context.Context,
	op *fuseops.ReleaseFileHandleOp) (err error) {
	t0 := fs.opStart(op)
	defer func() { fs.opEnd(t0, op, err) }()

	fs.lock.Lock()
	delete(fs.files, op.Handle)
	fs.lock.Unlock()
	return toErrno(fs.releaseHandle(ctx, vfs.HandleID(op.Handle)))
}

func (fs *fsMutable) trackFile(h fuseops.HandleID, iNode fuseops.InodeID) {
	fs.lock.Lock()
	fs.files[h] = iNode
	fs.lock.Unlock()
}

// releaseHandle ends the lifecycle of a handle of the backing file system
func (fs *fsMutable) releaseHandle(ctx context.Context, h vfs.HandleID) error {
	if err := fs.vfs.Cleanup(ctx, h); err != nil {
		fs.l.Warn("cleanup failed", zap.Uint64("hndl", uint64(h)), zap.Error(err))
		_ = fs.vfs.Close(ctx, h)
		return err
	}
	return fs.vfs.Close(ctx, h)
}

func (fs *fsMutable) GetXattr(
	ctx context.Context,
	op *fuseops.GetXattrOp) error {
	// extended attributes are not supported
	return jfuse.ENOATTR
}

func (fs *fsMutable) ListXattr(
	ctx context.Context,
	op *fuseops.ListXattrOp) error {
	return nil
}

func (fs *fsMutable) Destroy() {
	if err := fs.vfs.Unmounted(context.Background()); err != nil {
		fs.l.Error("could not commit open files", zap.Error(err))
	}
}
