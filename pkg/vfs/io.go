package vfs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/vfs/status"
)

// Read content at some offset. Reading at or past the end of the file returns 0 bytes.
//
// A handle reads its own uncommitted writes. Other handles read the committed content.
func (fs *FS) Read(ctx context.Context, h HandleID, dst []byte, offset int64) (n int, err error) {
	t0 := time.Now()
	defer func() {
		if fs.MetricsEnabled() {
			fs.m.Volume.IO.IORecord(t0, "Read")(int64(n), err)
		}
	}()

	c, err := fs.handle(h, "Read")
	if err != nil {
		return 0, err
	}
	if err = validRange(offset, int64(len(dst))); err != nil {
		return 0, err
	}

	c.mx.RLock()
	defer c.mx.RUnlock()
	if err = fs.activeLocked(c, "Read"); err != nil {
		return 0, err
	}
	if c.node.isDir() {
		return 0, status.ErrIsADirectory.WrapMessage("%s", c.getPath())
	}
	if err = c.node.checkRange(h, offset, int64(len(dst))); err != nil {
		return 0, err
	}

	var data []byte
	if c.materialized {
		data = c.buf
	} else if ref := c.node.ref(); ref.Size > 0 {
		data, err = fs.blobs.Get(ctx, ref)
		if err != nil {
			fs.l.Error("could not read blob", zap.String("path", c.getPath()), zap.Stringer("blob", ref), zap.Error(err))
			return 0, status.ErrIO.Wrap(err)
		}
	}
	c.node.touch(time.Now().UTC())

	if offset >= int64(len(data)) {
		return 0, nil
	}
	return copy(dst, data[offset:]), nil
}

// Write content at some offset. Writing past the end of the file fills the gap with zeros.
// Handles opened to append always write at the end.
func (fs *FS) Write(ctx context.Context, h HandleID, data []byte, offset int64) (n int, err error) {
	t0 := time.Now()
	defer func() {
		if fs.MetricsEnabled() {
			fs.m.Volume.IO.IORecord(t0, "Write")(int64(n), err)
		}
	}()

	c, err := fs.handle(h, "Write")
	if err != nil {
		return 0, err
	}

	c.mx.Lock()
	defer c.mx.Unlock()
	if err = fs.writableLocked(c, "Write"); err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	if err = fs.materializeLocked(ctx, c); err != nil {
		return 0, err
	}
	if c.appendOnly {
		offset = int64(len(c.buf))
	}
	if err = validRange(offset, int64(len(data))); err != nil {
		return 0, err
	}
	end := offset + int64(len(data))
	if end > MaxFileSize {
		return 0, status.ErrInvalidParameter.WrapMessage("writing up to %d exceeds the maximum file size", end)
	}
	if err = c.node.checkRange(h, offset, int64(len(data))); err != nil {
		return 0, err
	}

	c.resizeLocked(end, false)
	n = copy(c.buf[offset:], data)
	c.dirty = true
	return n, nil
}

// Flush commits the content written through a handle. A clean handle is left alone.
func (fs *FS) Flush(ctx context.Context, h HandleID) (err error) {
	defer func(t0 time.Time) { fs.record(t0, "Flush", err) }(time.Now())

	c, err := fs.handle(h, "Flush")
	if err != nil {
		return err
	}
	c.mx.Lock()
	if err = fs.activeLocked(c, "Flush"); err != nil {
		c.mx.Unlock()
		return err
	}
	committed, err := fs.flushLocked(ctx, c)
	c.mx.Unlock()

	if committed {
		fs.committed(ctx, c.getPath(), c.node)
	}
	return err
}

// flushLocked puts a dirty buffer in the blob store and repoints the file to it. Requires c.mx.
//
// The buffer is released: the handle reads the committed content from now on.
func (fs *FS) flushLocked(ctx context.Context, c *openContext) (bool, error) {
	if !c.dirty {
		return false, nil
	}

	fs.commits.RLock()
	ref, err := fs.blobs.Put(ctx, c.buf)
	if err != nil {
		fs.commits.RUnlock()
		fs.l.Error("could not commit content", zap.String("path", c.getPath()), zap.Error(err))
		return false, status.ErrIO.Wrap(err)
	}
	c.node.commit(ref, time.Now().UTC())
	fs.commits.RUnlock()

	fs.l.Debug("committed", zap.String("path", c.getPath()), zap.Stringer("blob", ref))
	c.buf, c.materialized, c.dirty = nil, false, false
	return true, nil
}

// materializeLocked copies the committed content into the write buffer of a handle. Requires c.mx.
func (fs *FS) materializeLocked(ctx context.Context, c *openContext) error {
	if c.materialized {
		return nil
	}
	ref := c.node.ref()
	if ref.Size > 0 {
		data, err := fs.blobs.Get(ctx, ref)
		if err != nil {
			fs.l.Error("could not read blob", zap.String("path", c.getPath()), zap.Stringer("blob", ref), zap.Error(err))
			return status.ErrIO.Wrap(err)
		}
		// blobs may be shared with the read cache
		c.buf = append(make([]byte, 0, len(data)), data...)
	}
	c.materialized = true
	return nil
}

// resizeLocked grows the buffer with zeros, or shrinks it when shrink is set. Requires c.mx.
func (c *openContext) resizeLocked(size int64, shrink bool) {
	switch {
	case size > int64(len(c.buf)):
		if size <= int64(cap(c.buf)) {
			tail := c.buf[len(c.buf):size]
			for i := range tail {
				tail[i] = 0
			}
			c.buf = c.buf[:size]
			return
		}
		grown := make([]byte, size, size+size/4)
		copy(grown, c.buf)
		c.buf = grown
	case shrink && size < int64(len(c.buf)):
		c.buf = c.buf[:size]
	}
}

// writableLocked checks that a handle may change the content of its file. Requires c.mx.
func (fs *FS) writableLocked(c *openContext, operation string) error {
	if err := fs.activeLocked(c, operation); err != nil {
		return err
	}
	if c.node.isDir() {
		return status.ErrIsADirectory.WrapMessage("%s", c.getPath())
	}
	if !c.access.Has(AccessWrite) {
		return status.ErrAccessDenied.WrapMessage("%s: handle %d is not open for writing", c.getPath(), c.id)
	}
	return nil
}

// SetEndOfFile truncates or extends the file of a handle
func (fs *FS) SetEndOfFile(ctx context.Context, h HandleID, size int64) error {
	c, err := fs.handle(h, "SetEndOfFile")
	if err != nil {
		return err
	}
	if size < 0 || size > MaxFileSize {
		return status.ErrInvalidParameter.WrapMessage("end of file at %d", size)
	}

	c.mx.Lock()
	defer c.mx.Unlock()
	if err = fs.writableLocked(c, "SetEndOfFile"); err != nil {
		return err
	}
	if size == c.sizeLocked() {
		return nil
	}
	if err = fs.materializeLocked(ctx, c); err != nil {
		return err
	}
	c.resizeLocked(size, true)
	c.dirty = true
	return nil
}

// SetAllocationSize truncates the file of a handle when the allocation is smaller than
// its size. Larger allocations are ignored: storage is allocated on commit.
func (fs *FS) SetAllocationSize(ctx context.Context, h HandleID, size int64) error {
	c, err := fs.handle(h, "SetAllocationSize")
	if err != nil {
		return err
	}
	c.mx.RLock()
	current := c.sizeLocked()
	err = fs.activeLocked(c, "SetAllocationSize")
	c.mx.RUnlock()
	if err != nil {
		return err
	}
	if size >= current {
		return nil
	}
	return fs.SetEndOfFile(ctx, h, size)
}

// StatHandle describes the file of a handle, including its uncommitted size
func (fs *FS) StatHandle(ctx context.Context, h HandleID) (FileInfo, error) {
	c, err := fs.handle(h, "StatHandle")
	if err != nil {
		return FileInfo{}, err
	}
	c.mx.RLock()
	defer c.mx.RUnlock()
	if c.state == stateClosed {
		return FileInfo{}, fs.activeLocked(c, "StatHandle")
	}
	info := c.node.info(c.getPath())
	info.Size = c.sizeLocked()
	return info, nil
}

// Lock a byte range for exclusive use by a handle
func (fs *FS) Lock(ctx context.Context, h HandleID, offset, length int64) error {
	c, err := fs.handle(h, "Lock")
	if err != nil {
		return err
	}
	if err = validRange(offset, length); err != nil {
		return err
	}
	c.mx.RLock()
	defer c.mx.RUnlock()
	if err = fs.activeLocked(c, "Lock"); err != nil {
		return err
	}
	return c.node.lockRange(h, offset, length)
}

// Unlock a byte range previously locked by the same handle
func (fs *FS) Unlock(ctx context.Context, h HandleID, offset, length int64) error {
	c, err := fs.handle(h, "Unlock")
	if err != nil {
		return err
	}
	c.mx.RLock()
	defer c.mx.RUnlock()
	if err = fs.activeLocked(c, "Unlock"); err != nil {
		return err
	}
	return c.node.unlockRange(h, offset, length)
}
