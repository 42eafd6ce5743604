package vfs

import (
	"context"
	"time"

	iradix "github.com/hashicorp/go-immutable-radix"
	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/vfs/status"
)

// Open resolves or creates an entry and returns an active handle on it
func (fs *FS) Open(ctx context.Context, req OpenRequest) (h HandleID, res OpenResult, err error) {
	defer func(t0 time.Time) { fs.record(t0, "Open", err) }(time.Now())

	pth, err := fs.clean(req.Path)
	if err != nil {
		return 0, res, err
	}
	if req.Directory && req.NonDirectory {
		return 0, res, status.ErrInvalidParameter.WrapMessage("%s: both a directory and a file are expected", pth)
	}
	lg := fs.l.With(zap.String("path", pth), zap.Stringer("disposition", req.Disposition))
	lg.Debug("open")

	fs.ns.mx.Lock()
	n, existed, err := fs.resolveLocked(pth, req)
	if err == nil && req.DeleteOnClose {
		err = canDelete(fs.ns.tree, pth, n)
	}
	if err != nil {
		if !existed && n != nil {
			fs.ns.tree, _, _ = fs.ns.tree.Delete([]byte(pth))
		}
		fs.ns.mx.Unlock()
		lg.Debug("open failed", zap.Error(err))
		return 0, res, err
	}
	if !existed {
		// released by created
		fs.persisting.Lock()
	}
	fs.ns.mx.Unlock()

	c := &openContext{
		node:          n,
		path:          pth,
		access:        req.Access,
		appendOnly:    req.Disposition == Append,
		deletePending: req.DeleteOnClose,
	}
	if c.appendOnly {
		c.access |= AccessWrite
	}
	if existed && !n.isDir() && req.Disposition.resets() {
		// the file is emptied when this handle commits
		c.materialized = true
		c.dirty = true
	}
	h = fs.handles.add(c)

	if !existed {
		fs.created(ctx, pth, n)
	}
	if fs.MetricsEnabled() {
		fs.m.Volume.Handles.IncOpened()
	}
	lg.Debug("opened", zap.Uint64("handle", uint64(h)), zap.Bool("existed", existed))
	return h, OpenResult{Existed: existed, IsDir: n.isDir()}, nil
}

// resolveLocked finds or creates the node for an Open request. Requires fs.ns.mx.
//
// A node created here is already inserted in the namespace.
func (fs *FS) resolveLocked(pth string, req OpenRequest) (*node, bool, error) {
	tree := fs.ns.tree
	n, found := lookupNode(tree, pth)
	if found {
		switch {
		case req.Disposition == CreateNew:
			return n, true, status.ErrExists.WrapMessage("%s", pth)
		case req.Directory && !n.isDir():
			return n, true, status.ErrNotADirectory.WrapMessage("%s", pth)
		case req.NonDirectory && n.isDir():
			return n, true, status.ErrIsADirectory.WrapMessage("%s", pth)
		case n.isDir() && req.Disposition.resets() && !req.Directory:
			return n, true, status.ErrIsADirectory.WrapMessage("%s", pth)
		case !n.isDir() && n.readOnly() && (req.Access.Has(AccessWrite) || req.Disposition.resets() || req.Disposition == Append):
			return n, true, status.ErrAccessDenied.WrapMessage("%s is read-only", pth)
		}
		return n, true, nil
	}

	if _, isDir := lookupDir(tree, parentOf(pth)); !isDir {
		return nil, false, status.ErrPathNotFound.WrapMessage("%s", parentOf(pth))
	}
	if !req.Disposition.creates() {
		return nil, false, status.ErrNotFound.WrapMessage("%s", pth)
	}

	kind := model.KindFile
	if req.Directory {
		kind = model.KindDir
	}
	n = newNode(kind, req.Attributes, time.Now().UTC())
	fs.ns.tree, _, _ = tree.Insert([]byte(pth), n)
	return n, false, nil
}

// canDelete checks that an entry may be deleted from the namespace
func canDelete(tree *iradix.Tree, pth string, n *node) error {
	current, found := lookupNode(tree, pth)
	switch {
	case !found || current != n:
		return status.ErrNotFound.WrapMessage("%s", pth)
	case pth == rootPath:
		return status.ErrAccessDenied.WrapMessage("the root directory cannot be deleted")
	case n.isDir() && hasChildren(tree, pth):
		return status.ErrDirectoryNotEmpty.WrapMessage("%s", pth)
	case n.readOnly():
		return status.ErrAccessDenied.WrapMessage("%s is read-only", pth)
	}
	return nil
}

// Delete checks that the entry of a handle may be deleted, then marks it for deletion
// on cleanup. With deleteOnClose unset, a pending deletion is cancelled.
func (fs *FS) Delete(ctx context.Context, h HandleID, deleteOnClose bool) error {
	c, err := fs.handle(h, "Delete")
	if err != nil {
		return err
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	if err := fs.activeLocked(c, "Delete"); err != nil {
		return err
	}
	if !deleteOnClose {
		c.deletePending = false
		return nil
	}
	pth := c.getPath()
	if err := canDelete(fs.ns.snapshot(), pth, c.node); err != nil {
		fs.l.Debug("delete denied", zap.String("path", pth), zap.Error(err))
		return err
	}
	c.deletePending = true
	return nil
}

// Cleanup ends the effects of a handle on the file system: dirty content is committed,
// byte range locks are released and a pending deletion is carried out.
func (fs *FS) Cleanup(ctx context.Context, h HandleID) (err error) {
	defer func(t0 time.Time) { fs.record(t0, "Cleanup", err) }(time.Now())

	c, err := fs.handle(h, "Cleanup")
	if err != nil {
		return err
	}

	c.mx.Lock()
	if err = fs.activeLocked(c, "Cleanup"); err != nil {
		c.mx.Unlock()
		return err
	}
	c.state = stateCleanupRequested
	deletePending := c.deletePending

	var committed bool
	if deletePending {
		c.buf, c.materialized, c.dirty = nil, false, false
	} else {
		committed, err = fs.flushLocked(ctx, c)
	}
	c.mx.Unlock()

	c.node.releaseLocks(h)
	pth := c.getPath()

	if deletePending {
		return fs.unlink(ctx, pth, c.node)
	}
	if committed {
		fs.committed(ctx, pth, c.node)
	}
	return err
}

// unlink removes an entry from the namespace. Its blob stays until reclamation.
func (fs *FS) unlink(ctx context.Context, pth string, n *node) error {
	fs.ns.mx.Lock()
	current, found := lookupNode(fs.ns.tree, pth)
	if !found || current != n {
		// removed or replaced meanwhile
		fs.ns.mx.Unlock()
		return nil
	}
	if n.isDir() && hasChildren(fs.ns.tree, pth) {
		fs.ns.mx.Unlock()
		return status.ErrDirectoryNotEmpty.WrapMessage("%s", pth)
	}
	fs.ns.tree, _, _ = fs.ns.tree.Delete([]byte(pth))
	fs.persisting.Lock()
	fs.ns.mx.Unlock()

	fs.l.Debug("deleted", zap.String("path", pth))
	fs.deleted(ctx, pth)
	return nil
}

// Close releases a handle after Cleanup. Unknown handles are ignored.
func (fs *FS) Close(ctx context.Context, h HandleID) error {
	c, ok := fs.handles.get(h)
	if !ok {
		fs.l.Debug("close on unknown handle", zap.Uint64("handle", uint64(h)))
		return nil
	}

	c.mx.Lock()
	if c.state == stateActive {
		c.mx.Unlock()
		fs.violation("Close", h, status.ErrOutOfOrder)
		return status.ErrOutOfOrder.WrapMessage("close on handle %d before cleanup", h)
	}
	c.state = stateClosed
	c.buf, c.materialized, c.dirty = nil, false, false
	c.mx.Unlock()

	fs.handles.remove(h)
	c.node.releaseLocks(h)
	if fs.MetricsEnabled() {
		fs.m.Volume.Handles.IncClosed()
	}
	return nil
}
