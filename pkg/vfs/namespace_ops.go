package vfs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/vfs/status"
)

// Stat describes an entry
func (fs *FS) Stat(ctx context.Context, pth string) (FileInfo, error) {
	pth, err := fs.clean(pth)
	if err != nil {
		return FileInfo{}, err
	}
	n, found := fs.ns.get(pth)
	if !found {
		return FileInfo{}, status.ErrNotFound.WrapMessage("%s", pth)
	}
	return n.info(pth), nil
}

// Enumerate the immediate children of a directory, sorted by name.
//
// An optional wildcard pattern filters children by name.
func (fs *FS) Enumerate(ctx context.Context, dir, pattern string) ([]FileInfo, error) {
	dir, err := fs.clean(dir)
	if err != nil {
		return nil, err
	}
	tree := fs.ns.snapshot()
	n, found := lookupNode(tree, dir)
	switch {
	case !found:
		return nil, status.ErrNotFound.WrapMessage("%s", dir)
	case !n.isDir():
		return nil, status.ErrNotADirectory.WrapMessage("%s", dir)
	}

	entries := children(tree, dir)
	res := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !Match(pattern, baseOf(e.path)) {
			continue
		}
		res = append(res, e.node.info(e.path))
	}
	return res, nil
}

// Move renames an entry. A directory moves with all its descendants.
//
// An existing file at the destination is replaced only when replace is set.
// A directory is never replaced. The content of moved files is left untouched.
func (fs *FS) Move(ctx context.Context, oldPath, newPath string, replace bool) (err error) {
	defer func(t0 time.Time) { fs.record(t0, "Move", err) }(time.Now())

	oldPath, err = fs.clean(oldPath)
	if err != nil {
		return err
	}
	newPath, err = fs.clean(newPath)
	if err != nil {
		return err
	}
	lg := fs.l.With(zap.String("from", oldPath), zap.String("to", newPath), zap.Bool("replace", replace))
	lg.Debug("move")

	if oldPath == rootPath || newPath == rootPath {
		return status.ErrAccessDenied.WrapMessage("the root directory cannot be moved")
	}

	fs.ns.mx.Lock()
	removed, saved, err := fs.moveLocked(oldPath, newPath, replace)
	if err != nil {
		fs.ns.mx.Unlock()
		lg.Debug("move failed", zap.Error(err))
		return err
	}
	if len(saved) == 0 {
		fs.ns.mx.Unlock()
		return nil
	}
	fs.persisting.Lock()
	fs.ns.mx.Unlock()

	fs.moved(ctx, oldPath, newPath, removed, saved)
	return nil
}

// moveLocked rebases a subtree of the namespace. Requires fs.ns.mx.
func (fs *FS) moveLocked(oldPath, newPath string, replace bool) ([]string, model.Entries, error) {
	tree := fs.ns.tree
	if _, found := lookupNode(tree, oldPath); !found {
		return nil, nil, status.ErrNotFound.WrapMessage("%s", oldPath)
	}
	if oldPath == newPath {
		return nil, nil, nil
	}
	if isWithin(newPath, oldPath) {
		return nil, nil, status.ErrInvalidParameter.WrapMessage("cannot move %s into itself", oldPath)
	}
	if _, isDir := lookupDir(tree, parentOf(newPath)); !isDir {
		return nil, nil, status.ErrPathNotFound.WrapMessage("%s", parentOf(newPath))
	}

	var removed []string
	txn := tree.Txn()
	if target, exists := lookupNode(tree, newPath); exists {
		switch {
		case !replace:
			return nil, nil, status.ErrExists.WrapMessage("%s", newPath)
		case target.isDir():
			return nil, nil, status.ErrAccessDenied.WrapMessage("cannot replace directory %s", newPath)
		}
		txn.Delete([]byte(newPath))
		removed = append(removed, newPath)
	}

	moving := subtree(tree, oldPath)
	saved := make(model.Entries, 0, len(moving))
	for _, e := range moving {
		txn.Delete([]byte(e.path))
		removed = append(removed, e.path)
	}
	for _, e := range moving {
		target := rebase(e.path, oldPath, newPath)
		txn.Insert([]byte(target), e.node)
		saved = append(saved, e.node.entry(target))
	}
	fs.ns.tree = txn.Commit()

	for _, c := range fs.handles.snapshot() {
		c.rebase(oldPath, newPath)
	}
	return removed, saved, nil
}

// SetAttributes changes the settable attribute flags of an entry. Zero leaves them unchanged.
func (fs *FS) SetAttributes(ctx context.Context, pth string, attrs model.Attributes) error {
	pth, err := fs.clean(pth)
	if err != nil {
		return err
	}
	n, found := fs.ns.get(pth)
	if !found {
		return status.ErrNotFound.WrapMessage("%s", pth)
	}
	if attrs == 0 {
		return nil
	}
	n.setAttributes(attrs)
	fs.saveIfLinked(ctx, pth, n)
	return nil
}

// SetTimes changes the times of an entry. Zero times are left unchanged.
func (fs *FS) SetTimes(ctx context.Context, pth string, created, accessed, written time.Time) error {
	pth, err := fs.clean(pth)
	if err != nil {
		return err
	}
	n, found := fs.ns.get(pth)
	if !found {
		return status.ErrNotFound.WrapMessage("%s", pth)
	}
	n.setTimes(created, accessed, written)
	fs.saveIfLinked(ctx, pth, n)
	return nil
}

// Streams lists the data streams of an entry: files only have their default stream
func (fs *FS) Streams(ctx context.Context, pth string) ([]Stream, error) {
	info, err := fs.Stat(ctx, pth)
	if err != nil {
		return nil, err
	}
	if info.IsDir {
		return nil, nil
	}
	return []Stream{{Name: defaultStreamSuffix, Size: info.Size}}, nil
}
