// Package vfs implements the file operations of a content-addressable file system.
//
// Files are mutable views over immutable blobs: every open handle writes to a
// private buffer, which is committed to the blob store on flush. Committing
// repoints the file to the new blob in one atomic step.
//
// Handles follow a strict lifecycle: Open makes a handle active, Cleanup
// releases its effects on the file system, and Close releases the handle.
package vfs

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/cafs"
	"github.com/paninifs/panini/pkg/metrics"
	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/semantic"
	"github.com/paninifs/panini/pkg/vfs/status"
)

// FS is a virtual file system backed by a blob store
type FS struct {
	blobs   blob.Store
	side    semantic.SideTable
	catalog model.Catalog
	l       *zap.Logger

	label              string
	maxComponentLength int
	spaceRoot          string
	serial             uint32

	ns      *namespace
	handles *handleTable

	// commits are shared with flushes, and exclusive during reclamation
	commits sync.RWMutex

	// orders catalog commits, taken under ns.mx
	persisting sync.Mutex

	metrics.Enable
	m *M
}

func defaultsForFS(blobs blob.Store) *FS {
	return &FS{
		blobs:              blobs,
		side:               semantic.Discard,
		catalog:            model.Discard,
		l:                  zap.NewNop(),
		label:              DefaultVolumeLabel,
		maxComponentLength: DefaultMaxComponentLength,
		spaceRoot:          ".",
		handles:            newHandleTable(),
	}
}

// New builds a file system over a blob store.
//
// The namespace is reloaded from the catalog. Entries with an invalid path are skipped,
// missing intermediate directories are restored.
func New(ctx context.Context, blobs blob.Store, opts ...Option) (*FS, error) {
	if blobs == nil {
		return nil, status.ErrInvalidParameter.WrapMessage("a blob store is required")
	}
	fs := defaultsForFS(blobs)
	for _, apply := range opts {
		apply(fs)
	}

	key := cafs.Sum([]byte(fs.label + "@" + fs.blobs.String()))
	fs.serial = binary.BigEndian.Uint32(key[:4])

	if fs.MetricsEnabled() {
		fs.m = fs.EnsureMetrics("vfs", &M{}).(*M)
	}

	if err := fs.load(ctx); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FS) load(ctx context.Context) error {
	now := time.Now().UTC()
	root := newNode(model.KindDir, 0, now)
	fs.ns = newNamespace(root)

	entries, err := fs.catalog.Load(ctx)
	if err != nil {
		return status.ErrIO.Wrap(err)
	}

	txn := fs.ns.tree.Txn()
	for _, e := range entries {
		pth, err := CleanPath(e.Path, fs.maxComponentLength)
		if err != nil {
			fs.l.Warn("skipping catalog entry", zap.String("path", e.Path), zap.Error(err))
			continue
		}
		if pth == rootPath {
			if e.IsDir() {
				root.setAttributes(e.Attributes)
				root.setTimes(e.Created, e.Accessed, e.Written)
			}
			continue
		}
		for dir := parentOf(pth); dir != rootPath; dir = parentOf(dir) {
			if _, found := txn.Get([]byte(dir)); found {
				break
			}
			fs.l.Warn("restoring missing directory", zap.String("path", dir))
			txn.Insert([]byte(dir), newNode(model.KindDir, 0, now))
		}
		e.Path = pth
		txn.Insert([]byte(pth), nodeFromEntry(e))
	}
	fs.ns.tree = txn.Commit()

	fs.l.Info("namespace loaded", zap.Int("entries", fs.ns.tree.Len()-1), zap.Uint32("serial", fs.serial))
	return nil
}

// Blobs is the blob store backing this file system
func (fs *FS) Blobs() blob.Store {
	return fs.blobs
}

// OpenHandles counts the handles not closed yet
func (fs *FS) OpenHandles() int {
	return fs.handles.len()
}

func (fs *FS) clean(pth string) (string, error) {
	return CleanPath(pth, fs.maxComponentLength)
}

// handle resolves an open context
func (fs *FS) handle(h HandleID, operation string) (*openContext, error) {
	c, ok := fs.handles.get(h)
	if !ok {
		fs.violation(operation, h, status.ErrInvalidHandle)
		return nil, status.ErrInvalidHandle.WrapMessage("handle %d", h)
	}
	return c, nil
}

// activeLocked checks that a handle is active. Requires c.mx.
func (fs *FS) activeLocked(c *openContext, operation string) error {
	if c.state == stateActive {
		return nil
	}
	fs.violation(operation, c.id, status.ErrOutOfOrder)
	return status.ErrOutOfOrder.WrapMessage("%s on handle %d in state %v", operation, c.id, c.state)
}

func (fs *FS) violation(operation string, h HandleID, err error) {
	fs.l.Warn("protocol violation", zap.String("op", operation), zap.Uint64("handle", uint64(h)), zap.Error(err))
	if fs.MetricsEnabled() {
		fs.m.Volume.Handles.IncViolation(operation)
	}
}

func (fs *FS) record(t0 time.Time, operation string, err error) {
	if fs.MetricsEnabled() {
		fs.m.Usage.UsedAll(t0, operation)(err)
	}
}
