package vfs

import (
	"context"

	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/semantic"
)

// persistLocked commits namespace changes to the catalog. Requires fs.persisting.
//
// fs.persisting is taken while fs.ns.mx is still held, so that commits reach the
// catalog in the order the namespace changed.
// The in-memory namespace is authoritative while mounted: a failure is logged.
func (fs *FS) persistLocked(ctx context.Context, removed []string, saved ...model.Entry) {
	if len(removed) == 0 && len(saved) == 0 {
		return
	}
	if err := fs.catalog.Commit(ctx, removed, saved...); err != nil {
		fs.l.Error("could not persist namespace change",
			zap.Strings("removed", removed), zap.Int("saved", len(saved)), zap.Error(err))
	}
}

// assert records a provenance assertion about a path. Failures are logged.
func (fs *FS) assert(ctx context.Context, subject, predicate, object string) {
	err := fs.side.RecordAssertion(ctx, semantic.Assertion{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
		Tier:      semantic.TierSystem,
	})
	if err != nil {
		fs.l.Warn("could not record assertion",
			zap.String("subject", subject), zap.String("predicate", predicate), zap.Error(err))
	}
}

// saveIfLinked persists a node only when it is still reachable at this path
func (fs *FS) saveIfLinked(ctx context.Context, pth string, n *node) bool {
	fs.ns.mx.Lock()
	current, found := lookupNode(fs.ns.tree, pth)
	if !found || current != n {
		fs.ns.mx.Unlock()
		return false
	}
	fs.persisting.Lock()
	fs.ns.mx.Unlock()

	fs.persistLocked(ctx, nil, n.entry(pth))
	fs.persisting.Unlock()
	return true
}

// created records a new entry. Requires fs.persisting, which is released.
func (fs *FS) created(ctx context.Context, pth string, n *node) {
	fs.persistLocked(ctx, nil, n.entry(pth))
	fs.persisting.Unlock()
	fs.assert(ctx, pth, semantic.PredicateKind, n.kind.String())
}

func (fs *FS) committed(ctx context.Context, pth string, n *node) {
	if !fs.saveIfLinked(ctx, pth, n) {
		fs.l.Debug("content committed to an unlinked file", zap.String("path", pth))
		return
	}
	ref := n.ref()
	fs.assert(ctx, pth, semantic.PredicateContent, ref.Key.String())
	if fs.MetricsEnabled() {
		fs.m.Volume.Files.Inc("commit")
		fs.m.Volume.Files.Size(ref.Size, "commit")
	}
}

// moved records a rename. Requires fs.persisting, which is released.
func (fs *FS) moved(ctx context.Context, oldPath, newPath string, removed []string, saved model.Entries) {
	fs.persistLocked(ctx, removed, saved...)
	fs.persisting.Unlock()
	fs.assert(ctx, newPath, semantic.PredicateMovedFrom, oldPath)
}

// deleted records a removal. Requires fs.persisting, which is released.
func (fs *FS) deleted(ctx context.Context, pth string) {
	fs.persistLocked(ctx, []string{pth})
	fs.persisting.Unlock()
	fs.assert(ctx, pth, semantic.PredicateDeleted, "true")
}
