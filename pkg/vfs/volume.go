package vfs

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/cafs"
	"github.com/paninifs/panini/pkg/vfs/status"
)

// VolumeInfo describes the mounted volume
func (fs *FS) VolumeInfo() Volume {
	return Volume{
		Label:              fs.label,
		SerialNumber:       fs.serial,
		MaxComponentLength: fs.maxComponentLength,
		FileSystemName:     FileSystemName,
		CaseSensitive:      true,
	}
}

// DiskFreeSpace reports the space left on the device hosting the blobs
func (fs *FS) DiskFreeSpace() (Space, error) {
	space, err := diskSpace(fs.spaceRoot)
	if err != nil {
		return Space{}, status.ErrIO.Wrap(err)
	}
	return space, nil
}

// Unmounted commits the content of all handles still active
func (fs *FS) Unmounted(ctx context.Context) error {
	var merr error
	open := fs.handles.snapshot()
	for _, c := range open {
		c.mx.Lock()
		var (
			committed bool
			err       error
		)
		if c.state == stateActive && !c.deletePending {
			committed, err = fs.flushLocked(ctx, c)
		}
		c.mx.Unlock()

		merr = multierr.Append(merr, err)
		if committed {
			fs.committed(ctx, c.getPath(), c.node)
		}
	}
	fs.l.Info("unmounted", zap.Int("openHandles", len(open)), zap.Error(merr))
	return merr
}

// Reclaim removes the blobs no longer referenced by any file.
//
// Files unlinked while still open keep their content until the handle is closed.
// Commits wait for the reclamation to complete.
func (fs *FS) Reclaim(ctx context.Context) (res blob.SweepResult, err error) {
	defer func(t0 time.Time) { fs.record(t0, "Reclaim", err) }(time.Now())

	fs.commits.Lock()
	defer fs.commits.Unlock()

	live := make(map[cafs.Key]struct{})
	mark := func(n *node) {
		if ref := n.ref(); !ref.IsZero() {
			live[ref.Key] = struct{}{}
		}
	}
	walk(fs.ns.snapshot(), func(_ string, n *node) { mark(n) })
	for _, c := range fs.handles.snapshot() {
		mark(c.node)
	}

	res, err = fs.blobs.Sweep(ctx, func(k cafs.Key) bool {
		_, ok := live[k]
		return ok
	})
	if err != nil {
		return res, status.ErrIO.Wrap(err)
	}
	fs.l.Info("reclaimed blobs",
		zap.Int("live", len(live)), zap.Int("removed", res.Removed), zap.Int64("freed", res.Freed))
	return res, nil
}
