// Package workspace assembles a panini file system from its configuration.
//
// A workspace owns the blob store under <root>/blobs, the metadata database
// and the virtual file system served over them.
package workspace

import (
	"context"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/config"
	"github.com/paninifs/panini/pkg/dlogger"
	"github.com/paninifs/panini/pkg/driver"
	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/metrics"
	"github.com/paninifs/panini/pkg/semantic"
	"github.com/paninifs/panini/pkg/storage/localfs"
	"github.com/paninifs/panini/pkg/store/bdgr"
	"github.com/paninifs/panini/pkg/vfs"
)

// ErrWorkspace is returned when a workspace cannot be opened
var ErrWorkspace = errors.New("cannot open workspace")

const dirMode = 0700

// Option for a workspace
type Option func(*options)

type options struct {
	l    *zap.Logger
	host afero.Fs
}

// Logger overrides the logger built from the configured log level
func Logger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.l = l
		}
	}
}

// HostFs sets the host file system holding the blob store. Defaults to the OS file system.
func HostFs(fs afero.Fs) Option {
	return func(o *options) {
		if fs != nil {
			o.host = fs
		}
	}
}

// Workspace is an opened panini workspace
type Workspace struct {
	cfg   config.Config
	l     *zap.Logger
	blobs blob.Store
	db    *bdgr.DB
	fs    *vfs.FS
}

// Open a workspace: the blob store, the metadata database and the file system reloaded from its catalog
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Workspace, error) {
	o := &options{host: afero.NewOsFs()}
	for _, apply := range opts {
		apply(o)
	}
	if o.l == nil {
		l, err := dlogger.GetLogger(cfg.LogLevel())
		if err != nil {
			return nil, ErrWorkspace.Wrap(err)
		}
		o.l = l
	}
	l := o.l.With(zap.String("workspace", cfg.Workspace()))
	if cfg.Metrics() {
		metrics.Init(metrics.WithLogger(l.With(zap.String("component", "metrics"))))
	}

	blobs, err := openBlobs(cfg, o.host, l)
	if err != nil {
		return nil, err
	}

	db, err := bdgr.Open(cfg.MetaPath(),
		bdgr.InMemory(cfg.InMemoryMeta()),
		bdgr.Logger(l.With(zap.String("component", "meta"))),
	)
	if err != nil {
		return nil, ErrWorkspace.Wrap(err)
	}

	fs, err := vfs.New(ctx, blobs,
		vfs.Catalog(db.Catalog()),
		vfs.SideTable(db.SideTable()),
		vfs.VolumeLabel(cfg.VolumeLabel()),
		vfs.MaxComponentLength(cfg.MaxComponentLength()),
		vfs.SpaceRoot(cfg.BlobRoot()),
		vfs.Logger(l.With(zap.String("component", "vfs"))),
		vfs.WithMetrics(cfg.Metrics()),
	)
	if err != nil {
		return nil, multierr.Append(ErrWorkspace.Wrap(err), db.Close())
	}

	l.Info("workspace opened",
		zap.String("label", cfg.VolumeLabel()),
		zap.Stringer("blobs", blobs),
		zap.String("meta", cfg.MetaPath()),
		zap.Bool("inMemoryMeta", cfg.InMemoryMeta()),
	)

	return &Workspace{
		cfg:   cfg,
		l:     l,
		blobs: blobs,
		db:    db,
		fs:    fs,
	}, nil
}

func openBlobs(cfg config.Config, host afero.Fs, l *zap.Logger) (blob.Store, error) {
	if err := host.MkdirAll(cfg.BlobRoot(), dirMode); err != nil {
		return nil, ErrWorkspace.Wrap(err)
	}
	backend, err := localfs.NewAtomic(afero.NewBasePathFs(host, cfg.BlobRoot()))
	if err != nil {
		return nil, ErrWorkspace.Wrap(err)
	}
	blobs, err := blob.New(
		blob.Backend(backend),
		blob.Ladder(cfg.Ladder()),
		blob.CacheSize(cfg.CacheSize()),
		blob.MaxCachedBlobSize(cfg.MaxCachedBlob()),
		blob.VerifyHash(cfg.VerifyHash()),
		blob.Logger(l.With(zap.String("component", "blobs"))),
		blob.WithMetrics(cfg.Metrics()),
	)
	if err != nil {
		return nil, ErrWorkspace.Wrap(err)
	}
	return blobs, nil
}

// Config of this workspace
func (w *Workspace) Config() config.Config { return w.cfg }

// Logger of this workspace
func (w *Workspace) Logger() *zap.Logger { return w.l }

// Blobs is the blob store of this workspace
func (w *Workspace) Blobs() blob.Store { return w.blobs }

// FS is the virtual file system of this workspace
func (w *Workspace) FS() *vfs.FS { return w.fs }

// SideTable is the provenance side-table of this workspace
func (w *Workspace) SideTable() semantic.SideTable { return w.db.SideTable() }

// Driver returns the host dispatch surface over the file system
func (w *Workspace) Driver() *driver.Driver {
	return driver.New(w.fs, driver.Logger(w.l.With(zap.String("component", "driver"))))
}

// Close commits open files and closes the metadata database
func (w *Workspace) Close(ctx context.Context) error {
	err := w.fs.Unmounted(ctx)
	err = multierr.Append(err, w.db.Close())
	if w.cfg.Metrics() {
		metrics.Flush()
	}
	_ = w.l.Sync()
	return err
}
