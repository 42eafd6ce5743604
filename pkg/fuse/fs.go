// Package fuse serves the virtual file system as a FUSE mount.
package fuse

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	jfuse "github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/paninifs/panini/pkg/dlogger"
	"github.com/paninifs/panini/pkg/fuse/status"
	"github.com/paninifs/panini/pkg/vfs"
)

const (
	defaultAttributesTTL                 = time.Second
	dirLinkCount         uint32          = 2
	fileLinkCount        uint32          = 1
	rootPath                             = "/"
	firstINode           fuseops.InodeID = 1023
	dirDefaultMode                       = 0777 | os.ModeDir
	fileDefaultMode                      = 0666
	dirReadOnlyMode                      = 0555 | os.ModeDir
	fileReadOnlyMode                     = 0444
	dirInitialSize                       = 64
	subType                              = "panini"
)

// MountableFS knows how to mount and unmount a file system
type MountableFS interface {
	Mount(string, ...MountOption) error
	Unmount(string) error
}

var _ MountableFS = &MutableFS{}

// MutableFS is the read-write FUSE file system served from a virtual file system
type MutableFS struct {
	mfs        *jfuse.MountedFileSystem // The mounted filesystem
	fsInternal *fsMutable               // The core of the filesystem
	server     jfuse.Server             // Fuse server
}

func defaultMutableFS(backing *vfs.FS) *fsMutable {
	return &fsMutable{
		vfs:    backing,
		inodes: newInodeTable(),
		files:  make(map[fuseops.HandleID]fuseops.InodeID),
		dirs:   make(map[fuseops.HandleID]*dirHandle),
		uid:    uint32(os.Getuid()),
		gid:    uint32(os.Getgid()),
		ttl:    defaultAttributesTTL,
		l:      dlogger.MustGetLogger("info"),
	}
}

// NewMutableFS creates a new FUSE file system over a virtual file system
func NewMutableFS(backing *vfs.FS, opts ...Option) (*MutableFS, error) {
	if backing == nil {
		return nil, status.ErrNoFileSystem
	}

	fs := defaultMutableFS(backing)
	for _, apply := range opts {
		apply(fs)
	}
	if fs.MetricsEnabled() {
		fs.m = fs.EnsureMetrics("fuse", &M{}).(*M)
	}
	fs.l = fs.l.With(zap.String("volume", backing.VolumeInfo().Label))

	return &MutableFS{
		fsInternal: fs,
		server:     fuseutil.NewFileSystemServer(fs),
	}, nil
}

func prepPath(path string) error {
	if err := os.MkdirAll(path, dirDefaultMode); err != nil {
		return status.ErrMountPoint.Wrap(err)
	}
	return nil
}

func (dfs *MutableFS) defaultMountConfig() *jfuse.MountConfig {
	volume := dfs.fsInternal.vfs.VolumeInfo()
	return &jfuse.MountConfig{
		Subtype:    subType, // mount appears as "fuse.panini"
		FSName:     volume.FileSystemName,
		VolumeName: volume.Label, // NOTE: OSX only option
	}
}

// Mount a MutableFS as mutable (read-write)
func (dfs *MutableFS) Mount(path string, opts ...MountOption) error {
	err := prepPath(path)
	if err != nil {
		return err
	}
	mountCfg := dfs.defaultMountConfig()
	for _, apply := range opts {
		apply(mountCfg)
	}

	el, _ := zap.NewStdLogAt(dfs.fsInternal.l.
		With(zap.String("fuse", "mutable mount"), zap.String("mountpoint", path)), zapcore.ErrorLevel)
	dl, _ := zap.NewStdLogAt(dfs.fsInternal.l.
		With(zap.String("fuse-debug", "mutable mount"), zap.String("mountpoint", path)), zapcore.DebugLevel)
	mountCfg.ErrorLogger = el
	mountCfg.DebugLogger = dl

	dfs.mfs, err = jfuse.Mount(path, dfs.server, mountCfg)
	if err == nil {
		dfs.fsInternal.l.Info("mounting", zap.String("mountpoint", path))
	}
	return err
}

// Unmount a MutableFS. Data written on handles still open is committed first.
func (dfs *MutableFS) Unmount(path string) error {
	if err := dfs.fsInternal.vfs.Unmounted(context.Background()); err != nil {
		dfs.fsInternal.l.Error("could not commit open files", zap.String("mountpoint", path), zap.Error(err))
	}
	dfs.fsInternal.l.Info("unmounting", zap.String("mountpoint", path))
	return jfuse.Unmount(path)
}

// JoinMount blocks until a mounted file system has been unmounted.
// It does not return successfully until all ops read from the connection have been responded to
// (i.e. the file system server has finished processing all in-flight ops).
func (dfs *MutableFS) JoinMount(ctx context.Context) error {
	if dfs.mfs == nil {
		return status.ErrNotMounted
	}
	return dfs.mfs.Join(ctx)
}
