// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paninifs/panini/pkg/storage"
	"github.com/paninifs/panini/pkg/storage/status"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
)

// New creates a new local file system backed storage model
func New(fs afero.Fs) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".panini", "blobs"))
	}
	return &localFS{
		fs: fs,
	}
}

type localFS struct {
	fs afero.Fs
}

func (l *localFS) Has(ctx context.Context, key string) (bool, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.ErrStorageAPI.Wrap(err)
	}

	return !fi.IsDir(), nil
}

func (l *localFS) Stat(ctx context.Context, key string) (storage.Entry, error) {
	fi, err := l.fs.Stat(key)
	if err != nil {
		if os.IsNotExist(err) {
			return storage.Entry{}, status.ErrNotExists.WrapMessage("key %q", key)
		}
		return storage.Entry{}, status.ErrStorageAPI.Wrap(err)
	}
	if fi.IsDir() {
		return storage.Entry{}, status.ErrNotExists.WrapMessage("key %q is a directory", key)
	}
	return storage.Entry{Key: toKey(key), Size: fi.Size()}, nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	t, err := l.fs.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotExists.WrapMessage("key %q", key)
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	fi, err := t.Stat()
	if err != nil {
		_ = t.Close()
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	if fi.IsDir() {
		_ = t.Close()
		return nil, status.ErrNotExists.WrapMessage("key %q is a directory", key)
	}
	return t, nil
}

func (l *localFS) ensureDir(key string) error {
	dir := filepath.Dir(key)
	if dir == "" || dir == "." {
		return nil
	}
	if err := l.fs.MkdirAll(dir, 0700); err != nil {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring directories for %q: %v", key, err))
	}
	return nil
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := l.ensureDir(key); err != nil {
		return err
	}
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if exclusive {
		flag |= os.O_EXCL
	}
	target, err := l.fs.OpenFile(key, flag, 0600)
	if err != nil {
		if os.IsExist(err) {
			return status.ErrExists.WrapMessage("key %q", key)
		}
		return status.ErrStorageAPI.Wrap(fmt.Errorf("create record for %q: %v", key, err))
	}

	if _, err = io.Copy(target, source); err != nil {
		_ = target.Close()
		return status.ErrStorageAPI.Wrap(fmt.Errorf("write record for %q: %v", key, err))
	}
	if err = target.Sync(); err != nil {
		_ = target.Close()
		return status.ErrStorageAPI.Wrap(fmt.Errorf("sync record for %q: %v", key, err))
	}
	if err = target.Close(); err != nil {
		return status.ErrStorageAPI.Wrap(err)
	}
	return nil
}

func (l *localFS) Delete(ctx context.Context, key string) error {
	if err := l.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("removing %q: %v", key, err))
	}
	return nil
}

func (l *localFS) Keys(ctx context.Context) ([]string, error) {
	entries, err := l.List(ctx, "")
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.Key)
	}
	return res, nil
}

// List walks all objects under a directory prefix. A missing prefix yields no entries.
func (l *localFS) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	root := "."
	if prefix != "" {
		root = filepath.Clean(prefix)
	}
	if _, err := l.fs.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}

	var res []storage.Entry
	e := afero.Walk(l.fs, root, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() {
			return nil
		}
		res = append(res, storage.Entry{
			Key:  toKey(pth),
			Size: info.Size(),
		})
		return nil
	})
	if e != nil {
		return nil, status.ErrStorageAPI.Wrap(e)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res, nil
}

func toKey(pth string) string {
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(pth)), "/")
}

func (l *localFS) Clear(ctx context.Context) error {
	entries, err := afero.ReadDir(l.fs, ".")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return status.ErrStorageAPI.Wrap(err)
	}
	for _, entry := range entries {
		if err := l.fs.RemoveAll(entry.Name()); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
	}
	return nil
}

func (l *localFS) String() string {
	return describe("localfs", l.fs)
}

func describe(name string, fs afero.Fs) string {
	switch fs := fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return name
		}
		return name + "@" + pp
	default:
		return name
	}
}

/* thread-safe local storage implementation.
 * use a decorator pattern to implement atomic Put()s via atomicity of afero.Fs.Rename()
 * for those filesystems where Rename() is thread-safe:  files are placed in a staging area
 * under a unique name, then Rename()d into place.
 */

/* staging area key prefix and helper functions */
const (
	nestedPutStageName = ".put-stage"
)

func maybeInvalidKey(key string) error {
	pathComponents := strings.Split(strings.TrimLeft(filepath.ToSlash(key), "/"), "/")
	if pathComponents[0] == nestedPutStageName {
		return status.ErrInvalidResource.WrapMessage("key '%v' conflicts with put staging area name '%v'", key, nestedPutStageName)
	}
	return nil
}

func filterInvalidEntries(es []storage.Entry) []storage.Entry {
	/* https://github.com/golang/go/wiki/SliceTricks#filtering-without-allocating */
	filtered := es[:0]
	for _, e := range es {
		if err := maybeInvalidKey(e.Key); err == nil {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// NewAtomic creates a local file system store where puts are published atomically.
//
// Interrupted puts leave debris in the staging area only, never under the final key.
func NewAtomic(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".panini", "blobs"))
	}
	/* the staging area exists within the afero.Fs itself */
	if err := fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return nil, status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring put staging directory for %q: %v", nestedPutStageName, err))
	}
	return &localFSAtomic{
		storeImpl: localFS{fs: fs},
	}, nil
}

type localFSAtomic struct {
	storeImpl localFS
}

func (l *localFSAtomic) Has(ctx context.Context, key string) (bool, error) {
	if err := maybeInvalidKey(key); err != nil {
		return false, err
	}
	return l.storeImpl.Has(ctx, key)
}

func (l *localFSAtomic) Stat(ctx context.Context, key string) (storage.Entry, error) {
	if err := maybeInvalidKey(key); err != nil {
		return storage.Entry{}, err
	}
	return l.storeImpl.Stat(ctx, key)
}

func (l *localFSAtomic) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := maybeInvalidKey(key); err != nil {
		return nil, err
	}
	return l.storeImpl.Get(ctx, key)
}

func (l *localFSAtomic) Delete(ctx context.Context, key string) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	return l.storeImpl.Delete(ctx, key)
}

func (l *localFSAtomic) Keys(ctx context.Context) ([]string, error) {
	es, err := l.List(ctx, "")
	if err != nil {
		return nil, err
	}
	res := make([]string, 0, len(es))
	for _, e := range es {
		res = append(res, e.Key)
	}
	return res, nil
}

func (l *localFSAtomic) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	if err := maybeInvalidKey(prefix); err != nil {
		return nil, err
	}
	es, err := l.storeImpl.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return filterInvalidEntries(es), nil
}

func (l *localFSAtomic) Clear(ctx context.Context) error {
	if err := l.storeImpl.Clear(ctx); err != nil {
		return err
	}
	return l.storeImpl.fs.MkdirAll(nestedPutStageName, 0700)
}

/* the Put() implementation is the only part of the Store interface implemented
 * outside of the functional wrap design pattern
 */
func (l *localFSAtomic) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	if err := maybeInvalidKey(key); err != nil {
		return err
	}
	if exclusive {
		has, err := l.storeImpl.Has(ctx, key)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.WrapMessage("key %q", key)
		}
	}

	putStageKey := filepath.Join(nestedPutStageName, ksuid.New().String())
	if err := l.storeImpl.Put(ctx, putStageKey, source, storage.NoOverWrite); err != nil {
		_ = l.storeImpl.fs.Remove(putStageKey)
		return err
	}
	/* Rename() doesn't create directories automatically */
	if err := l.storeImpl.ensureDir(key); err != nil {
		_ = l.storeImpl.fs.Remove(putStageKey)
		return err
	}
	if err := l.storeImpl.fs.Rename(putStageKey, key); err != nil {
		_ = l.storeImpl.fs.Remove(putStageKey)
		return status.ErrStorageAPI.Wrap(fmt.Errorf("publishing %q: %v", key, err))
	}
	return nil
}

func (l *localFSAtomic) String() string {
	return describe("localfs-atomic", l.storeImpl.fs)
}
