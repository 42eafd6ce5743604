package vfs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/semantic"
	"github.com/paninifs/panini/pkg/vfs/status"
)

func names(infos []FileInfo) []string {
	res := make([]string, 0, len(infos))
	for _, info := range infos {
		res = append(res, info.Name)
	}
	return res
}

func TestEnumerate(t *testing.T) {
	f := setupFS(t)
	ctx := context.Background()
	require.NoError(t, f.fs.Mkdir(ctx, "/docs"))
	require.NoError(t, f.fs.Mkdir(ctx, "/docs/sub"))
	for _, name := range []string{"b.txt", "a.txt", "c.md", "B.txt"} {
		require.NoError(t, f.fs.WriteFile(ctx, "/docs/"+name, []byte(name)))
	}
	require.NoError(t, f.fs.WriteFile(ctx, "/docs/sub/deep.txt", []byte("deep")))
	require.NoError(t, f.fs.WriteFile(ctx, "/docs2", []byte("sibling")))

	entries, err := f.fs.Enumerate(ctx, `\docs`, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"B.txt", "a.txt", "b.txt", "c.md", "sub"}, names(entries))
	assert.True(t, entries[4].IsDir)
	assert.True(t, entries[4].Attributes.Has(model.AttrDirectory))
	assert.Equal(t, int64(5), entries[0].Size)

	entries, err = f.fs.Enumerate(ctx, "/docs", "*.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"B.txt", "a.txt", "b.txt"}, names(entries))

	entries, err = f.fs.Enumerate(ctx, "/docs", "?.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"c.md"}, names(entries))

	entries, err = f.fs.Enumerate(ctx, "/", "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "docs2"}, names(entries))

	_, err = f.fs.Enumerate(ctx, "/docs2", "")
	assert.True(t, errors.Is(err, status.ErrNotADirectory))

	_, err = f.fs.Enumerate(ctx, "/nowhere", "")
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestMoveFile(t *testing.T) {
	f := setupFS(t)
	ctx := context.Background()
	require.NoError(t, f.fs.WriteFile(ctx, "/a", []byte("content of a")))
	require.NoError(t, f.fs.WriteFile(ctx, "/b", []byte("content of b")))
	before, err := f.fs.Stat(ctx, "/a")
	require.NoError(t, err)

	t.Run("existing destination without replace", func(t *testing.T) {
		err := f.fs.Move(ctx, "/a", "/b", false)
		require.True(t, errors.Is(err, status.ErrExists), "got %v", err)

		data, err := f.fs.ReadFile(ctx, "/b")
		require.NoError(t, err)
		assert.Equal(t, "content of b", string(data), "destination is untouched")
		data, err = f.fs.ReadFile(ctx, "/a")
		require.NoError(t, err)
		assert.Equal(t, "content of a", string(data), "source is untouched")
	})

	t.Run("replace", func(t *testing.T) {
		require.NoError(t, f.fs.Move(ctx, "/a", "/b", true))
		_, err := f.fs.Stat(ctx, "/a")
		assert.True(t, errors.Is(err, status.ErrNotFound))

		after, err := f.fs.Stat(ctx, "/b")
		require.NoError(t, err)
		assert.Equal(t, before.Ref, after.Ref, "blob content is untouched")
	})

	t.Run("missing source", func(t *testing.T) {
		err := f.fs.Move(ctx, "/a", "/c", false)
		assert.True(t, errors.Is(err, status.ErrNotFound))
	})

	t.Run("missing destination parent", func(t *testing.T) {
		err := f.fs.Move(ctx, "/b", "/nodir/b", false)
		assert.True(t, errors.Is(err, status.ErrPathNotFound))
	})

	t.Run("onto itself", func(t *testing.T) {
		require.NoError(t, f.fs.Move(ctx, "/b", "/b", false))
	})

	t.Run("root", func(t *testing.T) {
		err := f.fs.Move(ctx, "/", "/elsewhere", false)
		assert.True(t, errors.Is(err, status.ErrAccessDenied))
	})

	assertions, err := f.side.QueryAssertions(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, "/a", objectOf(assertions, semantic.PredicateMovedFrom))
}

func TestMoveDirectory(t *testing.T) {
	f := setupFS(t)
	ctx := context.Background()
	require.NoError(t, f.fs.Mkdir(ctx, "/src"))
	require.NoError(t, f.fs.Mkdir(ctx, "/src/inner"))
	require.NoError(t, f.fs.WriteFile(ctx, "/src/inner/file", []byte("nested")))
	require.NoError(t, f.fs.WriteFile(ctx, "/srcfile", []byte("lookalike")))
	require.NoError(t, f.fs.Mkdir(ctx, "/dst"))

	t.Run("into its own subtree", func(t *testing.T) {
		err := f.fs.Move(ctx, "/src", "/src/inner/src", false)
		assert.True(t, errors.Is(err, status.ErrInvalidParameter), "got %v", err)
	})

	t.Run("replacing a directory", func(t *testing.T) {
		err := f.fs.Move(ctx, "/src", "/dst", true)
		assert.True(t, errors.Is(err, status.ErrAccessDenied), "got %v", err)
	})

	t.Run("with subtree", func(t *testing.T) {
		h := mustOpen(t, f.fs, OpenRequest{Path: "/src/inner/file", Access: AccessWrite | AccessRead})

		require.NoError(t, f.fs.Move(ctx, "/src", "/dst/moved", false))

		data, err := f.fs.ReadFile(ctx, "/dst/moved/inner/file")
		require.NoError(t, err)
		assert.Equal(t, "nested", string(data))
		_, err = f.fs.Stat(ctx, "/src/inner/file")
		assert.True(t, errors.Is(err, status.ErrNotFound))

		data, err = f.fs.ReadFile(ctx, "/srcfile")
		require.NoError(t, err)
		assert.Equal(t, "lookalike", string(data), "siblings sharing a prefix stay in place")

		// a handle open during the move commits at the new location
		_, err = f.fs.Write(ctx, h, []byte("N"), 0)
		require.NoError(t, err)
		mustRelease(t, f.fs, h)
		data, err = f.fs.ReadFile(ctx, "/dst/moved/inner/file")
		require.NoError(t, err)
		assert.Equal(t, "Nested", string(data))
	})

	loaded, err := f.catalog.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dst", "/dst/moved", "/dst/moved/inner", "/dst/moved/inner/file", "/srcfile"}, loaded.Paths())
}

func TestSetTimes(t *testing.T) {
	f := setupFS(t)
	ctx := context.Background()
	require.NoError(t, f.fs.WriteFile(ctx, "/file", []byte("x")))
	before, err := f.fs.Stat(ctx, "/file")
	require.NoError(t, err)

	created := time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	require.NoError(t, f.fs.SetTimes(ctx, "/file", created, time.Time{}, time.Time{}))

	after, err := f.fs.Stat(ctx, "/file")
	require.NoError(t, err)
	assert.True(t, created.Equal(after.Created))
	assert.True(t, before.Written.Equal(after.Written), "zero times are left unchanged")

	err = f.fs.SetTimes(ctx, "/missing", created, created, created)
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestCatalogReload(t *testing.T) {
	f := setupFS(t)
	ctx := context.Background()
	require.NoError(t, f.fs.Mkdir(ctx, "/dir"))
	require.NoError(t, f.fs.WriteFile(ctx, "/dir/file", []byte("persisted")))
	require.NoError(t, f.fs.WriteFile(ctx, "/top", []byte("top")))
	require.NoError(t, f.fs.SetAttributes(ctx, "/top", model.AttrHidden))
	require.NoError(t, f.fs.Remove(ctx, "/top"))
	require.NoError(t, f.fs.WriteFile(ctx, "/top", []byte("again")))

	reloaded := newFS(t, f)

	data, err := reloaded.ReadFile(ctx, "/dir/file")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(data))

	data, err = reloaded.ReadFile(ctx, "/top")
	require.NoError(t, err)
	assert.Equal(t, "again", string(data))

	info, err := reloaded.Stat(ctx, "/top")
	require.NoError(t, err)
	assert.False(t, info.Attributes.Has(model.AttrHidden))

	entries, err := reloaded.Enumerate(ctx, "/", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"dir", "top"}, names(entries))
}

// gatedCatalog holds back the first commit issued once armed
type gatedCatalog struct {
	*model.MemoryCatalog
	armed   int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCatalog) Commit(ctx context.Context, removed []string, saved ...model.Entry) error {
	if atomic.CompareAndSwapInt32(&g.armed, 1, 0) {
		close(g.entered)
		<-g.release
	}
	return g.MemoryCatalog.Commit(ctx, removed, saved...)
}

func TestCatalogCommitsInOrder(t *testing.T) {
	ctx := context.Background()
	f := setupFS(t)
	gated := &gatedCatalog{
		MemoryCatalog: f.catalog,
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	f.fs = newFS(t, f, Catalog(gated))
	require.NoError(t, f.fs.WriteFile(ctx, "/a", []byte("old")))
	h := mustOpen(t, f.fs, OpenRequest{Path: "/a", Access: AccessWrite, Disposition: Open})

	atomic.StoreInt32(&gated.armed, 1)
	moved := make(chan error, 1)
	go func() {
		moved <- f.fs.Move(ctx, "/a", "/b", false)
	}()
	<-gated.entered

	// the handle follows the move, its commit must not be overwritten by the pending one
	_, err := f.fs.Write(ctx, h, []byte("new"), 0)
	require.NoError(t, err)
	flushed := make(chan error, 1)
	go func() {
		flushed <- f.fs.Flush(ctx, h)
	}()
	time.Sleep(50 * time.Millisecond)
	close(gated.release)

	require.NoError(t, <-moved)
	require.NoError(t, <-flushed)
	mustRelease(t, f.fs, h)

	live, err := f.fs.ReadFile(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, "new", string(live))

	reloaded := newFS(t, f)
	data, err := reloaded.ReadFile(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	_, err = reloaded.Stat(ctx, "/a")
	assert.True(t, errors.Is(err, status.ErrNotFound))
}

func TestCatalogReloadRestoresParents(t *testing.T) {
	f := setupFS(t)
	ctx := context.Background()
	ref, err := f.blobs.Put(ctx, []byte("orphan"))
	require.NoError(t, err)
	require.NoError(t, f.catalog.Commit(ctx, nil,
		model.Entry{Path: "/lost/and/found", Kind: model.KindFile, Ref: ref},
		model.Entry{Path: "/bad/../path", Kind: model.KindFile, Ref: ref},
	))

	reloaded := newFS(t, f)
	info, err := reloaded.Stat(ctx, "/lost/and")
	require.NoError(t, err)
	assert.True(t, info.IsDir)

	data, err := reloaded.ReadFile(ctx, "/lost/and/found")
	require.NoError(t, err)
	assert.Equal(t, "orphan", string(data))

	_, err = reloaded.Stat(ctx, "/bad")
	assert.True(t, errors.Is(err, status.ErrNotFound), "invalid entries are skipped")
}

func TestReclaim(t *testing.T) {
	f := setupFS(t)
	ctx := context.Background()
	require.NoError(t, f.fs.WriteFile(ctx, "/live", []byte("still referenced")))
	require.NoError(t, f.fs.WriteFile(ctx, "/overwritten", []byte("first version")))
	first, err := f.fs.Stat(ctx, "/overwritten")
	require.NoError(t, err)
	require.NoError(t, f.fs.WriteFile(ctx, "/overwritten", []byte("second version")))
	require.NoError(t, f.fs.WriteFile(ctx, "/removed", []byte("gone soon")))
	removed, err := f.fs.Stat(ctx, "/removed")
	require.NoError(t, err)

	// unlinked while open: content must survive until the handle is closed
	require.NoError(t, f.fs.WriteFile(ctx, "/held", []byte("held open")))
	held, err := f.fs.Stat(ctx, "/held")
	require.NoError(t, err)
	h := mustOpen(t, f.fs, OpenRequest{Path: "/held", Access: AccessRead})
	require.NoError(t, f.fs.Remove(ctx, "/held"))
	require.NoError(t, f.fs.Remove(ctx, "/removed"))

	res, err := f.fs.Reclaim(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)

	for _, gone := range []blob.Ref{first.Ref, removed.Ref} {
		has, err := f.blobs.Has(ctx, gone)
		require.NoError(t, err)
		assert.False(t, has)
	}
	has, err := f.blobs.Has(ctx, held.Ref)
	require.NoError(t, err)
	assert.True(t, has)

	buf := make([]byte, 32)
	n, err := f.fs.Read(ctx, h, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "held open", string(buf[:n]))
	mustRelease(t, f.fs, h)

	res, err = f.fs.Reclaim(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	data, err := f.fs.ReadFile(ctx, "/live")
	require.NoError(t, err)
	assert.Equal(t, "still referenced", string(data))
}
