package driver

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/storage/localfs"
	"github.com/paninifs/panini/pkg/vfs"
	"github.com/paninifs/panini/pkg/vfs/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func setupDriver(t testing.TB) (*Driver, *vfs.FS) {
	t.Helper()
	store, err := localfs.NewAtomic(afero.NewMemMapFs())
	require.NoError(t, err)
	blobs, err := blob.New(blob.Backend(store))
	require.NoError(t, err)

	fs, err := vfs.New(context.Background(), blobs,
		vfs.VolumeLabel("testvol"),
		vfs.MaxComponentLength(64),
		vfs.SpaceRoot(t.TempDir()),
		vfs.Logger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	return New(fs, Logger(zaptest.NewLogger(t))), fs
}

func mustCreate(t testing.TB, d *Driver, name string, access FileAccess, mode FileMode, options CreateOptions) *FileInfo {
	t.Helper()
	info := &FileInfo{}
	st := d.CreateFile(context.Background(), name, info, access, mode, options, 0)
	require.Equal(t, StatusSuccess, st, "CreateFile(%s): %v", name, st)
	return info
}

func mustClose(t testing.TB, d *Driver, name string, info *FileInfo) {
	t.Helper()
	require.Equal(t, StatusSuccess, d.Cleanup(context.Background(), name, info))
	require.Equal(t, StatusSuccess, d.CloseFile(context.Background(), name, info))
}

func TestToNtStatus(t *testing.T) {
	for _, toPin := range []struct {
		err      error
		expected NtStatus
	}{
		{err: nil, expected: StatusSuccess},
		{err: status.ErrNotFound.WrapMessage("missing %s", "/a"), expected: StatusObjectNameNotFound},
		{err: status.ErrInvalidName, expected: StatusObjectNameNotFound},
		{err: status.ErrPathNotFound, expected: StatusObjectPathNotFound},
		{err: status.ErrExists, expected: StatusObjectNameCollision},
		{err: status.ErrAccessDenied, expected: StatusAccessDenied},
		{err: status.ErrNotADirectory, expected: StatusNotADirectory},
		{err: status.ErrIsADirectory, expected: StatusFileIsADirectory},
		{err: status.ErrDirectoryNotEmpty, expected: StatusDirectoryNotEmpty},
		{err: status.ErrNotImplemented, expected: StatusNotImplemented},
		{err: status.ErrInvalidHandle, expected: StatusInvalidHandle},
		{err: status.ErrOutOfOrder, expected: StatusInvalidHandle},
		{err: status.ErrInvalidParameter, expected: StatusInvalidParameter},
		{err: status.ErrLockConflict, expected: StatusLockNotGranted},
		{err: status.ErrNotLocked, expected: StatusRangeNotLocked},
		{err: status.ErrIO.Wrap(errors.New("disk on fire")), expected: StatusIoDeviceError},
		{err: fmt.Errorf("unexpected"), expected: StatusIoDeviceError},
	} {
		fixture := toPin
		t.Run(fixture.expected.String(), func(t *testing.T) {
			assert.Equal(t, fixture.expected, ToNtStatus(fixture.err))
		})
	}

	assert.Equal(t, "NtStatus(0xC0000001)", NtStatus(0xC0000001).String())
	assert.True(t, StatusSuccess.IsSuccess())
}

func TestCreateWriteRead(t *testing.T) {
	d, _ := setupDriver(t)
	ctx := context.Background()

	info := mustCreate(t, d, `\greeting.txt`, GenericWrite|GenericRead, CreateNew, NonDirectoryFile)
	assert.NotZero(t, info.Context)
	assert.False(t, info.IsDirectory)

	n, st := d.WriteFile(ctx, `\greeting.txt`, []byte("hello world"), 0, info)
	require.Equal(t, StatusSuccess, st)
	require.Equal(t, 11, n)
	require.Equal(t, StatusSuccess, d.FlushFileBuffers(ctx, `\greeting.txt`, info))

	fi, st := d.GetFileInformation(ctx, `\greeting.txt`, info)
	require.Equal(t, StatusSuccess, st)
	assert.Equal(t, int64(11), fi.Length)
	assert.Equal(t, "greeting.txt", fi.FileName)
	mustClose(t, d, `\greeting.txt`, info)

	info = mustCreate(t, d, `\greeting.txt`, ReadData, Open, 0)
	buf := make([]byte, 5)
	n, st = d.ReadFile(ctx, `\greeting.txt`, buf, 6, info)
	require.Equal(t, StatusSuccess, st)
	assert.Equal(t, "world", string(buf[:n]))

	n, st = d.ReadFile(ctx, `\greeting.txt`, buf, 100, info)
	require.Equal(t, StatusSuccess, st, "reads past the end are not errors")
	assert.Zero(t, n)

	_, st = d.WriteFile(ctx, `\greeting.txt`, []byte("x"), 0, info)
	assert.Equal(t, StatusAccessDenied, st, "handle opened without write access")
	mustClose(t, d, `\greeting.txt`, info)
}

func TestCreateFileExisting(t *testing.T) {
	d, _ := setupDriver(t)
	ctx := context.Background()
	mustClose(t, d, `\existing`, mustCreate(t, d, `\existing`, GenericWrite, CreateNew, 0))

	for _, mode := range []FileMode{Create, OpenOrCreate} {
		info := &FileInfo{}
		st := d.CreateFile(ctx, `\existing`, info, GenericRead, mode, 0, 0)
		assert.Equal(t, StatusObjectNameCollision, st, "mode %d", mode)
		assert.NotZero(t, info.Context, "the context is kept")
		mustClose(t, d, `\existing`, info)
	}

	info := &FileInfo{}
	assert.Equal(t, StatusObjectNameCollision, d.CreateFile(ctx, `\existing`, info, GenericRead, CreateNew, 0, 0))
	assert.Zero(t, info.Context)

	assert.Equal(t, StatusObjectNameNotFound, d.CreateFile(ctx, `\missing`, &FileInfo{}, GenericRead, Open, 0, 0))
	assert.Equal(t, StatusObjectPathNotFound, d.CreateFile(ctx, `\nodir\file`, &FileInfo{}, GenericWrite, CreateNew, 0, 0))
	assert.Equal(t, StatusObjectNameNotFound, d.CreateFile(ctx, `\bad|name`, &FileInfo{}, GenericWrite, CreateNew, 0, 0))
	assert.Equal(t, StatusInvalidParameter, d.CreateFile(ctx, `\any`, &FileInfo{}, GenericWrite, FileMode(42), 0, 0))
}

func TestDirectories(t *testing.T) {
	d, _ := setupDriver(t)
	ctx := context.Background()

	info := mustCreate(t, d, `\dir`, 0, CreateNew, DirectoryFile)
	assert.True(t, info.IsDirectory)
	mustClose(t, d, `\dir`, info)

	for _, name := range []string{"b.txt", "a.txt", "c.md"} {
		mustClose(t, d, `\dir\`+name, mustCreate(t, d, `\dir\`+name, GenericWrite, CreateNew, 0))
	}

	var found []string
	collect := func(fi FileInformation) bool {
		found = append(found, fi.FileName)
		return true
	}
	require.Equal(t, StatusSuccess, d.FindFiles(ctx, `\dir`, collect, &FileInfo{}))
	assert.Equal(t, []string{"a.txt", "b.txt", "c.md"}, found)

	found = nil
	require.Equal(t, StatusSuccess, d.FindFilesWithPattern(ctx, `\dir`, "*.txt", collect, &FileInfo{}))
	assert.Equal(t, []string{"a.txt", "b.txt"}, found)

	found = nil
	require.Equal(t, StatusSuccess, d.FindFiles(ctx, `\dir`, func(fi FileInformation) bool {
		found = append(found, fi.FileName)
		return false
	}, &FileInfo{}))
	assert.Len(t, found, 1, "the listing stops when the buffer is full")

	assert.Equal(t, StatusNotADirectory, d.CreateFile(ctx, `\dir\a.txt`, &FileInfo{}, GenericRead, Open, DirectoryFile, 0))
	assert.Equal(t, StatusFileIsADirectory, d.CreateFile(ctx, `\dir`, &FileInfo{}, GenericRead, Open, NonDirectoryFile, 0))
	assert.Equal(t, StatusNotADirectory, d.FindFiles(ctx, `\dir\a.txt`, collect, &FileInfo{}))
}

func TestDelete(t *testing.T) {
	d, fs := setupDriver(t)
	ctx := context.Background()
	mustClose(t, d, `\dir`, mustCreate(t, d, `\dir`, 0, CreateNew, DirectoryFile))
	mustClose(t, d, `\dir\file`, mustCreate(t, d, `\dir\file`, GenericWrite, CreateNew, 0))

	t.Run("non empty directory", func(t *testing.T) {
		info := mustCreate(t, d, `\dir`, Delete, Open, 0)
		info.DeleteOnClose = true
		assert.Equal(t, StatusDirectoryNotEmpty, d.DeleteDirectory(ctx, `\dir`, info))
		mustClose(t, d, `\dir`, info)
	})

	t.Run("wrong kind", func(t *testing.T) {
		info := mustCreate(t, d, `\dir\file`, Delete, Open, 0)
		info.DeleteOnClose = true
		assert.Equal(t, StatusNotADirectory, d.DeleteDirectory(ctx, `\dir\file`, info))
		mustClose(t, d, `\dir\file`, info)

		info = mustCreate(t, d, `\dir`, Delete, Open, 0)
		info.DeleteOnClose = true
		assert.Equal(t, StatusAccessDenied, d.DeleteFile(ctx, `\dir`, info))
		mustClose(t, d, `\dir`, info)
	})

	t.Run("undelete", func(t *testing.T) {
		info := mustCreate(t, d, `\dir\file`, Delete, Open, 0)
		info.DeleteOnClose = true
		require.Equal(t, StatusSuccess, d.DeleteFile(ctx, `\dir\file`, info))
		info.DeleteOnClose = false
		require.Equal(t, StatusSuccess, d.DeleteFile(ctx, `\dir\file`, info))
		mustClose(t, d, `\dir\file`, info)

		_, err := fs.Stat(ctx, "/dir/file")
		require.NoError(t, err)
	})

	t.Run("file then directory", func(t *testing.T) {
		info := mustCreate(t, d, `\dir\file`, Delete, Open, 0)
		info.DeleteOnClose = true
		require.Equal(t, StatusSuccess, d.DeleteFile(ctx, `\dir\file`, info))
		mustClose(t, d, `\dir\file`, info)

		info = mustCreate(t, d, `\dir`, Delete, Open, 0)
		info.DeleteOnClose = true
		require.Equal(t, StatusSuccess, d.DeleteDirectory(ctx, `\dir`, info))
		mustClose(t, d, `\dir`, info)

		_, err := fs.Stat(ctx, "/dir")
		assert.True(t, errors.Is(err, status.ErrNotFound))
	})

	t.Run("delete on close at open", func(t *testing.T) {
		info := mustCreate(t, d, `\scratch`, GenericWrite, CreateNew, DeleteOnClose)
		assert.True(t, info.DeleteOnClose)
		mustClose(t, d, `\scratch`, info)

		_, err := fs.Stat(ctx, "/scratch")
		assert.True(t, errors.Is(err, status.ErrNotFound))
	})
}

func TestLifecycleOrder(t *testing.T) {
	d, _ := setupDriver(t)
	ctx := context.Background()
	info := mustCreate(t, d, `\file`, GenericWrite, CreateNew, 0)

	assert.Equal(t, StatusInvalidHandle, d.CloseFile(ctx, `\file`, info), "close before cleanup")
	require.Equal(t, StatusSuccess, d.Cleanup(ctx, `\file`, info))

	_, st := d.WriteFile(ctx, `\file`, []byte("late"), 0, info)
	assert.Equal(t, StatusInvalidHandle, st, "write after cleanup")
	assert.Equal(t, StatusInvalidHandle, d.Cleanup(ctx, `\file`, info), "second cleanup")

	require.Equal(t, StatusSuccess, d.CloseFile(ctx, `\file`, info))
	assert.Equal(t, StatusSuccess, d.CloseFile(ctx, `\file`, info), "duplicate close is ignored")

	_, st = d.ReadFile(ctx, `\file`, make([]byte, 1), 0, &FileInfo{Context: 9999})
	assert.Equal(t, StatusInvalidHandle, st)
}

func TestMoveFile(t *testing.T) {
	d, fs := setupDriver(t)
	ctx := context.Background()
	for _, name := range []string{`\a`, `\b`} {
		info := mustCreate(t, d, name, GenericWrite, CreateNew, 0)
		_, st := d.WriteFile(ctx, name, []byte(name), 0, info)
		require.Equal(t, StatusSuccess, st)
		mustClose(t, d, name, info)
	}

	assert.Equal(t, StatusObjectNameCollision, d.MoveFile(ctx, `\a`, `\b`, false, &FileInfo{}))
	require.Equal(t, StatusSuccess, d.MoveFile(ctx, `\a`, `\b`, true, &FileInfo{}))

	data, err := fs.ReadFile(ctx, "/b")
	require.NoError(t, err)
	assert.Equal(t, `\a`, string(data))
	assert.Equal(t, StatusObjectNameNotFound, d.MoveFile(ctx, `\a`, `\c`, false, &FileInfo{}))
}

func TestSizesAndLocks(t *testing.T) {
	d, _ := setupDriver(t)
	ctx := context.Background()
	first := mustCreate(t, d, `\file`, GenericWrite|GenericRead, CreateNew, 0)
	second := mustCreate(t, d, `\file`, GenericWrite|GenericRead, Open, 0)

	require.Equal(t, StatusSuccess, d.SetEndOfFile(ctx, `\file`, 100, first))
	fi, st := d.GetFileInformation(ctx, `\file`, first)
	require.Equal(t, StatusSuccess, st)
	assert.Equal(t, int64(100), fi.Length)

	require.Equal(t, StatusSuccess, d.SetAllocationSize(ctx, `\file`, 200, first))
	fi, _ = d.GetFileInformation(ctx, `\file`, first)
	assert.Equal(t, int64(100), fi.Length, "a larger allocation does not grow the file")

	require.Equal(t, StatusSuccess, d.SetAllocationSize(ctx, `\file`, 10, first))
	fi, _ = d.GetFileInformation(ctx, `\file`, first)
	assert.Equal(t, int64(10), fi.Length)
	assert.Equal(t, StatusInvalidParameter, d.SetEndOfFile(ctx, `\file`, -1, first))

	require.Equal(t, StatusSuccess, d.LockFile(ctx, `\file`, 0, 5, first))
	assert.Equal(t, StatusLockNotGranted, d.LockFile(ctx, `\file`, 4, 2, second))
	_, st = d.WriteFile(ctx, `\file`, []byte("x"), 2, second)
	assert.Equal(t, StatusLockNotGranted, st)
	assert.Equal(t, StatusRangeNotLocked, d.UnlockFile(ctx, `\file`, 0, 5, second))
	require.Equal(t, StatusSuccess, d.UnlockFile(ctx, `\file`, 0, 5, first))
	require.Equal(t, StatusSuccess, d.LockFile(ctx, `\file`, 4, 2, second))

	mustClose(t, d, `\file`, first)
	mustClose(t, d, `\file`, second)
}

func TestAttributesAndTimes(t *testing.T) {
	d, fs := setupDriver(t)
	ctx := context.Background()
	mustClose(t, d, `\file`, mustCreate(t, d, `\file`, GenericWrite, CreateNew, 0))

	require.Equal(t, StatusSuccess, d.SetFileAttributes(ctx, `\file`, model.AttrReadOnly, &FileInfo{}))
	assert.Equal(t, StatusAccessDenied, d.CreateFile(ctx, `\file`, &FileInfo{}, GenericWrite, Open, 0, 0))

	created := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, StatusSuccess, d.SetFileTime(ctx, `\file`, created, time.Time{}, time.Time{}, &FileInfo{}))
	fi, err := fs.Stat(ctx, "/file")
	require.NoError(t, err)
	assert.True(t, created.Equal(fi.Created))
	assert.True(t, fi.Attributes.Has(model.AttrReadOnly))

	assert.Equal(t, StatusObjectNameNotFound, d.SetFileAttributes(ctx, `\missing`, model.AttrHidden, &FileInfo{}))
}

func TestVolume(t *testing.T) {
	d, _ := setupDriver(t)
	ctx := context.Background()

	require.Equal(t, StatusSuccess, d.Mounted(ctx))
	volume, st := d.GetVolumeInformation(ctx)
	require.Equal(t, StatusSuccess, st)
	assert.Equal(t, "testvol", volume.VolumeLabel)
	assert.Equal(t, "PaniniFS", volume.FileSystemName)
	assert.Equal(t, 64, volume.MaximumComponentLength)
	assert.Equal(t, CaseSensitiveSearch|CasePreservedNames|UnicodeOnDisk|VolumeIsCompressed, volume.Features)

	space, st := d.GetDiskFreeSpace(ctx)
	require.Equal(t, StatusSuccess, st)
	assert.NotZero(t, space.TotalBytes)
	assert.LessOrEqual(t, space.FreeBytesAvailable, space.TotalBytes)

	_, st = d.GetFileSecurity(ctx, `\`, &FileInfo{})
	assert.Equal(t, StatusNotImplemented, st)
	assert.Equal(t, StatusNotImplemented, d.SetFileSecurity(ctx, `\`, nil, &FileInfo{}))
}

func TestStreams(t *testing.T) {
	d, _ := setupDriver(t)
	ctx := context.Background()
	info := mustCreate(t, d, `\file`, GenericWrite, CreateNew, 0)
	_, st := d.WriteFile(ctx, `\file`, []byte("12345"), 0, info)
	require.Equal(t, StatusSuccess, st)
	mustClose(t, d, `\file`, info)

	var streams []vfs.Stream
	require.Equal(t, StatusSuccess, d.FindStreams(ctx, `\file`, func(s vfs.Stream) bool {
		streams = append(streams, s)
		return true
	}, &FileInfo{}))
	assert.Equal(t, []vfs.Stream{{Name: "::$DATA", Size: 5}}, streams)
}

func TestUnmountedCommitsOpenFiles(t *testing.T) {
	d, fs := setupDriver(t)
	ctx := context.Background()
	info := mustCreate(t, d, `\pending`, GenericWrite, CreateNew, 0)
	_, st := d.WriteFile(ctx, `\pending`, []byte("unsaved"), 0, info)
	require.Equal(t, StatusSuccess, st)

	require.Equal(t, StatusSuccess, d.Unmounted(ctx))
	fi, err := fs.Stat(ctx, "/pending")
	require.NoError(t, err)
	assert.Equal(t, int64(7), fi.Size)
	mustClose(t, d, `\pending`, info)
}
