package blob

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/paninifs/panini/pkg/bucket"
	"github.com/paninifs/panini/pkg/cafs"
	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/storage"
	"github.com/paninifs/panini/pkg/storage/localfs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// countingStore counts physical writes and slows them down to widen race windows
type countingStore struct {
	storage.Store
	puts  int32
	delay time.Duration
}

func (c *countingStore) Put(ctx context.Context, key string, rdr io.Reader, exclusive bool) error {
	atomic.AddInt32(&c.puts, 1)
	time.Sleep(c.delay)
	return c.Store.Put(ctx, key, rdr, exclusive)
}

func setupStore(t testing.TB, opts ...Option) (Store, afero.Fs, *countingStore) {
	t.Helper()
	fs := afero.NewMemMapFs()
	backend, err := localfs.NewAtomic(fs)
	require.NoError(t, err)
	counting := &countingStore{Store: backend}

	s, err := New(append([]Option{Backend(counting), Logger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)
	return s, fs, counting
}

func randomBytes(r *rand.Rand, n int) []byte {
	b := make([]byte, n)
	_, _ = r.Read(b)
	return b
}

func TestPutGet_RoundTrip(t *testing.T) {
	s, fs, _ := setupStore(t)
	ctx := context.Background()
	r := rand.New(rand.NewSource(1))

	for _, toPin := range []struct {
		name   string
		data   []byte
		bucket string
	}{
		{name: "empty", data: []byte{}, bucket: "2^10"},
		{name: "small", data: []byte("hello panini"), bucket: "2^10"},
		{name: "boundary", data: randomBytes(r, 1024), bucket: "2^11"},
		{name: "large", data: randomBytes(r, 3*1024*1024), bucket: "2^22"},
	} {
		fixture := toPin
		t.Run(fixture.name, func(t *testing.T) {
			ref, err := s.Put(ctx, fixture.data)
			require.NoError(t, err)
			assert.Equal(t, cafs.Sum(fixture.data), ref.Key)
			assert.Equal(t, fixture.bucket, ref.Bucket)
			assert.EqualValues(t, len(fixture.data), ref.Size)

			exists, err := afero.Exists(fs, fixture.bucket+"/"+ref.Key.String())
			require.NoError(t, err)
			assert.True(t, exists, "blob is laid out as <bucket>/<address>")

			got, err := s.Get(ctx, ref)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(fixture.data, got))

			has, err := s.Has(ctx, ref)
			require.NoError(t, err)
			assert.True(t, has)
		})
	}
}

func TestPut_Idempotent(t *testing.T) {
	s, _, counting := setupStore(t)
	ctx := context.Background()

	first, err := s.Put(ctx, []byte("same bytes"))
	require.NoError(t, err)
	second, err := s.Put(ctx, []byte("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, atomic.LoadInt32(&counting.puts))
}

func TestPut_ConcurrentSingleWrite(t *testing.T) {
	s, _, counting := setupStore(t)
	counting.delay = 20 * time.Millisecond
	ctx := context.Background()
	data := bytes.Repeat([]byte("concurrent"), 1000)

	const workers = 16
	refs := make([]Ref, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			refs[i], errs[i] = s.Put(ctx, data)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, refs[0], refs[i])
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&counting.puts), "exactly one physical write")

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	total := 0
	for _, st := range stats {
		total += st.Count
	}
	assert.Equal(t, 1, total)
}

func TestGet_NotFound(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx := context.Background()

	ref := Ref{Key: cafs.Sum([]byte("never stored")), Bucket: "2^10", Size: 12}
	_, err := s.Get(ctx, ref)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Get(ctx, Ref{Key: ref.Key})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.Get(ctx, Ref{})
	assert.True(t, errors.Is(err, ErrInvalidRef))

	has, err := s.Has(ctx, ref)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestLookup(t *testing.T) {
	s, _, _ := setupStore(t)
	ctx := context.Background()
	data := bytes.Repeat([]byte{7}, 5000)

	ref, err := s.Put(ctx, data)
	require.NoError(t, err)

	found, err := s.Lookup(ctx, ref.Key)
	require.NoError(t, err)
	assert.Equal(t, ref, found)

	got, err := s.Get(ctx, Ref{Key: ref.Key})
	require.NoError(t, err)
	assert.Equal(t, data, got)

	has, err := s.Has(ctx, Ref{Key: ref.Key})
	require.NoError(t, err)
	assert.True(t, has)
}

func TestGet_VerifyHash(t *testing.T) {
	s, fs, _ := setupStore(t, VerifyHash(true), CacheSize(0))
	ctx := context.Background()

	ref, err := s.Put(ctx, []byte("pristine"))
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, ref.Path(), []byte("tampered"), 0600))

	_, err = s.Get(ctx, ref)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))
}

func TestGet_Cache(t *testing.T) {
	s, fs, _ := setupStore(t, CacheSize(8))
	ctx := context.Background()

	ref, err := s.Put(ctx, []byte("cached"))
	require.NoError(t, err)
	_, err = s.Get(ctx, ref)
	require.NoError(t, err)

	require.NoError(t, fs.Remove(ref.Path()))

	got, err := s.Get(ctx, ref)
	require.NoError(t, err, "immutable blobs are served from the cache")
	assert.Equal(t, "cached", string(got))
}

func TestStats(t *testing.T) {
	s, fs, _ := setupStore(t, Ladder(mustLadder(t, 16, 64)))
	ctx := context.Background()

	for _, data := range []string{"a", "bb", strings.Repeat("c", 20), strings.Repeat("d", 100)} {
		_, err := s.Put(ctx, []byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, afero.WriteFile(fs, ".put-stage/leftover", []byte("debris"), 0600))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []BucketStat{
		{Bucket: "2^4", Limit: 16, Count: 2, Bytes: 3},
		{Bucket: "2^6", Limit: 64, Count: 1, Bytes: 20},
		{Bucket: bucket.OversizeName, Count: 1, Bytes: 100},
	}, stats)
}

func TestSweep(t *testing.T) {
	s, fs, _ := setupStore(t)
	ctx := context.Background()

	keep, err := s.Put(ctx, []byte("keep me"))
	require.NoError(t, err)
	drop, err := s.Put(ctx, []byte("drop me"))
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "2^10/not-a-blob", []byte("x"), 0600))

	res, err := s.Sweep(ctx, func(k cafs.Key) bool { return k == keep.Key })
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 3, Removed: 1, Freed: drop.Size, Skipped: 1}, res)

	has, err := s.Has(ctx, keep)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.Has(ctx, drop)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = s.Get(ctx, drop)
	assert.True(t, errors.Is(err, ErrNotFound), "swept blobs are evicted from the cache")
}

func TestParsePath(t *testing.T) {
	key := cafs.Sum([]byte("x"))
	b, k, err := ParsePath(PathFor("2^12", key))
	require.NoError(t, err)
	assert.Equal(t, "2^12", b)
	assert.Equal(t, key, k)

	for _, bad := range []string{"", key.String(), "a/b/" + key.String(), "2^12/short"} {
		_, _, err = ParsePath(bad)
		assert.Truef(t, errors.Is(err, ErrInvalidRef), "path %q", bad)
	}
}

func mustLadder(t testing.TB, limits ...uint64) bucket.Ladder {
	l, err := bucket.NewLadder(limits...)
	require.NoError(t, err)
	return l
}
