package blob

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/docker/go-units"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/paninifs/panini/pkg/bucket"
	"github.com/paninifs/panini/pkg/cafs"
	"github.com/paninifs/panini/pkg/errors"
	"github.com/paninifs/panini/pkg/metrics"
	"github.com/paninifs/panini/pkg/storage"
	"github.com/paninifs/panini/pkg/storage/localfs"
	"github.com/paninifs/panini/pkg/storage/status"
)

const (
	// DefaultCacheSize is the default number of blobs retained by the read cache
	DefaultCacheSize = 256

	// DefaultMaxCachedBlobSize is the largest blob admitted in the read cache by default
	DefaultMaxCachedBlobSize = 1 * units.MiB
)

// BucketStat reports the population of a bucket
type BucketStat struct {
	Bucket string `json:"bucket" yaml:"bucket"`
	Limit  uint64 `json:"limit,omitempty" yaml:"limit,omitempty"`
	Count  int    `json:"count" yaml:"count"`
	Bytes  int64  `json:"bytes" yaml:"bytes"`
}

// SweepResult reports what a reclamation pass did
type SweepResult struct {
	Scanned int   `json:"scanned" yaml:"scanned"`
	Removed int   `json:"removed" yaml:"removed"`
	Freed   int64 `json:"freed" yaml:"freed"`
	Skipped int   `json:"skipped" yaml:"skipped"`
}

// Store implementations provide content-addressable blob operations
type Store interface {
	Put(context.Context, []byte) (Ref, error)
	Get(context.Context, Ref) ([]byte, error)
	Lookup(context.Context, cafs.Key) (Ref, error)
	Has(context.Context, Ref) (bool, error)
	Stats(context.Context) ([]BucketStat, error)
	Sweep(context.Context, func(cafs.Key) bool) (SweepResult, error)
	Ladder() bucket.Ladder
	String() string
}

var _ Store = &defaultStore{}

type defaultStore struct {
	backend storage.Store
	ladder  bucket.Ladder
	l       *zap.Logger

	puts singleflight.Group

	cache         *lru.Cache
	cacheSize     int
	maxCachedSize int64

	withVerifyHash bool

	metrics.Enable
	m *M
}

func defaultsForStore() *defaultStore {
	return &defaultStore{
		ladder:        bucket.Default(),
		l:             zap.NewNop(),
		cacheSize:     DefaultCacheSize,
		maxCachedSize: DefaultMaxCachedBlobSize,
	}
}

// New creates a new blob store.
//
// Without a Backend option, blobs are stored on the local file system.
func New(opts ...Option) (Store, error) {
	s := defaultsForStore()
	for _, apply := range opts {
		apply(s)
	}

	if s.backend == nil {
		backend, err := localfs.NewAtomic(nil)
		if err != nil {
			return nil, ErrIO.Wrap(err)
		}
		s.backend = backend
	}

	if s.cacheSize > 0 {
		var err error
		s.cache, err = lru.New(s.cacheSize)
		if err != nil {
			return nil, err
		}
	}

	if s.MetricsEnabled() {
		s.m = s.EnsureMetrics("blob", &M{}).(*M)
	}

	return s, nil
}

func (s *defaultStore) Ladder() bucket.Ladder {
	return s.ladder
}

func (s *defaultStore) String() string {
	return "blob@" + s.backend.String()
}

// Put stores some content and returns its reference.
//
// Concurrent puts of the same content result in a single physical write.
func (s *defaultStore) Put(ctx context.Context, data []byte) (Ref, error) {
	var err error
	ref := Ref{
		Key:    cafs.Sum(data),
		Bucket: s.ladder.For(uint64(len(data))).Name,
		Size:   int64(len(data)),
	}

	defer func(t0 time.Time) {
		if s.MetricsEnabled() {
			s.m.Usage.UsedAll(t0, "Put")(err)
			s.m.Volume.IO.IORecord(t0, "Put")(ref.Size, err)
		}
	}(time.Now())

	_, err, shared := s.puts.Do(ref.Path(), func() (interface{}, error) {
		return nil, s.publish(ctx, ref, data)
	})
	if err != nil {
		return Ref{}, err
	}
	if shared {
		s.l.Debug("blob put collapsed with a concurrent put", zap.Stringer("blob", ref))
	}
	return ref, nil
}

func (s *defaultStore) publish(ctx context.Context, ref Ref, data []byte) error {
	lg := s.l.With(zap.Stringer("blob", ref), zap.Int64("size", ref.Size))

	has, err := s.backend.Has(ctx, ref.Path())
	if err != nil {
		return ErrIO.Wrap(err)
	}
	if has {
		lg.Debug("blob already stored")
		if s.MetricsEnabled() {
			s.m.Volume.Blobs.IncDuplicate(ref.Bucket)
		}
		return nil
	}

	err = s.backend.Put(ctx, ref.Path(), bytes.NewReader(data), storage.NoOverWrite)
	switch {
	case err == nil:
	case errors.Is(err, status.ErrExists):
		lg.Debug("blob stored concurrently")
		return nil
	default:
		lg.Warn("could not store blob", zap.Error(err))
		return ErrIO.Wrap(err)
	}

	lg.Debug("blob stored")
	if s.MetricsEnabled() {
		s.m.Volume.Blobs.IncBlob(ref.Bucket, ref.Size)
	}
	return nil
}

// Get the content of a blob. A reference without a bucket is first resolved with Lookup.
func (s *defaultStore) Get(ctx context.Context, ref Ref) ([]byte, error) {
	var (
		err  error
		read int64
	)
	if ref.IsZero() {
		return nil, ErrInvalidRef.WrapMessage("empty address")
	}

	defer func(t0 time.Time) {
		if s.MetricsEnabled() {
			s.m.Usage.UsedAll(t0, "Get")(err)
			s.m.Volume.IO.IORecord(t0, "Get")(read, err)
		}
	}(time.Now())

	if ref.Bucket == "" {
		ref, err = s.Lookup(ctx, ref.Key)
		if err != nil {
			return nil, err
		}
	}

	if data, ok := s.cached(ref); ok {
		return data, nil
	}

	var data []byte
	data, err = s.read(ctx, ref)
	if err != nil {
		return nil, err
	}
	read = int64(len(data))

	if s.withVerifyHash {
		if got := cafs.Sum(data); got != ref.Key {
			err = ErrCorrupt.WrapMessage("blob %v hashes to %v", ref, got)
			s.l.Error("corrupted blob", zap.Stringer("blob", ref), zap.Error(err))
			return nil, err
		}
	}

	s.remember(ref, data)
	return data, nil
}

func (s *defaultStore) read(ctx context.Context, ref Ref) ([]byte, error) {
	rdr, err := s.backend.Get(ctx, ref.Path())
	if err != nil {
		if errors.Is(err, status.ErrNotExists) {
			return nil, ErrNotFound.WrapMessage("%v", ref)
		}
		return nil, ErrIO.Wrap(err)
	}
	defer func() {
		_ = rdr.Close()
	}()

	buf := bytes.NewBuffer(make([]byte, 0, ref.Size))
	if _, err = io.Copy(buf, rdr); err != nil {
		return nil, ErrIO.Wrap(err)
	}
	return buf.Bytes(), nil
}

func (s *defaultStore) cached(ref Ref) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	v, ok := s.cache.Get(ref.Path())
	if s.MetricsEnabled() {
		s.m.Volume.Cache.Hit(ok)
	}
	if !ok {
		return nil, false
	}
	return v.([]byte), true
}

func (s *defaultStore) remember(ref Ref, data []byte) {
	if s.cache == nil || int64(len(data)) > s.maxCachedSize {
		return
	}
	s.cache.Add(ref.Path(), data)
}

// Lookup resolves the bucket of an address by probing every bucket of the ladder
func (s *defaultStore) Lookup(ctx context.Context, key cafs.Key) (Ref, error) {
	if key.IsZero() {
		return Ref{}, ErrInvalidRef.WrapMessage("empty address")
	}
	for _, b := range s.ladder.Buckets() {
		entry, err := s.backend.Stat(ctx, PathFor(b.Name, key))
		if err != nil {
			if errors.Is(err, status.ErrNotExists) {
				continue
			}
			return Ref{}, ErrIO.Wrap(err)
		}
		return Ref{Key: key, Bucket: b.Name, Size: entry.Size}, nil
	}
	return Ref{}, ErrNotFound.WrapMessage("no blob with address %v", key)
}

func (s *defaultStore) Has(ctx context.Context, ref Ref) (bool, error) {
	if ref.Bucket == "" {
		_, err := s.Lookup(ctx, ref.Key)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, ErrNotFound):
			return false, nil
		default:
			return false, err
		}
	}
	has, err := s.backend.Has(ctx, ref.Path())
	if err != nil {
		return false, ErrIO.Wrap(err)
	}
	return has, nil
}

// Stats reports the population of every bucket of the ladder
func (s *defaultStore) Stats(ctx context.Context) ([]BucketStat, error) {
	buckets := s.ladder.Buckets()
	res := make([]BucketStat, len(buckets))

	grp, gctx := errgroup.WithContext(ctx)
	for i := range buckets {
		i := i
		grp.Go(func() error {
			b := buckets[i]
			entries, err := s.backend.List(gctx, b.Name)
			if err != nil {
				return ErrIO.Wrap(err)
			}
			stat := BucketStat{Bucket: b.Name, Limit: b.Limit}
			for _, e := range entries {
				stat.Count++
				stat.Bytes += e.Size
			}
			res[i] = stat
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// Sweep removes every blob whose address is not reported live.
//
// Entries which are not blobs are left alone and counted as skipped.
func (s *defaultStore) Sweep(ctx context.Context, live func(cafs.Key) bool) (SweepResult, error) {
	var res SweepResult
	for _, b := range s.ladder.Buckets() {
		entries, err := s.backend.List(ctx, b.Name)
		if err != nil {
			return res, ErrIO.Wrap(err)
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			res.Scanned++
			bkt, key, err := ParsePath(e.Key)
			if err != nil || bkt != b.Name {
				s.l.Warn("skipping unexpected entry in blob store", zap.String("entry", e.Key))
				res.Skipped++
				continue
			}
			if live(key) {
				continue
			}
			if err := s.backend.Delete(ctx, e.Key); err != nil {
				return res, ErrIO.Wrap(err)
			}
			if s.cache != nil {
				s.cache.Remove(e.Key)
			}
			if s.MetricsEnabled() {
				s.m.Volume.Blobs.IncSwept(b.Name)
			}
			s.l.Debug("reclaimed blob", zap.String("blob", e.Key), zap.Int64("size", e.Size))
			res.Removed++
			res.Freed += e.Size
		}
	}
	return res, nil
}
