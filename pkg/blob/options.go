package blob

import (
	"github.com/paninifs/panini/pkg/bucket"
	"github.com/paninifs/panini/pkg/storage"
	"go.uber.org/zap"
)

// Option to configure the blob store
type Option func(*defaultStore)

// Backend specifies the backend store
func Backend(store storage.Store) Option {
	return func(s *defaultStore) {
		if store != nil {
			s.backend = store
		}
	}
}

// Ladder sets the size buckets of the store
func Ladder(ladder bucket.Ladder) Option {
	return func(s *defaultStore) {
		s.ladder = ladder
	}
}

// Logger sets a logger for this store
func Logger(l *zap.Logger) Option {
	return func(s *defaultStore) {
		if l != nil {
			s.l = l
		}
	}
}

// CacheSize sets the number of blobs retained by the read cache. Zero disables the cache.
func CacheSize(entries int) Option {
	return func(s *defaultStore) {
		if entries < 0 {
			entries = 0
		}
		s.cacheSize = entries
	}
}

// MaxCachedBlobSize sets the largest blob admitted in the read cache
func MaxCachedBlobSize(size int64) Option {
	return func(s *defaultStore) {
		s.maxCachedSize = size
	}
}

// VerifyHash enables hash verification on blobs read back
func VerifyHash(enabled bool) Option {
	return func(s *defaultStore) {
		s.withVerifyHash = enabled
	}
}

// WithMetrics toggles metrics collection
func WithMetrics(enabled bool) Option {
	return func(s *defaultStore) {
		s.EnableMetrics(enabled)
	}
}
