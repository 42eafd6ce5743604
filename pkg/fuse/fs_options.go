package fuse

import (
	"time"

	"github.com/jacobsa/fuse"
	"go.uber.org/zap"
)

// Option for the file system
type Option func(*fsMutable)

// Logger for this file system
func Logger(l *zap.Logger) Option {
	return func(fs *fsMutable) {
		if l != nil {
			fs.l = l
		}
	}
}

// Owner sets the user and group reported as owners of all entries. Defaults to the current process.
func Owner(uid, gid uint32) Option {
	return func(fs *fsMutable) {
		fs.uid = uid
		fs.gid = gid
	}
}

// AttributesTTL sets how long the kernel may cache entries and attributes
func AttributesTTL(ttl time.Duration) Option {
	return func(fs *fsMutable) {
		if ttl >= 0 {
			fs.ttl = ttl
		}
	}
}

// WithMetrics toggles metrics on the fuse package
func WithMetrics(enabled bool) Option {
	return func(fs *fsMutable) {
		fs.EnableMetrics(enabled)
	}
}

// MountOption enables options when mounting the file system
type MountOption func(*fuse.MountConfig)

// ReadOnly mounts the file system read-only
func ReadOnly(enabled bool) MountOption {
	return func(cfg *fuse.MountConfig) {
		cfg.ReadOnly = enabled
	}
}

// AllowOther lets other users access the mount
func AllowOther() MountOption {
	return func(cfg *fuse.MountConfig) {
		if cfg.Options == nil {
			cfg.Options = make(map[string]string)
		}
		cfg.Options["allow_other"] = ""
	}
}
