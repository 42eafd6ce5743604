package vfs

import (
	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/model"
	"github.com/paninifs/panini/pkg/semantic"
)

// Option to configure the file system
type Option func(*FS)

// SideTable receives the provenance assertions made by the file system
func SideTable(side semantic.SideTable) Option {
	return func(fs *FS) {
		if side != nil {
			fs.side = side
		}
	}
}

// Catalog persists the namespace
func Catalog(catalog model.Catalog) Option {
	return func(fs *FS) {
		if catalog != nil {
			fs.catalog = catalog
		}
	}
}

// Logger sets a logger for the file system
func Logger(l *zap.Logger) Option {
	return func(fs *FS) {
		if l != nil {
			fs.l = l
		}
	}
}

// VolumeLabel sets the label reported by VolumeInfo
func VolumeLabel(label string) Option {
	return func(fs *FS) {
		if label != "" {
			fs.label = label
		}
	}
}

// MaxComponentLength sets the longest accepted name for a path component
func MaxComponentLength(length int) Option {
	return func(fs *FS) {
		if length > 0 {
			fs.maxComponentLength = length
		}
	}
}

// SpaceRoot sets the host directory used to report free space, usually the blob root
func SpaceRoot(dir string) Option {
	return func(fs *FS) {
		if dir != "" {
			fs.spaceRoot = dir
		}
	}
}

// WithMetrics toggles metrics collection
func WithMetrics(enabled bool) Option {
	return func(fs *FS) {
		fs.EnableMetrics(enabled)
	}
}
