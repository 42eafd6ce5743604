// Package config holds the startup configuration of a panini workspace.
//
// A Config is immutable once built: New validates the settings and
// resolves derived values such as the bucket ladder.
package config

import (
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"go.uber.org/zap/zapcore"

	"github.com/paninifs/panini/pkg/bucket"
	"github.com/paninifs/panini/pkg/dlogger"
	"github.com/paninifs/panini/pkg/errors"
)

const (
	// DefaultVolumeLabel is the label reported to the host
	DefaultVolumeLabel = "Panini"

	// DefaultMaxComponentLength is the longest file name component accepted
	DefaultMaxComponentLength = 255

	// DefaultCacheSize is the default number of blobs in the read cache
	DefaultCacheSize = 256

	// BlobsDir is the directory of the blob store under the workspace root
	BlobsDir = "blobs"

	// MetaDir is the default directory of the metadata database under the workspace root
	MetaDir = "meta"
)

// ErrInvalidConfig is returned by New when settings are not usable
var ErrInvalidConfig = errors.New("invalid configuration")

// Settings are the raw configuration values, as read from flags, environment or file
type Settings struct {
	Workspace          string   `json:"workspace" yaml:"workspace" mapstructure:"workspace"`
	VolumeLabel        string   `json:"label" yaml:"label" mapstructure:"label"`
	Buckets            []string `json:"buckets,omitempty" yaml:"buckets,omitempty" mapstructure:"buckets"`
	LogLevel           string   `json:"logLevel" yaml:"logLevel" mapstructure:"log-level"`
	CacheSize          int      `json:"cacheSize" yaml:"cacheSize" mapstructure:"cache-size"`
	MaxCachedBlob      string   `json:"maxCachedBlob,omitempty" yaml:"maxCachedBlob,omitempty" mapstructure:"max-cached-blob"`
	VerifyHash         bool     `json:"verifyHash" yaml:"verifyHash" mapstructure:"verify-hash"`
	MaxComponentLength int      `json:"maxComponentLength" yaml:"maxComponentLength" mapstructure:"max-component-length"`
	MetaPath           string   `json:"meta,omitempty" yaml:"meta,omitempty" mapstructure:"meta"`
	InMemoryMeta       bool     `json:"inMemoryMeta,omitempty" yaml:"inMemoryMeta,omitempty" mapstructure:"in-memory-meta"`
	Metrics            bool     `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// Defaults returns the default settings
func Defaults() Settings {
	return Settings{
		Workspace:          ".panini",
		VolumeLabel:        DefaultVolumeLabel,
		LogLevel:           dlogger.LogLevelInfo,
		CacheSize:          DefaultCacheSize,
		MaxCachedBlob:      "1MiB",
		MaxComponentLength: DefaultMaxComponentLength,
	}
}

// Config is the validated, immutable configuration of a workspace
type Config struct {
	workspace          string
	label              string
	ladder             bucket.Ladder
	logLevel           string
	cacheSize          int
	maxCachedBlob      int64
	verifyHash         bool
	maxComponentLength int
	metaPath           string
	inMemoryMeta       bool
	metrics            bool
}

// New validates settings and builds a configuration
func New(s Settings) (Config, error) {
	if strings.TrimSpace(s.Workspace) == "" {
		return Config{}, ErrInvalidConfig.WrapMessage("a workspace root is required")
	}
	root, err := filepath.Abs(s.Workspace)
	if err != nil {
		return Config{}, ErrInvalidConfig.Wrap(err)
	}

	label := s.VolumeLabel
	if label == "" {
		label = DefaultVolumeLabel
	}

	ladder := bucket.Default()
	if len(s.Buckets) > 0 {
		ladder, err = bucket.Parse(s.Buckets)
		if err != nil {
			return Config{}, ErrInvalidConfig.Wrap(err)
		}
	}

	logLevel := strings.ToLower(s.LogLevel)
	if logLevel == "" {
		logLevel = dlogger.LogLevelInfo
	}
	if logLevel != dlogger.LogLevelNone {
		var lvl zapcore.Level
		if err = lvl.UnmarshalText([]byte(logLevel)); err != nil {
			return Config{}, ErrInvalidConfig.WrapMessage("log level %q: %v", s.LogLevel, err)
		}
	}

	if s.CacheSize < 0 {
		return Config{}, ErrInvalidConfig.WrapMessage("cache size must not be negative: %d", s.CacheSize)
	}

	var maxCached int64 = units.MiB
	if s.MaxCachedBlob != "" {
		maxCached, err = units.RAMInBytes(s.MaxCachedBlob)
		if err != nil {
			return Config{}, ErrInvalidConfig.Wrap(err)
		}
	}

	maxComponent := s.MaxComponentLength
	if maxComponent == 0 {
		maxComponent = DefaultMaxComponentLength
	}
	if maxComponent < 0 {
		return Config{}, ErrInvalidConfig.WrapMessage("max component length must be positive: %d", maxComponent)
	}

	metaPath := s.MetaPath
	if metaPath == "" {
		metaPath = filepath.Join(root, MetaDir)
	}

	return Config{
		workspace:          root,
		label:              label,
		ladder:             ladder,
		logLevel:           logLevel,
		cacheSize:          s.CacheSize,
		maxCachedBlob:      maxCached,
		verifyHash:         s.VerifyHash,
		maxComponentLength: maxComponent,
		metaPath:           metaPath,
		inMemoryMeta:       s.InMemoryMeta,
		metrics:            s.Metrics,
	}, nil
}

// Workspace is the absolute workspace root
func (c Config) Workspace() string { return c.workspace }

// BlobRoot is the root directory of the blob store
func (c Config) BlobRoot() string { return filepath.Join(c.workspace, BlobsDir) }

// VolumeLabel is the label reported to the host
func (c Config) VolumeLabel() string { return c.label }

// Ladder is the bucket ladder of the blob store
func (c Config) Ladder() bucket.Ladder { return c.ladder }

// LogLevel is the logging level
func (c Config) LogLevel() string { return c.logLevel }

// CacheSize is the number of blobs retained by the read cache
func (c Config) CacheSize() int { return c.cacheSize }

// MaxCachedBlob is the largest blob admitted in the read cache
func (c Config) MaxCachedBlob() int64 { return c.maxCachedBlob }

// VerifyHash tells if blobs are verified when read back
func (c Config) VerifyHash() bool { return c.verifyHash }

// MaxComponentLength is the longest file name component accepted
func (c Config) MaxComponentLength() int { return c.maxComponentLength }

// MetaPath is the directory of the metadata database
func (c Config) MetaPath() string { return c.metaPath }

// InMemoryMeta tells if metadata is kept in memory only
func (c Config) InMemoryMeta() bool { return c.inMemoryMeta }

// Metrics tells if metrics collection is enabled
func (c Config) Metrics() bool { return c.metrics }

// Settings returns the effective settings of this configuration
func (c Config) Settings() Settings {
	buckets := make([]string, 0, len(c.ladder.Limits()))
	for _, b := range c.ladder.Buckets() {
		if !b.IsOversize() {
			buckets = append(buckets, b.Name)
		}
	}
	return Settings{
		Workspace:          c.workspace,
		VolumeLabel:        c.label,
		Buckets:            buckets,
		LogLevel:           c.logLevel,
		CacheSize:          c.cacheSize,
		MaxCachedBlob:      units.BytesSize(float64(c.maxCachedBlob)),
		VerifyHash:         c.verifyHash,
		MaxComponentLength: c.maxComponentLength,
		MetaPath:           c.metaPath,
		InMemoryMeta:       c.inMemoryMeta,
		Metrics:            c.metrics,
	}
}
