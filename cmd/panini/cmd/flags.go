package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/paninifs/panini/pkg/config"
)

// configuration keys, matching config.Settings
const (
	keyWorkspace          = "workspace"
	keyLabel              = "label"
	keyBuckets            = "buckets"
	keyLogLevel           = "log-level"
	keyCacheSize          = "cache-size"
	keyMaxCachedBlob      = "max-cached-blob"
	keyVerifyHash         = "verify-hash"
	keyMaxComponentLength = "max-component-length"
	keyMeta               = "meta"
	keyInMemoryMeta       = "in-memory-meta"
	keyMetrics            = "metrics"
)

type flagsT struct {
	root struct {
		metrics *M
	}
	blob struct {
		Bucket string
		Out    string
	}
	inline struct {
		Width int
		Out   string
	}
	mount struct {
		ReadOnly   bool
		AllowOther bool
		TTL        time.Duration
	}
}

var paniniFlags = flagsT{}

func settingsDefaults() map[string]interface{} {
	d := config.Defaults()
	return map[string]interface{}{
		keyWorkspace:          d.Workspace,
		keyLabel:              d.VolumeLabel,
		keyBuckets:            d.Buckets,
		keyLogLevel:           d.LogLevel,
		keyCacheSize:          d.CacheSize,
		keyMaxCachedBlob:      d.MaxCachedBlob,
		keyVerifyHash:         d.VerifyHash,
		keyMaxComponentLength: d.MaxComponentLength,
		keyMeta:               d.MetaPath,
		keyInMemoryMeta:       d.InMemoryMeta,
		keyMetrics:            d.Metrics,
	}
}

func bindFlag(cmd *cobra.Command, key string) string {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(key)); err != nil {
		wrapFatalln(fmt.Sprintf("bind flag %q", key), err)
	}
	return key
}

func addWorkspaceFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(keyWorkspace, config.Defaults().Workspace,
		"The root directory of the workspace, holding blobs and metadata")
	return bindFlag(cmd, keyWorkspace)
}

func addLabelFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(keyLabel, config.DefaultVolumeLabel, "The volume label reported to the host")
	return bindFlag(cmd, keyLabel)
}

func addBucketsFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(keyBuckets, "",
		`Comma separated upper limits of the size buckets, e.g. "4KiB,1MiB,2^30". Defaults to powers of two`)
	return bindFlag(cmd, keyBuckets)
}

func addLogLevelFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().String(keyLogLevel, config.Defaults().LogLevel, "The logging level. Levels are debug, info, warn, error or none")
	return bindFlag(cmd, keyLogLevel)
}

func addCacheSizeFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().Int(keyCacheSize, config.DefaultCacheSize, "The number of blobs kept in the read cache. Use 0 to disable caching")
	return bindFlag(cmd, keyCacheSize)
}

func addVerifyHashFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().Bool(keyVerifyHash, false, "Verify the content address of blobs when reading them back")
	return bindFlag(cmd, keyVerifyHash)
}

func addMetricsFlag(cmd *cobra.Command) string {
	cmd.PersistentFlags().Bool(keyMetrics, false, "Collect metrics and write them to the log")
	return bindFlag(cmd, keyMetrics)
}

func addBucketFlag(cmd *cobra.Command) string {
	bucket := "bucket"
	cmd.Flags().StringVar(&paniniFlags.blob.Bucket, bucket, "", "The bucket of the blob. When omitted, all buckets are searched")
	return bucket
}

func addBlobOutFlag(cmd *cobra.Command) string {
	out := "out"
	cmd.Flags().StringVar(&paniniFlags.blob.Out, out, "", "Write the blob to this file instead of stdout")
	return out
}

func addInlineWidthFlag(cmd *cobra.Command) string {
	width := "width"
	cmd.Flags().IntVar(&paniniFlags.inline.Width, width, 76, "Break encoded lines after this many characters. Use 0 for a single line")
	return width
}

func addInlineOutFlag(cmd *cobra.Command) string {
	out := "out"
	cmd.Flags().StringVar(&paniniFlags.inline.Out, out, "", "Write the result to this file instead of stdout")
	return out
}

func addReadOnlyFlag(cmd *cobra.Command) string {
	readOnly := "read-only"
	cmd.Flags().BoolVar(&paniniFlags.mount.ReadOnly, readOnly, false, "Mount the file system read-only")
	return readOnly
}

func addAllowOtherFlag(cmd *cobra.Command) string {
	allowOther := "allow-other"
	cmd.Flags().BoolVar(&paniniFlags.mount.AllowOther, allowOther, false, "Let other users access the mount")
	return allowOther
}

func addAttributesTTLFlag(cmd *cobra.Command) string {
	ttl := "attr-ttl"
	cmd.Flags().DurationVar(&paniniFlags.mount.TTL, ttl, time.Second, "How long the kernel may cache entries and attributes")
	return ttl
}
