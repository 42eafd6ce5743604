package cmd

import (
	"context"
	"io/ioutil"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/paninifs/panini/pkg/blob"
	"github.com/paninifs/panini/pkg/cafs"
)

var blobCmd = &cobra.Command{
	Use:   "blob",
	Short: "Commands to manage the blob store",
	Long: `Commands to manage the content-addressed blob store of a workspace.

Blobs are addressed by the hexadecimal BLAKE2b-512 hash of their content.`,
}

var blobPutCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store the content of a file as a blob",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) { cliUsage(t0, "blob put", err) }(time.Now())

		data, err := ioutil.ReadFile(args[0])
		if err != nil {
			wrapFatalln("read input file", err)
			return
		}

		ctx := context.Background()
		w, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		defer closeWorkspace(ctx, w)

		ref, err := w.Blobs().Put(ctx, data)
		if err != nil {
			wrapFatalln("put blob", err)
			return
		}
		if err = printYAML(cmd, ref); err != nil {
			wrapFatalln("print blob reference", err)
		}
	},
}

var blobGetCmd = &cobra.Command{
	Use:   "get <address>",
	Short: "Retrieve a blob by address",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) { cliUsage(t0, "blob get", err) }(time.Now())

		key, err := cafs.ParseKey(args[0])
		if err != nil {
			wrapFatalln("invalid blob address", err)
			return
		}

		ctx := context.Background()
		w, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		defer closeWorkspace(ctx, w)

		ref := blob.Ref{Key: key, Bucket: paniniFlags.blob.Bucket}
		if ref.Bucket == "" {
			ref, err = w.Blobs().Lookup(ctx, key)
			if err != nil {
				wrapFatalln("look up blob", err)
				return
			}
		}

		data, err := w.Blobs().Get(ctx, ref)
		if err != nil {
			wrapFatalln("get blob", err)
			return
		}

		if paniniFlags.blob.Out != "" {
			err = ioutil.WriteFile(paniniFlags.blob.Out, data, 0644)
		} else {
			_, err = cmd.OutOrStdout().Write(data)
		}
		if err != nil {
			wrapFatalln("write blob", err)
		}
	},
}

type bucketUsage struct {
	Bucket string `yaml:"bucket"`
	Limit  string `yaml:"limit,omitempty"`
	Count  int    `yaml:"count"`
	Size   string `yaml:"size"`
	Bytes  int64  `yaml:"bytes"`
}

var blobStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report the number and size of blobs per bucket",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) { cliUsage(t0, "blob stats", err) }(time.Now())

		ctx := context.Background()
		w, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		defer closeWorkspace(ctx, w)

		stats, err := w.Blobs().Stats(ctx)
		if err != nil {
			wrapFatalln("collect blob stats", err)
			return
		}
		usage := make([]bucketUsage, 0, len(stats))
		for _, s := range stats {
			u := bucketUsage{
				Bucket: s.Bucket,
				Count:  s.Count,
				Size:   units.BytesSize(float64(s.Bytes)),
				Bytes:  s.Bytes,
			}
			if s.Limit > 0 {
				u.Limit = units.BytesSize(float64(s.Limit))
			}
			usage = append(usage, u)
		}
		if err = printYAML(cmd, usage); err != nil {
			wrapFatalln("print blob stats", err)
		}
	},
}

var blobGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove the blobs no longer referenced by any file",
	Long: `Remove the blobs no longer referenced by any file of the workspace.

Blobs put directly with "blob put" are not referenced by files and are removed as well.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) { cliUsage(t0, "blob gc", err) }(time.Now())

		ctx := context.Background()
		w, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		defer closeWorkspace(ctx, w)

		res, err := w.FS().Reclaim(ctx)
		if err != nil {
			wrapFatalln("reclaim blobs", err)
			return
		}
		if err = printYAML(cmd, res); err != nil {
			wrapFatalln("print reclamation result", err)
		}
	},
}

func init() {
	addBucketFlag(blobGetCmd)
	addBlobOutFlag(blobGetCmd)

	blobCmd.AddCommand(blobPutCmd)
	blobCmd.AddCommand(blobGetCmd)
	blobCmd.AddCommand(blobStatsCmd)
	blobCmd.AddCommand(blobGCCmd)
	rootCmd.AddCommand(blobCmd)
}
