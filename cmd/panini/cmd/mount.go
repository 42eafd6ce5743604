package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/paninifs/panini/pkg/fuse"
)

var mountCmd = &cobra.Command{
	Use:   "mount <mountpoint>",
	Short: "Mount the workspace file system",
	Long: `Mount the virtual file system of the workspace at the given mount point, using FUSE.

The command blocks until the file system is unmounted. Send SIGINT to this process to unmount:
data written on files still open is committed before unmounting.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if m := paniniFlags.root.metrics; m != nil {
			// do not record timings or failures for long running commands
			m.Usage.Inc("mount")
		}
		mountPoint := args[0]

		ctx := context.Background()
		w, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		defer closeWorkspace(ctx, w)

		fs, err := fuse.NewMutableFS(w.FS(),
			fuse.Logger(w.Logger().With(zap.String("component", "fuse"))),
			fuse.AttributesTTL(paniniFlags.mount.TTL),
			fuse.WithMetrics(w.Config().Metrics()),
		)
		if err != nil {
			wrapFatalln("create file system", err)
			return
		}

		mountOpts := []fuse.MountOption{fuse.ReadOnly(paniniFlags.mount.ReadOnly)}
		if paniniFlags.mount.AllowOther {
			mountOpts = append(mountOpts, fuse.AllowOther())
		}
		if err = fs.Mount(mountPoint, mountOpts...); err != nil {
			wrapFatalln("mount file system", err)
			return
		}
		infoLogger.Printf("mounted %q at %s", w.Config().VolumeLabel(), mountPoint)
		registerSIGINTHandlerMount(fs, mountPoint)

		t0 := time.Now()
		if err = fs.JoinMount(ctx); err != nil {
			wrapFatalln("block on os mount", err)
			return
		}
		infoLogger.Printf("unmounted %s after %v", mountPoint, time.Since(t0).Truncate(time.Second))
	},
}

func init() {
	addReadOnlyFlag(mountCmd)
	addAllowOtherFlag(mountCmd)
	addAttributesTTLFlag(mountCmd)

	rootCmd.AddCommand(mountCmd)
}
