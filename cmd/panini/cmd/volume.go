package cmd

import (
	"context"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/paninifs/panini/pkg/vfs"
)

type volumeReport struct {
	Volume vfs.Volume `yaml:"volume"`
	Space  struct {
		Free  string `yaml:"free"`
		Total string `yaml:"total"`
		vfs.Space `yaml:",inline"`
	} `yaml:"space"`
	Blobs string `yaml:"blobs"`
}

var volumeCmd = &cobra.Command{
	Use:   "volume",
	Short: "Print the volume information of the workspace",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		w, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		defer closeWorkspace(ctx, w)

		var report volumeReport
		report.Volume = w.FS().VolumeInfo()
		report.Blobs = w.Blobs().String()

		space, err := w.FS().DiskFreeSpace()
		if err != nil {
			wrapFatalln("get free space", err)
			return
		}
		report.Space.Space = space
		report.Space.Free = units.BytesSize(float64(space.FreeBytesAvailable))
		report.Space.Total = units.BytesSize(float64(space.TotalBytes))

		if err = printYAML(cmd, report); err != nil {
			wrapFatalln("print volume information", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(volumeCmd)
}
