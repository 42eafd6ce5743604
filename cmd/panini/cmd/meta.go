package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Commands to inspect the metadata side-table",
}

var metaQueryCmd = &cobra.Command{
	Use:   "query <path>",
	Short: "List the assertions recorded about a path",
	Long: `List the assertions recorded about a path in the virtual file system, oldest first.

The file system records the kind of each created entry, every committed content address, moves and deletions.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) { cliUsage(t0, "meta query", err) }(time.Now())

		ctx := context.Background()
		w, err := openWorkspace(ctx)
		if err != nil {
			wrapFatalln("open workspace", err)
			return
		}
		defer closeWorkspace(ctx, w)

		assertions, err := w.SideTable().QueryAssertions(ctx, args[0])
		if err != nil {
			wrapFatalln("query assertions", err)
			return
		}
		if err = printYAML(cmd, assertions); err != nil {
			wrapFatalln("print assertions", err)
		}
	},
}

func init() {
	metaCmd.AddCommand(metaQueryCmd)
	rootCmd.AddCommand(metaCmd)
}
