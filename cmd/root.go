// Package cmd is the cobra CLI surface over the disc package: list,
// rename, upload, dump, and delete operate directly on a HiMD volume
// mounted as a local directory tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asivery/himd-js/disc"
	"github.com/asivery/himd-js/himdfs"
)

var volumeRoot string

var rootCmd = &cobra.Command{
	Use:   "himd-js",
	Short: "Inspect and manage Sony HiMD discs",
	Long:  `himd-js reads and writes the TIF/ATDATA/MCLIST object model of a HiMD volume mounted as a local directory.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&volumeRoot, "volume", "v", ".", "path to the mounted HiMD volume")
}

// Execute runs the CLI; it is the sole export main.go calls.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// openDisc opens the volume at --volume and loads its current generation's
// TIF and MCLIST, the shared first step of every subcommand.
func openDisc() (*disc.Disc, error) {
	fs := himdfs.NewOSFileSystem(volumeRoot)
	return disc.Open(fs)
}
