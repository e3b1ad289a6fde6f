package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var renameDiscCmd = &cobra.Command{
	Use:                   "rename-disc TITLE",
	Short:                 "Set or clear the disc title",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		withDisc(func() error {
			d, err := openDisc()
			if err != nil {
				return err
			}
			if err := d.RenameDisc(args[0]); err != nil {
				return err
			}
			return d.Flush()
		})
	},
}

var renameTrackCmd = &cobra.Command{
	Use:                   "rename-track SLOT TITLE",
	Short:                 "Set or clear a track's title",
	Args:                  cobra.ExactArgs(2),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		withDisc(func() error {
			slot, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return err
			}
			d, err := openDisc()
			if err != nil {
				return err
			}
			if err := d.RenameTrack(uint16(slot), args[1]); err != nil {
				return err
			}
			return d.Flush()
		})
	},
}

// withDisc runs fn, reporting and exiting non-zero on error; it is the
// shared error-handling tail every mutating subcommand ends with.
func withDisc(fn func() error) {
	if err := fn(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(renameDiscCmd)
	rootCmd.AddCommand(renameTrackCmd)
}
