package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:                   "delete INDEX...",
	Short:                 "Delete one or more tracks by 0-based position in the track ordering",
	Args:                  cobra.MinimumNArgs(1),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		withDisc(func() error {
			indices := make([]uint16, 0, len(args))
			for _, a := range args {
				v, err := strconv.ParseUint(a, 10, 16)
				if err != nil {
					return err
				}
				indices = append(indices, uint16(v))
			}

			d, err := openDisc()
			if err != nil {
				return err
			}

			ctx := context.Background()
			sess, err := secureSession(ctx, d)
			if err != nil {
				return err
			}

			if err := d.DeleteTracks(ctx, sess, indices); err != nil {
				return err
			}
			return d.Flush()
		})
	},
}

func init() {
	deleteCmd.Flags().BoolVar(&secureFlag, "secure", false, "re-sign the maclist and rotate the generation after deleting")
	rootCmd.AddCommand(deleteCmd)
}
