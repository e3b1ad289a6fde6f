package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:                   "list",
	Short:                 "List every track on the disc",
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		d, err := openDisc()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		tracks, err := d.ListTracks()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		for _, t := range tracks {
			dur := time.Duration(t.Duration) * time.Second
			fmt.Printf("%3d  %-30s %-20s %-20s %s\n", t.Slot, t.Title, t.Artist, t.Album, dur)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
