package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asivery/himd-js/disc"
	"github.com/asivery/himd-js/session"
)

var (
	uploadTitle  string
	uploadArtist string
	uploadAlbum  string
)

// secureFlag gates secureSession below; registered on upload-mp3,
// upload-atrac, and delete, since all three can trigger a maclist
// re-sign/generation rotation (spec.md §4.6, §4.8).
var secureFlag bool

// secureSession opens a device-less secure session against d when --secure
// is set, so uploads and deletes re-sign the maclist and rotate the
// generation the same way a real device session would (spec.md §4.6); the
// CLI has no USB transport wired up, so Transport is always nil here.
func secureSession(ctx context.Context, d *disc.Disc) (*session.Session, error) {
	if !secureFlag {
		return nil, nil
	}
	return d.NewSession(ctx, nil, session.DefaultHostLeafID)
}

var uploadMP3Cmd = &cobra.Command{
	Use:                   "upload-mp3 FILE",
	Short:                 "Upload a raw MP3 file as a new track",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		withDisc(func() error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			d, err := openDisc()
			if err != nil {
				return err
			}

			ctx := context.Background()
			sess, err := secureSession(ctx, d)
			if err != nil {
				return err
			}

			parser := NewStreamFrameParser(f)
			info, err := d.UploadMP3(ctx, sess, parser, uploadTitle, uploadArtist, uploadAlbum)
			if err != nil {
				return err
			}
			if err := d.Flush(); err != nil {
				return err
			}
			fmt.Printf("uploaded track %d\n", info.Slot)
			return nil
		})
	},
}

var (
	atracCodecID    uint8
	atracFrameSize  int
	atracChannels   int
	atracSampleRate uint32
)

var uploadATRACCmd = &cobra.Command{
	Use:                   "upload-atrac FILE",
	Short:                 "Upload a raw ATRAC3/ATRAC3+ elementary stream as a new track",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		withDisc(func() error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return err
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

			info, err := d.UploadATRAC(ctx, sess, atracCodecID, atracFrameSize, atracChannels, atracSampleRate, payload, uploadTitle, uploadArtist, uploadAlbum)
			if err != nil {
				return err
			}
			if err := d.Flush(); err != nil {
				return err
			}
			fmt.Printf("uploaded track %d\n", info.Slot)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{uploadMP3Cmd, uploadATRACCmd} {
		c.Flags().StringVar(&uploadTitle, "title", "", "track title")
		c.Flags().StringVar(&uploadArtist, "artist", "", "track artist")
		c.Flags().StringVar(&uploadAlbum, "album", "", "track album")
		c.Flags().BoolVar(&secureFlag, "secure", false, "re-sign the maclist and rotate the generation after writing")
	}

	uploadATRACCmd.Flags().Uint8Var(&atracCodecID, "codec", 0, "codec id (0 = ATRAC3, 1 = ATRAC3+)")
	uploadATRACCmd.Flags().IntVar(&atracFrameSize, "frame-size", 0, "bytes per encoded frame")
	uploadATRACCmd.Flags().IntVar(&atracChannels, "channels", 2, "channel count")
	uploadATRACCmd.Flags().Uint32Var(&atracSampleRate, "sample-rate", 44100, "sample rate in Hz")

	rootCmd.AddCommand(uploadMP3Cmd)
	rootCmd.AddCommand(uploadATRACCmd)
}
