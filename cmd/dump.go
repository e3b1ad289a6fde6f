package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/asivery/himd-js/codec"
)

var dumpTrackKeyHex string

func parseSlot(arg string) (uint16, error) {
	v, err := strconv.ParseUint(arg, 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func parseTrackKey() ([8]byte, error) {
	var key [8]byte
	if dumpTrackKeyHex == "" {
		return key, nil
	}
	raw, err := hex.DecodeString(dumpTrackKeyHex)
	if err != nil {
		return key, err
	}
	if len(raw) != 8 {
		return key, fmt.Errorf("cmd: track key must be 8 bytes, got %d", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

var dumpMP3Cmd = &cobra.Command{
	Use:                   "dump-mp3 SLOT OUT",
	Short:                 "Export an MPEG track as a tagged .mp3 file",
	Args:                  cobra.ExactArgs(2),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		withDisc(func() error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			d, err := openDisc()
			if err != nil {
				return err
			}
			t, err := d.TIF.GetTrack(slot)
			if err != nil {
				return err
			}
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()
			return d.DumpMP3(slot, uint32(t.TrackNumber), out)
		})
	},
}

var dumpOMACmd = &cobra.Command{
	Use:                   "dump-oma SLOT OUT",
	Short:                 "Export an ATRAC3/ATRAC3+ track as an .oma container",
	Args:                  cobra.ExactArgs(2),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		withDisc(func() error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			key, err := parseTrackKey()
			if err != nil {
				return err
			}
			d, err := openDisc()
			if err != nil {
				return err
			}
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()
			return d.DumpOMA(slot, key, out)
		})
	},
}

var dumpWAVCmd = &cobra.Command{
	Use:                   "dump-wav SLOT OUT",
	Short:                 "Export an LPCM track as a .wav file",
	Args:                  cobra.ExactArgs(2),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		withDisc(func() error {
			slot, err := parseSlot(args[0])
			if err != nil {
				return err
			}
			key, err := parseTrackKey()
			if err != nil {
				return err
			}
			d, err := openDisc()
			if err != nil {
				return err
			}
			t, err := d.TIF.GetTrack(slot)
			if err != nil {
				return err
			}
			sampleRate := codec.SampleRate(t.CodecID, codec.CodecInfo(t.CodecInfo))
			channels := uint16(2)

			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer out.Close()
			return d.DumpWAV(slot, key, sampleRate, channels, out)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{dumpOMACmd, dumpWAVCmd} {
		c.Flags().StringVar(&dumpTrackKeyHex, "track-key", "", "hex-encoded 8-byte track key, for DRM-protected tracks uploaded through a signed session")
	}
	rootCmd.AddCommand(dumpMP3Cmd)
	rootCmd.AddCommand(dumpOMACmd)
	rootCmd.AddCommand(dumpWAVCmd)
}
