package disc

import (
	"io"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/block"
	"github.com/asivery/himd-js/bytesio"
	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/codec"
	"github.com/asivery/himd-js/himderr"
	"github.com/asivery/himd-js/himdfs"
	"github.com/asivery/himd-js/id3"
	"github.com/asivery/himd-js/tif"
)

// openATDATAForRead resolves and opens the current generation's ATDATA
// file read-only, for export.
func (d *Disc) openATDATAForRead() (himdfs.File, error) {
	resolved, err := himdfs.Resolve(d.FS, d.atdataPath())
	if err != nil {
		return nil, err
	}
	return d.FS.Open(resolved, himdfs.ReadOnly)
}

// DumpMP3 exports an MP3 track's audio verbatim (the on-disc obfuscation
// undone, nothing re-encoded) wrapped in an ID3v2.3.0 tag carrying the
// track's title/artist/album (spec.md §6 "Emitted containers").
func (d *Disc) DumpMP3(slot uint16, trackNumber uint32, w io.Writer) error {
	t, err := d.TIF.GetTrack(slot)
	if err != nil {
		return err
	}
	if !codec.IsMpeg(codec.CodecInfo(t.CodecInfo)) {
		return errors.Wrap(himderr.ErrUnsupportedOperation, "disc: track is not MPEG")
	}

	tags, err := d.trackTags(t)
	if err != nil {
		return err
	}
	tagBytes, err := id3.Encode(tags)
	if err != nil {
		return err
	}
	if _, err := w.Write(tagBytes); err != nil {
		return err
	}

	mp3Key := cipher.GetMP3EncryptionKey(d.DiscID, trackNumber)

	f, err := d.openATDATAForRead()
	if err != nil {
		return err
	}
	defer f.Close()

	fragments, err := block.FragmentChain(d.TIF, t.FirstFragment)
	if err != nil {
		return err
	}
	r := block.NewReader(f, fragments, 0, true)
	for {
		rec, err := r.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		audio, err := block.MP3Frames(rec, mp3Key)
		if err != nil {
			return err
		}
		if _, err := w.Write(audio); err != nil {
			return err
		}
	}
	return nil
}

// DumpOMA exports an ATRAC3/ATRAC3+ track as an EA3-wrapped OpenMG OMA
// file (spec.md §6): an EA3 header whose embedded codec descriptor lets
// downstream players size frames, followed by the decrypted elementary
// stream.
func (d *Disc) DumpOMA(slot uint16, trackKey [8]byte, w io.Writer) error {
	t, err := d.TIF.GetTrack(slot)
	if err != nil {
		return err
	}
	info := codec.CodecInfo(t.CodecInfo)
	if codec.IsMpeg(info) || t.CodecID == codec.IDLpcm {
		return errors.Wrap(himderr.ErrUnsupportedOperation, "disc: track is not ATRAC3/ATRAC3+")
	}

	header := bytesio.EA3Header(t.CodecID, info)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	return d.dumpRawFrames(t, trackKey, info, w)
}

// DumpWAV exports an LPCM track as a playable RIFF/WAVE file: a standard 44
// byte PCM header followed by the decrypted samples, byte-swapped back to
// little-endian (spec.md §6, §4.4 "LPCM stores samples big-endian").
func (d *Disc) DumpWAV(slot uint16, trackKey [8]byte, sampleRate uint32, channels uint16, w io.Writer) error {
	t, err := d.TIF.GetTrack(slot)
	if err != nil {
		return err
	}
	if t.CodecID != codec.IDLpcm {
		return errors.Wrap(himderr.ErrUnsupportedOperation, "disc: track is not LPCM")
	}
	info := codec.CodecInfo(t.CodecInfo)

	fragments, err := block.FragmentChain(d.TIF, t.FirstFragment)
	if err != nil {
		return err
	}
	frameSize := codec.BytesPerFrame(t.CodecID, info)

	f, err := d.openATDATAForRead()
	if err != nil {
		return err
	}
	defer f.Close()

	var pcm []byte
	r := block.NewReader(f, fragments, codec.FramesPerBlock(t.CodecID, info), false)
	for {
		rec, err := r.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		data, err := block.DecryptFrames(trackKey, rec, frameSize)
		if err != nil {
			return err
		}
		pcm = append(pcm, data...)
	}
	bytesio.SwapPCM16(pcm)

	header := bytesio.LPCMWAVHeader(sampleRate, channels, uint32(len(pcm)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(pcm)
	return err
}

// dumpRawFrames decrypts and concatenates every frame of a non-MPEG,
// non-LPCM track without attaching any container header, the shared tail
// of DumpOMA.
func (d *Disc) dumpRawFrames(t tif.TrackSlot, trackKey [8]byte, info codec.CodecInfo, w io.Writer) error {
	fragments, err := block.FragmentChain(d.TIF, t.FirstFragment)
	if err != nil {
		return err
	}
	frameSize := codec.BytesPerFrame(t.CodecID, info)
	framesPerBlock := codec.FramesPerBlock(t.CodecID, info)

	f, err := d.openATDATAForRead()
	if err != nil {
		return err
	}
	defer f.Close()

	r := block.NewReader(f, fragments, framesPerBlock, false)
	for {
		rec, err := r.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		data, err := block.DecryptFrames(trackKey, rec, frameSize)
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}
