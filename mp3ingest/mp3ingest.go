// Package mp3ingest scans a complete MP3 byte stream frame-by-frame and
// packs it into the 0x3FC0-byte SMPA buckets the block package streams onto
// ATDATA, aggregating a single variable-bitrate-tolerant codecInfo
// descriptor along the way (spec.md §4.5).
package mp3ingest

import (
	"github.com/pkg/errors"

	"github.com/asivery/himd-js/block"
	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/codec"
)

// Frame is one parsed MPEG audio frame, as produced by an external frame
// parser. The mp3ingest package never parses MP3 headers itself; it only
// aggregates what the parser reports.
type Frame struct {
	Data            []byte
	Version         byte
	Layer           byte
	BitrateIndex    byte
	SampleRateIndex byte
	ChannelMode     byte
	PreEmphasis     byte
}

// Parser is a lazy, pull-based source of frames. Next returns (nil, nil)
// once the input is exhausted.
type Parser interface {
	Next() (*Frame, error)
}

// Variability bits in the aggregated flag byte (codecInfo[2]). Bit
// positions are this library's own choice: spec.md §4.5 only requires that
// a bit be set whenever the corresponding field varies across the stream,
// not which bit.
const (
	flagVersion byte = 1 << iota
	flagLayer
	flagBitrate
	flagSampleRate
	flagChannelMode
	flagPreEmphasis
)

// Result is everything an upload needs to finish writing a track after
// ingest: the SMPA blocks ready to append to ATDATA, the aggregated codec
// descriptor, and the track's duration.
type Result struct {
	Blocks      []block.Block
	CodecInfo   codec.CodecInfo
	DurationSec float64
	FrameCount  int
}

type aggregator struct {
	seen         bool
	version      byte
	layer        byte
	bitrateIdx   byte
	sampleRateIx byte
	chMode       byte
	preEmphasis  byte
	flags        byte
}

func (a *aggregator) observe(f *Frame) {
	if !a.seen {
		a.version = f.Version
		a.layer = f.Layer
		a.bitrateIdx = f.BitrateIndex
		a.sampleRateIx = f.SampleRateIndex
		a.chMode = f.ChannelMode
		a.preEmphasis = f.PreEmphasis
		a.seen = true
		return
	}

	if f.Version != a.version {
		a.flags |= flagVersion
		a.version = min(a.version, f.Version)
	}
	if f.Layer != a.layer {
		a.flags |= flagLayer
		a.layer = min(a.layer, f.Layer)
	}
	if f.BitrateIndex != a.bitrateIdx {
		a.flags |= flagBitrate
		a.bitrateIdx = max(a.bitrateIdx, f.BitrateIndex)
	}
	if f.SampleRateIndex != a.sampleRateIx {
		a.flags |= flagSampleRate
		a.sampleRateIx = min(a.sampleRateIx, f.SampleRateIndex)
	}
	if f.ChannelMode != a.chMode {
		a.flags |= flagChannelMode
	}
	if f.PreEmphasis != a.preEmphasis {
		a.flags |= flagPreEmphasis
	}
}

func min(a, b byte) byte {
	if a < b {
		return a
	}
	return b
}

func max(a, b byte) byte {
	if a > b {
		return a
	}
	return b
}

var mpegSampleRates = [3]uint32{44100, 48000, 32000}

// Ingest scans every frame parser yields, buckets it into SMPA blocks, and
// returns the aggregated result. startSerial is the serial number to stamp
// on the first emitted block; contentID is the track's 20-byte content id,
// whose low 4 bytes get embedded in each block.
func Ingest(p Parser, mp3Key [4]byte, startSerial uint32, contentID [20]byte) (*Result, error) {
	var agg aggregator
	var blocks []block.Block
	var bucket []byte
	bucketFrames := 0
	serial := startSerial
	frameCount := 0

	flush := func() {
		if len(bucket) == 0 {
			return
		}
		b := newSMPABlock(bucket, bucketFrames, serial, contentID)
		obfuscate(b.Payload[:b.LenData], mp3Key)
		blocks = append(blocks, b)
		serial++
		bucket = nil
		bucketFrames = 0
	}

	for {
		f, err := p.Next()
		if err != nil {
			return nil, errors.Wrap(err, "mp3ingest: reading frame")
		}
		if f == nil {
			break
		}

		agg.observe(f)
		frameCount++

		if len(bucket)+len(f.Data) >= block.HimdAudioSize {
			flush()
		}
		bucket = append(bucket, f.Data...)
		bucketFrames++
	}
	flush()

	info := codecInfoFromAggregate(&agg)
	srate := mpegSampleRates[agg.sampleRateIx]
	samplesPerFrame := 1152
	if agg.layer&0b11 == 0b11 {
		samplesPerFrame = 384
	}
	totalSamples := uint64(frameCount) * uint64(samplesPerFrame)

	return &Result{
		Blocks:      blocks,
		CodecInfo:   info,
		DurationSec: float64(totalSamples) / float64(srate),
		FrameCount:  frameCount,
	}, nil
}

func codecInfoFromAggregate(a *aggregator) codec.CodecInfo {
	var info codec.CodecInfo
	info[0] = 3
	info[1] = 0
	info[2] = a.flags
	info[3] = (a.version << 6) | (a.layer << 4) | a.bitrateIdx
	info[4] = (a.sampleRateIx << 6) | (a.chMode << 4) | (a.preEmphasis << 2)
	return info
}

func newSMPABlock(data []byte, nFrames int, serial uint32, contentID [20]byte) block.Block {
	var b block.Block
	b.Type = block.TypeSMPA
	b.NFrames = uint16(nFrames)
	b.MCode = block.MCodeDefault
	b.LenData = uint16(len(data))
	b.Serial = serial
	copy(b.Payload[:], data)
	b.StampBackup(contentID)
	return b
}

func obfuscate(payload []byte, key [4]byte) {
	n := len(payload) &^ 7
	for i := 0; i < n; i++ {
		payload[i] ^= key[i%4]
	}
}

// EncryptionKeyForTrack is a thin forward to cipher.GetMP3EncryptionKey, kept
// here so callers uploading an MP3 don't need to import the cipher package
// just to derive the XOR key.
func EncryptionKeyForTrack(discID [16]byte, trackNumber uint32) [4]byte {
	return cipher.GetMP3EncryptionKey(discID, trackNumber)
}
