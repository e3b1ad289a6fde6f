// Package codec derives the quantities a codec-info byte tuple encodes:
// bytes-per-frame, samples-per-frame, sample rate, and (for MPEG) bitrate,
// per spec.md §4.4. These feed seeking, duration computation, and block
// sizing throughout the block and disc packages.
package codec

import "github.com/asivery/himd-js/bytesio"

// Codec ids, as stored alongside the 5-byte codecInfo tuple in a track slot.
const (
	IDAtrac3  byte = 0
	IDAtrac3PlusOrMpeg byte = 1
	IDLpcm    byte = 0x80
)

// CodecInfo is the 5-byte descriptor packed into a track slot (spec.md
// §3.3 "codec id byte + 5 codec-info bytes").
type CodecInfo [5]byte

// IsMpeg disambiguates codec id 1 (ATRAC3+ vs MPEG): an MPEG descriptor
// always has its low two bits of byte 0 set.
func IsMpeg(info CodecInfo) bool {
	return info[0]&0b11 == 0b11
}

var atrac3plusplusSampleRates = [5]uint32{32000, 44100, 48000, 88200, 96000}
var mpegSampleRateBase = [3]uint32{44100, 48000, 32000}

// SampleRate returns the sample rate implied by a codec id + descriptor.
func SampleRate(codecID byte, info CodecInfo) uint32 {
	switch {
	case codecID == IDLpcm:
		return 44100
	case codecID == IDAtrac3:
		return atrac3plusplusSampleRates[info[1]>>5]
	case codecID == IDAtrac3PlusOrMpeg && !IsMpeg(info):
		return atrac3plusplusSampleRates[info[1]>>5]
	default: // MPEG
		version := info[3] >> 6
		return mpegSampleRateBase[info[4]>>6] / uint32(4-version)
	}
}

// SamplesPerFrame returns the number of decoded samples one frame of the
// given codec carries.
func SamplesPerFrame(codecID byte, info CodecInfo) int {
	switch {
	case codecID == IDLpcm:
		return 16
	case codecID == IDAtrac3:
		return 1024
	case codecID == IDAtrac3PlusOrMpeg && !IsMpeg(info):
		return 2048
	default: // MPEG
		layer := (info[3] >> 4) & 0b11
		if layer == 0b11 { // Layer I
			return 384
		}
		return 1152 // Layer II/III
	}
}

// mpegFrameSizeMask masks the rounded MPEG frame size: when the version
// field of codecInfo[3] is 0b11 (MPEG-1) the low two bits are cleared,
// otherwise the size is left as computed. spec.md §4.4 expresses this as a
// bitmask applied to the computed frame size.
func mpegFrameSizeMask(info CodecInfo) uint32 {
	if info[3]&0xC0 == 0xC0 {
		return ^uint32(3)
	}
	return ^uint32(0)
}

// BytesPerFrame returns the size in bytes of one encoded frame.
func BytesPerFrame(codecID byte, info CodecInfo) int {
	switch {
	case codecID == IDLpcm:
		return 64
	case codecID == IDAtrac3:
		return int(info[2]) * 8
	case codecID == IDAtrac3PlusOrMpeg && !IsMpeg(info):
		return (int(bytesio.BE16(info[1:3]))&0x3FF + 1) * 8
	default: // MPEG
		kbps := Kbps(info)
		rate := SampleRate(codecID, info)
		spf := SamplesPerFrame(codecID, info)
		size := uint32(spf) * 125 * kbps / rate
		return int(size & mpegFrameSizeMask(info))
	}
}

// mpeg1BitrateTables and mpeg2BitrateTables are the standard MPEG audio
// bitrate tables (kbps), indexed by the 4-bit bitrate index; index 0 and 15
// (free/reserved) resolve to 0.
var mpeg1BitrateTables = map[int][16]uint32{
	1: {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},  // Layer I
	2: {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},     // Layer II
	3: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},      // Layer III
}

var mpeg2BitrateTables = map[int][16]uint32{
	1: {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0}, // Layer I
	2: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},      // Layer II
	3: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},      // Layer III
}

// Kbps returns the MPEG bitrate implied by a descriptor, 0 for the reserved
// bitrate-index values.
func Kbps(info CodecInfo) uint32 {
	version := info[3] >> 6  // 3 = MPEG1, 2 = MPEG2, 0 = MPEG2.5
	rawLayer := (info[3] >> 4) & 0b11
	layer := map[byte]int{0b11: 1, 0b10: 2, 0b01: 3}[rawLayer]
	bitrateIdx := info[3] & 0xF

	table := mpeg2BitrateTables
	if version == 3 {
		table = mpeg1BitrateTables
	}
	row, ok := table[layer]
	if !ok {
		return 0
	}
	return row[bitrateIdx]
}

// FramesPerBlock returns how many frames fit in one ATDATA audio block for
// this codec, or 0 for MPEG (the signal that frame counts are irregular and
// per-block, not fixed, for that codec family).
func FramesPerBlock(codecID byte, info CodecInfo) int {
	if codecID == IDAtrac3PlusOrMpeg && IsMpeg(info) {
		return 0
	}
	if codecID == IDLpcm {
		return 0x3FC0 / 64
	}
	bpf := BytesPerFrame(codecID, info)
	if bpf == 0 {
		return 0
	}
	return 0x3FBF / bpf
}

// GenerateCodecInfo builds a valid descriptor for ATRAC3, ATRAC3+, or LPCM
// from the encoder parameters a fresh upload is built from. MPEG descriptors
// are instead produced by the mp3ingest package, which aggregates them from
// the scanned frame stream.
func GenerateCodecInfo(codecID byte, frameSize int, channels int, sampleRate uint32) CodecInfo {
	var info CodecInfo

	rateIdx := indexOf(atrac3plusplusSampleRates[:], sampleRate)

	switch codecID {
	case IDLpcm:
		// LPCM carries no rate/channel info in the descriptor; frame size is fixed.
		return info
	case IDAtrac3:
		info[1] = byte(rateIdx << 5)
		info[2] = byte(frameSize / 8)
	case IDAtrac3PlusOrMpeg:
		info[0] = 0 // low two bits clear => ATRAC3+, not MPEG
		info[1] = byte(rateIdx<<5) | byte(((frameSize/8)-1)>>8)
		info[2] = byte((frameSize/8 - 1) & 0xFF)
	}

	return info
}

func indexOf(table []uint32, v uint32) int {
	for i, x := range table {
		if x == v {
			return i
		}
	}
	return 0
}
