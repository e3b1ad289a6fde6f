// Package bytesio implements the big-endian byte codecs shared by the TIF
// object store and the ATDATA block framing: fixed-width integer helpers,
// the DOS date/time packing used throughout track slots, and the two
// container headers the library emits on export (EA3 for ATRAC, RIFF/WAVE
// for LPCM).
package bytesio

import (
	"encoding/binary"
	"time"
)

// BE16/BE32 read big-endian integers out of a byte slice, the way the TIF
// and ATDATA layouts in spec.md §3 are documented.
func BE16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func BE32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// PutBE16/PutBE32 write big-endian integers into a byte slice.
func PutBE16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func PutBE32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }

// DOSDateTime is the 32-bit packed date/time used for track recording time
// and licence start/end fields: 16 bits of DOS date, 16 bits of DOS time.
type DOSDateTime struct {
	Year, Month, Day          int
	Hour, Minute, Second      int
}

// DecodeDOSDateTime unpacks the 4-byte big-endian DOS date/time field.
func DecodeDOSDateTime(b []byte) DOSDateTime {
	date := BE16(b[0:2])
	tm := BE16(b[2:4])

	return DOSDateTime{
		Year:   int(date>>9) + 1980,
		Month:  int((date >> 5) & 0xF),
		Day:    int(date & 0x1F),
		Hour:   int(tm >> 11),
		Minute: int((tm >> 5) & 0x3F),
		Second: int(tm&0x1F) * 2,
	}
}

// EncodeDOSDateTime packs a DOSDateTime back into its 4-byte representation.
func EncodeDOSDateTime(d DOSDateTime) [4]byte {
	date := uint16((d.Year-1980)<<9) | uint16(d.Month<<5) | uint16(d.Day)
	tm := uint16(d.Hour<<11) | uint16(d.Minute<<5) | uint16(d.Second/2)

	var out [4]byte
	PutBE16(out[0:2], date)
	PutBE16(out[2:4], tm)
	return out
}

// FromTime converts a time.Time to the DOS representation used on disc.
func FromTime(t time.Time) DOSDateTime {
	return DOSDateTime{
		Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
		Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(),
	}
}

// Time converts the DOS representation back to a time.Time in UTC.
func (d DOSDateTime) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, time.UTC)
}

// EA3Header builds the 96-byte EA3 container header ATRAC exports are
// prefixed with (spec.md §6). Bytes 32..36 carry the codec id and the first
// three codecInfo bytes; everything else is the fixed EA3 template.
func EA3Header(codecID byte, codecInfo [5]byte) [96]byte {
	var h [96]byte
	copy(h[0:10], []byte{0x45, 0x41, 0x33, 0x01, 0x00, 0x60, 0xFF, 0xFF, 0x00, 0x00})
	h[32] = codecID
	h[33] = codecInfo[0]
	h[34] = codecInfo[1]
	h[35] = codecInfo[2]
	return h
}

// LPCMWAVHeader builds a 44-byte canonical RIFF/WAVE header for exported
// LPCM audio: 16-bit signed PCM at the given sample rate and channel count,
// dataSize bytes of sample data to follow.
func LPCMWAVHeader(sampleRate uint32, channels uint16, dataSize uint32) [44]byte {
	const bitsPerSample = 16

	var h [44]byte
	copy(h[0:4], "RIFF")
	PutBE32LE(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	PutBE32LE(h[16:20], 16)
	PutBE16LE(h[20:22], 1) // PCM
	PutBE16LE(h[22:24], channels)
	PutBE32LE(h[24:28], sampleRate)
	byteRate := sampleRate * uint32(channels) * (bitsPerSample / 8)
	PutBE32LE(h[28:32], byteRate)
	blockAlign := channels * (bitsPerSample / 8)
	PutBE16LE(h[32:34], blockAlign)
	PutBE16LE(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	PutBE32LE(h[40:44], dataSize)
	return h
}

// PutBE32LE/PutBE16LE write little-endian integers; named distinctly from
// PutBE32/PutBE16 because every other field in this package is big-endian
// and RIFF is the one little-endian exception (spec.md §6 "byte-swapped
// (big->little) 16-bit PCM samples").
func PutBE32LE(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func PutBE16LE(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }

// SwapPCM16 byte-swaps a buffer of big-endian 16-bit PCM samples (as stored
// in ATDATA) into little-endian samples for WAV export, in place.
func SwapPCM16(samples []byte) {
	for i := 0; i+1 < len(samples); i += 2 {
		samples[i], samples[i+1] = samples[i+1], samples[i]
	}
}
