// Package tif implements the TRKIDX track-index object store: the 0x50000-
// byte in-memory database of tracks, fragments, strings, and groups that
// spec.md §3.2 and §4.2 describe, with its three freelists (tracks,
// fragments, strings) threaded through the same fields used when a slot is
// live.
package tif

import (
	"github.com/asivery/himd-js/bytesio"
)

// ImageSize is the fixed size of a TRKIDX<NN>.HMA image.
const ImageSize = 0x50000

// Magic is the 4-byte signature at the start of a TIF image.
var Magic = [4]byte{'T', 'I', 'F', ' '}

const (
	offMagic       = 0x0000
	offTrackCount  = 0x0100
	offOrdering    = 0x0102
	orderingEnd    = offGroups
	offGroups      = 0x2100
	groupsEnd      = offTrackSlots
	offTrackSlots  = 0x8000
	offFragSlots   = 0x30000
	offStringChunk = 0x40000

	trackSlotSize  = 0x50
	trackSlotCount = 2048

	fragSlotSize  = 0x10
	fragSlotCount = (offStringChunk - offFragSlots) / fragSlotSize // 4096

	stringChunkSize  = 0x10
	stringChunkCount = (ImageSize - offStringChunk) / stringChunkSize // 4096

	groupRecordSize = 8
	maxOrderingSlots = (orderingEnd - offOrdering) / 2
)

// Within a track slot (spec.md §3.3, offsets resolved from the two codec
// byte ranges the spec pins down explicitly: 0x21..0x24 and 0x2C..0x2E).
const (
	tOffRecordingTime    = 0x00
	tOffEkbNumber        = 0x04
	tOffTitleIndex       = 0x08
	tOffArtistIndex      = 0x0A
	tOffAlbumIndex       = 0x0C
	tOffInAlbumIndex     = 0x0E
	tOffEncryptedKey     = 0x10
	tOffTrackMac         = 0x18
	tOffCodecID          = 0x20
	tOffCodecInfoLo      = 0x21 // codecInfo[0:3]
	tOffFirstFragment    = 0x24
	tOffTrackNumber      = 0x26
	tOffDuration         = 0x28
	tOffCodecInfoHi      = 0x2C // codecInfo[3:5]
	tOffLicenceType      = 0x2E // lt
	tOffLicenceDest      = 0x2F // dest
	tOffLicenceXcc       = 0x30 // xcc
	tOffLicenceCt        = 0x31 // ct
	tOffLicenceCc        = 0x32 // cc
	tOffLicenceCn        = 0x33 // cn
	tOffContentID        = 0x34 // 20 bytes
	tOffLicenceStart     = 0x48
	tOffLicenceEnd       = 0x4C

	// MacSignedOffset/MacSignedLength delimit the 0x28-byte tail that
	// createTrackMac signs (spec.md §4.6): everything from Duration
	// through LicenceEnd.
	MacSignedOffset = tOffDuration
	MacSignedLength = trackSlotSize - tOffDuration
)

// TrackSlot is one 0x50-byte entry of the track table.
type TrackSlot struct {
	RecordingTime    bytesio.DOSDateTime
	EkbNumber        uint32
	TitleIndex       uint16
	ArtistIndex      uint16
	AlbumIndex       uint16
	InAlbumIndex     uint16
	EncryptedKey     [8]byte
	TrackMac         [8]byte
	CodecID          byte
	CodecInfo        [5]byte
	FirstFragment    uint16
	TrackNumber      uint16
	DurationSeconds  uint32
	LicenceType      byte
	LicenceDest      byte
	LicenceXcc       byte
	LicenceCt        byte
	LicenceCc        byte
	LicenceCn        byte
	ContentID        [20]byte
	LicenceStart     bytesio.DOSDateTime
	LicenceEnd       bytesio.DOSDateTime
}

// IsLive reports whether this slot represents an allocated track, per
// spec.md §3.3's invariant: firstFragment != 0 and trackNumber == own slot.
func (t TrackSlot) IsLive(slot uint16) bool {
	return t.FirstFragment != 0 && t.TrackNumber == slot
}

func unmarshalTrack(b []byte) TrackSlot {
	var t TrackSlot
	t.RecordingTime = bytesio.DecodeDOSDateTime(b[tOffRecordingTime:])
	t.EkbNumber = bytesio.BE32(b[tOffEkbNumber:])
	t.TitleIndex = bytesio.BE16(b[tOffTitleIndex:])
	t.ArtistIndex = bytesio.BE16(b[tOffArtistIndex:])
	t.AlbumIndex = bytesio.BE16(b[tOffAlbumIndex:])
	t.InAlbumIndex = bytesio.BE16(b[tOffInAlbumIndex:])
	copy(t.EncryptedKey[:], b[tOffEncryptedKey:tOffEncryptedKey+8])
	copy(t.TrackMac[:], b[tOffTrackMac:tOffTrackMac+8])
	t.CodecID = b[tOffCodecID]
	copy(t.CodecInfo[0:3], b[tOffCodecInfoLo:tOffCodecInfoLo+3])
	copy(t.CodecInfo[3:5], b[tOffCodecInfoHi:tOffCodecInfoHi+2])
	t.FirstFragment = bytesio.BE16(b[tOffFirstFragment:])
	t.TrackNumber = bytesio.BE16(b[tOffTrackNumber:])
	t.DurationSeconds = bytesio.BE32(b[tOffDuration:])
	t.LicenceType = b[tOffLicenceType]
	t.LicenceDest = b[tOffLicenceDest]
	t.LicenceXcc = b[tOffLicenceXcc]
	t.LicenceCt = b[tOffLicenceCt]
	t.LicenceCc = b[tOffLicenceCc]
	t.LicenceCn = b[tOffLicenceCn]
	copy(t.ContentID[:], b[tOffContentID:tOffContentID+20])
	t.LicenceStart = bytesio.DecodeDOSDateTime(b[tOffLicenceStart:])
	t.LicenceEnd = bytesio.DecodeDOSDateTime(b[tOffLicenceEnd:])
	return t
}

func marshalTrack(t TrackSlot, b []byte) {
	for i := range b {
		b[i] = 0
	}
	rt := bytesio.EncodeDOSDateTime(t.RecordingTime)
	copy(b[tOffRecordingTime:], rt[:])
	bytesio.PutBE32(b[tOffEkbNumber:], t.EkbNumber)
	bytesio.PutBE16(b[tOffTitleIndex:], t.TitleIndex)
	bytesio.PutBE16(b[tOffArtistIndex:], t.ArtistIndex)
	bytesio.PutBE16(b[tOffAlbumIndex:], t.AlbumIndex)
	bytesio.PutBE16(b[tOffInAlbumIndex:], t.InAlbumIndex)
	copy(b[tOffEncryptedKey:tOffEncryptedKey+8], t.EncryptedKey[:])
	copy(b[tOffTrackMac:tOffTrackMac+8], t.TrackMac[:])
	b[tOffCodecID] = t.CodecID
	copy(b[tOffCodecInfoLo:tOffCodecInfoLo+3], t.CodecInfo[0:3])
	copy(b[tOffCodecInfoHi:tOffCodecInfoHi+2], t.CodecInfo[3:5])
	bytesio.PutBE16(b[tOffFirstFragment:], t.FirstFragment)
	bytesio.PutBE16(b[tOffTrackNumber:], t.TrackNumber)
	bytesio.PutBE32(b[tOffDuration:], t.DurationSeconds)
	b[tOffLicenceType] = t.LicenceType
	b[tOffLicenceDest] = t.LicenceDest
	b[tOffLicenceXcc] = t.LicenceXcc
	b[tOffLicenceCt] = t.LicenceCt
	b[tOffLicenceCc] = t.LicenceCc
	b[tOffLicenceCn] = t.LicenceCn
	copy(b[tOffContentID:tOffContentID+20], t.ContentID[:])
	ls := bytesio.EncodeDOSDateTime(t.LicenceStart)
	copy(b[tOffLicenceStart:], ls[:])
	le := bytesio.EncodeDOSDateTime(t.LicenceEnd)
	copy(b[tOffLicenceEnd:], le[:])
}

// MarshalTrack serialises a TrackSlot to its raw 0x50-byte on-disc form,
// for callers (session.CreateAndSignNewTrack) that need to sign or hash the
// exact bytes rather than go through the Store.
func MarshalTrack(t TrackSlot) [trackSlotSize]byte {
	var b [trackSlotSize]byte
	marshalTrack(t, b[:])
	return b
}

// FragmentSlot is one 0x10-byte entry of the fragment table.
type FragmentSlot struct {
	Key           [8]byte
	FirstBlock    uint16
	LastBlock     uint16
	FirstFrame    byte
	LastFrame     byte
	FragmentType  byte   // high nibble of the last 2 bytes
	NextFragment  uint16 // low 12 bits of the last 2 bytes
}

func unmarshalFragment(b []byte) FragmentSlot {
	var f FragmentSlot
	copy(f.Key[:], b[0:8])
	f.FirstBlock = bytesio.BE16(b[8:10])
	f.LastBlock = bytesio.BE16(b[10:12])
	f.FirstFrame = b[12]
	f.LastFrame = b[13]
	typeAndNext := bytesio.BE16(b[14:16])
	f.FragmentType = byte(typeAndNext >> 12)
	f.NextFragment = typeAndNext & 0x0FFF
	return f
}

func marshalFragment(f FragmentSlot, b []byte) {
	copy(b[0:8], f.Key[:])
	bytesio.PutBE16(b[8:10], f.FirstBlock)
	bytesio.PutBE16(b[10:12], f.LastBlock)
	b[12] = f.FirstFrame
	b[13] = f.LastFrame
	typeAndNext := uint16(f.FragmentType&0xF)<<12 | (f.NextFragment & 0x0FFF)
	bytesio.PutBE16(b[14:16], typeAndNext)
}

// String chunk type nibble values (spec.md §3.3): free chunks are 0,
// continuation chunks are 1, root chunks are >= 8. The specific root kinds
// (disc title / track title / artist / album / group title) are not pinned
// down by spec.md beyond ">= 0x8"; this library assigns one nibble value
// per semantic kind so callers can tell kinds apart when walking strings,
// see DESIGN.md.
const (
	StringTypeUnused       byte = 0x0
	StringTypeContinuation byte = 0x1
	StringTypeDiscTitle    byte = 0x8
	StringTypeTrackTitle   byte = 0x9
	StringTypeArtist       byte = 0xA
	StringTypeAlbum        byte = 0xB
	StringTypeGroupTitle   byte = 0xC
)

// IsRoot reports whether a chunk type value marks the head of a string
// chain, per spec.md §3.3 ("a root chunk has type >= 0x8").
func IsRoot(chunkType byte) bool { return chunkType >= 0x8 }

// StringChunk is one 0x10-byte entry of the string chunk table.
type StringChunk struct {
	Content [14]byte
	Type    byte   // high nibble
	Link    uint16 // low 12 bits; 0 terminates a chain
}

func unmarshalStringChunk(b []byte) StringChunk {
	var s StringChunk
	copy(s.Content[:], b[0:14])
	typeAndLink := bytesio.BE16(b[14:16])
	s.Type = byte(typeAndLink >> 12)
	s.Link = typeAndLink & 0x0FFF
	return s
}

func marshalStringChunk(s StringChunk, b []byte) {
	copy(b[0:14], s.Content[:])
	typeAndLink := uint16(s.Type&0xF)<<12 | (s.Link & 0x0FFF)
	bytesio.PutBE16(b[14:16], typeAndLink)
}

// GroupRecord is one 8-byte group entry. Group 0 is the disc-title group;
// 1..N are user groups; a record with Flag == 0 is empty/the terminator.
type GroupRecord struct {
	StartTrackPlus1 uint16
	EndTrack        uint16
	TitleIndex      uint16
	Flag            byte
}

// GroupFlagLive marks a group record as populated, per spec.md §3.3.
const GroupFlagLive byte = 0x10

func unmarshalGroup(b []byte) GroupRecord {
	return GroupRecord{
		StartTrackPlus1: bytesio.BE16(b[0:2]),
		EndTrack:        bytesio.BE16(b[2:4]),
		TitleIndex:      bytesio.BE16(b[4:6]),
		Flag:            b[6],
	}
}

func marshalGroup(g GroupRecord, b []byte) {
	for i := range b {
		b[i] = 0
	}
	bytesio.PutBE16(b[0:2], g.StartTrackPlus1)
	bytesio.PutBE16(b[2:4], g.EndTrack)
	bytesio.PutBE16(b[4:6], g.TitleIndex)
	b[6] = g.Flag
}

// IsEmpty reports whether this group record is the terminator/an unused
// slot.
func (g GroupRecord) IsEmpty() bool { return g.Flag&GroupFlagLive == 0 }

// StartTrack is the 0-based first track index this group covers.
func (g GroupRecord) StartTrack() int { return int(g.StartTrackPlus1) - 1 }
