package session

import (
	"github.com/pkg/errors"

	"github.com/asivery/himd-js/bytesio"
	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/himderr"
)

// wantMaclistEkbID is the only EKB id this library's maclist trust chain
// recognises, matching the stage-2 device handshake's wantEkbID.
const wantMaclistEkbID uint32 = 0x00010012

// MCLIST layout (spec.md §4.2 boot contract, §4.6 maclist load/finalize).
const (
	mclistOffHeadKeyCipher = 0x10
	mclistOffGeneration    = 0x20
	mclistOffEkbID         = 0x38
	mclistOffDiscID        = 0x40
	mclistOffBodyKeyCipher = 0x60
	mclistOffMacs          = 0x70

	// MacsLength is the fixed size of the per-track MAC table.
	MacsLength = 32000

	// Size is the fixed size of one MCLIST image.
	Size = mclistOffMacs + MacsLength
)

// Maclist holds the decrypted contents of MCLIST: the disc-scoped keys used
// to compute the ICV, and the flat per-track MAC table.
type Maclist struct {
	EkbID      uint32
	DiscID     [16]byte
	Generation uint32
	HeadKey    [16]byte
	BodyKey    [16]byte
	Macs       [MacsLength]byte
}

// LoadMaclist decrypts a raw MCLIST image (spec.md §4.2 "Maclist load").
func LoadMaclist(raw []byte) (*Maclist, error) {
	if len(raw) != Size {
		return nil, errors.Errorf("session: mclist is %d bytes, want %d", len(raw), Size)
	}

	var headCipher, bodyCipher [16]byte
	copy(headCipher[:], raw[mclistOffHeadKeyCipher:mclistOffHeadKeyCipher+16])
	copy(bodyCipher[:], raw[mclistOffBodyKeyCipher:mclistOffBodyKeyCipher+16])

	ekbID := bytesio.BE32(raw[mclistOffEkbID:])
	if ekbID != wantMaclistEkbID {
		return nil, errors.Wrapf(himderr.ErrEkbMismatch, "session: mclist ekb id 0x%08X", ekbID)
	}

	m := &Maclist{
		EkbID:      ekbID,
		Generation: bytesio.BE32(raw[mclistOffGeneration:]),
		HeadKey:    cipher.DecryptMaclistKey(headCipher),
		BodyKey:    cipher.DecryptMaclistKey(bodyCipher),
	}
	copy(m.DiscID[:], raw[mclistOffDiscID:mclistOffDiscID+16])
	copy(m.Macs[:], raw[mclistOffMacs:mclistOffMacs+MacsLength])
	return m, nil
}

// Bytes re-serialises the maclist. The key ciphers are left untouched from
// the template buffer passed in, since this library never needs to
// re-encrypt them (spec.md §4.6 finalization only rewrites generation,
// discId, and the MAC table).
func (m *Maclist) Bytes(template []byte) ([]byte, error) {
	if len(template) != Size {
		return nil, errors.Errorf("session: mclist template is %d bytes, want %d", len(template), Size)
	}
	out := append([]byte(nil), template...)
	bytesio.PutBE32(out[mclistOffGeneration:], m.Generation)
	copy(out[mclistOffDiscID:mclistOffDiscID+16], m.DiscID[:])
	copy(out[mclistOffMacs:mclistOffMacs+MacsLength], m.Macs[:])
	return out, nil
}

// TrackMacSlice returns the 8-byte MAC slot for a 1-based track number.
func (m *Maclist) TrackMacSlice(trackNumber uint16) []byte {
	off := (int(trackNumber) - 1) * 8
	return m.Macs[off : off+8]
}
