// Package session implements the HiMD secure-session state machine: device
// authentication over the vendor SCSI transport, the always-run maclist
// load, per-track signing, and finalization into a rotated generation
// (spec.md §4.6, §4.7).
package session

import (
	"context"
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/device"
	"github.com/asivery/himd-js/himderr"
	"github.com/asivery/himd-js/tif"
)

var (
	wantKeyType  = [4]byte{0, 0, 0, 1}
	wantKeyLevel = [4]byte{0, 0, 0, 9}
	wantEkbID    = [4]byte{0, 0x01, 0x00, 0x12}
	wantKey      = [16]byte{0x6A, 0x7A, 0x4C, 0x7D, 0x5F, 0x3F, 0x86, 0x84, 0x28, 0x6D, 0x1A, 0x12, 0x32, 0x98, 0x22, 0x13}
)

// contentIDHeader is the fixed 8-byte prefix of every content id this
// library stamps (spec.md §4.6).
var contentIDHeader = [8]byte{0x01, 0x0F, 0x50, 0x00, 0x00, 0x04, 0x00, 0x00}

// DefaultHostLeafID is the fixed host leaf id spec.md §4.6 names for the
// handshake, used whenever a caller has no reason to pick a different one.
var DefaultHostLeafID = [8]byte{0x02, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

// Session drives one authenticated (or device-less) secure session against
// one disc.
type Session struct {
	Transport  device.Transport // nil: operate without a device, per spec.md §4.6
	HostLeafID [8]byte
	EkbBlock   []byte

	DiscID     [16]byte
	Generation uint32
	SessionKey [8]byte

	Maclist *Maclist

	icvHeader [8]byte

	log *logrus.Entry
}

// New builds a Session. discID and the decrypted Maclist are established by
// the caller from the boot contract (spec.md §4.2) before authentication.
func New(transport device.Transport, hostLeafID [8]byte, discID [16]byte, maclist *Maclist) *Session {
	return &Session{
		Transport:  transport,
		HostLeafID: hostLeafID,
		DiscID:     discID,
		Maclist:    maclist,
		log:        logrus.WithField("component", "session"),
	}
}

func random8() ([8]byte, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return b, errors.Wrap(err, "session: generating random nonce")
	}
	return b, nil
}

// Authenticate runs the device handshake (spec.md §4.6 steps 1-5). It is a
// no-op when no Transport is attached: deletion and upload can still
// proceed against a disc image alone, with device verification simply
// skipped.
func (s *Session) Authenticate(ctx context.Context) error {
	if s.Transport == nil {
		s.log.Debug("no device transport attached, skipping authentication")
		return nil
	}

	hostNonce, err := random8()
	if err != nil {
		return err
	}
	if err := s.Transport.WriteHostLeafID(ctx, s.HostLeafID, hostNonce); err != nil {
		return errors.Wrap(err, "session: writing host leaf id")
	}

	info, err := s.Transport.GetAuthenticationStage2Info(ctx)
	if err != nil {
		return errors.Wrap(err, "session: reading stage 2 info")
	}
	if info.KeyType != wantKeyType || info.KeyLevel != wantKeyLevel || info.Key != wantKey || info.Reserved != ([4]byte{}) {
		return errors.Wrap(himderr.ErrDeviceMacMismatch, "session: unexpected key material in stage 2 info")
	}
	if info.EkbID != wantEkbID {
		return errors.Wrap(himderr.ErrEkbMismatch, "session: unexpected ekb id in stage 2 info")
	}

	expectedMac := cipher.RetailMac(concat(s.DiscID[:], hostNonce[:], info.DeviceNonce[:]), cipher.MainKey)
	if expectedMac != info.MAC {
		return himderr.ErrDeviceMacMismatch
	}

	hostMac := cipher.RetailMac(concat(s.DiscID[:], info.DeviceNonce[:], hostNonce[:]), cipher.MainKey)
	if err := s.Transport.WriteAuthenticationStage3Info(ctx, hostMac, s.EkbBlock); err != nil {
		return errors.Wrap(err, "session: writing stage 3 info")
	}

	icv, err := s.Transport.ReadICV(ctx)
	if err != nil {
		return errors.Wrap(err, "session: reading icv")
	}

	s.icvHeader = icv.Header
	newGen := beU32(icv.Header[4:8]) + 1
	s.icvHeader[1] = 0x20
	s.Generation = newGen
	s.SessionKey = cipher.RetailMac(concat(s.DiscID[:], info.MAC[:], hostMac[:]), cipher.MainKey)
	return nil
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func beU32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// GenerateContentID stamps a fresh 20-byte content id: the 8-byte fixed
// header (spec.md §4.6) followed by 12 bytes this library fills
// fixed-then-random: the first 4 stay zero (the reference's captured ids
// show no variation there), the last 8 come from a fresh random source.
func GenerateContentID() [20]byte {
	var id [20]byte
	copy(id[0:8], contentIDHeader[:])
	u := uuid.New()
	copy(id[12:20], u[:8])
	return id
}

// NewTrackResult is what CreateAndSignNewTrack hands back: the finished
// slot ready to write into the TIF store, and the raw track key the caller
// needs to encrypt this track's audio blocks.
type NewTrackResult struct {
	Slot     tif.TrackSlot
	TrackKey [8]byte
}

// CreateAndSignNewTrack finishes a track slot's DRM fields (spec.md §4.6
// "Per-track signing"): picks a random track key, wraps it as a kek, stamps
// a content id and the one known EKB number, re-serialises the slot, signs
// its tail, and records the MAC in the maclist.
func (s *Session) CreateAndSignNewTrack(trackNumber uint16, slot tif.TrackSlot) (NewTrackResult, error) {
	var trackKey [8]byte
	if _, err := rand.Read(trackKey[:]); err != nil {
		return NewTrackResult{}, errors.Wrap(err, "session: generating track key")
	}

	slot.TrackNumber = trackNumber
	slot.EncryptedKey = cipher.EncryptTrackKey(trackKey)
	slot.EkbNumber = 0x00010012
	if slot.ContentID == ([20]byte{}) {
		slot.ContentID = GenerateContentID()
	}

	raw := tif.MarshalTrack(slot)
	tail := raw[tif.MacSignedOffset : tif.MacSignedOffset+tif.MacSignedLength]
	mac := cipher.CreateTrackMac(trackKey, tail)
	slot.TrackMac = mac

	if s.Maclist != nil {
		copy(s.Maclist.TrackMacSlice(trackNumber), mac[:])
	}

	return NewTrackResult{Slot: slot, TrackKey: trackKey}, nil
}

// Finalize recomputes the ICV from the current maclist, writes it to the
// device when one is attached, and returns the new (header, icv) pair. The
// MCLIST layout in maclist.go has no ICV field, so the pair is not written
// to MCLIST (spec.md §4.6 "Finalization").
func (s *Session) Finalize(ctx context.Context) (header [8]byte, icv [16]byte, err error) {
	if s.Maclist == nil {
		return header, icv, errors.New("session: no maclist loaded")
	}

	headHalf := cipher.RetailMac(s.icvHeader[:], s.Maclist.HeadKey)
	bodyHalf := cipher.RetailMac(s.Maclist.Macs[:], s.Maclist.BodyKey)
	copy(icv[0:8], headHalf[:])
	copy(icv[8:16], bodyHalf[:])
	header = s.icvHeader

	if s.Transport != nil {
		newMac := cipher.CreateIcvMac(concatICV(header, icv), s.SessionKey)
		if err := s.Transport.WriteICV(ctx, header, icv, newMac); err != nil {
			return header, icv, errors.Wrap(err, "session: writing icv to device")
		}
	}
	return header, icv, nil
}

func concatICV(header [8]byte, icv [16]byte) [24]byte {
	var out [24]byte
	copy(out[0:8], header[:])
	copy(out[8:24], icv[:])
	return out
}
