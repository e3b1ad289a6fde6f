package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/device"
	"github.com/asivery/himd-js/himdfs"
	"github.com/asivery/himd-js/tif"
)

type fakeTransport struct {
	discID      [16]byte
	deviceNonce [8]byte
	hostNonce   [8]byte
	icvHeader   [8]byte

	wroteICV bool
}

func (f *fakeTransport) WriteHostLeafID(ctx context.Context, leafID, hostNonce [8]byte) error {
	f.hostNonce = hostNonce
	return nil
}

func (f *fakeTransport) GetAuthenticationStage2Info(ctx context.Context) (device.Stage2Info, error) {
	mac := cipher.RetailMac(concat(f.discID[:], f.hostNonce[:], f.deviceNonce[:]), cipher.MainKey)
	return device.Stage2Info{
		DiscID:      f.discID,
		MAC:         mac,
		DeviceNonce: f.deviceNonce,
		KeyType:     wantKeyType,
		KeyLevel:    wantKeyLevel,
		EkbID:       wantEkbID,
		Key:         wantKey,
	}, nil
}

func (f *fakeTransport) WriteAuthenticationStage3Info(ctx context.Context, hostMAC [8]byte, ekbBlock []byte) error {
	return nil
}

func (f *fakeTransport) ReadICV(ctx context.Context) (device.ICV, error) {
	return device.ICV{Header: f.icvHeader}, nil
}

func (f *fakeTransport) WriteICV(ctx context.Context, header [8]byte, icv [16]byte, mac [8]byte) error {
	f.wroteICV = true
	return nil
}

func (f *fakeTransport) ReformatHiMD(ctx context.Context) error { return nil }
func (f *fakeTransport) Wipe(ctx context.Context) error         { return nil }

func TestAuthenticateSucceedsWithMatchingTransport(t *testing.T) {
	tr := &fakeTransport{discID: [16]byte{1, 2, 3}, deviceNonce: [8]byte{9, 9, 9}}
	s := New(tr, [8]byte{5}, tr.discID, &Maclist{})

	require.NoError(t, s.Authenticate(context.Background()))
	assert.NotZero(t, s.SessionKey)
	assert.True(t, tr.wroteICV == false) // authenticate alone never writes ICV
}

func TestAuthenticateSkippedWithoutTransport(t *testing.T) {
	s := New(nil, [8]byte{}, [16]byte{}, &Maclist{})
	require.NoError(t, s.Authenticate(context.Background()))
	assert.Zero(t, s.SessionKey)
}

func TestAuthenticateRejectsBadMac(t *testing.T) {
	tr := &fakeTransport{discID: [16]byte{1}, deviceNonce: [8]byte{2}}
	s := New(tr, [8]byte{}, [16]byte{9, 9, 9}, &Maclist{}) // wrong discID breaks the MAC check
	err := s.Authenticate(context.Background())
	assert.Error(t, err)
}

func TestCreateAndSignNewTrackStoresMac(t *testing.T) {
	ml := &Maclist{}
	s := New(nil, [8]byte{}, [16]byte{}, ml)

	res, err := s.CreateAndSignNewTrack(3, tif.TrackSlot{FirstFragment: 1})
	require.NoError(t, err)
	assert.Equal(t, uint16(3), res.Slot.TrackNumber)
	assert.Equal(t, uint32(0x00010012), res.Slot.EkbNumber)
	assert.NotZero(t, res.TrackKey)

	raw := tif.MarshalTrack(res.Slot)
	expectedMac := cipher.CreateTrackMac(res.TrackKey, raw[tif.MacSignedOffset:])
	assert.Equal(t, expectedMac, res.Slot.TrackMac)
	assert.Equal(t, expectedMac[:], ml.TrackMacSlice(3))
}

func TestFinalizeRecomputesICV(t *testing.T) {
	ml := &Maclist{HeadKey: [16]byte{1}, BodyKey: [16]byte{2}}
	s := New(nil, [8]byte{}, [16]byte{}, ml)

	header, icv, err := s.Finalize(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, icv)
	assert.Zero(t, header) // no device attached, icvHeader never populated
}

func TestAdvanceGenerationEvictsCollidingFile(t *testing.T) {
	fs := himdfs.NewMemFS()
	fs.Put("/HMDHIFI/ATDATA01.HMA", []byte("current"))
	fs.Put("/HMDHIFI/ATDATA02.HMA", []byte("stale"))
	fs.Put("/HMDHIFI/MCLIST01.HMA", []byte("m-current"))
	fs.Put("/HMDHIFI/TRKIDX01.HMA", []byte("t-current"))

	nextID := uint32(0)
	err := AdvanceGeneration(fs, 1, 2, func() uint32 {
		nextID++
		return nextID
	})
	require.NoError(t, err)

	hjs, ok := fs.Get("/HMDHIFI/00000001.HJS")
	require.True(t, ok)
	assert.Equal(t, "stale", string(hjs))

	rotated, ok := fs.Get("/HMDHIFI/ATDATA02.HMA")
	require.True(t, ok)
	assert.Equal(t, "current", string(rotated))
}
