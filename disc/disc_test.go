package disc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asivery/himd-js/himdfs"
	"github.com/asivery/himd-js/mp3ingest"
	"github.com/asivery/himd-js/session"
	"github.com/asivery/himd-js/tif"
)

// newTestDisc builds an in-memory disc with an empty TIF/MCLIST pair seeded
// at generation 1, the minimal fixture every orchestrator test starts from.
func newTestDisc(t *testing.T) *Disc {
	t.Helper()
	fs := himdfs.NewMemFS()
	fs.Put("/HMDHIFI/ATDATA01.HMA", []byte{})

	store := tif.New()
	fs.Put("/HMDHIFI/TRKIDX01.HMA", store.Bytes())
	fs.Put("/HMDHIFI/MCLIST01.HMA", newTestMaclistBytes())

	return &Disc{
		FS:         fs,
		TIF:        store,
		Generation: 1,
		DiscID:     [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
	}
}

// newTestMaclistBytes builds a minimal, well-formed raw MCLIST image: every
// byte zero except the EKB id LoadMaclist insists on (session.maclist.go's
// wantMaclistEkbID, spec.md §4.6 "verify EKB id at 0x38"). The key ciphers
// stay zero since no test here drives real device crypto off the decrypted
// keys, only the plumbing that re-signs and rotates the file.
func newTestMaclistBytes() []byte {
	raw := make([]byte, session.Size)
	raw[0x38] = 0x00
	raw[0x39] = 0x01
	raw[0x3A] = 0x00
	raw[0x3B] = 0x12
	return raw
}

func TestUploadMP3AddsTrackWithoutSession(t *testing.T) {
	d := newTestDisc(t)

	info, err := d.UploadMP3(nil, nil, newConstantMP3Parser(4), "Song", "Artist", "Album")
	require.NoError(t, err)
	assert.Equal(t, "Song", info.Title)
	assert.Equal(t, uint16(1), d.TIF.GetTrackCount())

	tracks, err := d.ListTracks()
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Song", tracks[0].Title)
	assert.Equal(t, "Artist", tracks[0].Artist)
	assert.Equal(t, "Album", tracks[0].Album)
}

func TestUploadMP3ThenDumpRoundTrips(t *testing.T) {
	d := newTestDisc(t)

	info, err := d.UploadMP3(nil, nil, newConstantMP3Parser(6), "Song", "", "")
	require.NoError(t, err)

	var out bytesWriter
	require.NoError(t, d.DumpMP3(info.Slot, 1, &out))

	assert.Equal(t, "ID3", string(out.buf[0:3]))
}

func TestUploadATRACAddsTrackAndFragment(t *testing.T) {
	d := newTestDisc(t)

	payload := make([]byte, 192*10) // 10 frames of 192 bytes each
	info, err := d.UploadATRAC(nil, nil, 0, 192, 2, 44100, payload, "Track", "", "")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), d.TIF.GetTrackCount())

	slot, err := d.TIF.GetTrack(info.Slot)
	require.NoError(t, err)
	assert.NotZero(t, slot.FirstFragment)
}

func TestDeleteTracksCompactsOrderingAndFreesFragments(t *testing.T) {
	d := newTestDisc(t)

	_, err := d.UploadMP3(nil, nil, newConstantMP3Parser(3), "One", "", "")
	require.NoError(t, err)
	_, err = d.UploadMP3(nil, nil, newConstantMP3Parser(3), "Two", "", "")
	require.NoError(t, err)
	require.Equal(t, uint16(2), d.TIF.GetTrackCount())

	require.NoError(t, d.DeleteTracks(nil, nil, []uint16{0}))
	assert.Equal(t, uint16(1), d.TIF.GetTrackCount())

	tracks, err := d.ListTracks()
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "Two", tracks[0].Title)
}

// TestDeleteTracksWithSessionRotatesGeneration exercises spec.md §4.8's
// closing requirement that deletion re-signs the maclist through §4.6: with
// a session attached, DeleteTracks must finalize and roll ATDATA/MCLIST/
// TRKIDX over to generation 2.
func TestDeleteTracksWithSessionRotatesGeneration(t *testing.T) {
	d := newTestDisc(t)

	_, err := d.UploadMP3(context.Background(), nil, newConstantMP3Parser(3), "One", "", "")
	require.NoError(t, err)
	_, err = d.UploadMP3(context.Background(), nil, newConstantMP3Parser(3), "Two", "", "")
	require.NoError(t, err)

	sess, err := d.NewSession(context.Background(), nil, session.DefaultHostLeafID)
	require.NoError(t, err)

	require.NoError(t, d.DeleteTracks(context.Background(), sess, []uint16{0}))
	assert.Equal(t, uint32(2), d.Generation)

	_, ok := d.FS.(*himdfs.MemFS).Get("/HMDHIFI/MCLIST02.HMA")
	require.True(t, ok)
	_, ok = d.FS.(*himdfs.MemFS).Get("/HMDHIFI/ATDATA02.HMA")
	require.True(t, ok)
}

// TestUploadMP3WithSessionRotatesGeneration exercises the same closing step
// for uploads (spec.md §4.6 "the maclist MUST then be re-signed").
func TestUploadMP3WithSessionRotatesGeneration(t *testing.T) {
	d := newTestDisc(t)

	sess, err := d.NewSession(context.Background(), nil, session.DefaultHostLeafID)
	require.NoError(t, err)

	info, err := d.UploadMP3(context.Background(), sess, newConstantMP3Parser(4), "Song", "", "")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), info.Slot)
	assert.Equal(t, uint32(2), d.Generation)
}

func TestRenameDiscSetsAndClearsTitle(t *testing.T) {
	d := newTestDisc(t)

	require.NoError(t, d.RenameDisc("My Disc"))
	g, err := d.TIF.DiscTitleGroup()
	require.NoError(t, err)
	assert.NotZero(t, g.TitleIndex)

	require.NoError(t, d.RenameDisc(""))
	g, err = d.TIF.DiscTitleGroup()
	require.NoError(t, err)
	assert.Zero(t, g.TitleIndex)
}

func TestNewSessionForDeviceRefusesUnknownDeviceWithoutTransport(t *testing.T) {
	d := newTestDisc(t)

	_, err := d.NewSessionForDevice(context.Background(), nil, 0x1234, 0x5678, session.DefaultHostLeafID)
	assert.Error(t, err)
}

func TestNewSessionForDeviceAllowsKnownDeviceWithoutTransport(t *testing.T) {
	d := newTestDisc(t)

	sess, err := d.NewSessionForDevice(context.Background(), nil, 0x054C, 0x0187, session.DefaultHostLeafID)
	require.NoError(t, err)
	assert.NotNil(t, sess)
}

func TestWipeDiscClearsFilesystem(t *testing.T) {
	d := newTestDisc(t)

	require.NoError(t, d.WipeDisc())
	_, ok := d.FS.(*himdfs.MemFS).Get("/HMDHIFI/TRKIDX01.HMA")
	assert.False(t, ok)
}

func TestReformatHiMDFailsWithoutTransport(t *testing.T) {
	d := newTestDisc(t)

	err := d.ReformatHiMD(context.Background(), nil)
	assert.Error(t, err)
}

// constantMP3Parser yields n identical, constant-bitrate 144-byte frames.
type constantMP3Parser struct{ remaining int }

func newConstantMP3Parser(n int) mp3ingest.Parser { return &constantMP3Parser{remaining: n} }

func (p *constantMP3Parser) Next() (*mp3ingest.Frame, error) {
	if p.remaining <= 0 {
		return nil, nil
	}
	p.remaining--
	return &mp3ingest.Frame{Data: make([]byte, 144), Version: 3, Layer: 1, BitrateIndex: 9, SampleRateIndex: 0}, nil
}

type bytesWriter struct{ buf []byte }

func (w *bytesWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}
