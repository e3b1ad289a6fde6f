package block

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asivery/himd-js/cipher"
)

func sampleBlock(typ [4]byte) Block {
	var b Block
	b.Type = typ
	b.MCode = MCodeDefault
	var iv [8]byte
	copy(iv[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	b.IV = iv
	return b
}

func TestDecryptFramesRoundTrip(t *testing.T) {
	trackKey := [8]byte{1, 1, 1, 1, 1, 1, 1, 1}
	fragKey := [8]byte{2, 2, 2, 2, 2, 2, 2, 2}

	plain := bytes.Repeat([]byte{0xAB}, HimdAudioSize)
	b := sampleBlock(TypeA3D)
	ct := cipher.EncryptBlock(trackKey, fragKey, b.Key, b.IV, plain)
	copy(b.Payload[:], ct)

	rec := &Record{Block: b, FragmentKey: fragKey, FirstFrame: 0, LastFrame: 1}
	out, err := DecryptFrames(trackKey, rec, HimdAudioSize/2)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestDecryptFramesOutOfRange(t *testing.T) {
	trackKey := [8]byte{1}
	fragKey := [8]byte{2}
	b := sampleBlock(TypeA3D)
	rec := &Record{Block: b, FragmentKey: fragKey, FirstFrame: 250, LastFrame: 255}
	_, err := DecryptFrames(trackKey, rec, HimdAudioSize/2)
	assert.Error(t, err)
}

func TestXorObfuscateRoundTrip(t *testing.T) {
	key := [4]byte{0xDE, 0xAD, 0xBE, 0xEF}
	data := bytes.Repeat([]byte{0x11}, 23) // not a multiple of 8
	original := append([]byte(nil), data...)

	XorObfuscate(data, key)
	assert.NotEqual(t, original, data)

	XorObfuscate(data, key)
	assert.Equal(t, original, data, "xor is its own inverse")

	// trailing 7 bytes (23 &^ 7 == 16) must be untouched by either pass
	XorObfuscate(data, key)
	assert.Equal(t, original[16:], data[16:])
}

func TestMP3FramesValidatesAndDeobfuscates(t *testing.T) {
	key := [4]byte{1, 2, 3, 4}
	b := sampleBlock(TypeSMPA)
	b.NFrames = 4
	b.LenData = 16
	plain := bytes.Repeat([]byte{0x55}, 16)
	obfuscated := append([]byte(nil), plain...)
	XorObfuscate(obfuscated, key)
	copy(b.Payload[:], obfuscated)

	rec := &Record{Block: b, LastFrame: 3}
	out, err := MP3Frames(rec, key)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestMP3FramesRejectsBadFrameRange(t *testing.T) {
	b := sampleBlock(TypeSMPA)
	b.NFrames = 2
	b.LenData = 8
	rec := &Record{Block: b, LastFrame: 5}
	_, err := MP3Frames(rec, [4]byte{})
	assert.Error(t, err)
}

func TestWriterTracksBlockRange(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 100)

	b := sampleBlock(TypeA3D)
	require.NoError(t, w.WriteBlock(b))
	require.NoError(t, w.WriteBlock(b))
	require.NoError(t, w.WriteBlock(b))

	first, last := w.Close()
	assert.Equal(t, uint16(100), first)
	assert.Equal(t, uint16(102), last)
	assert.Equal(t, Size*3, buf.Len())
}

func TestWriteAndEncryptAudioBlockEncryptsPayload(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)

	trackKey := [8]byte{9, 9, 9, 9, 9, 9, 9, 9}
	fragKey := [8]byte{7, 7, 7, 7, 7, 7, 7, 7}
	b := sampleBlock(TypeA3D)

	require.NoError(t, w.WriteAndEncryptAudioBlock(b, trackKey, fragKey))

	written := buf.Bytes()
	parsed, err := Parse(written)
	require.NoError(t, err)
	assert.NotEqual(t, b.Payload, parsed.Payload)
}
