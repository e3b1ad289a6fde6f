package cipher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asivery/himd-js/himderr"
)

func TestTrackKeyRoundTrip(t *testing.T) {
	keys := [][8]byte{
		{0, 0, 0, 0, 0, 0, 0, 0},
		{1, 2, 3, 4, 5, 6, 7, 8},
		{0xFF, 0xEE, 0xDD, 0xCC, 0xBB, 0xAA, 0x99, 0x88},
	}

	for _, k := range keys {
		enc := EncryptTrackKey(k)
		dec, err := CreateTrackKey(0x00010012, enc)
		require.NoError(t, err)
		assert.Equal(t, k, dec)
	}
}

func TestCreateTrackKeyUnknownEkb(t *testing.T) {
	_, err := CreateTrackKey(0xDEADBEEF, [8]byte{})
	require.Error(t, err)
	assert.ErrorIs(t, err, himderr.ErrUnknownEkb)
}

func TestBlockRoundTrip(t *testing.T) {
	trackKey := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	fragKey := [8]byte{8, 7, 6, 5, 4, 3, 2, 1}
	blockKey := [8]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0, 1}
	iv := [8]byte{1, 1, 1, 1, 1, 1, 1, 1}

	payload := make([]byte, HimdAudioSize)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	enc := EncryptBlock(trackKey, fragKey, blockKey, iv, payload)
	dec := DecryptBlock(trackKey, fragKey, blockKey, iv, enc)
	assert.Equal(t, payload, dec)
}

func TestRetailMacDeterministic(t *testing.T) {
	key := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	msg := make([]byte, 32)
	m1 := RetailMac(msg, key)
	m2 := RetailMac(msg, key)
	assert.Equal(t, m1, m2)
}

func TestGetMP3EncryptionKeyDeterministic(t *testing.T) {
	discID := [16]byte{}
	k1 := GetMP3EncryptionKey(discID, 1)
	k2 := GetMP3EncryptionKey(discID, 1)
	k3 := GetMP3EncryptionKey(discID, 2)

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
