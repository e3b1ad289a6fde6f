package cryptoprovider

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/himderr"
)

func testKeys() BlockKeys {
	return BlockKeys{
		TrackKey:    [8]byte{1, 2, 3, 4, 5, 6, 7, 8},
		FragmentKey: [8]byte{8, 7, 6, 5, 4, 3, 2, 1},
		BlockKey:    [8]byte{1, 1, 1, 1, 1, 1, 1, 1},
		BlockIV:     [8]byte{2, 2, 2, 2, 2, 2, 2, 2},
	}
}

func TestInlineProviderEncryptDecryptRoundTrip(t *testing.T) {
	p := NewInlineProvider()
	keys := testKeys()
	plain := bytes.Repeat([]byte{0x5A}, cipher.HimdAudioSize)

	ct, err := p.Encrypt(context.Background(), keys, plain)
	require.NoError(t, err)

	pt, err := p.Decrypt(context.Background(), keys, ct)
	require.NoError(t, err)
	assert.Equal(t, plain, pt)
}

func TestInlineProviderRejectsReentrancy(t *testing.T) {
	p := NewInlineProvider()
	require.NoError(t, p.enter())
	defer p.leave()

	_, err := p.Encrypt(context.Background(), testKeys(), make([]byte, cipher.HimdAudioSize))
	assert.ErrorIs(t, err, himderr.ErrProviderBusy)
}

func TestStreamEncryptYieldsChunksAndTerminates(t *testing.T) {
	p := NewInlineProvider()
	raw := bytes.Repeat([]byte{0x11}, cipher.HimdAudioSize*2)

	out, errs := p.StreamEncrypt(context.Background(), testKeys(), raw)

	count := 0
	for range out {
		count++
	}
	assert.Equal(t, 2, count)
	assert.NoError(t, <-errs)
}
