package mp3ingest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeParser struct {
	frames []*Frame
	i      int
}

func (f *fakeParser) Next() (*Frame, error) {
	if f.i >= len(f.frames) {
		return nil, nil
	}
	fr := f.frames[f.i]
	f.i++
	return fr, nil
}

func constantFrame(n int) *Frame {
	return &Frame{
		Data:            bytes.Repeat([]byte{0x42}, n),
		Version:         3,
		Layer:           1,
		BitrateIndex:    9,
		SampleRateIndex: 0,
		ChannelMode:     3,
		PreEmphasis:     0,
	}
}

func TestIngestConstantStreamNoVariabilityFlags(t *testing.T) {
	p := &fakeParser{frames: []*Frame{constantFrame(400), constantFrame(400), constantFrame(400)}}
	key := [4]byte{1, 2, 3, 4}

	res, err := Ingest(p, key, 7, [20]byte{})
	require.NoError(t, err)

	assert.Equal(t, byte(0), res.CodecInfo[2], "no field varies, no flags set")
	assert.Len(t, res.Blocks, 1)
	assert.Equal(t, uint32(7), res.Blocks[0].Serial)
	assert.Equal(t, uint16(3), res.Blocks[0].NFrames)
	assert.Equal(t, 3, res.FrameCount)
}

func TestIngestSetsVariabilityFlagsAndWidens(t *testing.T) {
	a := constantFrame(100)
	b := constantFrame(100)
	b.BitrateIndex = 12 // higher bitrate -> max() widens upward
	b.SampleRateIndex = 1

	p := &fakeParser{frames: []*Frame{a, b}}
	res, err := Ingest(p, [4]byte{}, 0, [20]byte{})
	require.NoError(t, err)

	assert.NotZero(t, res.CodecInfo[2]&flagBitrate)
	assert.NotZero(t, res.CodecInfo[2]&flagSampleRate)
	assert.Equal(t, byte(12), res.CodecInfo[3]&0xF, "bitrate widened to the max seen")
}

func TestIngestEmitsNewBucketAtCapacity(t *testing.T) {
	// One frame just under capacity, then a second that no longer fits.
	big := bytes.Repeat([]byte{0x11}, 0x3FC0-100)
	small := bytes.Repeat([]byte{0x22}, 200)

	p := &fakeParser{frames: []*Frame{
		{Data: big},
		{Data: small},
	}}

	res, err := Ingest(p, [4]byte{}, 1, [20]byte{})
	require.NoError(t, err)
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, uint32(1), res.Blocks[0].Serial)
	assert.Equal(t, uint32(2), res.Blocks[1].Serial)
}

func TestObfuscateRoundTrips(t *testing.T) {
	key := [4]byte{0xAA, 0xBB, 0xCC, 0xDD}
	data := bytes.Repeat([]byte{0x01}, 19)
	original := append([]byte(nil), data...)

	obfuscate(data, key)
	assert.NotEqual(t, original, data)
	obfuscate(data, key)
	assert.Equal(t, original, data)
}
