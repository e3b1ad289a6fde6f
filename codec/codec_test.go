package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMpeg(t *testing.T) {
	assert.True(t, IsMpeg(CodecInfo{0b011, 0, 0, 0, 0}))
	assert.False(t, IsMpeg(CodecInfo{0b010, 0, 0, 0, 0}))
	assert.False(t, IsMpeg(CodecInfo{0b000, 0, 0, 0, 0}))
}

func TestMpegDescriptor128kbps44100Stereo(t *testing.T) {
	// MPEG1 (vers=3), Layer III (raw 01), bitrate index 9 (128 kbps)
	info := CodecInfo{3, 0, 0x80, (3 << 6) | (1 << 4) | 9, (0 << 6)}

	assert.True(t, IsMpeg(info))
	assert.Equal(t, uint32(128), Kbps(info))
	assert.Equal(t, uint32(44100), SampleRate(IDAtrac3PlusOrMpeg, info))
	assert.Equal(t, 1152, SamplesPerFrame(IDAtrac3PlusOrMpeg, info))
	assert.Equal(t, 0, FramesPerBlock(IDAtrac3PlusOrMpeg, info))

	// 1152*125*128/44100 = 417, masked to a multiple of 4 because the
	// version field is 0b11 (spec.md §4.4's masking rule).
	assert.Equal(t, 416, BytesPerFrame(IDAtrac3PlusOrMpeg, info))
}

func TestAtrac3BytesPerFrame(t *testing.T) {
	info := CodecInfo{0, 1 << 5, 24, 0, 0} // 44100, frame size 24*8=192
	assert.Equal(t, 192, BytesPerFrame(IDAtrac3, info))
	assert.Equal(t, uint32(44100), SampleRate(IDAtrac3, info))
	assert.Equal(t, 1024, SamplesPerFrame(IDAtrac3, info))
}

func TestLpcmFramesPerBlock(t *testing.T) {
	assert.Equal(t, 0x3FC0/64, FramesPerBlock(IDLpcm, CodecInfo{}))
	assert.Equal(t, uint32(44100), SampleRate(IDLpcm, CodecInfo{}))
	assert.Equal(t, 16, SamplesPerFrame(IDLpcm, CodecInfo{}))
}

func TestGenerateCodecInfoAtrac3RoundTrips(t *testing.T) {
	info := GenerateCodecInfo(IDAtrac3, 192, 2, 44100)
	assert.Equal(t, 192, BytesPerFrame(IDAtrac3, info))
	assert.Equal(t, uint32(44100), SampleRate(IDAtrac3, info))
}
