package cmd

import (
	"io"

	"github.com/asivery/himd-js/mp3ingest"
)

// mpegBitrateTables mirrors the tables codec.Kbps decodes from, used here
// only to size a frame once its header has been read.
var mpegBitrateTables = map[byte]map[byte][16]uint32{
	3: { // MPEG1
		1: {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
		2: {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		3: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
	},
	2: { // MPEG2 / MPEG2.5
		1: {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
		2: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		3: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	},
}

var mpegSampleRates = [3][3]uint32{
	{44100, 48000, 32000}, // MPEG1
	{22050, 24000, 16000}, // MPEG2
	{11025, 12000, 8000},  // MPEG2.5
}

// streamFrameParser splits a raw MPEG audio stream into frames by scanning
// for the 11-bit sync word and reading each frame's fixed 4-byte header.
// It never decodes sample data: mp3ingest only needs frame boundaries and
// header fields, not PCM, and no example library in the retrieval pack
// exposes that narrower shape (decoders available in the pack, like
// hajimehoshi/go-mp3, produce PCM and discard the encoded bytes this
// library has to re-store verbatim).
type streamFrameParser struct {
	r   io.Reader
	buf []byte
}

// NewStreamFrameParser wraps r as an mp3ingest.Parser.
func NewStreamFrameParser(r io.Reader) mp3ingest.Parser {
	return &streamFrameParser{r: r}
}

func (p *streamFrameParser) fill(n int) error {
	for len(p.buf) < n {
		chunk := make([]byte, 4096)
		read, err := p.r.Read(chunk)
		p.buf = append(p.buf, chunk[:read]...)
		if err != nil {
			if err == io.EOF && len(p.buf) >= n {
				return nil
			}
			return err
		}
	}
	return nil
}

func (p *streamFrameParser) Next() (*mp3ingest.Frame, error) {
	for {
		if err := p.fill(4); err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, err
		}
		if len(p.buf) < 4 {
			return nil, nil
		}
		if p.buf[0] != 0xFF || p.buf[1]&0xE0 != 0xE0 {
			p.buf = p.buf[1:]
			continue
		}

		versionBits := (p.buf[1] >> 3) & 0x3
		layerBits := (p.buf[1] >> 1) & 0x3
		bitrateIdx := (p.buf[2] >> 4) & 0xF
		sampleRateIdx := (p.buf[2] >> 2) & 0x3
		padding := (p.buf[2] >> 1) & 0x1
		channelMode := (p.buf[3] >> 6) & 0x3
		preEmphasis := p.buf[3] & 0x3

		if layerBits == 0 || versionBits == 1 || sampleRateIdx == 3 || bitrateIdx == 15 {
			p.buf = p.buf[1:]
			continue
		}

		version := byte(3) // MPEG1
		mpegGroup := byte(0)
		if versionBits == 2 {
			version = 2
			mpegGroup = 1
		} else if versionBits == 0 {
			version = 0
			mpegGroup = 2
		}

		layer := byte(0)
		switch layerBits {
		case 0b11:
			layer = 1
		case 0b10:
			layer = 2
		case 0b01:
			layer = 3
		}

		kbps := mpegBitrateTables[map[byte]byte{3: 3, 2: 2, 0: 2}[version]][layer][bitrateIdx]
		if kbps == 0 {
			p.buf = p.buf[1:]
			continue
		}
		rate := mpegSampleRates[mpegGroup][sampleRateIdx]

		var size int
		if layer == 1 {
			size = (12*int(kbps)*1000/int(rate) + int(padding)) * 4
		} else {
			size = 144*int(kbps)*1000/int(rate) + int(padding)
		}
		if size <= 0 {
			p.buf = p.buf[1:]
			continue
		}

		if err := p.fill(size); err != nil && err != io.EOF {
			return nil, err
		}
		if len(p.buf) < size {
			return nil, nil
		}

		frame := &mp3ingest.Frame{
			Data:            append([]byte(nil), p.buf[:size]...),
			Version:         version,
			Layer:           layerBits,
			BitrateIndex:    bitrateIdx,
			SampleRateIndex: sampleRateIdx,
			ChannelMode:     channelMode,
			PreEmphasis:     preEmphasis,
		}
		p.buf = p.buf[size:]
		return frame, nil
	}
}
