// Package id3 writes the ID3v2 tag this library prefixes to `.mp3` exports
// (spec.md §6 "Emitted containers"): title, album, and artist, using
// go-id3v2's ID3v2.3.0 codec.
package id3

import (
	"bytes"

	"github.com/jlubawy/go-id3v2/id3v230"
)

// Tags is the subset of ID3v2 frames a HiMD export carries.
type Tags struct {
	Title  string
	Album  string
	Artist string
}

// simpleTag is the minimal id3v2.Tag implementation id3v230.Encode needs: a
// frame map plus the order to emit them in.
type simpleTag struct {
	frames     map[string][]byte
	frameOrder []string
}

func (t *simpleTag) Frames() map[string][]byte { return t.frames }
func (t *simpleTag) FrameOrder() []string       { return t.frameOrder }
func (t *simpleTag) SetFrames(f map[string][]byte) {
	t.frames = f
	t.frameOrder = t.frameOrder[:0]
	for id := range f {
		t.frameOrder = append(t.frameOrder, id)
	}
}

// textFrame encodes an ID3v2 text-information frame body: one encoding byte
// (0 = ISO-8859-1) followed by the raw text.
func textFrame(s string) []byte {
	return append([]byte{0x00}, []byte(s)...)
}

// Encode writes the ID3v2.3.0 tag header and frames for t. Empty fields are
// omitted entirely rather than written as empty frames.
func Encode(tags Tags) ([]byte, error) {
	frames := map[string][]byte{}
	var order []string
	add := func(id, value string) {
		if value == "" {
			return
		}
		frames[id] = textFrame(value)
		order = append(order, id)
	}
	add("TIT2", tags.Title)
	add("TALB", tags.Album)
	add("TPE1", tags.Artist)

	t := &simpleTag{frames: frames, frameOrder: order}

	var buf bytes.Buffer
	if err := id3v230.Encode(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
