package tif

import (
	"bytes"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"github.com/asivery/himd-js/himderr"
)

// HiMDStringEncoding is the discriminator byte stored as the first content
// byte of a root string chunk (spec.md §3.3).
type HiMDStringEncoding byte

const (
	EncodingLatin1  HiMDStringEncoding = 0x05
	EncodingUTF16BE HiMDStringEncoding = 0x84
	EncodingShiftJIS HiMDStringEncoding = 0x90
)

// textCodecs is tried in this fixed order for every string written to disc
// (spec.md §4.2, §9 "Text encoding selection"): devices have been observed
// to refuse mixed content unless the narrowest-possible encoding is chosen
// first.
var textCodecs = []struct {
	id  HiMDStringEncoding
	enc encoding.Encoding
}{
	{EncodingLatin1, charmap.ISO8859_1},
	{EncodingShiftJIS, japanese.ShiftJIS},
	{EncodingUTF16BE, unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)},
}

func codecFor(id HiMDStringEncoding) (encoding.Encoding, error) {
	for _, c := range textCodecs {
		if c.id == id {
			return c.enc, nil
		}
	}
	return nil, errors.Wrapf(himderr.ErrInvalidEncoding, "unknown encoding byte 0x%02X", id)
}

// encodeRoundTrip tries each known encoding, in order, and returns the first
// whose round-trip reproduces the input exactly.
func encodeRoundTrip(s string) (HiMDStringEncoding, []byte, error) {
	for _, c := range textCodecs {
		encoded, err := c.enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			continue
		}
		decoded, err := c.enc.NewDecoder().Bytes(encoded)
		if err != nil || string(decoded) != s {
			continue
		}
		return c.id, encoded, nil
	}
	return 0, nil, himderr.ErrUnencodable
}

// chainLength returns how many chunks a string chain linked from root
// occupies, including the root itself.
func (s *Store) chainLength(root uint16) (int, error) {
	n := 0
	idx := root
	for i := 0; i < stringChunkCount+1 && idx != 0; i++ {
		n++
		c, err := s.GetStringChunk(idx)
		if err != nil {
			return 0, err
		}
		idx = c.Link
	}
	if idx != 0 {
		return 0, errors.New("tif: string chain does not terminate")
	}
	return n, nil
}

func (s *Store) freeStringChunkCount() (int, error) {
	head, err := s.GetStringChunk(0)
	if err != nil {
		return 0, err
	}
	return s.chainLength(head.Link)
}

// ReadString decodes the text stored in the chain rooted at `root`.
func (s *Store) ReadString(root uint16) (string, error) {
	first, err := s.GetStringChunk(root)
	if err != nil {
		return "", err
	}
	if !IsRoot(first.Type) {
		return "", errors.Wrapf(himderr.ErrInvalidEncoding, "chunk %d is not a root", root)
	}

	var payload bytes.Buffer
	payload.Write(first.Content[:])

	idx := first.Link
	for i := 0; i < stringChunkCount && idx != 0; i++ {
		c, err := s.GetStringChunk(idx)
		if err != nil {
			return "", err
		}
		payload.Write(c.Content[:])
		idx = c.Link
	}

	raw := payload.Bytes()
	encID := HiMDStringEncoding(raw[0])
	enc, err := codecFor(encID)
	if err != nil {
		return "", err
	}

	body := raw[1:]
	// Chunks are always a multiple of 14 bytes and the discriminator
	// consumes one of them, so body's length is always odd: every string
	// ends with an odd run of zero padding bytes, never a meaningful one.
	// UTF16BE needs an even byte count; drop the dangling pad byte before
	// decoding it, or the decoder turns it into a trailing U+FFFD that
	// trimTrailingNUL can't strip.
	if encID == EncodingUTF16BE && len(body)%2 == 1 {
		body = body[:len(body)-1]
	}

	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", errors.Wrap(himderr.ErrInvalidEncoding, err.Error())
	}
	// The encoded byte stream is padded with zero bytes to a multiple of
	// 14; callers always decode text that was produced by AddString, which
	// never embeds NUL, so trimming trailing NULs recovers the content.
	return trimTrailingNUL(string(decoded)), nil
}

func trimTrailingNUL(s string) string {
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}

// AddString encodes s with the first round-tripping codec, splits the
// result into 14-byte chunks, and threads them onto chunks popped from the
// string freelist (spec.md §4.2 AddString).
func (s *Store) AddString(text string, chunkType byte) (uint16, error) {
	encID, encoded, err := encodeRoundTrip(text)
	if err != nil {
		return 0, err
	}

	payload := append([]byte{byte(encID)}, encoded...)
	chunksNeeded := (len(payload) + stringChunkSize - 1) / stringChunkSize

	free, err := s.freeStringChunkCount()
	if err != nil {
		return 0, err
	}
	if free < chunksNeeded {
		return 0, himderr.ErrNotEnoughStringSlot
	}

	indices := make([]uint16, chunksNeeded)
	for i := 0; i < chunksNeeded; i++ {
		idx, err := s.popStringFreelist()
		if err != nil {
			return 0, err
		}
		indices[i] = idx
	}

	for i, idx := range indices {
		var content [14]byte
		start := i * stringChunkSize
		end := start + stringChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		copy(content[:], payload[start:end])

		chunk := StringChunk{Content: content}
		if i == 0 {
			chunk.Type = chunkType
		} else {
			chunk.Type = StringTypeContinuation
		}
		if i+1 < len(indices) {
			chunk.Link = indices[i+1]
		}
		if err := s.WriteStringChunk(idx, chunk); err != nil {
			return 0, err
		}
	}

	return indices[0], nil
}

func (s *Store) popStringFreelist() (uint16, error) {
	head, err := s.GetStringChunk(0)
	if err != nil {
		return 0, err
	}
	idx := head.Link
	if idx == 0 {
		return 0, himderr.ErrNotEnoughStringSlot
	}
	popped, err := s.GetStringChunk(idx)
	if err != nil {
		return 0, err
	}
	head.Link = popped.Link
	if err := s.WriteStringChunk(0, head); err != nil {
		return 0, err
	}
	return idx, nil
}

// RemoveString walks the chain rooted at `root`, zeroes each chunk, and
// splices the whole chain onto the front of the string freelist.
func (s *Store) RemoveString(root uint16) error {
	if root == 0 {
		return nil
	}

	var chain []uint16
	idx := root
	for i := 0; i < stringChunkCount+1 && idx != 0; i++ {
		chain = append(chain, idx)
		c, err := s.GetStringChunk(idx)
		if err != nil {
			return err
		}
		idx = c.Link
	}
	if idx != 0 {
		return errors.New("tif: string chain does not terminate")
	}

	head, err := s.GetStringChunk(0)
	if err != nil {
		return err
	}

	for i, chunkIdx := range chain {
		var next uint16
		if i+1 < len(chain) {
			next = chain[i+1]
		} else {
			next = head.Link
		}
		if err := s.WriteStringChunk(chunkIdx, StringChunk{Type: StringTypeUnused, Link: next}); err != nil {
			return err
		}
	}

	head.Link = chain[0]
	return s.WriteStringChunk(0, head)
}
