package block

import (
	"io"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/himderr"
)

// DecryptFrames runs the non-MP3 decryption path (spec.md §4.3): decrypt
// the block payload with the key derived from (trackKey, fragmentKey,
// block-embedded key/IV), then slice to the frame range the record names.
func DecryptFrames(trackKey [8]byte, rec *Record, frameSize int) ([]byte, error) {
	pt := cipher.DecryptBlock(trackKey, rec.FragmentKey, rec.Block.Key, rec.Block.IV, rec.Block.Payload[:])

	start := int(rec.FirstFrame) * frameSize
	end := (int(rec.LastFrame) + 1) * frameSize
	if start < 0 || end > len(pt) || start > end {
		return nil, himderr.ErrFrameOutOfRange
	}
	return pt[start:end], nil
}

// MP3Frames runs the MP3 path (spec.md §4.3): validate the block's declared
// frame/byte counts, undo the XOR obfuscation over the used portion of the
// payload, and return exactly the bytes that belong to this block.
func MP3Frames(rec *Record, mp3Key [4]byte) ([]byte, error) {
	dataFrames := rec.Block.NFrames
	dataBytes := rec.Block.LenData

	if int(dataBytes) > HimdAudioSize {
		return nil, himderr.ErrBlockDataTooLarge
	}
	if rec.LastFrame >= byte(dataFrames) {
		return nil, himderr.ErrFrameOutOfRange
	}

	payload := append([]byte(nil), rec.Block.Payload[:dataBytes]...)
	XorObfuscate(payload, mp3Key)
	return payload, nil
}

// XorObfuscate XORs data with the 4-byte key repeated, masked to the
// largest multiple of 8 not exceeding len(data) (spec.md §3.3, §4.5): the
// trailing 1-7 bytes, if any, are left untouched.
func XorObfuscate(data []byte, key [4]byte) {
	n := len(data) &^ 7
	for i := 0; i < n; i++ {
		data[i] ^= key[i%4]
	}
}

// Writer appends freshly encrypted blocks to an ATDATA stream, tracking the
// block range so the caller can stamp a fragment's firstBlock/lastBlock on
// Close (spec.md §4.3 "Write stream").
type Writer struct {
	w          io.Writer
	blockSize  int64
	firstBlock uint16
	lastBlock  uint16
	count      int
}

// NewWriter wraps an io.Writer positioned at the append point of ATDATA.
// startBlock is the block index the next write will land at.
func NewWriter(w io.Writer, startBlock uint16) *Writer {
	return &Writer{w: w, blockSize: Size, firstBlock: startBlock, lastBlock: startBlock}
}

// WriteBlock serialises and appends one block.
func (bw *Writer) WriteBlock(b Block) error {
	if _, err := bw.w.Write(b.Bytes()); err != nil {
		return errors.Wrap(err, "block: writing audio block")
	}
	if bw.count > 0 {
		bw.lastBlock++
	}
	bw.count++
	return nil
}

// WriteAndEncryptAudioBlock fills a block's payload via EncryptBlock before
// writing it, per spec.md §4.3.
func (bw *Writer) WriteAndEncryptAudioBlock(b Block, trackKey, fragmentKey [8]byte) error {
	ct := cipher.EncryptBlock(trackKey, fragmentKey, b.Key, b.IV, b.Payload[:])
	copy(b.Payload[:], ct)
	return bw.WriteBlock(b)
}

// Close returns the [firstBlock, lastBlock] range written, for the caller
// to stamp onto the new fragment's slot.
func (bw *Writer) Close() (firstBlock, lastBlock uint16) {
	return bw.firstBlock, bw.lastBlock
}
