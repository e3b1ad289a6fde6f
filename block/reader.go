package block

import (
	"io"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/bytesio"
	"github.com/asivery/himd-js/himderr"
	"github.com/asivery/himd-js/tif"
)

// Record is one block yielded by Reader.Next, annotated with the fragment
// key it was encrypted under and the range of frames within it that belong
// to the track (spec.md §4.3 "Block reader").
type Record struct {
	Block       Block
	FragmentKey [8]byte
	FirstFrame  byte
	LastFrame   byte
}

// Reader lazily walks a track's fragment chain, reading one ATDATA block at
// a time. It is a pull-based iterator: call Next until it returns
// (nil, nil), which signals end of stream.
type Reader struct {
	r              io.ReadSeeker
	fragments      []tif.FragmentSlot
	framesPerBlock int
	mpeg           bool

	fragIdx  int
	curBlock uint16
	needSeek bool
}

// NewReader builds a Reader over the fragments of one track. framesPerBlock
// is ignored (and may be 0) when mpeg is true, per spec.md §4.4.
func NewReader(r io.ReadSeeker, fragments []tif.FragmentSlot, framesPerBlock int, mpeg bool) *Reader {
	return &Reader{r: r, fragments: fragments, framesPerBlock: framesPerBlock, mpeg: mpeg, needSeek: true}
}

// Next returns the next block record, or (nil, nil) once every fragment has
// been consumed.
func (br *Reader) Next() (*Record, error) {
	if br.fragIdx >= len(br.fragments) {
		return nil, nil
	}
	frag := br.fragments[br.fragIdx]

	if br.needSeek {
		br.curBlock = frag.FirstBlock
		if _, err := br.r.Seek(int64(br.curBlock)*Size, io.SeekStart); err != nil {
			return nil, errors.Wrap(err, "block: seeking to fragment start")
		}
		br.needSeek = false
	}

	raw := make([]byte, Size)
	if _, err := io.ReadFull(br.r, raw); err != nil {
		return nil, errors.Wrap(err, "block: reading audio block")
	}
	blk, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	rec := &Record{Block: blk, FragmentKey: frag.Key}
	if br.curBlock == frag.FirstBlock {
		rec.FirstFrame = frag.FirstFrame
	}

	if br.curBlock == frag.LastBlock {
		rec.LastFrame = frag.LastFrame
		if br.mpeg {
			rec.LastFrame--
		}
		br.fragIdx++
		br.needSeek = true
	} else {
		if br.mpeg {
			rec.LastFrame = byte(bytesio.BE16(raw[4:6]) - 1)
		} else {
			rec.LastFrame = byte(br.framesPerBlock - 1)
		}
		br.curBlock++
	}

	if rec.LastFrame < rec.FirstFrame {
		return nil, himderr.ErrLastFrameBeforeFirst
	}

	return rec, nil
}

// FragmentChain resolves a track's firstFragment into the ordered list of
// FragmentSlot values it chains through, via the TIF store.
func FragmentChain(store *tif.Store, firstFragment uint16) ([]tif.FragmentSlot, error) {
	indices, err := store.FragmentChain(firstFragment)
	if err != nil {
		return nil, err
	}
	out := make([]tif.FragmentSlot, len(indices))
	for i, idx := range indices {
		f, err := store.GetFragment(idx)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
