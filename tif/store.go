package tif

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/bytesio"
	"github.com/asivery/himd-js/himderr"
)

// Store keeps one TRKIDX image in memory, exposes typed accessors over it,
// and tracks whether it has been mutated since it was loaded (spec.md §4.2).
type Store struct {
	img   []byte
	dirty bool
}

// Load parses a raw TRKIDX image. The slice is copied; callers retain
// ownership of the original.
func Load(data []byte) (*Store, error) {
	if len(data) != ImageSize {
		return nil, errors.Wrapf(himderr.ErrInvalidTrackIndex, "image is %d bytes, want %d", len(data), ImageSize)
	}
	if !bytes.Equal(data[offMagic:offMagic+4], Magic[:]) {
		return nil, errors.Wrap(himderr.ErrInvalidTrackIndex, "bad magic")
	}

	img := make([]byte, ImageSize)
	copy(img, data)
	return &Store{img: img}, nil
}

// New builds a fresh, empty TIF image: magic stamped, freelists fully
// threaded, no live tracks, groups, or strings.
func New() *Store {
	img := make([]byte, ImageSize)
	copy(img[offMagic:], Magic[:])
	s := &Store{img: img}

	for i := 0; i < trackSlotCount-1; i++ {
		s.writeTrackRaw(uint16(i), TrackSlot{TrackNumber: uint16(i + 1)})
	}
	s.writeTrackRaw(trackSlotCount-1, TrackSlot{TrackNumber: 0})

	for i := 0; i < fragSlotCount-1; i++ {
		s.WriteFragment(uint16(i), FragmentSlot{NextFragment: uint16(i + 1)})
	}
	s.WriteFragment(fragSlotCount-1, FragmentSlot{NextFragment: 0})

	for i := 0; i < stringChunkCount-1; i++ {
		s.WriteStringChunk(uint16(i), StringChunk{Link: uint16(i + 1)})
	}
	s.WriteStringChunk(stringChunkCount-1, StringChunk{Link: 0})

	s.dirty = true
	return s
}

// Dirty reports whether the image has unflushed mutations.
func (s *Store) Dirty() bool { return s.dirty }

// Bytes returns the current raw image. The returned slice aliases the
// store's internal buffer and must not be mutated by the caller.
func (s *Store) Bytes() []byte { return s.img }

func (s *Store) markDirty() { s.dirty = true }

// ClearDirty is called by the caller that has just durably written Bytes()
// to TRKIDX<NN>.HMA, per spec.md §4.2 flush().
func (s *Store) ClearDirty() { s.dirty = false }

func trackOffset(slot uint16) int { return offTrackSlots + int(slot)*trackSlotSize }
func fragOffset(idx uint16) int   { return offFragSlots + int(idx)*fragSlotSize }
func chunkOffset(idx uint16) int  { return offStringChunk + int(idx)*stringChunkSize }

// GetTrack reads track slot `slot` (not slot 0, the freelist head).
func (s *Store) GetTrack(slot uint16) (TrackSlot, error) {
	if slot == 0 || int(slot) >= trackSlotCount {
		return TrackSlot{}, errors.Errorf("tif: track slot %d out of range", slot)
	}
	off := trackOffset(slot)
	return unmarshalTrack(s.img[off : off+trackSlotSize]), nil
}

// WriteTrack overwrites track slot `slot` and marks the image dirty.
func (s *Store) WriteTrack(slot uint16, t TrackSlot) error {
	if slot == 0 || int(slot) >= trackSlotCount {
		return errors.Errorf("tif: track slot %d out of range", slot)
	}
	s.writeTrackRaw(slot, t)
	s.markDirty()
	return nil
}

func (s *Store) writeTrackRaw(slot uint16, t TrackSlot) {
	off := trackOffset(slot)
	marshalTrack(t, s.img[off:off+trackSlotSize])
}

// GetFragment reads fragment slot `idx` (0 is the freelist head).
func (s *Store) GetFragment(idx uint16) (FragmentSlot, error) {
	if int(idx) >= fragSlotCount {
		return FragmentSlot{}, errors.Errorf("tif: fragment %d out of range", idx)
	}
	off := fragOffset(idx)
	return unmarshalFragment(s.img[off : off+fragSlotSize]), nil
}

// WriteFragment overwrites fragment slot `idx` and marks the image dirty.
func (s *Store) WriteFragment(idx uint16, f FragmentSlot) error {
	if int(idx) >= fragSlotCount {
		return errors.Errorf("tif: fragment %d out of range", idx)
	}
	off := fragOffset(idx)
	marshalFragment(f, s.img[off:off+fragSlotSize])
	s.markDirty()
	return nil
}

// GetStringChunk reads string chunk `idx` (0 is the freelist head).
func (s *Store) GetStringChunk(idx uint16) (StringChunk, error) {
	if int(idx) >= stringChunkCount {
		return StringChunk{}, errors.Errorf("tif: string chunk %d out of range", idx)
	}
	off := chunkOffset(idx)
	return unmarshalStringChunk(s.img[off : off+stringChunkSize]), nil
}

// WriteStringChunk overwrites string chunk `idx` and marks the image dirty.
func (s *Store) WriteStringChunk(idx uint16, c StringChunk) error {
	if int(idx) >= stringChunkCount {
		return errors.Errorf("tif: string chunk %d out of range", idx)
	}
	off := chunkOffset(idx)
	marshalStringChunk(c, s.img[off:off+stringChunkSize])
	s.markDirty()
	return nil
}

// AddTrack pops the head of the track freelist, stamps the new slot's
// index into TrackNumber, writes t there, and returns the slot.
func (s *Store) AddTrack(t TrackSlot) (uint16, error) {
	// Slot 0 is never addressed through GetTrack (it is out of range by
	// design); read/write it directly here.
	off := trackOffset(0)
	freeSlot := bytesio.BE16(s.img[off+tOffTrackNumber:])
	if freeSlot == 0 {
		return 0, errors.New("tif: track freelist exhausted")
	}

	next, err := s.GetTrack(freeSlot)
	if err != nil {
		return 0, errors.Wrap(err, "tif: corrupt track freelist")
	}
	nextFree := next.TrackNumber

	t.TrackNumber = freeSlot
	if err := s.WriteTrack(freeSlot, t); err != nil {
		return 0, err
	}

	bytesio.PutBE16(s.img[off+tOffTrackNumber:], nextFree)
	s.markDirty()
	return freeSlot, nil
}

// RemoveTrack zeroes track slot `slot` and prepends it to the freelist,
// returning the firstFragment field it had before removal so the caller can
// walk and release its fragment chain. Zeroing before linking onto the
// freelist avoids the "CAN'T PLAY" crash real devices exhibit on residual
// non-zero fields (spec.md §4.2, §4.9).
func (s *Store) RemoveTrack(slot uint16) (firstFragment uint16, err error) {
	t, err := s.GetTrack(slot)
	if err != nil {
		return 0, err
	}
	firstFragment = t.FirstFragment

	off := trackOffset(0)
	oldHead := bytesio.BE16(s.img[off+tOffTrackNumber:])

	if err := s.WriteTrack(slot, TrackSlot{TrackNumber: oldHead}); err != nil {
		return 0, err
	}
	bytesio.PutBE16(s.img[off+tOffTrackNumber:], slot)
	s.markDirty()
	return firstFragment, nil
}

// AddFragment pops the head of the fragment freelist, writes f there, and
// returns the new fragment's index.
func (s *Store) AddFragment(f FragmentSlot) (uint16, error) {
	head, err := s.GetFragment(0)
	if err != nil {
		return 0, err
	}
	freeIdx := head.NextFragment
	if freeIdx == 0 {
		return 0, errors.New("tif: fragment freelist exhausted")
	}

	next, err := s.GetFragment(freeIdx)
	if err != nil {
		return 0, err
	}

	if err := s.WriteFragment(freeIdx, f); err != nil {
		return 0, err
	}
	head.NextFragment = next.NextFragment
	if err := s.WriteFragment(0, head); err != nil {
		return 0, err
	}
	return freeIdx, nil
}

// RemoveFragment zeroes fragment `idx` and prepends it to the freelist.
func (s *Store) RemoveFragment(idx uint16) error {
	if idx == 0 {
		return errors.New("tif: cannot remove the fragment freelist head")
	}
	head, err := s.GetFragment(0)
	if err != nil {
		return err
	}
	if err := s.WriteFragment(idx, FragmentSlot{NextFragment: head.NextFragment}); err != nil {
		return err
	}
	head.NextFragment = idx
	return s.WriteFragment(0, head)
}

// FragmentChain walks fragment indices starting at `first` until it reaches
// 0, per spec.md §4.3 "Fragment walker". It refuses to walk past 4096 hops
// (spec.md §8), returning himderr.ErrFragmentChainBroken.
func (s *Store) FragmentChain(first uint16) ([]uint16, error) {
	var chain []uint16
	idx := first
	for i := 0; i < fragSlotCount+1 && idx != 0; i++ {
		chain = append(chain, idx)
		f, err := s.GetFragment(idx)
		if err != nil {
			return nil, err
		}
		idx = f.NextFragment
	}
	if idx != 0 {
		return nil, himderr.ErrFragmentChainBroken
	}
	return chain, nil
}

// TrackIndexToTrackSlot resolves a 0-based ordering position to the slot it
// names.
func (s *Store) TrackIndexToTrackSlot(i uint16) (uint16, error) {
	if int(i) >= maxOrderingSlots {
		return 0, errors.Errorf("tif: track index %d out of range", i)
	}
	off := offOrdering + int(i)*2
	return bytesio.BE16(s.img[off:]), nil
}

// WriteTrackIndexToTrackSlot sets the slot named by ordering position i.
func (s *Store) WriteTrackIndexToTrackSlot(i uint16, slot uint16) error {
	if int(i) >= maxOrderingSlots {
		return errors.Errorf("tif: track index %d out of range", i)
	}
	off := offOrdering + int(i)*2
	bytesio.PutBE16(s.img[off:], slot)
	s.markDirty()
	return nil
}

// GetTrackCount returns the number of live tracks (the uint16 at 0x100).
func (s *Store) GetTrackCount() uint16 {
	return bytesio.BE16(s.img[offTrackCount:])
}

// WriteTrackCount sets the live track count.
func (s *Store) WriteTrackCount(n uint16) {
	bytesio.PutBE16(s.img[offTrackCount:], n)
	s.markDirty()
}
