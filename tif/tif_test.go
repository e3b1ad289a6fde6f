package tif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asivery/himd-js/himderr"
)

func TestLoadRoundTripByteIdentical(t *testing.T) {
	s := New()
	original := append([]byte(nil), s.Bytes()...)

	reloaded, err := Load(original)
	require.NoError(t, err)

	assert.Equal(t, original, reloaded.Bytes())
}

func TestLoadRejectsBadMagicAndSize(t *testing.T) {
	_, err := Load(make([]byte, ImageSize))
	assert.ErrorIs(t, err, himderr.ErrInvalidTrackIndex)

	_, err = Load(make([]byte, 10))
	assert.ErrorIs(t, err, himderr.ErrInvalidTrackIndex)
}

func TestAddRemoveTrackFreelist(t *testing.T) {
	s := New()

	slot, err := s.AddTrack(TrackSlot{FirstFragment: 1})
	require.NoError(t, err)
	assert.NotZero(t, slot)

	got, err := s.GetTrack(slot)
	require.NoError(t, err)
	assert.True(t, got.IsLive(slot))

	firstFrag, err := s.RemoveTrack(slot)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), firstFrag)

	cleared, err := s.GetTrack(slot)
	require.NoError(t, err)
	assert.False(t, cleared.IsLive(slot))
	assert.Zero(t, cleared.FirstFragment)

	// the freed slot must be reissued before any other track slot
	slot2, err := s.AddTrack(TrackSlot{FirstFragment: 1})
	require.NoError(t, err)
	assert.Equal(t, slot, slot2)
}

func TestFragmentChainWalksAndBreaksCleanly(t *testing.T) {
	s := New()

	f1, err := s.AddFragment(FragmentSlot{FirstBlock: 0, LastBlock: 1})
	require.NoError(t, err)
	f2, err := s.AddFragment(FragmentSlot{FirstBlock: 2, LastBlock: 3})
	require.NoError(t, err)

	frag1, _ := s.GetFragment(f1)
	frag1.NextFragment = f2
	require.NoError(t, s.WriteFragment(f1, frag1))

	chain, err := s.FragmentChain(f1)
	require.NoError(t, err)
	assert.Equal(t, []uint16{f1, f2}, chain)

	require.NoError(t, s.RemoveFragment(f1))
	require.NoError(t, s.RemoveFragment(f2))
}

func TestAddStringPicksNarrowestEncoding(t *testing.T) {
	s := New()

	cases := []struct {
		text string
		enc  HiMDStringEncoding
	}{
		{"A", EncodingLatin1},
		{"日本", EncodingShiftJIS},
		{"Schrödinger", EncodingLatin1},
	}

	for _, c := range cases {
		root, err := s.AddString(c.text, StringTypeTrackTitle)
		require.NoError(t, err)

		chunk, err := s.GetStringChunk(root)
		require.NoError(t, err)
		assert.Equal(t, byte(c.enc), chunk.Content[0])

		decoded, err := s.ReadString(root)
		require.NoError(t, err)
		assert.Equal(t, c.text, decoded)
	}
}

func TestAddStringUTF16Fallback(t *testing.T) {
	s := New()
	// Hangul syllables are neither Latin-1 nor Shift-JIS.
	text := "한국어"

	root, err := s.AddString(text, StringTypeTrackTitle)
	require.NoError(t, err)

	chunk, err := s.GetStringChunk(root)
	require.NoError(t, err)
	assert.Equal(t, byte(EncodingUTF16BE), chunk.Content[0])

	decoded, err := s.ReadString(root)
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}

func TestRemoveStringGrowsFreelist(t *testing.T) {
	s := New()
	before, err := s.freeStringChunkCount()
	require.NoError(t, err)

	root, err := s.AddString("a reasonably long disc title to span chunks", StringTypeDiscTitle)
	require.NoError(t, err)

	mid, err := s.freeStringChunkCount()
	require.NoError(t, err)
	assert.Less(t, mid, before)

	require.NoError(t, s.RemoveString(root))

	after, err := s.freeStringChunkCount()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAddStringNotEnoughSlots(t *testing.T) {
	s := New()

	// Drain the freelist down to nothing.
	for {
		_, err := s.popStringFreelist()
		if err != nil {
			break
		}
	}

	_, err := s.AddString("x", StringTypeTrackTitle)
	assert.ErrorIs(t, err, himderr.ErrNotEnoughStringSlot)
}

func TestGroupInvariants(t *testing.T) {
	s := New()

	require.NoError(t, s.WriteGroup(0, GroupRecord{Flag: 0})) // empty disc title
	require.NoError(t, s.WriteGroup(1, GroupRecord{
		StartTrackPlus1: 1, EndTrack: 3, Flag: GroupFlagLive,
	}))

	groups, err := s.AllGroups()
	require.NoError(t, err)
	require.Len(t, groups, 2) // disc title (empty) + the one user group
	assert.Equal(t, 0, groups[1].StartTrack())
	assert.Equal(t, 3, int(groups[1].EndTrack))
}
