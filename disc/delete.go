package disc

import (
	"context"
	"sort"

	"github.com/asivery/himd-js/block"
	"github.com/asivery/himd-js/himdfs"
	"github.com/asivery/himd-js/session"
)

// freedRange is one cluster-aligned block range a deleted track's fragment
// gave up, in block units (spec.md §4.8).
type freedRange struct {
	firstBlock uint16
	length     uint16
}

// alignToCluster rounds [firstBlock, lastBlock] outward so both the start
// and the block count are even, per spec.md §4.8 "round each pair to
// cluster alignment: even firstBlock, even length".
func alignToCluster(firstBlock, lastBlock uint16) (uint16, uint16) {
	if firstBlock%2 != 0 {
		firstBlock--
	}
	length := lastBlock - firstBlock + 1
	if length%2 != 0 {
		length++
	}
	return firstBlock, length
}

// DeleteTracks removes the tracks at the given 0-based positions in the
// disc ordering (spec.md §4.8): processed in descending index order so
// earlier removals never shift the positions of tracks still queued for
// deletion, each track's fragment chain and title
// strings are released back to their freelists, the ordering array is
// compacted, and the track count decremented. Once every requested track is
// gone, every surviving fragment past a freed range has its block range
// shifted down by that range's length, and the freed, cluster-aligned
// ranges are offered back to the filesystem. When sess is non-nil, the
// maclist is then re-signed and the disc rotated to a new generation
// (spec.md §4.8 "the maclist MUST then be re-signed through §4.6").
func (d *Disc) DeleteTracks(ctx context.Context, sess *session.Session, indices []uint16) error {
	ordered := append([]uint16(nil), indices...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] > ordered[j] })

	var freed []freedRange
	for i, orderIdx := range ordered {
		if d.Progress != nil {
			d.Progress(i, len(ordered))
		}

		slotIdx, err := d.TIF.TrackIndexToTrackSlot(orderIdx)
		if err != nil {
			return err
		}
		t, err := d.TIF.GetTrack(slotIdx)
		if err != nil {
			return err
		}

		fragIndices, err := d.TIF.FragmentChain(t.FirstFragment)
		if err != nil {
			return err
		}
		for _, fragIdx := range fragIndices {
			f, err := d.TIF.GetFragment(fragIdx)
			if err != nil {
				return err
			}
			firstBlock, length := alignToCluster(f.FirstBlock, f.LastBlock)
			freed = append(freed, freedRange{firstBlock: firstBlock, length: length})
			if err := d.TIF.RemoveFragment(fragIdx); err != nil {
				return err
			}
		}

		if t.TitleIndex != 0 {
			if err := d.TIF.RemoveString(t.TitleIndex); err != nil {
				return err
			}
		}
		if t.ArtistIndex != 0 {
			if err := d.TIF.RemoveString(t.ArtistIndex); err != nil {
				return err
			}
		}
		if t.AlbumIndex != 0 {
			if err := d.TIF.RemoveString(t.AlbumIndex); err != nil {
				return err
			}
		}

		if _, err := d.TIF.RemoveTrack(slotIdx); err != nil {
			return err
		}
		if err := d.compactOrdering(orderIdx); err != nil {
			return err
		}
	}

	if d.Progress != nil {
		d.Progress(len(ordered), len(ordered))
	}

	if len(freed) > 0 {
		if err := d.shiftSurvivingFragments(freed); err != nil {
			return err
		}

		regions := make([]himdfs.Region, len(freed))
		for i, r := range freed {
			regions[i] = himdfs.Region{
				Offset: int64(r.firstBlock) * block.Size,
				Length: int64(r.length) * block.Size,
			}
		}
		resolved, err := himdfs.Resolve(d.FS, d.atdataPath())
		if err != nil {
			return err
		}
		if err := d.FS.FreeFileRegions(resolved, regions); err != nil {
			return err
		}
	}

	return d.FinalizeSession(ctx, sess)
}

// shiftSurvivingFragments decrements firstBlock/lastBlock on every live
// track's fragments by the combined length of every freed range below it
// (spec.md §4.8 closing step), so ATDATA offsets still point at the right
// data once the freed ranges are physically reclaimed.
func (d *Disc) shiftSurvivingFragments(freed []freedRange) error {
	count := d.TIF.GetTrackCount()
	for i := uint16(0); i < count; i++ {
		slotIdx, err := d.TIF.TrackIndexToTrackSlot(i)
		if err != nil {
			return err
		}
		t, err := d.TIF.GetTrack(slotIdx)
		if err != nil {
			return err
		}

		fragIndices, err := d.TIF.FragmentChain(t.FirstFragment)
		if err != nil {
			return err
		}
		for _, fragIdx := range fragIndices {
			f, err := d.TIF.GetFragment(fragIdx)
			if err != nil {
				return err
			}

			var shift uint16
			for _, r := range freed {
				if r.firstBlock < f.FirstBlock {
					shift += r.length
				}
			}
			if shift == 0 {
				continue
			}

			f.FirstBlock -= shift
			f.LastBlock -= shift
			if err := d.TIF.WriteFragment(fragIdx, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// compactOrdering shifts every ordering entry past the removed slot down
// by one, then shrinks the track count.
func (d *Disc) compactOrdering(removed uint16) error {
	count := d.TIF.GetTrackCount()
	for i := removed; i+1 < count; i++ {
		next, err := d.TIF.TrackIndexToTrackSlot(i + 1)
		if err != nil {
			return err
		}
		if err := d.TIF.WriteTrackIndexToTrackSlot(i, next); err != nil {
			return err
		}
	}
	d.TIF.WriteTrackCount(count - 1)
	return nil
}
