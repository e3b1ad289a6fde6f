package disc

import (
	"github.com/pkg/errors"

	"github.com/asivery/himd-js/id3"
	"github.com/asivery/himd-js/tif"
)

// TrackInfo is the user-facing projection of a TrackSlot the listing
// operations return.
type TrackInfo struct {
	Slot     uint16
	Title    string
	Artist   string
	Album    string
	Duration uint32
	CodecID  byte
}

// ListTracks walks the ordering array (spec.md §3.3 offset 0x102) and
// returns every live track in disc order.
func (d *Disc) ListTracks() ([]TrackInfo, error) {
	count := d.TIF.GetTrackCount()
	out := make([]TrackInfo, 0, count)

	for i := uint16(0); i < count; i++ {
		slotIdx, err := d.TIF.TrackIndexToTrackSlot(i)
		if err != nil {
			return nil, err
		}
		slot, err := d.TIF.GetTrack(slotIdx)
		if err != nil {
			return nil, err
		}

		info := TrackInfo{Slot: slotIdx, Duration: slot.DurationSeconds, CodecID: slot.CodecID}
		if slot.TitleIndex != 0 {
			info.Title, err = d.TIF.ReadString(slot.TitleIndex)
			if err != nil {
				return nil, err
			}
		}
		if slot.ArtistIndex != 0 {
			info.Artist, err = d.TIF.ReadString(slot.ArtistIndex)
			if err != nil {
				return nil, err
			}
		}
		if slot.AlbumIndex != 0 {
			info.Album, err = d.TIF.ReadString(slot.AlbumIndex)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// RenameDisc sets (or, when title is empty, clears) the disc title,
// freeing the previous title's string chain either way (spec.md §8
// scenario 2).
func (d *Disc) RenameDisc(title string) error {
	g, err := d.TIF.DiscTitleGroup()
	if err != nil {
		return err
	}
	if g.TitleIndex != 0 {
		if err := d.TIF.RemoveString(g.TitleIndex); err != nil {
			return err
		}
		g.TitleIndex = 0
	}

	if title != "" {
		root, err := d.TIF.AddString(title, tif.StringTypeDiscTitle)
		if err != nil {
			return err
		}
		g.TitleIndex = root
	}
	return d.TIF.WriteGroup(0, g)
}

// RenameTrack sets (or clears) a track's title, freeing the previous
// chain.
func (d *Disc) RenameTrack(slot uint16, title string) error {
	t, err := d.TIF.GetTrack(slot)
	if err != nil {
		return err
	}
	if t.TitleIndex != 0 {
		if err := d.TIF.RemoveString(t.TitleIndex); err != nil {
			return err
		}
		t.TitleIndex = 0
	}
	if title != "" {
		root, err := d.TIF.AddString(title, tif.StringTypeTrackTitle)
		if err != nil {
			return err
		}
		t.TitleIndex = root
	}
	return d.TIF.WriteTrack(slot, t)
}

// trackTags resolves a track slot's title/artist/album strings into the
// tag set DumpMP3 embeds.
func (d *Disc) trackTags(t tif.TrackSlot) (id3.Tags, error) {
	var tags id3.Tags
	var err error
	if t.TitleIndex != 0 {
		if tags.Title, err = d.TIF.ReadString(t.TitleIndex); err != nil {
			return tags, err
		}
	}
	if t.ArtistIndex != 0 {
		if tags.Artist, err = d.TIF.ReadString(t.ArtistIndex); err != nil {
			return tags, err
		}
	}
	if t.AlbumIndex != 0 {
		if tags.Album, err = d.TIF.ReadString(t.AlbumIndex); err != nil {
			return tags, err
		}
	}
	return tags, nil
}

// setTrackStrings is the shared path RenameTrack's album/artist siblings
// and UploadMP3/UploadATRAC use to stamp all three string fields at once.
func (d *Disc) setTrackStrings(t *tif.TrackSlot, title, artist, album string) error {
	var err error
	if title != "" {
		if t.TitleIndex, err = d.TIF.AddString(title, tif.StringTypeTrackTitle); err != nil {
			return errors.Wrap(err, "disc: writing track title")
		}
	}
	if artist != "" {
		if t.ArtistIndex, err = d.TIF.AddString(artist, tif.StringTypeArtist); err != nil {
			return errors.Wrap(err, "disc: writing track artist")
		}
	}
	if album != "" {
		if t.AlbumIndex, err = d.TIF.AddString(album, tif.StringTypeAlbum); err != nil {
			return errors.Wrap(err, "disc: writing track album")
		}
	}
	return nil
}
