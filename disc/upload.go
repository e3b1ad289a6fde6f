package disc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/cipher"
	"github.com/asivery/himd-js/codec"
	"github.com/asivery/himd-js/mp3ingest"
	"github.com/asivery/himd-js/session"
	"github.com/asivery/himd-js/tif"
)

// UploadMP3 ingests a complete MP3 byte stream (via parser) as a new track,
// appending its blocks to ATDATA and linking a fresh track slot at the end
// of the disc ordering (spec.md §4.5, §8 scenario 3).
func (d *Disc) UploadMP3(ctx context.Context, sess *session.Session, data mp3ingest.Parser, title, artist, album string) (TrackInfo, error) {
	slotCount := d.TIF.GetTrackCount()
	trackNumber := slotCount + 1

	mp3Key := cipher.GetMP3EncryptionKey(d.DiscID, uint32(trackNumber))
	contentID := session.GenerateContentID()

	res, err := mp3ingest.Ingest(data, mp3Key, 1, contentID)
	if err != nil {
		return TrackInfo{}, err
	}
	if len(res.Blocks) == 0 {
		return TrackInfo{}, errors.New("disc: mp3 stream produced no audio blocks")
	}

	firstBlock, lastBlock, err := d.appendBlocks(res.Blocks)
	if err != nil {
		return TrackInfo{}, err
	}

	// MPEG fragments record the last block's frame count; block.Reader
	// subtracts one to get the last frame index.
	lastFrame := byte(res.Blocks[len(res.Blocks)-1].NFrames)
	fragIdx, err := d.TIF.AddFragment(tif.FragmentSlot{
		FirstBlock: firstBlock,
		LastBlock:  lastBlock,
		FirstFrame: 0,
		LastFrame:  lastFrame,
	})
	if err != nil {
		return TrackInfo{}, err
	}

	slot := tif.TrackSlot{
		FirstFragment:   fragIdx,
		CodecID:         codec.IDAtrac3PlusOrMpeg,
		CodecInfo:       res.CodecInfo,
		DurationSeconds: uint32(res.DurationSec),
		ContentID:       contentID,
	}
	if err := d.setTrackStrings(&slot, title, artist, album); err != nil {
		return TrackInfo{}, err
	}

	if sess != nil {
		signed, err := sess.CreateAndSignNewTrack(trackNumber, slot)
		if err != nil {
			return TrackInfo{}, err
		}
		slot = signed.Slot
	} else {
		slot.TrackNumber = trackNumber
	}

	newSlot, err := d.TIF.AddTrack(slot)
	if err != nil {
		return TrackInfo{}, err
	}
	if err := d.TIF.WriteTrackIndexToTrackSlot(slotCount, newSlot); err != nil {
		return TrackInfo{}, err
	}
	d.TIF.WriteTrackCount(slotCount + 1)

	if err := d.FinalizeSession(ctx, sess); err != nil {
		return TrackInfo{}, err
	}

	return TrackInfo{Slot: newSlot, Title: title, Artist: artist, Album: album, Duration: slot.DurationSeconds, CodecID: slot.CodecID}, nil
}

// UploadATRAC appends an already-encoded ATRAC3/ATRAC3+ payload, split into
// frames of frameSize bytes and packed framesPerBlock to a block (spec.md
// §8 scenario 4).
func (d *Disc) UploadATRAC(ctx context.Context, sess *session.Session, codecID byte, frameSize, channels int, sampleRate uint32, payload []byte, title, artist, album string) (TrackInfo, error) {
	info := codec.GenerateCodecInfo(codecID, frameSize, channels, sampleRate)
	framesPerBlock := codec.FramesPerBlock(codecID, info)
	if framesPerBlock == 0 {
		return TrackInfo{}, errors.New("disc: codec produced zero frames per block")
	}

	slotCount := d.TIF.GetTrackCount()
	trackNumber := slotCount + 1

	var trackKey [8]byte
	contentID := session.GenerateContentID()
	slot := tif.TrackSlot{CodecID: codecID, CodecInfo: info, ContentID: contentID}

	bytesPerFrame := codec.BytesPerFrame(codecID, info)
	totalFrames := len(payload) / bytesPerFrame
	samplesPerFrame := codec.SamplesPerFrame(codecID, info)
	slot.DurationSeconds = uint32(totalFrames * samplesPerFrame / int(sampleRate))

	if sess != nil {
		signed, err := sess.CreateAndSignNewTrack(trackNumber, slot)
		if err != nil {
			return TrackInfo{}, err
		}
		slot = signed.Slot
		trackKey = signed.TrackKey
	} else {
		slot.TrackNumber = trackNumber
	}

	var blocks []blockPlan
	for off := 0; off < len(payload); off += framesPerBlock * bytesPerFrame {
		end := off + framesPerBlock*bytesPerFrame
		if end > len(payload) {
			end = len(payload)
		}
		blocks = append(blocks, blockPlan{data: payload[off:end]})
	}

	fragIdx, _, _, err := d.writeEncryptedFragment(ctx, trackKey, contentID, blocks, bytesPerFrame)
	if err != nil {
		return TrackInfo{}, err
	}

	slot.FirstFragment = fragIdx

	if err := d.setTrackStrings(&slot, title, artist, album); err != nil {
		return TrackInfo{}, err
	}

	newSlot, err := d.TIF.AddTrack(slot)
	if err != nil {
		return TrackInfo{}, err
	}
	if err := d.TIF.WriteTrackIndexToTrackSlot(slotCount, newSlot); err != nil {
		return TrackInfo{}, err
	}
	d.TIF.WriteTrackCount(slotCount + 1)

	if err := d.FinalizeSession(ctx, sess); err != nil {
		return TrackInfo{}, err
	}

	return TrackInfo{Slot: newSlot, Title: title, Artist: artist, Album: album, Duration: slot.DurationSeconds, CodecID: codecID}, nil
}

// blockPlan is one pre-split chunk of an encoded payload destined for a
// single encrypted audio block.
type blockPlan struct {
	data []byte
}
