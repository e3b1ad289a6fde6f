package disc

import (
	"context"
	"crypto/rand"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/block"
	"github.com/asivery/himd-js/cryptoprovider"
	"github.com/asivery/himd-js/himdfs"
	"github.com/asivery/himd-js/tif"
)

// atdataBlockCount returns how many Size-byte blocks the current
// generation's ATDATA file already holds, i.e. the index the next append
// lands at.
func (d *Disc) atdataBlockCount() (uint16, error) {
	resolved, err := himdfs.Resolve(d.FS, d.atdataPath())
	if err != nil {
		return 0, err
	}
	size, err := d.FS.GetSize(resolved)
	if err != nil {
		return 0, err
	}
	return uint16(size / block.Size), nil
}

// openATDATAForAppend resolves and opens the current generation's ATDATA
// file for writing, positioned at the append point.
func (d *Disc) openATDATAForAppend() (himdfs.File, uint16, error) {
	resolved, err := himdfs.Resolve(d.FS, d.atdataPath())
	if err != nil {
		return nil, 0, err
	}
	f, err := d.FS.Open(resolved, himdfs.ReadWrite)
	if err != nil {
		return nil, 0, err
	}
	startBlock, err := d.atdataBlockCount()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if _, err := f.Seek(int64(startBlock)*block.Size, 0); err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, startBlock, nil
}

// appendBlocks writes already-built blocks (MP3 ingestion builds its own
// SMPA blocks up front) to ATDATA and returns the block range they landed
// at.
func (d *Disc) appendBlocks(blocks []block.Block) (firstBlock, lastBlock uint16, err error) {
	f, startBlock, err := d.openATDATAForAppend()
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	bw := block.NewWriter(f, startBlock)
	for _, b := range blocks {
		if err := bw.WriteBlock(b); err != nil {
			return 0, 0, err
		}
	}
	firstBlock, lastBlock = bw.Close()
	return firstBlock, lastBlock, nil
}

// writeEncryptedFragment builds one freshly-keyed block per payload chunk,
// encrypts each with trackKey via the disc's CryptoProvider, appends them
// to ATDATA, and registers a new fragment slot spanning the written range
// (spec.md §4.3, §4.5).
func (d *Disc) writeEncryptedFragment(ctx context.Context, trackKey [8]byte, contentID [20]byte, chunks []blockPlan, bytesPerFrame int) (fragIdx, firstBlock, lastBlock uint16, err error) {
	f, startBlock, err := d.openATDATAForAppend()
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	bw := block.NewWriter(f, startBlock)
	fragmentKey, err := randomKey()
	if err != nil {
		return 0, 0, 0, err
	}
	var lastFrameInLastBlock byte
	for i, c := range chunks {
		blockKey, err := randomKey()
		if err != nil {
			return 0, 0, 0, err
		}
		blockIV, err := randomKey()
		if err != nil {
			return 0, 0, 0, err
		}

		nFrames := len(c.data) / bytesPerFrame
		if nFrames == 0 {
			return 0, 0, 0, errors.Errorf("disc: block %d has no complete frames", i)
		}
		lastFrameInLastBlock = byte(nFrames - 1)

		var payload [block.HimdAudioSize]byte
		copy(payload[:], c.data)

		b := block.Block{
			Type:    block.TypeA3D,
			NFrames: uint16(nFrames),
			MCode:   block.MCodeDefault,
			LenData: uint16(len(c.data)),
			Serial:  uint32(i + 1),
			Key:     blockKey,
			IV:      blockIV,
			Payload: payload,
		}
		b.StampBackup(contentID)

		ct, err := d.crypto().Encrypt(ctx, cryptoprovider.BlockKeys{
			TrackKey:    trackKey,
			FragmentKey: fragmentKey,
			BlockKey:    blockKey,
			BlockIV:     blockIV,
		}, b.Payload[:])
		if err != nil {
			return 0, 0, 0, err
		}
		copy(b.Payload[:], ct)

		if err := bw.WriteBlock(b); err != nil {
			return 0, 0, 0, err
		}
	}
	firstBlock, lastBlock = bw.Close()

	fragIdx, err = d.TIF.AddFragment(tif.FragmentSlot{
		FirstBlock: firstBlock,
		LastBlock:  lastBlock,
		FirstFrame: 0,
		LastFrame:  lastFrameInLastBlock,
		Key:        fragmentKey,
	})
	if err != nil {
		return 0, 0, 0, err
	}
	return fragIdx, firstBlock, lastBlock, nil
}

func randomKey() ([8]byte, error) {
	var k [8]byte
	if _, err := rand.Read(k[:]); err != nil {
		return k, errors.Wrap(err, "disc: generating random key")
	}
	return k, nil
}
