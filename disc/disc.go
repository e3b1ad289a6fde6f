// Package disc is the orchestrator: it composes the TIF object store, the
// secure session, and the filesystem interface into the high-level
// operations a caller actually wants (list, rename, upload, dump, delete),
// per spec.md §2 and §4.8.
package disc

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/asivery/himd-js/cryptoprovider"
	"github.com/asivery/himd-js/device"
	"github.com/asivery/himd-js/himderr"
	"github.com/asivery/himd-js/himdfs"
	"github.com/asivery/himd-js/session"
	"github.com/asivery/himd-js/tif"
)

const hmdDir = "/HMDHIFI"

var coreFileRegexp = regexp.MustCompile(`(?i)^(ATDATA|MCLIST|TRKIDX)(\d\d)\.HMA$`)

// Progress is invoked best-effort by DeleteTracks; uploads and dumps do
// not call it. It MUST NOT affect control flow (spec.md §7).
type Progress func(done, total int)

// Disc is an open HiMD volume: the current generation's TIF loaded into
// memory, plus the filesystem it was read from.
type Disc struct {
	FS         himdfs.FileSystem
	TIF        *tif.Store
	Generation uint32
	DiscID     [16]byte

	Progress Progress

	// CryptoProvider backs ATRAC block encryption for UploadATRAC. Left
	// nil, a Disc falls back to a synchronous InlineProvider; callers with
	// an overlapping I/O pipeline can supply their own.
	CryptoProvider cryptoprovider.Provider

	// hjsCounter backs FinalizeSession's collision-eviction basenames.
	hjsCounter uint32

	log *logrus.Entry
}

func (d *Disc) crypto() cryptoprovider.Provider {
	if d.CryptoProvider == nil {
		d.CryptoProvider = cryptoprovider.NewInlineProvider()
	}
	return d.CryptoProvider
}

// Open runs the boot contract (spec.md §4.2): find the single highest
// generation's ATDATA (logging when more than one exists), load its TIF,
// and read the disc id out of MCLIST.
func Open(fs himdfs.FileSystem) (*Disc, error) {
	log := logrus.WithField("component", "disc")

	entries, err := fs.List(hmdDir)
	if err != nil {
		return nil, errors.Wrap(err, "disc: listing /HMDHIFI")
	}

	var generations []int
	for _, e := range entries {
		m := coreFileRegexp.FindStringSubmatch(e)
		if m == nil || !strings.EqualFold(m[1], "ATDATA") {
			continue
		}
		n, _ := strconv.Atoi(m[2])
		generations = append(generations, n)
	}
	if len(generations) == 0 {
		return nil, himderr.ErrNoTrackIndex
	}
	sort.Ints(generations)
	gen := generations[len(generations)-1]
	if len(generations) > 1 {
		log.Warnf("found %d ATDATA generations, using the highest (%02d)", len(generations), gen)
	}

	trkPath, err := himdfs.Resolve(fs, fmt.Sprintf("%s/TRKIDX%02d.HMA", hmdDir, gen))
	if err != nil {
		return nil, err
	}
	trkData, err := readWhole(fs, trkPath)
	if err != nil {
		return nil, errors.Wrap(err, "disc: reading TRKIDX")
	}
	store, err := tif.Load(trkData)
	if err != nil {
		return nil, err
	}

	mclPath, err := himdfs.Resolve(fs, fmt.Sprintf("%s/MCLIST%02d.HMA", hmdDir, gen))
	if err != nil {
		return nil, err
	}
	mclData, err := readWhole(fs, mclPath)
	if err != nil {
		return nil, errors.Wrap(err, "disc: reading MCLIST")
	}
	ml, err := session.LoadMaclist(mclData)
	if err != nil {
		return nil, err
	}

	return &Disc{
		FS:         fs,
		TIF:        store,
		Generation: uint32(gen),
		DiscID:     ml.DiscID,
		log:        log,
	}, nil
}

func readWhole(fs himdfs.FileSystem, path string) ([]byte, error) {
	f, err := fs.Open(path, himdfs.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	size, err := f.Length()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := f.Read(buf); err != nil && size > 0 {
		return nil, err
	}
	return buf, nil
}

// Flush writes the TIF image back if it has pending mutations (spec.md
// §4.2 flush()).
func (d *Disc) Flush() error {
	if !d.TIF.Dirty() {
		return nil
	}
	path := fmt.Sprintf("%s/TRKIDX%02d.HMA", hmdDir, d.Generation)
	resolved, err := himdfs.Resolve(d.FS, path)
	if err != nil {
		return err
	}
	f, err := d.FS.Open(resolved, himdfs.ReadWrite)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(d.TIF.Bytes()); err != nil {
		return err
	}
	d.TIF.ClearDirty()
	return nil
}

// NewSession builds a session.Session for this disc, bound to an optional
// device transport, and decrypts the current MCLIST for it.
func (d *Disc) NewSession(ctx context.Context, transport device.Transport, hostLeafID [8]byte) (*session.Session, error) {
	mclPath, err := himdfs.Resolve(d.FS, fmt.Sprintf("%s/MCLIST%02d.HMA", hmdDir, d.Generation))
	if err != nil {
		return nil, err
	}
	mclData, err := readWhole(d.FS, mclPath)
	if err != nil {
		return nil, err
	}
	ml, err := session.LoadMaclist(mclData)
	if err != nil {
		return nil, err
	}

	s := session.New(transport, hostLeafID, d.DiscID, ml)
	if err := s.Authenticate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Disc) atdataPath() string {
	return fmt.Sprintf("%s/ATDATA%02d.HMA", hmdDir, d.Generation)
}

func (d *Disc) mclistPath() string {
	return fmt.Sprintf("%s/MCLIST%02d.HMA", hmdDir, d.Generation)
}
