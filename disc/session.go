package disc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/asivery/himd-js/device"
	"github.com/asivery/himd-js/himderr"
	"github.com/asivery/himd-js/himdfs"
	"github.com/asivery/himd-js/session"
)

func unsupportedNoDevice() error {
	return errors.Wrap(himderr.ErrUnsupportedOperation, "disc: no device transport attached")
}

// RequireSecureSession reports whether vendorID/productID is absent from the
// reference device table (spec.md §6). An attached unit this library has
// never validated against should not be trusted with a device-less session:
// callers use this to decide whether to insist on a Transport before
// uploading or deleting.
func RequireSecureSession(vendorID, productID uint16) bool {
	_, known := device.Lookup(vendorID, productID)
	return !known
}

// NewSessionForDevice builds a session like NewSession, but first consults
// the reference device table (spec.md §6) to decide whether a secure
// session is mandatory for this vendorID/productID pair: an unrecognised
// unit with no transport attached is refused outright, since there is no
// device handshake to fall back on and this library's hard-coded EKB/key
// constants have never been validated against it.
func (d *Disc) NewSessionForDevice(ctx context.Context, transport device.Transport, vendorID, productID uint16, hostLeafID [8]byte) (*session.Session, error) {
	if transport == nil && RequireSecureSession(vendorID, productID) {
		return nil, errors.Wrapf(himderr.ErrUnsupportedOperation, "disc: device %04Xh:%04Xh is not a reference unit; a transport is required", vendorID, productID)
	}
	return d.NewSession(ctx, transport, hostLeafID)
}

// FinalizeSession re-signs the maclist and rotates the disc to a new
// generation (spec.md §4.6 "Finalization", §4.7 "Generation rotation"). It
// is a no-op when sess is nil, matching UploadMP3/UploadATRAC/DeleteTracks
// running device-less with no session at all. Callers invoke it once after
// every per-track signing or deletion for the operation is complete; per
// spec.md §7's ordering invariant, finalizeSession must precede generation
// rotation, which is why the updated MCLIST is written under the current
// generation's name before AdvanceGeneration renames it into place.
func (d *Disc) FinalizeSession(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return nil
	}
	if sess.Maclist == nil {
		return errors.New("disc: session has no maclist loaded")
	}

	if err := d.Flush(); err != nil {
		return err
	}

	newGen := d.Generation + 1
	sess.Maclist.Generation = newGen
	if _, _, err := sess.Finalize(ctx); err != nil {
		return err
	}

	mclPath, err := himdfs.Resolve(d.FS, d.mclistPath())
	if err != nil {
		return err
	}
	template, err := readWhole(d.FS, mclPath)
	if err != nil {
		return err
	}
	mclBytes, err := sess.Maclist.Bytes(template)
	if err != nil {
		return err
	}
	if err := d.writeWhole(mclPath, mclBytes); err != nil {
		return err
	}

	if err := session.AdvanceGeneration(d.FS, d.Generation, newGen, d.nextHJSBasename); err != nil {
		return err
	}
	d.Generation = newGen
	return nil
}

// nextHJSBasename hands out increasing basenames for generation-rotate
// collision evictions (spec.md §4.7, §8 scenario 6), scoped to this Disc.
func (d *Disc) nextHJSBasename() uint32 {
	d.hjsCounter++
	return d.hjsCounter
}

func (d *Disc) writeWhole(resolvedPath string, data []byte) error {
	f, err := d.FS.Open(resolvedPath, himdfs.ReadWrite)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

// WipeDisc erases every file on the mounted volume via the filesystem
// contract (spec.md §6 "Filesystem interface", himdfs.FileSystem.WipeDisc).
// A filesystem that doesn't support it (a plain OS mount, say) reports
// himderr.ErrUnsupportedOperation, which this passes straight through.
func (d *Disc) WipeDisc() error {
	return d.FS.WipeDisc()
}

// ReformatHiMD passes a HiMD reformat through to the attached device
// (spec.md §6 "Device transport"). Unlike WipeDisc, there is no device-less
// fallback: reformatting is a device-side operation with nothing on the
// mounted image for a disc-only caller to act on.
func (d *Disc) ReformatHiMD(ctx context.Context, transport device.Transport) error {
	if transport == nil {
		return unsupportedNoDevice()
	}
	return transport.ReformatHiMD(ctx)
}
