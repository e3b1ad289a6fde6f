// Package device defines the SCSI Vendor transport interface a HiMD unit
// exposes for the secure-session handshake (spec.md §6 "Device transport"),
// plus a reference table of known (vendorId, productId) pairs.
package device

import "context"

// Stage2Info is the device's reply to opcode 0x31: discId, MAC, device leaf
// id/nonce, and the fixed key-type/key-level/EKB-id/key fields the session
// handshake must verify (spec.md §4.6 step 2).
type Stage2Info struct {
	DiscID        [16]byte
	MAC           [8]byte
	DeviceLeafID  [8]byte
	DeviceNonce   [8]byte
	KeyType       [4]byte
	KeyLevel      [4]byte
	EkbID         [4]byte
	Reserved      [4]byte
	Key           [16]byte
}

// ICV is the device's reply to opcode 0x33.
type ICV struct {
	Header [8]byte
	Value  [16]byte
	MAC    [8]byte
}

// Transport is the SCSI Vendor interface the secure session drives. A
// caller with no physical device (reading/writing a disc image pulled onto
// local storage) simply never constructs one; Session then skips the
// device-authenticated steps, per spec.md §4.6.
type Transport interface {
	WriteHostLeafID(ctx context.Context, leafID, hostNonce [8]byte) error
	GetAuthenticationStage2Info(ctx context.Context) (Stage2Info, error)
	WriteAuthenticationStage3Info(ctx context.Context, hostMAC [8]byte, ekbBlock []byte) error
	ReadICV(ctx context.Context) (ICV, error)
	WriteICV(ctx context.Context, header [8]byte, icv [16]byte, mac [8]byte) error

	ReformatHiMD(ctx context.Context) error
	Wipe(ctx context.Context) error
}

// Descriptor identifies one reference device by its USB vendor/product id
// pair.
type Descriptor struct {
	VendorID  uint16
	ProductID uint16
	Name      string
}

// ReferenceDevices lists every HiMD unit this library has been validated
// against. The vendor id 0x054C is Sony; product ids are taken from USB
// descriptors observed on real hardware.
var ReferenceDevices = []Descriptor{
	{VendorID: 0x054C, ProductID: 0x0187, Name: "Sony MZ-RH1"},
	{VendorID: 0x054C, ProductID: 0x0188, Name: "Sony MZ-RH1 (alt. firmware)"},
	{VendorID: 0x054C, ProductID: 0x017F, Name: "Sony MZ-NH900"},
	{VendorID: 0x054C, ProductID: 0x0186, Name: "Sony MZ-NH1"},
	{VendorID: 0x054C, ProductID: 0x0193, Name: "Sony MZ-NH700/NH600"},
	{VendorID: 0x054C, ProductID: 0x01A7, Name: "Sony MZ-DH10P"},
}

// Lookup finds a reference device by vendor/product id.
func Lookup(vendorID, productID uint16) (Descriptor, bool) {
	for _, d := range ReferenceDevices {
		if d.VendorID == vendorID && d.ProductID == productID {
			return d, true
		}
	}
	return Descriptor{}, false
}
