// Package himderr collects the sentinel error kinds a HiMD disc operation
// can fail with. Callers compare against these with errors.Is; call sites
// elsewhere in the module wrap them with github.com/pkg/errors to attach
// context about which operation failed.
package himderr

import "errors"

var (
	// TIF / track index
	ErrNoTrackIndex      = errors.New("himd: no track index found on disc")
	ErrInvalidTrackIndex = errors.New("himd: track index image is malformed")

	// Cipher / EKB
	ErrUnknownEkb = errors.New("himd: unknown EKB number")

	// Strings
	ErrInvalidEncoding     = errors.New("himd: string chunk has an unrecognised encoding")
	ErrUnencodable         = errors.New("himd: text cannot be round-tripped by any supported encoding")
	ErrNotEnoughStringSlot = errors.New("himd: not enough free string chunks")

	// Fragment / block integrity
	ErrFragmentChainBroken     = errors.New("himd: fragment chain is broken")
	ErrLastFrameBeforeFirst    = errors.New("himd: last frame precedes first frame")
	ErrBlockDataTooLarge       = errors.New("himd: block payload exceeds capacity")
	ErrFrameOutOfRange         = errors.New("himd: requested frame is out of range")

	// Filesystem
	ErrReadOnlyFile   = errors.New("himd: file is opened read-only")
	ErrDirectoryAsFile = errors.New("himd: expected a file, found a directory")

	// Secure session
	ErrDeviceMacMismatch = errors.New("himd: device MAC does not match expected value")
	ErrIcvMacMismatch    = errors.New("himd: ICV MAC does not match expected value")
	ErrEkbMismatch       = errors.New("himd: device reported an unexpected EKB id")

	// Crypto provider
	ErrProviderBusy = errors.New("himd: crypto provider is already in use")

	// Capability
	ErrUnsupportedOperation = errors.New("himd: operation not supported by this driver")
)
