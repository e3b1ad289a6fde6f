// Package himdfs defines the filesystem interface the core library requires
// of its host (spec.md §6 "Filesystem interface") and a case-folding path
// resolver, since HiMD volumes are FAT and every lookup the core performs
// must be case-insensitive regardless of what the underlying filesystem
// does.
package himdfs

import (
	"io"

	"github.com/asivery/himd-js/himderr"
)

// OpenMode selects read-only or read-write access.
type OpenMode int

const (
	ReadOnly OpenMode = iota
	ReadWrite
)

// File is a seekable handle to one file on the volume.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
	Length() (int64, error)
}

// Region names a run of bytes to release back to the filesystem's free
// space, used by deleteTracks (spec.md §4.8) when an ATDATA range becomes
// unreachable.
type Region struct {
	Offset int64
	Length int64
}

// FileSystem is the external dependency the core requires for all disc I/O.
// Paths are case-insensitive; callers should route every lookup through
// Resolve before calling into a FileSystem so mixed-case fixtures and real
// FAT volumes behave identically.
//
// FreeFileRegions, Delete, Mkdir, and WipeDisc are optional: an
// implementation that doesn't support them should return
// himderr.ErrUnsupportedOperation.
type FileSystem interface {
	Open(path string, mode OpenMode) (File, error)
	List(path string) ([]string, error)
	Rename(oldPath, newPath string) error
	GetSize(path string) (int64, error)
	GetTotalSpace() (int64, error)

	FreeFileRegions(path string, regions []Region) error
	Delete(path string) error
	Mkdir(path string) error
	WipeDisc() error
}

// UnsupportedFileSystem can be embedded by a FileSystem implementation that
// only wants to provide the required methods; every optional method then
// reports himderr.ErrUnsupportedOperation automatically.
type UnsupportedFileSystem struct{}

func (UnsupportedFileSystem) FreeFileRegions(string, []Region) error { return unsupported() }
func (UnsupportedFileSystem) Delete(string) error                    { return unsupported() }
func (UnsupportedFileSystem) Mkdir(string) error                     { return unsupported() }
func (UnsupportedFileSystem) WipeDisc() error                        { return unsupported() }

func unsupported() error { return himderr.ErrUnsupportedOperation }
