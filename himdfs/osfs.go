package himdfs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// OSFileSystem adapts a HiMD volume already mounted as an ordinary
// directory tree (e.g. the USB mass-storage mount point a real player
// exposes) onto the FileSystem interface.
type OSFileSystem struct {
	Root string
}

// NewOSFileSystem returns a FileSystem rooted at an already-mounted HiMD
// volume directory.
func NewOSFileSystem(root string) *OSFileSystem {
	return &OSFileSystem{Root: root}
}

func (fs *OSFileSystem) native(path string) string {
	return filepath.Join(fs.Root, filepath.FromSlash(path))
}

func (fs *OSFileSystem) Open(path string, mode OpenMode) (File, error) {
	flag := os.O_RDONLY
	if mode == ReadWrite {
		flag = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(fs.native(path), flag, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "himdfs: opening %s", path)
	}
	return &osFile{f: f}, nil
}

type osFile struct{ f *os.File }

func (o *osFile) Read(p []byte) (int, error)                  { return o.f.Read(p) }
func (o *osFile) Write(p []byte) (int, error)                 { return o.f.Write(p) }
func (o *osFile) Seek(offset int64, whence int) (int64, error) { return o.f.Seek(offset, whence) }
func (o *osFile) Close() error                                { return o.f.Close() }
func (o *osFile) Length() (int64, error) {
	info, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (fs *OSFileSystem) List(path string) ([]string, error) {
	entries, err := os.ReadDir(fs.native(path))
	if err != nil {
		return nil, errors.Wrapf(err, "himdfs: listing %s", path)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (fs *OSFileSystem) Rename(oldPath, newPath string) error {
	return os.Rename(fs.native(oldPath), fs.native(newPath))
}

func (fs *OSFileSystem) GetSize(path string) (int64, error) {
	info, err := os.Stat(fs.native(path))
	if err != nil {
		return 0, errors.Wrapf(err, "himdfs: stat %s", path)
	}
	return info.Size(), nil
}

func (fs *OSFileSystem) GetTotalSpace() (int64, error) {
	return 0, unsupported()
}

// FreeFileRegions is a no-op for a plain OS filesystem: a mounted volume's
// allocator is the OS's, not this library's, to manage.
func (fs *OSFileSystem) FreeFileRegions(path string, regions []Region) error { return nil }

func (fs *OSFileSystem) Delete(path string) error {
	return os.Remove(fs.native(path))
}

func (fs *OSFileSystem) Mkdir(path string) error {
	return os.MkdirAll(fs.native(path), 0o755)
}

func (fs *OSFileSystem) WipeDisc() error {
	return unsupported()
}
