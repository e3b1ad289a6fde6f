package himdfs

import (
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// MemFS is an in-memory FileSystem used by tests and by callers without a
// real device attached (e.g. operating on a disc image already pulled onto
// local disk).
type MemFS struct {
	mu    sync.Mutex
	files map[string]*entry // keyed by normalized path
}

type entry struct {
	original string // path as first written, case preserved
	data     []byte
}

// NewMemFS builds an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{files: map[string]*entry{}}
}

func normalize(p string) string {
	return strings.ToUpper(canon(p))
}

// canon rewrites backslashes to forward slashes and strips a leading slash,
// without changing case or length, so normalize(p) and canon(p) stay
// index-aligned for List's casing-preserving lookups.
func canon(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
}

// Put seeds a file, for test fixtures.
func (m *MemFS) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[normalize(path)] = &entry{original: canon(path), data: append([]byte(nil), data...)}
}

// Get returns a file's current contents, for test assertions.
func (m *MemFS) Get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.files[normalize(path)]
	if !ok {
		return nil, false
	}
	return e.data, true
}

type memFile struct {
	fs   *MemFS
	key  string
	orig string
	data []byte
	pos  int64
	mode OpenMode
}

func (m *MemFS) Open(path string, mode OpenMode) (File, error) {
	key := normalize(path)
	m.mu.Lock()
	e, ok := m.files[key]
	m.mu.Unlock()

	orig := canon(path)
	var data []byte
	if ok {
		data = append([]byte(nil), e.data...)
		orig = e.original
	} else if mode == ReadOnly {
		return nil, errors.Errorf("himdfs: %s not found", path)
	}
	return &memFile{fs: m, key: key, orig: orig, data: data, mode: mode}, nil
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += int64(n)
	return n, nil
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.mode == ReadOnly {
		return 0, errors.New("himdfs: file is opened read-only")
	}
	end := f.pos + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *memFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = f.pos
	case io.SeekEnd:
		base = int64(len(f.data))
	}
	f.pos = base + offset
	return f.pos, nil
}

func (f *memFile) Close() error {
	if f.mode == ReadWrite {
		f.fs.mu.Lock()
		f.fs.files[f.key] = &entry{original: f.orig, data: f.data}
		f.fs.mu.Unlock()
	}
	return nil
}

func (f *memFile) Length() (int64, error) {
	return int64(len(f.data)), nil
}

// List returns the immediate children of dir, cased exactly as they were
// first written.
func (m *MemFS) List(dir string) ([]string, error) {
	prefix := normalize(dir)
	if prefix != "" {
		prefix += "/"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[string]bool{}
	var out []string
	for k, e := range m.files {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		origRest := e.original[len(prefix):]
		if i := strings.IndexByte(origRest, '/'); i >= 0 {
			origRest = origRest[:i]
		}
		if origRest != "" && !seen[strings.ToUpper(origRest)] {
			seen[strings.ToUpper(origRest)] = true
			out = append(out, origRest)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemFS) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldKey, newKey := normalize(oldPath), normalize(newPath)
	e, ok := m.files[oldKey]
	if !ok {
		return errors.Errorf("himdfs: %s not found", oldPath)
	}
	delete(m.files, oldKey)
	m.files[newKey] = &entry{original: canon(newPath), data: e.data}
	return nil
}

func (m *MemFS) GetSize(path string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.files[normalize(path)]
	if !ok {
		return 0, errors.Errorf("himdfs: %s not found", path)
	}
	return int64(len(e.data)), nil
}

func (m *MemFS) GetTotalSpace() (int64, error) {
	return 1 << 30, nil
}

func (m *MemFS) FreeFileRegions(path string, regions []Region) error {
	return nil // in-memory backing has no allocator to reclaim space from
}

func (m *MemFS) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := normalize(path)
	if _, ok := m.files[key]; !ok {
		return errors.Errorf("himdfs: %s not found", path)
	}
	delete(m.files, key)
	return nil
}

func (m *MemFS) Mkdir(path string) error {
	return nil // directories are implicit in the flat key space
}

func (m *MemFS) WipeDisc() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = map[string]*entry{}
	return nil
}
