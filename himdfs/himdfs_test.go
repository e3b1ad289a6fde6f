package himdfs

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFSWriteReadRoundTrip(t *testing.T) {
	fs := NewMemFS()

	w, err := fs.Open("/HMDHIFI/TRKIDX01.HMA", ReadWrite)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := fs.Open("/HMDHIFI/TRKIDX01.HMA", ReadOnly)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestMemFSListPreservesCaseAndIsScoped(t *testing.T) {
	fs := NewMemFS()
	fs.Put("/HMDHIFI/atdata01.hma", []byte{1})
	fs.Put("/HMDHIFI/TRKIDX01.HMA", []byte{2})
	fs.Put("/OTHERDIR/FILE.BIN", []byte{3})

	entries, err := fs.List("/HMDHIFI")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"atdata01.hma", "TRKIDX01.HMA"}, entries)
}

func TestResolveFindsCaseInsensitiveMatch(t *testing.T) {
	fs := NewMemFS()
	fs.Put("/HmdHiFi/AtData01.Hma", []byte{1})

	got, err := Resolve(fs, "/hmdhifi/atdata01.hma")
	require.NoError(t, err)
	assert.Equal(t, "/HmdHiFi/AtData01.Hma", got)
}

func TestResolveMissingPathReturnsInputUnchanged(t *testing.T) {
	fs := NewMemFS()
	got, err := Resolve(fs, "/nope/nothing.bin")
	require.NoError(t, err)
	assert.Equal(t, "/nope/nothing.bin", got)
}

func TestMemFSRenameAndDelete(t *testing.T) {
	fs := NewMemFS()
	fs.Put("/A.BIN", []byte{9, 9})

	require.NoError(t, fs.Rename("/A.BIN", "/B.BIN"))
	_, ok := fs.Get("/A.BIN")
	assert.False(t, ok)
	b, ok := fs.Get("/B.BIN")
	require.True(t, ok)
	assert.Equal(t, []byte{9, 9}, b)

	require.NoError(t, fs.Delete("/B.BIN"))
	_, ok = fs.Get("/B.BIN")
	assert.False(t, ok)
}

func TestMemFSReadOnlyWriteRejected(t *testing.T) {
	fs := NewMemFS()
	fs.Put("/X.BIN", []byte{1})

	f, err := fs.Open("/X.BIN", ReadOnly)
	require.NoError(t, err)
	_, err = f.Write([]byte{2})
	assert.Error(t, err)
}
