package id3

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIncludesRequestedFrames(t *testing.T) {
	out, err := Encode(Tags{Title: "Song", Album: "Album", Artist: "Artist"})
	require.NoError(t, err)

	assert.Equal(t, "ID3", string(out[0:3]))
	body := string(out)
	assert.Contains(t, body, "TIT2")
	assert.Contains(t, body, "TALB")
	assert.Contains(t, body, "TPE1")
	assert.Contains(t, body, "Song")
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	out, err := Encode(Tags{Title: "OnlyTitle"})
	require.NoError(t, err)

	body := string(out)
	assert.Contains(t, body, "TIT2")
	assert.NotContains(t, body, "TALB")
	assert.NotContains(t, body, "TPE1")
}
