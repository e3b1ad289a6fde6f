package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupKnownDevice(t *testing.T) {
	d, ok := Lookup(0x054C, 0x0187)
	assert.True(t, ok)
	assert.Equal(t, "Sony MZ-RH1", d.Name)
}

func TestLookupUnknownDevice(t *testing.T) {
	_, ok := Lookup(0x1234, 0x5678)
	assert.False(t, ok)
}
