package abi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPinTable_Window(t *testing.T) {
	pins := newPinTable(1024)
	buf := []byte("0123456789abcdef")
	require.True(t, pins.add(4096, buf))

	tests := []struct {
		name   string
		offset uint32
		n      uint32
		want   string
		ok     bool
	}{
		{name: "whole buffer", offset: 4096, n: 16, want: "0123456789abcdef", ok: true},
		{name: "prefix", offset: 4096, n: 4, want: "0123", ok: true},
		{name: "interior", offset: 4100, n: 6, want: "456789", ok: true},
		{name: "suffix", offset: 4108, n: 8, want: "89abcdef", ok: true},
		{name: "past end", offset: 4100, n: 13},
		{name: "longer than buffer", offset: 4096, n: 17},
		{name: "before buffer", offset: 4090, n: 8},
		{name: "unpinned", offset: 8192, n: 1},
		{name: "wraps address space", offset: 0xFFFFFFF0, n: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pins.window(tt.offset, tt.n)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, string(got))
			}
		})
	}
}

func TestPinTable_WindowAliasesBuffer(t *testing.T) {
	pins := newPinTable(1024)
	buf := make([]byte, 8)
	require.True(t, pins.add(64, buf))

	w, ok := pins.window(66, 3)
	require.True(t, ok)
	copy(w, "abc")
	assert.Equal(t, []byte{0, 0, 'a', 'b', 'c', 0, 0, 0}, buf)
	assert.Equal(t, 3, cap(w), "window must not reach past the region")
}

func TestPinTable_LimitAndRemove(t *testing.T) {
	pins := newPinTable(32)

	assert.True(t, pins.fits(32))
	require.True(t, pins.add(8, make([]byte, 24)))
	assert.False(t, pins.fits(9))
	assert.False(t, pins.add(64, make([]byte, 9)), "exceeds limit")

	count, total := pins.stats()
	assert.Equal(t, 1, count)
	assert.Equal(t, 24, total)

	pins.remove(8)
	pins.remove(8)
	pins.remove(12345)

	count, total = pins.stats()
	assert.Zero(t, count)
	assert.Zero(t, total)

	_, ok := pins.window(8, 1)
	assert.False(t, ok, "released buffer is no longer addressable")
}

// pinnedMemory exposes a pinTable as a Memory, the way LinearMemory does
// inside the guest.
type pinnedMemory struct{ pins *pinTable }

func (m pinnedMemory) Read(offset, n uint32) ([]byte, bool) { return m.pins.window(offset, n) }

func (m pinnedMemory) Write(offset uint32, v []byte) bool {
	dst, ok := m.pins.window(offset, uint32(len(v)))
	if ok {
		copy(dst, v)
	}
	return ok
}

func TestNewView_RejectsUnpinnedRegion(t *testing.T) {
	pins := newPinTable(1024)
	require.True(t, pins.add(256, make([]byte, 16)))
	mem := pinnedMemory{pins: pins}

	_, err := NewView(mem, 0xFFFFFFF0, 16)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = NewView(mem, 260, 16)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	view, err := NewView(mem, 256, 16)
	require.NoError(t, err)
	n, err := view.Put([]byte("cid"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
