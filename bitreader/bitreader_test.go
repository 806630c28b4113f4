package bitreader

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBitsAcrossWordBoundary(t *testing.T) {
	// Five bytes forces fillCurrentWord to refill once mid-stream (the
	// reader only holds 4 bytes at a time). Read it back one byte at a
	// time and confirm nothing is dropped or reordered across the refill.
	in := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x42}
	r := New(in)

	for _, want := range in {
		got, err := r.ReadByte()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := r.ReadBits(1)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestReadByteAndBool(t *testing.T) {
	r := New([]byte{0x80, 0x01})

	b, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, b)

	require.NoError(t, r.SkipBits(7))

	v, err := r.ReadByte()
	require.NoError(t, err)
	require.EqualValues(t, 0x01, v)
}

func TestReadUEG(t *testing.T) {
	// ue(v)=0 is a single '1' bit; ue(v)=1 is '010'; ue(v)=2 is '011'.
	r := New([]byte{0b1_010_011_0})

	v0, err := r.ReadUEG()
	require.NoError(t, err)
	require.EqualValues(t, 0, v0)

	v1, err := r.ReadUEG()
	require.NoError(t, err)
	require.EqualValues(t, 1, v1)

	v2, err := r.ReadUEG()
	require.NoError(t, err)
	require.EqualValues(t, 2, v2)
}

func TestReadSEG(t *testing.T) {
	// se(v) mapping: ue=0->0, ue=1->1, ue=2->-1, ue=3->2, ue=4->-2.
	r := New([]byte{0b1_010_011_0, 0b00100_000})

	for _, want := range []int32{0, 1, -1} {
		v, err := r.ReadSEG()
		require.NoError(t, err)
		require.Equal(t, want, v)
	}
}

func TestReadBitsExhausted(t *testing.T) {
	r := New([]byte{0xff})
	_, err := r.ReadBits(8)
	require.NoError(t, err)

	_, err = r.ReadBits(1)
	require.ErrorIs(t, err, ErrExhausted)
}

func TestReadBitsExceeded(t *testing.T) {
	r := New([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	_, err := r.ReadBits(33)
	require.ErrorIs(t, err, ErrBitsExceeded)
}
