package h264

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEBSPToRBSP(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"no escapes", []byte{0x67, 0x42, 0x00, 0x1e}, []byte{0x67, 0x42, 0x00, 0x1e}},
		{"strips 00 00 03 00", []byte{0x00, 0x00, 0x03, 0x00}, []byte{0x00, 0x00, 0x00}},
		{"strips 00 00 03 01", []byte{0x00, 0x00, 0x03, 0x01}, []byte{0x00, 0x00, 0x01}},
		{"leaves 00 00 02 unescaped", []byte{0x00, 0x00, 0x02}, []byte{0x00, 0x00, 0x02}},
		{"only strips emulation byte itself, not a following literal 03", []byte{0x00, 0x00, 0x03, 0x03}, []byte{0x00, 0x00, 0x03}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, EBSPToRBSP(c.in))
		})
	}
}

func TestIsHighProfile(t *testing.T) {
	require.True(t, isHighProfile(100)) // High
	require.True(t, isHighProfile(110)) // High10
	require.False(t, isHighProfile(66)) // Baseline
	require.False(t, isHighProfile(77)) // Main
}

func TestParseSPSTooShort(t *testing.T) {
	_, err := ParseSPS([]byte{0x67, 0x42})
	require.Error(t, err)
}
