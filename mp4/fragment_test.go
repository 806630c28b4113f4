package mp4

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleFlagsEncode(t *testing.T) {
	f := SampleFlags{IsLeading: 1, DependsOn: 2, IsDependedOn: 1, HasRedundancy: 0, IsNonSync: 1}
	// is_leading(2)<<26 | depends_on(2)<<24 | is_depended_on(2)<<22 | has_redundancy(2)<<20 | non_sync(1)<<16
	want := uint32(1)<<26 | uint32(2)<<24 | uint32(1)<<22 | uint32(0)<<20 | uint32(1)<<16
	require.Equal(t, want, f.encode())
}

func TestMediaSegmentAudioLayout(t *testing.T) {
	samples := []Sample{
		{Duration: 1024, Size: 3, Data: []byte{0xAA, 0xBB, 0xCC}},
	}
	data := MediaSegment(2, 1, 1000, false, samples)

	// moof: header(8) + mfhd(16) + traf(tfhd16+tfdt16+trun36=68, +8 header=76) = 100
	require.Equal(t, 100+8+len(samples[0].Data), len(data))

	require.Equal(t, "moof", string(data[4:8]))
	require.Equal(t, "mfhd", string(data[12:16]))
	require.Equal(t, "traf", string(data[28:32]))
	require.Equal(t, "tfhd", string(data[36:40]))
	require.Equal(t, "tfdt", string(data[52:56]))
	require.Equal(t, "trun", string(data[68:72]))

	dataOffset := binary.BigEndian.Uint32(data[80:84])
	require.EqualValues(t, 108, dataOffset)

	mdatOffset := 100
	require.Equal(t, "mdat", string(data[mdatOffset+4:mdatOffset+8]))
	require.Equal(t, int(dataOffset), mdatOffset+8)
	require.Equal(t, []byte{0xAA, 0xBB, 0xCC}, data[dataOffset:])
}

func TestMediaSegmentVideoHasSdtp(t *testing.T) {
	samples := []Sample{
		{Duration: 40, Size: 2, Data: []byte{0x01, 0x02}, Flags: SampleFlags{IsNonSync: 0}},
	}
	data := MediaSegment(1, 1, 0, true, samples)

	found := false
	for i := 0; i+4 <= len(data); i++ {
		if string(data[i:i+4]) == "sdtp" {
			found = true
			break
		}
	}
	require.True(t, found, "video media segment must carry an sdtp box")
}

func TestMediaSegmentAudioHasNoSdtp(t *testing.T) {
	samples := []Sample{{Duration: 1024, Size: 1, Data: []byte{0x01}}}
	data := MediaSegment(2, 1, 0, false, samples)

	for i := 0; i+4 <= len(data); i++ {
		require.NotEqual(t, "sdtp", string(data[i:i+4]))
	}
}
