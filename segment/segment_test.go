package segment

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func seg(beginDTS, endDTS int64) *Info {
	return &Info{
		OriginalBeginDTS: beginDTS,
		OriginalEndDTS:   endDTS,
		BeginDTS:         beginDTS,
		EndDTS:           endDTS,
		LastSample:       SampleInfo{DTS: endDTS},
	}
}

func TestListAppendAndLookupMonotonic(t *testing.T) {
	l := NewList("video")
	require.True(t, l.IsEmpty())

	l.Append(seg(0, 999))
	l.Append(seg(1000, 1999))
	l.Append(seg(2000, 2999))
	require.Equal(t, 3, l.Len())

	require.Nil(t, l.GetLastSegmentBefore(-5))

	got := l.GetLastSegmentBefore(500)
	require.NotNil(t, got)
	require.EqualValues(t, 0, got.OriginalBeginDTS)

	got = l.GetLastSegmentBefore(1500)
	require.NotNil(t, got)
	require.EqualValues(t, 1000, got.OriginalBeginDTS)

	got = l.GetLastSegmentBefore(2000)
	require.NotNil(t, got)
	require.EqualValues(t, 2000, got.OriginalBeginDTS)

	sample := l.GetLastSampleBefore(1500)
	require.NotNil(t, sample)
	require.EqualValues(t, 1999, sample.DTS)
}

func TestListAppendOutOfOrder(t *testing.T) {
	l := NewList("audio")
	l.Append(seg(2000, 2999))
	l.Append(seg(0, 999))
	l.Append(seg(1000, 1999))

	require.Equal(t, 3, l.Len())

	got := l.GetLastSegmentBefore(2500)
	require.NotNil(t, got)
	require.EqualValues(t, 2000, got.OriginalBeginDTS)

	got = l.GetLastSegmentBefore(500)
	require.NotNil(t, got)
	require.EqualValues(t, 0, got.OriginalBeginDTS)
}

func TestGetLastSyncPointBeforeSkipsEmptySegments(t *testing.T) {
	l := NewList("video")

	withSync := seg(0, 999)
	withSync.AppendSyncPoint(SampleInfo{DTS: 100})
	withSync.AppendSyncPoint(SampleInfo{DTS: 500})
	l.Append(withSync)

	l.Append(seg(1000, 1999)) // no sync points

	sp := l.GetLastSyncPointBefore(1500)
	require.NotNil(t, sp)
	require.EqualValues(t, 500, sp.DTS)
	require.True(t, sp.IsSyncPoint)
}

func TestGetLastSyncPointBeforeNoneFound(t *testing.T) {
	l := NewList("video")
	l.Append(seg(0, 999))

	require.Nil(t, l.GetLastSyncPointBefore(500))
}

func TestClear(t *testing.T) {
	l := NewList("video")
	l.Append(seg(0, 999))
	require.False(t, l.IsEmpty())

	l.Clear()
	require.True(t, l.IsEmpty())
	require.Equal(t, 0, l.Len())
}
