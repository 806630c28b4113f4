package remux

import (
	"strings"
	"testing"

	"github.com/ossrs/flvgo-remux/track"
	"github.com/stretchr/testify/require"
)

func newAudioMeta() *track.Meta {
	return &track.Meta{
		Kind:              track.KindAudio,
		ID:                track.AudioTrackID,
		Timescale:         1000,
		RefSampleDuration: 1024,
		ChannelCount:      2,
		AudioSampleRate:   1000,
		Codec:             "mp4a.40.2",
		ASC:               []byte{0x12, 0x10},
	}
}

func newVideoMeta() *track.Meta {
	return &track.Meta{
		Kind:              track.KindVideo,
		ID:                track.VideoTrackID,
		Timescale:         1000,
		RefSampleDuration: 40,
		CodecWidth:        1280,
		CodecHeight:       720,
		PresentWidth:      1280,
		PresentHeight:     720,
		Codec:             "avc1.42001e",
		AVCC:              []byte{0x01, 0x42, 0x00, 0x1e, 0xff, 0xe1, 0x00, 0x00, 0x01, 0x00, 0x00},
	}
}

func containsBox(data []byte, fourcc string) bool {
	return strings.Contains(string(data), fourcc)
}

func TestOnTrackMetadataEmitsInitSegmentForVideo(t *testing.T) {
	r := New(Config{})

	var gotKind string
	var gotSeg InitSegment
	r.OnInitSegment = func(kind string, seg InitSegment) {
		gotKind = kind
		gotSeg = seg
	}

	r.OnTrackMetadata(newVideoMeta())

	require.Equal(t, "video", gotKind)
	require.Equal(t, "avc1.42001e", gotSeg.Codec)
	require.True(t, containsBox(gotSeg.Data, "ftyp"))
	require.True(t, containsBox(gotSeg.Data, "moov"))
}

func TestOnTrackMetadataMP3SkipsInitSegmentData(t *testing.T) {
	r := New(Config{})

	var gotSeg InitSegment
	r.OnInitSegment = func(kind string, seg InitSegment) {
		gotSeg = seg
	}

	meta := newAudioMeta()
	meta.IsMP3 = true
	r.OnTrackMetadata(meta)

	require.Nil(t, gotSeg.Data)
	require.Equal(t, "audio/mpeg", gotSeg.Container)
}

func TestRemuxVideoStashesLastSampleAndComputesDurations(t *testing.T) {
	r := New(Config{})
	r.OnTrackMetadata(newVideoMeta())

	var segments []MediaSegment
	r.OnMediaSegment = func(kind string, seg MediaSegment) {
		segments = append(segments, seg)
	}

	videoTrack := &track.Track{Kind: track.KindVideo, ID: track.VideoTrackID}
	videoTrack.Push(track.Sample{DTS: 0, PTS: 0, IsKeyframe: true})
	videoTrack.Push(track.Sample{DTS: 40, PTS: 40})
	videoTrack.Push(track.Sample{DTS: 80, PTS: 80})

	audioTrack := &track.Track{Kind: track.KindAudio, ID: track.AudioTrackID}

	r.Remux(audioTrack, videoTrack)

	require.Len(t, segments, 1)
	seg := segments[0]
	require.Equal(t, "video", seg.Kind)
	require.Equal(t, 2, seg.SampleCount)
	require.EqualValues(t, 0, seg.Info.BeginDTS)
	require.EqualValues(t, 80, seg.Info.EndDTS)
	require.Len(t, seg.Info.SyncPoints, 1)
	require.True(t, containsBox(seg.Data, "moof"))
	require.True(t, containsBox(seg.Data, "mdat"))

	// The third sample was stashed for the next batch, not emitted yet.
	require.NotNil(t, r.videoStashed)
	require.EqualValues(t, 80, r.videoStashed.DTS)
}

func TestRemuxAudioNonMP3DurationFromRefSampleDuration(t *testing.T) {
	r := New(Config{})
	r.OnTrackMetadata(newAudioMeta())

	var segments []MediaSegment
	r.OnMediaSegment = func(kind string, seg MediaSegment) {
		segments = append(segments, seg)
	}

	audioTrack := &track.Track{Kind: track.KindAudio, ID: track.AudioTrackID}
	audioTrack.Push(track.Sample{DTS: 0, PTS: 0, Data: []byte{0x01}})
	audioTrack.Push(track.Sample{DTS: 1024, PTS: 1024, Data: []byte{0x02}})
	audioTrack.Push(track.Sample{DTS: 2048, PTS: 2048, Data: []byte{0x03}})

	videoTrack := &track.Track{Kind: track.KindVideo, ID: track.VideoTrackID}

	r.Remux(audioTrack, videoTrack)

	require.Len(t, segments, 1)
	seg := segments[0]
	require.Equal(t, "audio", seg.Kind)
	require.Equal(t, 2, seg.SampleCount)
	require.EqualValues(t, 0, seg.Info.BeginDTS)
	require.EqualValues(t, 2048, seg.Info.EndDTS)

	require.NotNil(t, r.audioStashed)
	require.EqualValues(t, 2048, r.audioStashed.DTS)
}

func TestFlushStashedSamplesEmitsRemainder(t *testing.T) {
	r := New(Config{})
	r.OnTrackMetadata(newVideoMeta())

	var segments []MediaSegment
	r.OnMediaSegment = func(kind string, seg MediaSegment) {
		segments = append(segments, seg)
	}

	videoTrack := &track.Track{Kind: track.KindVideo, ID: track.VideoTrackID}
	videoTrack.Push(track.Sample{DTS: 0, PTS: 0, IsKeyframe: true})
	videoTrack.Push(track.Sample{DTS: 40, PTS: 40})
	videoTrack.Push(track.Sample{DTS: 80, PTS: 80})

	audioTrack := &track.Track{Kind: track.KindAudio, ID: track.AudioTrackID}

	r.Remux(audioTrack, videoTrack)
	require.Len(t, segments, 1)
	require.Equal(t, 2, segments[0].SampleCount)

	// The third sample (DTS 80) was stashed by the first batch; flushing
	// must emit it as its own one-sample segment continuing from DTS 80.
	r.FlushStashedSamples()
	require.Len(t, segments, 2)
	require.Equal(t, 1, segments[1].SampleCount)
	require.EqualValues(t, 80, segments[1].Info.BeginDTS)
	require.EqualValues(t, 120, segments[1].Info.EndDTS)
}

func TestDestroyClearsState(t *testing.T) {
	r := New(Config{})
	r.OnTrackMetadata(newVideoMeta())
	require.NotNil(t, r.videoMeta)

	r.Destroy()
	require.Nil(t, r.videoMeta)
	require.False(t, r.dtsBaseInited)
	require.Nil(t, r.OnInitSegment)
	require.Nil(t, r.OnMediaSegment)
}
