package flv

import (
	"bytes"
	"testing"

	"github.com/ossrs/flvgo-remux/amf0"
	"github.com/ossrs/flvgo-remux/track"
	"github.com/stretchr/testify/require"
)

// flvHeader builds the 9-byte fixed FLV header (data_offset pinned at
// the minimum of 9) plus the leading 4-byte PreviousTagSize0.
func flvHeader(hasVideo, hasAudio bool) []byte {
	var flags byte
	if hasVideo {
		flags |= 0x01
	}
	if hasAudio {
		flags |= 0x04
	}
	h := []byte{'F', 'L', 'V', 1, flags, 0, 0, 0, 9}
	return append(h, 0, 0, 0, 0)
}

// flvTag packs one FLV tag: 11-byte header, body, 4-byte PrevTagSize trailer.
func flvTag(tagType TagType, timestamp uint32, body []byte) []byte {
	size := len(body)
	tag := []byte{
		byte(tagType),
		byte(size >> 16), byte(size >> 8), byte(size),
		byte(timestamp >> 16), byte(timestamp >> 8), byte(timestamp), byte(timestamp >> 24),
		0, 0, 0,
	}
	tag = append(tag, body...)

	total := uint32(11 + size)
	return append(tag, byte(total>>24), byte(total>>16), byte(total>>8), byte(total))
}

// aacAudioTag packs an FLV AudioTagHeader (SoundFormat=AAC, 44kHz/16-bit/
// stereo flags, arbitrary since the demuxer only inspects SoundFormat)
// followed by the AACPacketType byte and payload.
func aacAudioTag(trait AACFrameTrait, payload []byte) []byte {
	body := []byte{byte(AudioCodecAAC)<<4 | 0x0f, byte(trait)}
	return append(body, payload...)
}

// buildOnMetaData constructs a script-data tag body: the "onMetaData"
// name followed by an ECMA array of properties, using the amf0
// package's own marshaling rather than hand-rolled bytes.
func buildOnMetaData(t *testing.T) []byte {
	t.Helper()

	name, err := amf0.NewString("onMetaData").MarshalBinary()
	require.NoError(t, err)

	props := amf0.NewEcmaArray()
	props.Set("hasAudio", amf0.NewBoolean(true))
	props.Set("hasVideo", amf0.NewBoolean(false))
	props.Set("duration", amf0.NewNumber(12.5))

	propBytes, err := props.MarshalBinary()
	require.NoError(t, err)

	return append(name, propBytes...)
}

// buildAudioOnlyStream hand-assembles an audio-only FLV: onMetaData,
// an AAC sequence header (ASC: ObjectType=LC, 44kHz, stereo), then two
// raw AAC frames.
func buildAudioOnlyStream(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(flvHeader(false, true))
	buf.Write(flvTag(TagTypeScriptData, 0, buildOnMetaData(t)))
	buf.Write(flvTag(TagTypeAudio, 0, aacAudioTag(AACFrameTraitSequenceHeader, []byte{0x12, 0x10})))
	buf.Write(flvTag(TagTypeAudio, 1024, aacAudioTag(AACFrameTraitRaw, []byte{0x01, 0x02})))
	buf.Write(flvTag(TagTypeAudio, 2048, aacAudioTag(AACFrameTraitRaw, []byte{0x03, 0x04})))
	return buf.Bytes()
}

func TestStatefulDemuxerRunAudioOnlyStream(t *testing.T) {
	stream := buildAudioOnlyStream(t)

	d := NewStatefulDemuxer(StatefulConfig{})

	var gotMeta *track.Meta
	var metaCalls int
	d.OnTrackMetadata = func(m *track.Meta) {
		metaCalls++
		gotMeta = m
	}

	var lastInfo MediaInfo
	var mediaInfoCalls int
	d.OnMediaInfo = func(mi *MediaInfo) {
		mediaInfoCalls++
		lastInfo = *mi
	}

	var dataCalls int
	var gotSampleCount int
	var gotDTS []int64
	d.OnDataAvailable = func(audioTrack, videoTrack *track.Track) {
		dataCalls++
		gotSampleCount = len(audioTrack.Samples)
		for _, s := range audioTrack.Samples {
			gotDTS = append(gotDTS, s.DTS)
		}
	}

	var errs []string
	d.OnError = func(code, msg string) {
		errs = append(errs, code+": "+msg)
	}

	err := d.Run(bytes.NewReader(stream))
	require.NoError(t, err)
	require.Empty(t, errs)

	require.Equal(t, 1, metaCalls)
	require.NotNil(t, gotMeta)
	require.Equal(t, track.KindAudio, gotMeta.Kind)
	require.Equal(t, "mp4a.40.2", gotMeta.Codec)
	require.Equal(t, 44100, gotMeta.AudioSampleRate)
	require.Equal(t, 2, gotMeta.ChannelCount)

	// onMetaData declares hasVideo=false, so the media info becomes
	// complete as soon as the audio sequence header lands — onMetaData
	// (processed before it) leaves the summary incomplete and fires
	// nothing, and the sequence header fires the first OnMediaInfo.
	require.GreaterOrEqual(t, mediaInfoCalls, 1)
	require.True(t, lastInfo.HasAudio)
	require.False(t, lastInfo.HasVideo)
	require.Equal(t, "mp4a.40.2", lastInfo.AudioCodec)
	require.Equal(t, 44100, lastInfo.AudioSampleRate)
	require.Equal(t, 2, lastInfo.AudioChannelCount)
	require.Equal(t, 12.5, lastInfo.Duration)
	require.True(t, lastInfo.IsComplete())

	// Run only drains once, at EOF, so both raw AAC samples arrive in a
	// single OnDataAvailable call.
	require.Equal(t, 1, dataCalls)
	require.Equal(t, 2, gotSampleCount)
	require.Equal(t, []int64{1024, 2048}, gotDTS)
}

func TestStatefulDemuxerReportsUnsupportedAudioCodec(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(flvHeader(false, true))
	// SoundFormat nibble 4 == Nellymoser16kHz, unsupported by this demuxer.
	buf.Write(flvTag(TagTypeAudio, 0, []byte{0x4f, 0x00, 0x00}))

	d := NewStatefulDemuxer(StatefulConfig{})

	var errs []string
	d.OnError = func(code, msg string) {
		errs = append(errs, code)
	}

	err := d.Run(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, []string{"CODEC_UNSUPPORTED"}, errs)
}

func TestStatefulDemuxerRawFrameBeforeSequenceHeaderErrors(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(flvHeader(false, true))
	buf.Write(flvTag(TagTypeAudio, 0, aacAudioTag(AACFrameTraitRaw, []byte{0x01, 0x02})))

	d := NewStatefulDemuxer(StatefulConfig{})

	var errs []string
	d.OnError = func(code, msg string) {
		errs = append(errs, code)
	}

	err := d.Run(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, []string{"FORMAT_ERROR"}, errs)
}

func TestStatefulDemuxerProbeRejectsBadSignature(t *testing.T) {
	d := NewStatefulDemuxer(StatefulConfig{})
	err := d.Run(bytes.NewReader(make([]byte, 13)))
	require.ErrorIs(t, err, errSignature)
}

func TestStatefulDemuxerHonorsNonDefaultDataOffset(t *testing.T) {
	// data_offset = 13 instead of the minimum 9: 4 extra padding bytes
	// between the fixed header and PreviousTagSize0, which the demuxer
	// must skip without trying to interpret them as a tag.
	header := []byte{'F', 'L', 'V', 1, 0x04, 0x00, 0x00, 0x00, 13}
	padding := []byte{0xde, 0xad, 0xbe, 0xef}
	prevTagSize0 := []byte{0, 0, 0, 0}

	var buf bytes.Buffer
	buf.Write(header)
	buf.Write(padding)
	buf.Write(prevTagSize0)
	buf.Write(flvTag(TagTypeScriptData, 0, buildOnMetaData(t)))
	buf.Write(flvTag(TagTypeAudio, 0, aacAudioTag(AACFrameTraitSequenceHeader, []byte{0x12, 0x10})))
	buf.Write(flvTag(TagTypeAudio, 1024, aacAudioTag(AACFrameTraitRaw, []byte{0x01, 0x02})))

	d := NewStatefulDemuxer(StatefulConfig{})

	var gotSampleCount int
	d.OnDataAvailable = func(audioTrack, videoTrack *track.Track) {
		gotSampleCount = len(audioTrack.Samples)
	}

	var errs []string
	d.OnError = func(code, msg string) {
		errs = append(errs, code)
	}

	err := d.Run(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Equal(t, 1, gotSampleCount)
}

func TestStatefulDemuxerParseChunksAcrossPartialBoundaries(t *testing.T) {
	stream := buildAudioOnlyStream(t)

	d := NewStatefulDemuxer(StatefulConfig{})

	var gotDTS []int64
	d.OnDataAvailable = func(audioTrack, videoTrack *track.Track) {
		for _, s := range audioTrack.Samples {
			gotDTS = append(gotDTS, s.DTS)
		}
	}

	var errs []string
	d.OnError = func(code, msg string) {
		errs = append(errs, code)
	}

	// Feed the stream split at an arbitrary byte, well inside the
	// middle of a tag, to exercise ParseChunks' partial-consumption
	// and carry-over contract.
	split := len(stream) / 2
	pending := append([]byte{}, stream[:split]...)

	consumed, err := d.ParseChunks(pending, 0)
	require.NoError(t, err)
	byteStart := int64(consumed)
	pending = pending[consumed:]

	pending = append(pending, stream[split:]...)
	consumed, err = d.ParseChunks(pending, byteStart)
	require.NoError(t, err)
	pending = pending[consumed:]
	require.Empty(t, pending)

	d.Drain()

	require.Empty(t, errs)
	require.Equal(t, []int64{1024, 2048}, gotDTS)
}
