package flv

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/ossrs/flvgo-remux/aac"
	"github.com/ossrs/flvgo-remux/amf0"
	"github.com/ossrs/flvgo-remux/h264"
	"github.com/ossrs/flvgo-remux/logger"
	"github.com/ossrs/flvgo-remux/metrics"
	"github.com/ossrs/flvgo-remux/remux"
	"github.com/ossrs/flvgo-remux/track"
)

// StatefulConfig carries the spec.md §6 options relevant to demuxing.
type StatefulConfig struct {
	EnableConstVideoView bool
	ConstVideoViewWidth  uint32
	ConstVideoViewHeight uint32
}

// StatefulDemuxer turns a sequence of FLV tags into track samples and
// codec metadata, mirroring the original demuxer's tag dispatch and
// onMetaData/sequence-header bookkeeping on top of this package's
// Probe and tag-header parsing.
type StatefulDemuxer struct {
	cfg StatefulConfig

	hasAudio, hasVideo                            bool
	hasAudioFlagOverrided, hasVideoFlagOverrided  bool

	audioMeta, videoMeta            *track.Meta
	audioMetaDispatched             bool
	videoMetaDispatched             bool
	lastVideoWidth, lastVideoHeight uint32
	naluLengthSize                  int

	audioTrack track.Track
	videoTrack track.Track

	currentTagStart int64

	probed            bool
	aligned           bool
	dataOffset        int64
	mediaInfoComplete bool

	audioBitrate       *remux.BitrateSampler
	videoBitrate       *remux.BitrateSampler
	lastBitrateSampled time.Time

	info MediaInfo

	// OnError reports a non-fatal decode problem; code is one of the
	// metrics package's error taxonomy constants.
	OnError func(code, msg string)
	// OnMediaInfo fires once the running stream summary becomes
	// complete, and again on every later onMetaData tag or sequence
	// header that updates it.
	OnMediaInfo func(*MediaInfo)
	// OnTrackMetadata fires once per track as soon as its sequence
	// header (AAC AudioSpecificConfig, AVCDecoderConfigurationRecord,
	// or the first MP3 frame) has been parsed. A repeated AAC sequence
	// header with an unchanged config is ignored; one with a different
	// config fires it again. Later AVC sequence headers never re-fire
	// it (see OnVideoResolutionChanged).
	OnTrackMetadata func(*track.Meta)
	// OnDataAvailable hands off whatever samples have accumulated since
	// the last call, once both declared tracks have dispatched metadata.
	OnDataAvailable func(audioTrack, videoTrack *track.Track)
	// OnVideoResolutionChanged fires when a later AVC sequence header
	// reports different codec dimensions than the first one did.
	OnVideoResolutionChanged func(width, height uint32)
}

// NewStatefulDemuxer creates a demuxer ready to consume tags via Run or ParseTag.
func NewStatefulDemuxer(cfg StatefulConfig) *StatefulDemuxer {
	return &StatefulDemuxer{
		cfg:          cfg,
		audioTrack:   track.Track{Kind: track.KindAudio, ID: track.AudioTrackID},
		videoTrack:   track.Track{Kind: track.KindVideo, ID: track.VideoTrackID},
		audioBitrate: remux.NewBitrateSampler("audio"),
		videoBitrate: remux.NewBitrateSampler("video"),
	}
}

// Run consumes a whole FLV stream from r, dispatching samples and
// metadata through the demuxer's callbacks until EOF. It reads the
// stream into memory and feeds it to ParseChunks as a single chunk;
// callers that receive FLV bytes incrementally (e.g. over a network
// connection) should call ParseChunks directly instead.
func (d *StatefulDemuxer) Run(r io.Reader) error {
	buf, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("flv: read stream, %w", err)
	}

	consumed, err := d.ParseChunks(buf, 0)
	if err != nil {
		return err
	}
	if consumed < len(buf) {
		return fmt.Errorf("flv: %d trailing bytes could not be parsed", len(buf)-consumed)
	}

	d.drain()
	return nil
}

// ParseChunks feeds one arrival of bytes to the demuxer. byteStart is
// the absolute offset of chunk[0] in the overall stream, used to tag
// keyframe samples with their file position. ParseChunks returns how
// many leading bytes of chunk it consumed; the caller must retain
// chunk[consumed:] and prepend it to the next chunk it feeds in. A
// return of consumed==0, err==nil means chunk doesn't yet hold enough
// bytes to make progress (an incomplete header or a partial tag).
//
// The first call probes the fixed FLV header (refer to @doc
// video_file_format_spec_v10.pdf, @page 8, @section The FLV header)
// and aligns past any encoder-specific header padding and the leading
// PreviousTagSize0, then every call parses as many whole tags as the
// chunk holds.
func (d *StatefulDemuxer) ParseChunks(chunk []byte, byteStart int64) (consumed int, err error) {
	if !d.probed {
		pr, perr := Probe(chunk)
		if perr == errHeaderIncomplete {
			return 0, nil
		}
		if perr != nil {
			return 0, perr
		}
		d.probed = true
		d.Begin(pr.HasVideo, pr.HasAudio)
		d.dataOffset = pr.DataOffset
		consumed = pr.Consumed
	}

	if !d.aligned {
		skip := int(d.dataOffset) - 9
		need := consumed + skip + 4
		if len(chunk) < need {
			return consumed, nil
		}
		consumed += skip

		prevTagSize0 := binary.BigEndian.Uint32(chunk[consumed : consumed+4])
		if prevTagSize0 != 0 {
			logger.Wf(nil, "flv: PreviousTagSize0 is %d, want 0", prevTagSize0)
		}
		consumed += 4
		d.aligned = true
	}

	for {
		remaining := chunk[consumed:]
		if len(remaining) < 11 {
			break
		}

		th := parseTagHeader(remaining)
		total := 11 + int(th.DataSize) + 4
		if len(remaining) < total {
			break
		}

		if th.StreamID != 0 {
			logger.Wf(nil, "flv: tag stream_id is %d, want 0", th.StreamID)
		}

		body := remaining[11 : 11+th.DataSize]
		d.currentTagStart = byteStart + int64(consumed)
		if terr := d.ParseTag(th.Type, th.Timestamp, body); terr != nil {
			d.reportError(metrics.CodeFormatError, terr)
		}

		prevTagSize := binary.BigEndian.Uint32(remaining[11+th.DataSize : total])
		if prevTagSize != 11+th.DataSize {
			logger.Wf(nil, "flv: PrevTagSize is %d, want %d", prevTagSize, 11+th.DataSize)
		}

		consumed += total
		d.maybeSampleBitrate()
	}

	return consumed, nil
}

// Begin records the header's hasAudio/hasVideo flags. onMetaData may
// override either flag later; Run calls this automatically.
func (d *StatefulDemuxer) Begin(hasVideo, hasAudio bool) {
	d.hasVideo = hasVideo
	d.hasAudio = hasAudio
	d.info.HasVideo = hasVideo
	d.info.HasAudio = hasAudio
}

// ParseTag dispatches one FLV tag by type. Callers driving their own
// read loop (rather than Run) call this directly per tag, then Drain
// once they're ready to hand off whatever has accumulated.
func (d *StatefulDemuxer) ParseTag(tagType TagType, timestamp uint32, tag []byte) error {
	switch tagType {
	case TagTypeScriptData:
		return d.parseScriptData(tag)
	case TagTypeAudio:
		d.audioBitrate.AddBytes(len(tag))
		return d.parseAudioData(timestamp, tag)
	case TagTypeVideo:
		d.videoBitrate.AddBytes(len(tag))
		return d.parseVideoData(timestamp, tag)
	default:
		return nil
	}
}

// Drain hands off whatever samples have accumulated since the last
// call, but only once every declared track has dispatched its
// metadata — matching the original's gated initial dispatch.
func (d *StatefulDemuxer) Drain() {
	d.drain()
}

func (d *StatefulDemuxer) drain() {
	if !d.isInitialMetadataDispatched() {
		return
	}
	if d.audioTrack.Length == 0 && d.videoTrack.Length == 0 {
		return
	}
	if d.OnDataAvailable != nil {
		d.OnDataAvailable(&d.audioTrack, &d.videoTrack)
	}
	d.audioTrack.Reset()
	d.videoTrack.Reset()
}

func (d *StatefulDemuxer) isInitialMetadataDispatched() bool {
	if d.hasVideo && !d.videoMetaDispatched {
		return false
	}
	if d.hasAudio && !d.audioMetaDispatched {
		return false
	}
	return true
}

func (d *StatefulDemuxer) maybeSampleBitrate() {
	now := time.Now()
	if now.Sub(d.lastBitrateSampled) < time.Second {
		return
	}
	d.lastBitrateSampled = now
	d.audioBitrate.Sample(now)
	d.videoBitrate.Sample(now)
}

func (d *StatefulDemuxer) reportError(code string, err error) {
	metrics.Errors.WithLabelValues(code).Inc()
	if d.OnError != nil {
		d.OnError(code, err.Error())
	}
}

// dispatchMediaInfo reports the running stream summary once it is
// complete (every declared track has codec info) and on every change
// after that, and logs the derived MIME type the first time.
func (d *StatefulDemuxer) dispatchMediaInfo() {
	if !d.mediaInfoComplete && d.info.IsComplete() {
		d.mediaInfoComplete = true
		logger.Tf(nil, "flv: media info complete, mimeType=%s", d.info.MimeType())
	}
	if !d.mediaInfoComplete {
		return
	}
	if d.OnMediaInfo != nil {
		d.OnMediaInfo(&d.info)
	}
}

// --- script data (onMetaData) ---

func (d *StatefulDemuxer) parseScriptData(tag []byte) error {
	sd, err := amf0.ParseScriptData(tag)
	if err != nil {
		return fmt.Errorf("onMetaData, %w", err)
	}
	if sd.Name != "onMetaData" {
		return nil
	}
	d.info.Metadata = sd

	if b, ok := sd.Get("hasAudio").(*amf0.Boolean); ok && !d.hasAudioFlagOverrided {
		d.hasAudio = bool(*b)
		d.info.HasAudio = d.hasAudio
		d.hasAudioFlagOverrided = true
	}
	if b, ok := sd.Get("hasVideo").(*amf0.Boolean); ok && !d.hasVideoFlagOverrided {
		d.hasVideo = bool(*b)
		d.info.HasVideo = d.hasVideo
		d.hasVideoFlagOverrided = true
	}
	if n, ok := sd.Get("audiodatarate").(*amf0.Number); ok {
		d.info.AudioDataRate = float64(*n)
	}
	if n, ok := sd.Get("videodatarate").(*amf0.Number); ok {
		d.info.VideoDataRate = float64(*n)
	}
	if n, ok := sd.Get("duration").(*amf0.Number); ok {
		d.info.Duration = float64(*n)
	}
	if n, ok := sd.Get("width").(*amf0.Number); ok {
		d.info.Width = uint32(*n)
	}
	if n, ok := sd.Get("height").(*amf0.Number); ok {
		d.info.Height = uint32(*n)
	}
	if n, ok := sd.Get("framerate").(*amf0.Number); ok {
		d.info.FPS = float64(*n)
	}

	d.dispatchMediaInfo()
	return nil
}

// --- audio ---

func (d *StatefulDemuxer) parseAudioData(dts uint32, tag []byte) error {
	if len(tag) < 1 {
		return fmt.Errorf("audio tag too short")
	}

	soundFormat := AudioCodec(tag[0] >> 4)
	switch soundFormat {
	case AudioCodecAAC:
		return d.parseAACAudioData(dts, tag)
	case AudioCodecMP3:
		return d.parseMP3AudioData(dts, tag)
	default:
		d.reportError(metrics.CodeCodecUnsupported, fmt.Errorf("audio codec %v unsupported", soundFormat))
		return nil
	}
}

func (d *StatefulDemuxer) parseAACAudioData(dts uint32, tag []byte) error {
	if len(tag) < 2 {
		return fmt.Errorf("aac audio tag too short")
	}

	trait := AACFrameTrait(tag[1])
	payload := tag[2:]

	if trait == AACFrameTraitSequenceHeader {
		return d.parseAACAudioSpecificConfig(payload)
	}

	if d.audioMeta == nil {
		return fmt.Errorf("aac raw frame before sequence header")
	}

	d.audioTrack.Push(track.Sample{
		DTS:  int64(dts),
		PTS:  int64(dts),
		Data: payload,
	})
	return nil
}

func (d *StatefulDemuxer) parseAACAudioSpecificConfig(payload []byte) error {
	if d.audioMeta != nil && bytes.Equal(d.audioMeta.ASC, payload) {
		return nil // idempotent re-send of an unchanged config
	}

	asc, err := aac.ParseAudioSpecificConfig(payload)
	if err != nil {
		return fmt.Errorf("aac asc, %w", err)
	}

	sampleRate := asc.SampleRate
	channels := asc.Channels.Count()
	if asc.HasSBR {
		sampleRate = asc.ExtensionSampleIdx.ToHz()
	}

	meta := &track.Meta{
		Kind:              track.KindAudio,
		ID:                track.AudioTrackID,
		Timescale:         1000,
		RefSampleDuration: 1024 * 1000 / float64(sampleRate),
		ChannelCount:      channels,
		AudioSampleRate:   sampleRate,
		OriginalCodec:     fmt.Sprintf("mp4a.40.%d", asc.ObjectType),
		Codec:             fmt.Sprintf("mp4a.40.%d", asc.ObjectType),
		ASC:               payload,
	}

	d.audioMeta = meta
	d.audioMetaDispatched = true

	d.info.AudioCodec = meta.Codec
	d.info.AudioSampleRate = sampleRate
	d.info.AudioChannelCount = channels

	if d.OnTrackMetadata != nil {
		d.OnTrackMetadata(meta)
	}
	d.dispatchMediaInfo()
	return nil
}

// mpegVersionSampleRates indexes [mpegVersion 00=2.5,10=2,11=1][sampleRateIdx].
var mpegVersionSampleRates = map[uint8][3]int{
	0: {11025, 12000, 8000},
	2: {22050, 24000, 16000},
	3: {44100, 48000, 32000},
}

func (d *StatefulDemuxer) parseMP3AudioData(dts uint32, tag []byte) error {
	payload := tag[1:]
	if len(payload) < 4 {
		return fmt.Errorf("mp3 frame too short")
	}

	if payload[0] != 0xff || payload[1]&0xe0 != 0xe0 {
		return fmt.Errorf("mp3 frame sync missing")
	}

	mpegVersion := (payload[1] >> 3) & 0x03
	layer := (payload[1] >> 1) & 0x03
	if layer != 1 { // Layer III == 01
		return fmt.Errorf("mp3 layer %d unsupported", layer)
	}

	sampleRateIdx := (payload[2] >> 2) & 0x03
	rates, ok := mpegVersionSampleRates[mpegVersion]
	if !ok || sampleRateIdx == 3 {
		return fmt.Errorf("mp3 sample rate index %d invalid", sampleRateIdx)
	}
	sampleRate := rates[sampleRateIdx]

	channelMode := (payload[3] >> 6) & 0x03
	channels := 2
	if channelMode == 3 { // single channel
		channels = 1
	}

	if d.audioMeta == nil {
		meta := &track.Meta{
			Kind:              track.KindAudio,
			ID:                track.AudioTrackID,
			Timescale:         1000,
			RefSampleDuration: 1152 * 1000 / float64(sampleRate),
			ChannelCount:      channels,
			AudioSampleRate:   sampleRate,
			IsMP3:             true,
			OriginalCodec:     "mp3",
			Codec:             "mp3",
		}
		d.audioMeta = meta
		d.audioMetaDispatched = true

		d.info.AudioCodec = meta.Codec
		d.info.AudioSampleRate = sampleRate
		d.info.AudioChannelCount = channels

		if d.OnTrackMetadata != nil {
			d.OnTrackMetadata(meta)
		}
		d.dispatchMediaInfo()
	}

	d.audioTrack.Push(track.Sample{
		DTS:  int64(dts),
		PTS:  int64(dts),
		Data: payload,
	})
	return nil
}

// --- video ---

func (d *StatefulDemuxer) parseVideoData(dts uint32, tag []byte) error {
	if len(tag) < 1 {
		return fmt.Errorf("video tag too short")
	}

	frameType := (tag[0] >> 4) & 0x0f
	codecID := tag[0] & 0x0f
	if codecID != 7 {
		d.reportError(metrics.CodeCodecUnsupported, fmt.Errorf("video codec id %d, only AVC(7) is supported", codecID))
		return nil
	}
	if len(tag) < 5 {
		return fmt.Errorf("avc video tag too short")
	}

	packetType := tag[1]
	cts := int32(tag[2])<<16 | int32(tag[3])<<8 | int32(tag[4])
	if cts&0x800000 != 0 { // sign-extend the 24-bit composition time
		cts |= ^int32(0xffffff)
	}
	payload := tag[5:]

	switch packetType {
	case 0:
		return d.parseAVCDecoderConfigurationRecord(payload)
	case 1:
		return d.parseAVCVideoData(dts, cts, frameType == 1, payload)
	case 2:
		return nil // AVC end of sequence, nothing to do
	default:
		return fmt.Errorf("avc packet type %d invalid", packetType)
	}
}

func (d *StatefulDemuxer) parseAVCDecoderConfigurationRecord(p []byte) error {
	if len(p) < 6 {
		return fmt.Errorf("avcC too short")
	}
	if p[0] != 1 {
		return fmt.Errorf("avcC configurationVersion %d unsupported", p[0])
	}

	profileIDC, profileCompatibility, levelIDC := p[1], p[2], p[3]
	d.naluLengthSize = int(p[4]&0x03) + 1

	numSPS := int(p[5] & 0x1f)
	rest := p[6:]

	var sps *h264.SPS
	for i := 0; i < numSPS; i++ {
		if len(rest) < 2 {
			return fmt.Errorf("avcC sps length truncated")
		}
		n := int(binary.BigEndian.Uint16(rest))
		rest = rest[2:]
		if len(rest) < n {
			return fmt.Errorf("avcC sps nalu truncated")
		}
		if i == 0 {
			var err error
			if sps, err = h264.ParseSPS(rest[:n]); err != nil {
				return fmt.Errorf("parse sps, %w", err)
			}
		}
		rest = rest[n:]
	}
	if sps == nil {
		return fmt.Errorf("avcC carries no sps")
	}

	codec := fmt.Sprintf("avc1.%02x%02x%02x", profileIDC, profileCompatibility, levelIDC)

	refSampleDuration := 1000.0 / 24
	if sps.FrameRate.Fixed && sps.FrameRate.FPS > 0 {
		refSampleDuration = 1000.0 / sps.FrameRate.FPS
	}

	width, height := sps.CodecSize.Width, sps.CodecSize.Height
	if d.cfg.EnableConstVideoView && d.cfg.ConstVideoViewWidth > 0 && d.cfg.ConstVideoViewHeight > 0 {
		width, height = d.cfg.ConstVideoViewWidth, d.cfg.ConstVideoViewHeight
		if width < height {
			width, height = height, width
		}
	}

	meta := &track.Meta{
		Kind:               track.KindVideo,
		ID:                 track.VideoTrackID,
		Timescale:          1000,
		RefSampleDuration:  refSampleDuration,
		CodecWidth:         width,
		CodecHeight:        height,
		PresentWidth:       sps.PresentSize.Width,
		PresentHeight:      sps.PresentSize.Height,
		Profile:            sps.ProfileName,
		Level:              sps.LevelName,
		BitDepth:           sps.BitDepth,
		ChromaFormat:       sps.ChromaFormat,
		ChromaFormatString: sps.ChromaFormatString,
		RefFrames:          sps.RefFrames,
		FrameRateInfo: track.FrameRate{
			Fixed: sps.FrameRate.Fixed,
			FPS:   sps.FrameRate.FPS,
			Num:   sps.FrameRate.Num,
			Den:   sps.FrameRate.Den,
		},
		AVCC:  p,
		Codec: codec,
	}
	meta.SARRatio.Width, meta.SARRatio.Height = sps.SARRatio.Width, sps.SARRatio.Height

	isFirst := !d.videoMetaDispatched
	resolutionChanged := !isFirst && (d.lastVideoWidth != width || d.lastVideoHeight != height)
	d.lastVideoWidth, d.lastVideoHeight = width, height

	d.videoMeta = meta
	d.videoMetaDispatched = true

	d.info.VideoCodec = codec
	d.info.Width, d.info.Height = width, height
	d.info.FPS = sps.FrameRate.FPS
	d.info.Profile, d.info.Level = sps.ProfileName, sps.LevelName
	d.info.RefFrames = sps.RefFrames
	d.info.ChromaFormat = sps.ChromaFormat
	d.info.SARNum, d.info.SARDen = sps.SARRatio.Width, sps.SARRatio.Height

	// A later sequence header updates the running TrackMeta and, if the
	// dimensions actually changed, notifies the caller — but does not
	// re-dispatch OnTrackMetadata or force a new init segment, per the
	// original demuxer's behavior (see DESIGN.md Open Question 1).
	if resolutionChanged && d.OnVideoResolutionChanged != nil {
		d.OnVideoResolutionChanged(width, height)
	}
	if isFirst && d.OnTrackMetadata != nil {
		d.OnTrackMetadata(meta)
	}
	d.dispatchMediaInfo()
	return nil
}

func (d *StatefulDemuxer) parseAVCVideoData(dts uint32, cts int32, isKeyframe bool, p []byte) error {
	if d.videoMeta == nil {
		return fmt.Errorf("avc nalu before decoder configuration record")
	}

	lengthSize := d.naluLengthSize
	if lengthSize == 0 {
		lengthSize = 4
	}

	var units []track.Unit
	keyframeSeen := false
	for len(p) >= lengthSize {
		var n int
		switch lengthSize {
		case 1:
			n = int(p[0])
		case 2:
			n = int(binary.BigEndian.Uint16(p))
		case 3:
			n = int(p[0])<<16 | int(p[1])<<8 | int(p[2])
		default:
			n = int(binary.BigEndian.Uint32(p))
		}
		p = p[lengthSize:]
		if n > len(p) {
			return fmt.Errorf("nal unit length %d exceeds remaining %d bytes", n, len(p))
		}

		nalu := p[:n]
		p = p[n:]

		if h264.IsKeyframeUnit(nalu) {
			keyframeSeen = true
		}
		units = append(units, track.Unit{Data: nalu})
	}

	s := track.Sample{
		DTS:        int64(dts),
		PTS:        int64(dts) + int64(cts),
		CTS:        cts,
		IsKeyframe: isKeyframe || keyframeSeen,
		Units:      units,
	}
	if s.IsKeyframe {
		s.FilePosition = d.currentTagStart
	}

	d.videoTrack.Push(s)
	return nil
}
