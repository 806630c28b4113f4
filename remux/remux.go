// Package remux implements the fragmented-MP4 remuxer: DTS base
// computation, per-batch stash/unshift, DTS discontinuity correction,
// AAC drift handling with silent-frame fill, MP3 next-sample duration,
// and moof+mdat / ftyp+moov segment emission.
package remux

import (
	"math"

	"github.com/google/uuid"
	"github.com/ossrs/flvgo-remux/aac"
	"github.com/ossrs/flvgo-remux/logger"
	"github.com/ossrs/flvgo-remux/metrics"
	"github.com/ossrs/flvgo-remux/mp4"
	"github.com/ossrs/flvgo-remux/segment"
	"github.com/ossrs/flvgo-remux/track"
)

// Config carries the spec.md §6 configuration options relevant to the remuxer.
type Config struct {
	IsLive               bool
	FixAudioTimestampGap bool
	FillSilentAfterSeek  bool
	EnableConstVideoView bool
	ConstVideoViewWidth  uint32
	ConstVideoViewHeight uint32
}

// InitSegment is the payload handed to OnInitSegment, once per track.
type InitSegment struct {
	Kind            string
	Data            []byte
	Codec           string
	Container       string
	MediaDurationMs uint32
}

// MediaSegment is the payload handed to OnMediaSegment, once per batch.
type MediaSegment struct {
	Kind        string
	Data        []byte
	SampleCount int
	Info        *segment.Info
}

// maxAudioFramesDrift bounds AAC dts drift before dropping or filling, per spec.md §4.G.
const maxAudioFramesDrift = 3

// Remuxer turns drained audio/video track samples into fMP4 segments.
type Remuxer struct {
	cfg Config
	cid string

	dtsBaseInited bool
	dtsBase       int64
	audioDtsBase  int64
	videoDtsBase  int64

	audioNextDts *float64
	videoNextDts *int64

	audioStashed *track.Sample
	videoStashed *track.Sample

	audioMeta *track.Meta
	videoMeta *track.Meta

	audioSegList *segment.List
	videoSegList *segment.List

	audioBitrate *BitrateSampler
	videoBitrate *BitrateSampler

	OnInitSegment  func(kind string, seg InitSegment)
	OnMediaSegment func(kind string, seg MediaSegment)
}

// New creates a Remuxer. Each instance gets a UUID-tagged logging
// context so concurrent pipeline instances are distinguishable in logs.
func New(cfg Config) *Remuxer {
	return &Remuxer{
		cfg:          cfg,
		cid:          uuid.NewString(),
		audioSegList: segment.NewList("audio"),
		videoSegList: segment.NewList("video"),
		audioBitrate: NewBitrateSampler("audio"),
		videoBitrate: NewBitrateSampler("video"),
	}
}

// Cid returns this instance's UUID logging tag. It does not implement
// logger.Context (which requires an int cid); callers interpolate it
// into log messages manually instead.
func (r *Remuxer) Cid() string {
	return r.cid
}

// Destroy drops all retained state: metadata, stashed samples,
// next-dts continuity, segment-info history and callbacks.
// No method may be called on the Remuxer afterward.
func (r *Remuxer) Destroy() {
	r.dtsBaseInited = false
	r.audioMeta = nil
	r.videoMeta = nil
	r.audioStashed, r.videoStashed = nil, nil
	r.audioNextDts, r.videoNextDts = nil, nil
	r.audioSegList.Clear()
	r.videoSegList.Clear()
	r.OnInitSegment = nil
	r.OnMediaSegment = nil
}

// Seek clears stashed samples and segment-info history, used when the
// byte-source loader jumps to a new position.
func (r *Remuxer) Seek() {
	r.audioStashed = nil
	r.videoStashed = nil
	r.audioSegList.Clear()
	r.videoSegList.Clear()
}

// InsertDiscontinuity forgets next-dts continuity, forcing the next
// batch's dts correction to be recomputed from segment-info history.
func (r *Remuxer) InsertDiscontinuity() {
	r.audioNextDts = nil
	r.videoNextDts = nil
}

// OnTrackMetadata receives TrackMeta as soon as it's dispatched by the
// demuxer and emits the corresponding init segment.
func (r *Remuxer) OnTrackMetadata(meta *track.Meta) {
	if meta.Kind == track.KindAudio {
		r.audioMeta = meta
	} else {
		r.videoMeta = meta
	}

	if r.cfg.EnableConstVideoView && meta.Kind == track.KindVideo {
		w, h := r.cfg.ConstVideoViewWidth, r.cfg.ConstVideoViewHeight
		if w > 0 && h > 0 {
			if w < h {
				w, h = h, w
			}
			meta.CodecWidth, meta.CodecHeight = w, h
		}
	}

	if meta.Kind == track.KindAudio && meta.IsMP3 {
		if r.OnInitSegment != nil {
			r.OnInitSegment("audio", InitSegment{
				Kind:            "audio",
				Data:            nil,
				Codec:           "",
				Container:       "audio/mpeg",
				MediaDurationMs: meta.Duration,
			})
		}
		return
	}

	tm := toTrackMeta(meta)
	data := mp4.InitSegment(tm)

	kind := "video"
	if meta.Kind == track.KindAudio {
		kind = "audio"
	}

	if r.OnInitSegment != nil {
		r.OnInitSegment(kind, InitSegment{
			Kind:            kind,
			Data:            data,
			Codec:           meta.Codec,
			Container:       kind + "/mp4",
			MediaDurationMs: meta.Duration,
		})
	}
}

func toTrackMeta(m *track.Meta) mp4.TrackMeta {
	tm := mp4.TrackMeta{
		ID:        m.ID,
		Timescale: m.Timescale,
		Duration:  m.Duration,
	}
	if m.Kind == track.KindVideo {
		tm.Kind = "video"
		tm.CodecWidth = uint16(m.CodecWidth)
		tm.CodecHeight = uint16(m.CodecHeight)
		tm.PresentWidth = uint16(m.PresentWidth)
		tm.PresentHeight = uint16(m.PresentHeight)
		tm.AVCC = m.AVCC
	} else {
		tm.Kind = "audio"
		tm.ChannelCount = uint8(m.ChannelCount)
		tm.AudioSampleRate = uint16(m.AudioSampleRate)
		tm.IsMP3 = m.IsMP3
		tm.ASC = m.ASC
	}
	return tm
}

// Remux drains the two tracks into media segments. Called each time
// the demuxer has finished parsing a chunk and has buffered samples.
func (r *Remuxer) Remux(audioTrack, videoTrack *track.Track) {
	if !r.dtsBaseInited {
		r.calculateDtsBase(audioTrack, videoTrack)
	}
	r.remuxVideo(videoTrack, false)
	r.remuxAudio(audioTrack, false)
}

// FlushStashedSamples forces emission of any stashed last samples,
// used when the loader signals end-of-stream.
func (r *Remuxer) FlushStashedSamples() {
	var videoTrack, audioTrack track.Track
	videoTrack.Kind, videoTrack.ID = track.KindVideo, track.VideoTrackID
	audioTrack.Kind, audioTrack.ID = track.KindAudio, track.AudioTrackID

	if r.videoStashed != nil {
		videoTrack.Push(*r.videoStashed)
		r.videoStashed = nil
	}
	if r.audioStashed != nil {
		audioTrack.Push(*r.audioStashed)
		r.audioStashed = nil
	}

	r.remuxVideo(&videoTrack, true)
	r.remuxAudio(&audioTrack, true)
}

func (r *Remuxer) calculateDtsBase(audioTrack, videoTrack *track.Track) {
	r.audioDtsBase, r.videoDtsBase = math.MaxInt64, math.MaxInt64
	if len(audioTrack.Samples) > 0 {
		r.audioDtsBase = audioTrack.Samples[0].DTS
	}
	if len(videoTrack.Samples) > 0 {
		r.videoDtsBase = videoTrack.Samples[0].DTS
	}
	r.dtsBase = r.audioDtsBase
	if r.videoDtsBase < r.dtsBase {
		r.dtsBase = r.videoDtsBase
	}
	r.dtsBaseInited = true
}

// popLastAndUnshiftStash implements the pop-last/unshift-previous-stash
// bookkeeping every batch performs before processing, per spec.md §4.G
// "Per-batch invariants". Returns the possibly-nil sample popped off
// the tail, to be stashed by the caller after processing.
func popLastAndUnshiftStash(samples []track.Sample, stashed *track.Sample) (processed []track.Sample, newLast *track.Sample) {
	processed = samples
	if len(processed) > 1 {
		last := processed[len(processed)-1]
		newLast = &last
		processed = processed[:len(processed)-1]
	}
	if stashed != nil {
		processed = append([]track.Sample{*stashed}, processed...)
	}
	return processed, newLast
}

func (r *Remuxer) remuxAudio(t *track.Track, force bool) {
	if r.audioMeta == nil {
		return
	}
	samples := t.Samples
	if len(samples) == 0 {
		return
	}
	if len(samples) == 1 && !force {
		return
	}

	samples, newStash := popLastAndUnshiftStash(samples, r.audioStashed)
	r.audioStashed = newStash

	meta := r.audioMeta
	firstOriginalDts := samples[0].DTS - r.dtsBase

	var dtsCorrection float64
	insertPrefixSilentFrame := false

	switch {
	case r.audioNextDts != nil:
		dtsCorrection = float64(firstOriginalDts) - *r.audioNextDts
	case r.audioSegList.IsEmpty():
		dtsCorrection = 0
		if r.cfg.FillSilentAfterSeek && !r.videoSegList.IsEmpty() && !meta.IsMP3 {
			insertPrefixSilentFrame = true
		}
	default:
		last := r.audioSegList.GetLastSampleBefore(firstOriginalDts)
		if last != nil {
			distance := firstOriginalDts - (last.OriginalDTS + last.Duration)
			if distance <= 3 {
				distance = 0
			}
			expectedDts := last.DTS + last.Duration + distance
			dtsCorrection = float64(firstOriginalDts - expectedDts)
		}
	}

	// Align the audio segment's beginDts to the current video segment's
	// beginDts by prepending a silent frame, per spec.md §4.G. Takes
	// effect whenever no audio segment has been recorded yet while a
	// video segment has: after Seek, and also at the start of a
	// non-live stream whose first video segment is remuxed before any
	// audio. Whether a seek actually happened is not tracked.
	if insertPrefixSilentFrame {
		firstSampleDts := firstOriginalDts - int64(dtsCorrection)
		videoSeg := r.videoSegList.GetLastSegmentBefore(firstOriginalDts)
		if videoSeg != nil && videoSeg.BeginDTS < firstSampleDts {
			if silent := aac.SilentFrame(meta.ChannelCount); silent != nil {
				dts := videoSeg.BeginDTS
				logger.Tf(nil, "[%s] inserting prefix silent audio frame: dts=%d duration=%d", r.cid, dts, firstSampleDts-dts)
				prefix := track.Sample{DTS: dts + r.dtsBase, PTS: dts + r.dtsBase, Data: silent}
				samples = append([]track.Sample{prefix}, samples...)
			}
		}
	}

	refDuration := meta.RefSampleDuration
	mp4Samples := make([]mp4.Sample, 0, len(samples))
	var segInfo segment.Info
	firstDts, lastDts := int64(-1), int64(-1)

	if meta.IsMP3 {
		for i, s := range samples {
			originalDts := s.DTS - r.dtsBase
			dts := originalDts - int64(dtsCorrection)

			var duration int64
			switch {
			case i != len(samples)-1:
				duration = (samples[i+1].DTS - r.dtsBase - int64(dtsCorrection)) - dts
			case newStash != nil:
				duration = (newStash.DTS - r.dtsBase - int64(dtsCorrection)) - dts
			case len(mp4Samples) >= 1:
				duration = int64(mp4Samples[len(mp4Samples)-1].Duration)
			default:
				duration = int64(refDuration)
			}

			nextDts := float64(dts + duration)
			r.audioNextDts = &nextDts

			if firstDts == -1 {
				firstDts = dts
			}
			mp4Samples = append(mp4Samples, mp4.Sample{
				Duration: uint32(duration),
				Size:     uint32(len(s.Data)),
				Flags:    mp4.SampleFlags{DependsOn: 1},
				Data:     s.Data,
			})
			seg := segment.SampleInfo{DTS: dts, PTS: dts, Duration: duration, OriginalDTS: originalDts}
			if firstDts == dts {
				segInfo.FirstSample = seg
			}
			segInfo.LastSample = seg
			lastDts = dts + duration
		}
	} else {
		refDts := firstRefDts(r.audioNextDts, firstOriginalDts)
		for _, s := range samples {
			originalDts := s.DTS - r.dtsBase
			curRefDts := refDts
			if r.audioNextDts != nil {
				curRefDts = *r.audioNextDts
			}

			drift := float64(originalDts) - curRefDts

			if drift <= -maxAudioFramesDrift*refDuration {
				logger.Wf(nil, "[%s] dropping audio frame (originalDts=%d curRefDts=%.0f drift=%.0f)", r.cid, originalDts, curRefDts, drift)
				metrics.SamplesDropped.WithLabelValues("aac_drift_overlap").Inc()
				continue
			}

			var dts int64
			var duration int64

			if drift >= maxAudioFramesDrift*refDuration && r.cfg.FixAudioTimestampGap {
				frameCount := int(math.Floor(drift / refDuration))
				dts = int64(math.Floor(curRefDts))
				duration = int64(math.Floor(curRefDts+refDuration)) - dts

				silent := aac.SilentFrame(meta.ChannelCount)
				if silent == nil {
					silent = s.Data
				}

				if firstDts == -1 {
					firstDts = dts
				}
				mp4Samples = append(mp4Samples, mp4.Sample{
					Duration: uint32(duration),
					Size:     uint32(len(s.Data)),
					Flags:    mp4.SampleFlags{DependsOn: 1},
					Data:     s.Data,
				})
				segInfo.LastSample = segment.SampleInfo{DTS: dts, PTS: dts, Duration: duration, OriginalDTS: originalDts}
				if len(mp4Samples) == 1 {
					segInfo.FirstSample = segInfo.LastSample
				}

				for j := 0; j < frameCount; j++ {
					curRefDts += refDuration
					intDts := int64(math.Floor(curRefDts))
					intDuration := int64(math.Floor(curRefDts+refDuration)) - intDts
					mp4Samples = append(mp4Samples, mp4.Sample{
						Duration: uint32(intDuration),
						Size:     uint32(len(silent)),
						Flags:    mp4.SampleFlags{DependsOn: 1},
						Data:     silent,
					})
					segInfo.LastSample = segment.SampleInfo{DTS: intDts, PTS: intDts, Duration: intDuration, OriginalDTS: originalDts + intDts - dts}
				}
				next := curRefDts + refDuration
				r.audioNextDts = &next
			} else {
				dts = int64(math.Floor(curRefDts))
				duration = int64(math.Floor(curRefDts+refDuration)) - dts
				next := curRefDts + refDuration
				r.audioNextDts = &next

				if firstDts == -1 {
					firstDts = dts
				}
				mp4Samples = append(mp4Samples, mp4.Sample{
					Duration: uint32(duration),
					Size:     uint32(len(s.Data)),
					Flags:    mp4.SampleFlags{DependsOn: 1},
					Data:     s.Data,
				})
				segInfo.LastSample = segment.SampleInfo{DTS: dts, PTS: dts, Duration: duration, OriginalDTS: originalDts}
				if len(mp4Samples) == 1 {
					segInfo.FirstSample = segInfo.LastSample
				}
			}
		}
		if len(mp4Samples) > 0 {
			total := int64(0)
			for _, ms := range mp4Samples {
				total += int64(ms.Duration)
			}
			lastDts = firstDts + total
		}
	}

	if len(mp4Samples) == 0 {
		t.Reset()
		return
	}

	r.audioBitrate.AddBytes(sumSampleSizes(mp4Samples))

	segInfo.BeginDTS, segInfo.EndDTS = firstDts, lastDts
	segInfo.BeginPTS, segInfo.EndPTS = firstDts, lastDts
	segInfo.OriginalBeginDTS = samples[0].DTS - r.dtsBase
	segInfo.OriginalEndDTS = segInfo.OriginalBeginDTS + (lastDts - firstDts)

	if !r.cfg.IsLive {
		info := segInfo
		r.audioSegList.Append(&info)
	}

	t.SequenceNumber++
	var data []byte
	if meta.IsMP3 {
		for _, s := range mp4Samples {
			data = append(data, s.Data...)
		}
	} else {
		data = mp4.MediaSegment(meta.ID, t.SequenceNumber, uint32(firstDts), false, mp4Samples)
	}
	t.Reset()

	if r.OnMediaSegment != nil {
		r.OnMediaSegment("audio", MediaSegment{
			Kind:        "audio",
			Data:        data,
			SampleCount: len(mp4Samples),
			Info:        &segInfo,
		})
	}
}

func firstRefDts(nextDts *float64, firstOriginalDts int64) float64 {
	if nextDts != nil {
		return *nextDts
	}
	return float64(firstOriginalDts)
}

func sumSampleSizes(samples []mp4.Sample) int {
	n := 0
	for _, s := range samples {
		n += int(s.Size)
	}
	return n
}

func (r *Remuxer) remuxVideo(t *track.Track, force bool) {
	if r.videoMeta == nil {
		return
	}
	samples := t.Samples
	if len(samples) == 0 {
		return
	}
	if len(samples) == 1 && !force {
		return
	}

	samples, newStash := popLastAndUnshiftStash(samples, r.videoStashed)
	r.videoStashed = newStash

	firstOriginalDts := samples[0].DTS - r.dtsBase

	var dtsCorrection int64
	switch {
	case r.videoNextDts != nil:
		dtsCorrection = firstOriginalDts - *r.videoNextDts
	case r.videoSegList.IsEmpty():
		dtsCorrection = 0
	default:
		last := r.videoSegList.GetLastSampleBefore(firstOriginalDts)
		if last != nil {
			distance := firstOriginalDts - (last.OriginalDTS + last.Duration)
			if distance <= 3 {
				distance = 0
			}
			dtsCorrection = firstOriginalDts - (last.DTS + last.Duration + distance)
		}
	}

	var segInfo segment.Info
	mp4Samples := make([]mp4.Sample, 0, len(samples))
	firstDts, firstPts := int64(-1), int64(-1)

	for i, s := range samples {
		originalDts := s.DTS - r.dtsBase
		dts := originalDts - dtsCorrection
		pts := dts + int64(s.CTS)

		if firstDts == -1 {
			firstDts, firstPts = dts, pts
		}

		var duration int64
		switch {
		case i != len(samples)-1:
			duration = (samples[i+1].DTS - r.dtsBase - dtsCorrection) - dts
		case newStash != nil:
			duration = (newStash.DTS - r.dtsBase - dtsCorrection) - dts
		case len(mp4Samples) >= 1:
			duration = int64(mp4Samples[len(mp4Samples)-1].Duration)
		default:
			duration = int64(r.videoMeta.RefSampleDuration)
		}

		flags := mp4.SampleFlags{DependsOn: 1, IsNonSync: 1}
		if s.IsKeyframe {
			flags = mp4.SampleFlags{DependsOn: 2, IsDependedOn: 1, IsNonSync: 0}
			segInfo.AppendSyncPoint(segment.SampleInfo{
				DTS: dts, PTS: pts, Duration: duration, OriginalDTS: originalDts, FilePosition: s.FilePosition,
			})
		}

		var payload []byte
		for _, u := range s.Units {
			payload = append(payload, be32(uint32(len(u.Data)))...)
			payload = append(payload, u.Data...)
		}

		mp4Samples = append(mp4Samples, mp4.Sample{
			Duration: uint32(duration),
			Size:     uint32(len(payload)),
			CTS:      s.CTS,
			Flags:    flags,
			Data:     payload,
		})
		si := segment.SampleInfo{DTS: dts, PTS: pts, Duration: duration, OriginalDTS: originalDts, IsSyncPoint: s.IsKeyframe, FilePosition: s.FilePosition}
		if i == 0 {
			segInfo.FirstSample = si
		}
		segInfo.LastSample = si
	}

	if len(mp4Samples) == 0 {
		t.Reset()
		return
	}

	total := int64(0)
	for _, ms := range mp4Samples {
		total += int64(ms.Duration)
	}
	lastDts := firstDts + total
	lastPts := firstPts + total
	nextDts := lastDts
	r.videoNextDts = &nextDts

	r.videoBitrate.AddBytes(sumSampleSizes(mp4Samples))

	segInfo.BeginDTS, segInfo.EndDTS = firstDts, lastDts
	segInfo.BeginPTS, segInfo.EndPTS = firstPts, lastPts
	segInfo.OriginalBeginDTS = samples[0].DTS - r.dtsBase
	segInfo.OriginalEndDTS = segInfo.OriginalBeginDTS + total

	if !r.cfg.IsLive {
		info := segInfo
		r.videoSegList.Append(&info)
	}

	t.SequenceNumber++
	data := mp4.MediaSegment(r.videoMeta.ID, t.SequenceNumber, uint32(firstDts), true, mp4Samples)
	t.Reset()

	if r.OnMediaSegment != nil {
		r.OnMediaSegment("video", MediaSegment{
			Kind:        "video",
			Data:        data,
			SampleCount: len(mp4Samples),
			Info:        &segInfo,
		})
	}
}

func be32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}
