// Package track holds the shared sample/track data model produced by
// the FLV demuxer and consumed by the fMP4 remuxer.
package track

// Kind identifies a track's media type.
type Kind uint8

const (
	KindAudio Kind = iota
	KindVideo
)

func (k Kind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "audio"
}

// Stable track IDs, per the ISO-BMFF convention this pipeline follows.
const (
	VideoTrackID uint32 = 1
	AudioTrackID uint32 = 2
)

// Unit is one NAL unit of a video sample's payload.
type Unit struct {
	Data []byte
}

// Sample is one demuxed access unit, audio or video.
type Sample struct {
	DTS          int64
	PTS          int64
	CTS          int32 // PTS - DTS, video only
	IsKeyframe   bool
	FilePosition int64 // set only for video keyframes

	// Audio carries its payload directly in Data; video carries a
	// list of length-prefixable NAL units in Units.
	Data  []byte
	Units []Unit
}

// Length returns the total payload byte length of the sample.
func (s *Sample) Length() int {
	if s.Units != nil {
		n := 0
		for _, u := range s.Units {
			n += len(u.Data)
		}
		return n
	}
	return len(s.Data)
}

// Track accumulates samples for one kind between remux drains.
type Track struct {
	Kind           Kind
	ID             uint32
	SequenceNumber uint32
	Samples        []Sample
	Length         int
}

// Push appends a sample to the track and updates the aggregate length.
func (t *Track) Push(s Sample) {
	t.Samples = append(t.Samples, s)
	t.Length += s.Length()
}

// Reset drains the track's buffered samples.
func (t *Track) Reset() {
	t.Samples = t.Samples[:0]
	t.Length = 0
}

// FrameRate describes a video track's timing.
type FrameRate struct {
	Fixed bool
	FPS   float64
	Num   uint32
	Den   uint32
}

// Meta is the per-kind codec configuration shared immutably between
// the demuxer and remuxer once dispatched.
type Meta struct {
	Kind      Kind
	ID        uint32
	Timescale uint32
	Duration  uint32

	// Reference sample duration in Timescale units (Timescale is 1000):
	// 1024*1000/rate for AAC, 1152*1000/rate for MP3, or 1000/fps for
	// video.
	RefSampleDuration float64

	// Video fields.
	CodecWidth, CodecHeight     uint32
	PresentWidth, PresentHeight uint32
	Profile, Level              string
	BitDepth, ChromaFormat      uint32
	ChromaFormatString          string
	SARRatio                    struct{ Width, Height uint32 }
	RefFrames                   uint32
	FrameRateInfo               FrameRate
	AVCC                        []byte
	Codec                       string // avc1.XXYYZZ

	// Audio fields.
	ChannelCount     int
	AudioSampleRate  int
	IsMP3            bool
	OriginalCodec    string // pre AOT-normalization codec tag, AAC only
	ASC              []byte
}
