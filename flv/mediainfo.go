package flv

import "github.com/ossrs/flvgo-remux/amf0"

// MediaInfo is the demuxer's running summary of everything discovered
// about the stream so far: onMetaData fields plus whatever the audio
// and video sequence headers have revealed. IsComplete reports true
// once every field both tracks need has arrived; from then on it is
// dispatched to OnMediaInfo every time a piece of it changes.
type MediaInfo struct {
	HasAudio bool
	HasVideo bool

	AudioCodec        string
	AudioSampleRate   int
	AudioChannelCount int
	AudioDataRate     float64

	VideoCodec    string
	Width         uint32
	Height        uint32
	FPS           float64
	Profile       string
	Level         string
	RefFrames     uint32
	ChromaFormat  uint32
	SARNum        uint32
	SARDen        uint32
	VideoDataRate float64

	Duration float64
	Metadata *amf0.ScriptData
}

// MimeType reports the RFC 6381 codecs parameter for this stream,
// built from whichever of the audio/video codec strings are known.
func (m *MediaInfo) MimeType() string {
	mime := "video/x-flv"
	if !m.HasVideo && m.HasAudio {
		mime = "audio/x-flv"
	}

	codecs := m.VideoCodec
	if m.HasAudio {
		if codecs != "" {
			codecs += ","
		}
		codecs += m.AudioCodec
	}
	if codecs == "" {
		return mime
	}
	return mime + `; codecs="` + codecs + `"`
}

// IsComplete reports whether every field this stream's declared tracks
// need has been populated: the audio fields once hasAudio is true, the
// video fields once hasVideo is true.
func (m *MediaInfo) IsComplete() bool {
	if m.HasAudio && (m.AudioCodec == "" || m.AudioSampleRate == 0 || m.AudioChannelCount == 0) {
		return false
	}
	if m.HasVideo && (m.VideoCodec == "" || m.Width == 0 || m.Height == 0 || m.Profile == "" || m.Level == "") {
		return false
	}
	return m.HasAudio || m.HasVideo
}
