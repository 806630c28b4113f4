package mp4

// TrackMeta is the subset of track configuration the box generator
// needs to build ftyp/moov/moof for one track.
type TrackMeta struct {
	ID        uint32
	Kind      string // "audio" or "video"
	Timescale uint32
	Duration  uint32

	// Video fields.
	CodecWidth, CodecHeight     uint16
	PresentWidth, PresentHeight uint16
	AVCC                        []byte // raw AVCDecoderConfigurationRecord

	// Audio fields.
	ChannelCount    uint8
	AudioSampleRate uint16
	IsMP3           bool
	ASC             []byte // raw AudioSpecificConfig, AAC only
}

var (
	// stts/stsc/stsz/stco all carry zero actual entries; real
	// sample timing lives entirely in trun.
	sampleTablePrefix = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	stszZeroEntries   = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

	hdlrVideo = []byte{
		0x00, 0x00, 0x00, 0x00, // version + flags
		0x00, 0x00, 0x00, 0x00, // pre_defined
		'v', 'i', 'd', 'e', // handler_type
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // reserved
		'V', 'i', 'd', 'e', 'o', 'H', 'a', 'n', 'd', 'l', 'e', 'r', 0x00,
	}
	hdlrAudio = []byte{
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		's', 'o', 'u', 'n',
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		'S', 'o', 'u', 'n', 'd', 'H', 'a', 'n', 'd', 'l', 'e', 'r', 0x00,
	}
	dref = []byte{
		0x00, 0x00, 0x00, 0x00, // version + flags
		0x00, 0x00, 0x00, 0x01, // entry_count
		0x00, 0x00, 0x00, 0x0c, // entry_size
		'u', 'r', 'l', ' ', // type "url "
		0x00, 0x00, 0x00, 0x01, // version + flags
	}
	smhd = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	vmhd = []byte{0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}

	// Constant unity composition matrix, per ISO/IEC 14496-12 §8.2.2.2/8.3.2.3.
	compositionMatrix = []byte{
		0x00, 0x01, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x01, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00,
		0x40, 0x00, 0x00, 0x00,
	}
)

// FileTypeBox builds the `ftyp` box: major brand isom, minor version
// 1, compatible brands isom and avc1.
func FileTypeBox() *Box {
	payload := []byte{
		'i', 's', 'o', 'm', // major_brand
		0x00, 0x00, 0x00, 0x01, // minor_version
		'i', 's', 'o', 'm', // compatible brand
		'a', 'v', 'c', '1', // compatible brand
	}
	return newBox("ftyp", payload)
}

// MovieBox builds the `moov` box for a single track: mvhd + trak + mvex.
func MovieBox(meta TrackMeta) *Box {
	return newBox("moov", nil, movieHeaderBox(meta), trackBox(meta), movieExtendsBox(meta))
}

func movieHeaderBox(meta TrackMeta) *Box {
	p := make([]byte, 0, 100)
	p = append(p, 0, 0, 0, 0) // version + flags
	p = append(p, 0, 0, 0, 0) // creation_time
	p = append(p, 0, 0, 0, 0) // modification_time
	p = append(p, be32(meta.Timescale)...)
	p = append(p, be32(meta.Duration)...)
	p = append(p, 0x00, 0x01, 0x00, 0x00) // preferred rate 1.0
	p = append(p, 0x01, 0x00, 0x00, 0x00) // preferred volume 1.0 + reserved
	p = append(p, make([]byte, 8)...)     // reserved
	p = append(p, compositionMatrix...)
	p = append(p, make([]byte, 24)...)           // pre_defined, 6*4 bytes
	p = append(p, 0xff, 0xff, 0xff, 0xff)        // next_track_ID
	return newBox("mvhd", p)
}

func trackBox(meta TrackMeta) *Box {
	return newBox("trak", nil, trackHeaderBox(meta), mediaBox(meta))
}

func trackHeaderBox(meta TrackMeta) *Box {
	width, height := meta.PresentWidth, meta.PresentHeight
	if meta.Kind == "audio" {
		width, height = 0, 0
	}

	p := make([]byte, 0, 92)
	p = append(p, 0x00, 0x00, 0x00, 0x07) // version(0) + flags: enabled, in-movie, in-preview
	p = append(p, 0, 0, 0, 0)             // creation_time
	p = append(p, 0, 0, 0, 0)             // modification_time
	p = append(p, be32(meta.ID)...)       // track_ID
	p = append(p, 0, 0, 0, 0)             // reserved
	p = append(p, be32(meta.Duration)...)
	p = append(p, make([]byte, 8)...) // reserved
	p = append(p, 0, 0, 0, 0)         // layer + alternate_group
	p = append(p, 0, 0, 0, 0)         // volume + reserved
	p = append(p, compositionMatrix...)
	p = append(p, be16(width)...)
	p = append(p, 0, 0) // fixed-point low 16 bits
	p = append(p, be16(height)...)
	p = append(p, 0, 0)

	return newBox("tkhd", p)
}

func mediaBox(meta TrackMeta) *Box {
	return newBox("mdia", nil, mediaHeaderBox(meta), handlerBox(meta), mediaInfoBox(meta))
}

func mediaHeaderBox(meta TrackMeta) *Box {
	p := make([]byte, 0, 24)
	p = append(p, 0, 0, 0, 0)
	p = append(p, 0, 0, 0, 0)
	p = append(p, 0, 0, 0, 0)
	p = append(p, be32(meta.Timescale)...)
	p = append(p, be32(meta.Duration)...)
	p = append(p, 0x55, 0xc4) // language: und
	p = append(p, 0, 0)       // pre_defined
	return newBox("mdhd", p)
}

func handlerBox(meta TrackMeta) *Box {
	if meta.Kind == "audio" {
		return newBox("hdlr", hdlrAudio)
	}
	return newBox("hdlr", hdlrVideo)
}

func mediaInfoBox(meta TrackMeta) *Box {
	var mediaHeader *Box
	if meta.Kind == "audio" {
		mediaHeader = newBox("smhd", smhd)
	} else {
		mediaHeader = newBox("vmhd", vmhd)
	}
	return newBox("minf", nil, mediaHeader, dataInfoBox(), sampleTableBox(meta))
}

func dataInfoBox() *Box {
	return newBox("dinf", nil, newBox("dref", dref))
}

func sampleTableBox(meta TrackMeta) *Box {
	return newBox("stbl", nil,
		sampleDescriptionBox(meta),
		newBox("stts", sampleTablePrefix),
		newBox("stsc", sampleTablePrefix),
		newBox("stsz", stszZeroEntries),
		newBox("stco", sampleTablePrefix),
	)
}

var stsdPrefix = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}

func sampleDescriptionBox(meta TrackMeta) *Box {
	if meta.Kind == "audio" {
		if meta.IsMP3 {
			return newBox("stsd", stsdPrefix, mp3Box(meta))
		}
		return newBox("stsd", stsdPrefix, mp4aBox(meta))
	}
	return newBox("stsd", stsdPrefix, avc1Box(meta))
}

func audioSampleEntryPrefix(meta TrackMeta) []byte {
	p := make([]byte, 0, 28)
	p = append(p, 0, 0, 0, 0) // reserved
	p = append(p, 0, 0, 0, 1) // reserved + data_reference_index
	p = append(p, make([]byte, 8)...)
	p = append(p, 0, meta.ChannelCount) // channelcount
	p = append(p, 0, 0x10)              // samplesize
	p = append(p, 0, 0, 0, 0)           // reserved
	p = append(p, be16(meta.AudioSampleRate)...)
	p = append(p, 0, 0)
	return p
}

func mp3Box(meta TrackMeta) *Box {
	return newBox(".mp3", audioSampleEntryPrefix(meta))
}

func mp4aBox(meta TrackMeta) *Box {
	return newBox("mp4a", audioSampleEntryPrefix(meta), esdsBox(meta))
}

func esdsBox(meta TrackMeta) *Box {
	config := meta.ASC
	configSize := byte(len(config))

	p := make([]byte, 0, 26+len(config))
	p = append(p, 0, 0, 0, 0) // version + flags
	p = append(p, 0x03, 0x17+configSize)
	p = append(p, 0x00, 0x01) // es_id
	p = append(p, 0x00)       // stream_priority
	p = append(p, 0x04, 0x0f+configSize)
	p = append(p, 0x40, 0x15) // object type indication, stream type
	p = append(p, 0, 0, 0)    // buffer size
	p = append(p, 0, 0, 0, 0) // max bitrate
	p = append(p, 0, 0, 0, 0) // avg bitrate
	p = append(p, 0x05, configSize)
	p = append(p, config...)
	p = append(p, 0x06, 0x01, 0x02) // SLConfigDescriptor

	return newBox("esds", p)
}

func avc1Box(meta TrackMeta) *Box {
	p := make([]byte, 0, 78)
	p = append(p, 0, 0, 0, 0) // reserved
	p = append(p, 0, 0, 0, 1) // reserved + data_reference_index
	p = append(p, make([]byte, 16)...) // pre_defined + reserved
	p = append(p, be16(meta.CodecWidth)...)
	p = append(p, be16(meta.CodecHeight)...)
	p = append(p, 0x00, 0x48, 0x00, 0x00) // horizresolution 72dpi
	p = append(p, 0x00, 0x48, 0x00, 0x00) // vertresolution 72dpi
	p = append(p, 0, 0, 0, 0)             // reserved
	p = append(p, 0x00, 0x01)             // frame_count
	p = append(p, 0x0a)                   // compressorname length
	p = append(p, []byte("xqq/flv.js")...)
	p = append(p, make([]byte, 32-11)...) // pad compressorname field to 32 bytes total
	p = append(p, 0x00, 0x18)             // depth
	p = append(p, 0xff, 0xff)             // pre_defined = -1

	return newBox("avc1", p, newBox("avcC", meta.AVCC))
}

func movieExtendsBox(meta TrackMeta) *Box {
	return newBox("mvex", nil, trackExtendsBox(meta))
}

func trackExtendsBox(meta TrackMeta) *Box {
	p := make([]byte, 0, 24)
	p = append(p, 0, 0, 0, 0)
	p = append(p, be32(meta.ID)...)
	p = append(p, 0, 0, 0, 1) // default_sample_description_index
	p = append(p, 0, 0, 0, 0) // default_sample_duration
	p = append(p, 0, 0, 0, 0) // default_sample_size
	p = append(p, 0, 1, 0, 1) // default_sample_flags
	return newBox("trex", p)
}

// InitSegment assembles the full `ftyp+moov` byte stream for one track.
func InitSegment(meta TrackMeta) []byte {
	ftyp := FileTypeBox()
	moov := MovieBox(meta)
	return append(ftyp.Marshal(), moov.Marshal()...)
}
