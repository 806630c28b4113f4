// The MIT License (MIT)
//
// Copyright (c) 2013-2017 Oryx(ossrs)
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

// The oryx FLV package supports probing and parsing FLV tags from a
// byte stream delivered in arbitrary-sized chunks.
package flv

import (
	"encoding/binary"
	"errors"
)

// FLV Tag Type is the type of tag,
// refer to @doc video_file_format_spec_v10.pdf, @page 9, @section FLV tags
type TagType uint8

const (
	TagTypeForbidden  TagType = 0
	TagTypeAudio      TagType = 8
	TagTypeVideo      TagType = 9
	TagTypeScriptData TagType = 18
)

func (v TagType) String() string {
	switch v {
	case TagTypeVideo:
		return "Video"
	case TagTypeAudio:
		return "Audio"
	case TagTypeScriptData:
		return "Data"
	default:
		return "Forbidden"
	}
}

// When FLV signature is not "FLV" or the version isn't 1.
var errSignature = errors.New("FLV signatures are illegal")

// Returned internally when fewer than the 9 fixed header bytes are
// buffered yet; callers of ParseChunks never see this, they just get
// consumed=0 and are expected to supply more data.
var errHeaderIncomplete = errors.New("flv: header not fully buffered")

// ProbeResult is what Probe reports about a stream's fixed 9-byte FLV
// header: refer to @doc video_file_format_spec_v10.pdf, @page 8,
// @section The FLV header.
type ProbeResult struct {
	// Consumed is always 9 on success: the fixed signature+version+
	// flags+data-offset fields. Any header bytes between Consumed and
	// DataOffset are encoder-specific padding the chunk loop skips
	// without interpreting.
	Consumed   int
	DataOffset int64
	HasAudio   bool
	HasVideo   bool
}

// Probe validates the FLV signature and version and reports the
// stream's declared track flags and data offset. p must hold at least
// the 9 fixed header bytes.
func Probe(p []byte) (*ProbeResult, error) {
	if len(p) < 9 {
		return nil, errHeaderIncomplete
	}
	if p[0] != 'F' || p[1] != 'L' || p[2] != 'V' || p[3] != 1 {
		return nil, errSignature
	}

	hasVideo := p[4]&0x01 == 0x01
	hasAudio := (p[4]>>2)&0x01 == 0x01

	dataOffset := int64(binary.BigEndian.Uint32(p[5:9]))
	if dataOffset < 9 {
		return nil, errors.New("flv: data offset below the minimum of 9")
	}

	return &ProbeResult{Consumed: 9, DataOffset: dataOffset, HasAudio: hasAudio, HasVideo: hasVideo}, nil
}

// tagHeader is the parsed fixed 11-byte FLV tag header.
// Refer to @doc video_file_format_spec_v10.pdf, @page 9, @section FLV tags
type tagHeader struct {
	Type      TagType
	DataSize  uint32
	Timestamp uint32
	StreamID  uint32
}

// parseTagHeader parses the 11-byte tag header from the front of p.
// p must hold at least 11 bytes.
func parseTagHeader(p []byte) tagHeader {
	return tagHeader{
		Type:      TagType(p[0]),
		DataSize:  uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3]),
		Timestamp: uint32(p[7])<<24 | uint32(p[4])<<16 | uint32(p[5])<<8 | uint32(p[6]),
		StreamID:  uint32(p[8])<<16 | uint32(p[9])<<8 | uint32(p[10]),
	}
}

// The AAC frame trait, whether sequence header(ASC) or raw data.
// Refer to @doc video_file_format_spec_v10.pdf, @page 77, @section E.4.2 Audio Tags
type AACFrameTrait uint8

const (
	AACFrameTraitSequenceHeader AACFrameTrait = iota // 0 = AAC sequence header
	AACFrameTraitRaw                                 // 1 = AAC raw
	AACFrameTraitForbidden
)

func (v AACFrameTrait) String() string {
	switch v {
	case AACFrameTraitSequenceHeader:
		return "SequenceHeader"
	case AACFrameTraitRaw:
		return "Raw"
	default:
		return "Forbidden"
	}
}

// The audio codec id, FLV named it the SoundFormat.
// Refer to @doc video_file_format_spec_v10.pdf, @page 76, @section E.4.2 Audio Tags
type AudioCodec uint8

const (
	AudioCodecLinearPCM       AudioCodec = iota // 0 = Linear PCM, platform endian
	AudioCodecADPCM                             // 1 = ADPCM
	AudioCodecMP3                               // 2 = MP3
	AudioCodecLinearPCMle                       // 3 = Linear PCM, little endian
	AudioCodecNellymoser16kHz                   // 4 = Nellymoser 16 kHz mono
	AudioCodecNellymoser8kHz                    // 5 = Nellymoser 8 kHz mono
	AudioCodecNellymoser                        // 6 = Nellymoser
	AudioCodecG711Alaw                          // 7 = G.711 A-law logarithmic PCM
	AudioCodecG711MuLaw                         // 8 = G.711 mu-law logarithmic PCM
	AudioCodecReserved                          // 9 = reserved
	AudioCodecAAC                               // 10 = AAC
	AudioCodecSpeex                             // 11 = Speex
	AudioCodecUndefined12
	AudioCodecUndefined13
	AudioCodecMP3In8kHz      // 14 = MP3 8 kHz
	AudioCodecDeviceSpecific // 15 = Device-specific sound
	AudioCodecForbidden
)

func (v AudioCodec) String() string {
	switch v {
	case AudioCodecLinearPCM:
		return "LinearPCM(platform-endian)"
	case AudioCodecADPCM:
		return "ADPCM"
	case AudioCodecMP3:
		return "MP3"
	case AudioCodecLinearPCMle:
		return "LinearPCM(little-endian)"
	case AudioCodecNellymoser16kHz:
		return "Nellymoser(16kHz-mono)"
	case AudioCodecNellymoser8kHz:
		return "Nellymoser(8kHz-mono)"
	case AudioCodecNellymoser:
		return "Nellymoser"
	case AudioCodecG711Alaw:
		return "G.711(A-law)"
	case AudioCodecG711MuLaw:
		return "G.711(mu-law)"
	case AudioCodecAAC:
		return "AAC"
	case AudioCodecSpeex:
		return "Speex"
	case AudioCodecMP3In8kHz:
		return "MP3(8kHz)"
	case AudioCodecDeviceSpecific:
		return "DeviceSpecific"
	default:
		return "Forbidden"
	}
}
