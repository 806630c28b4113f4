package aac

import (
	"fmt"
)

// SampleRateIndex is the 4-bit samplingFrequencyIndex field of an
// AudioSpecificConfig, indexing into the MPEG-4 sampling rate table.
// Refer to @doc ISO_IEC_14496-3-AAC-2001.pdf, @page 34, @section 1.6.3.4 Sampling Frequency
type SampleRateIndex uint8

const (
	SampleRateIndex96kHz SampleRateIndex = iota
	SampleRateIndex88kHz
	SampleRateIndex64kHz
	SampleRateIndex48kHz
	SampleRateIndex44kHz
	SampleRateIndex32kHz
	SampleRateIndex24kHz
	SampleRateIndex22kHz
	SampleRateIndex16kHz
	SampleRateIndex12kHz
	SampleRateIndex11kHz
	SampleRateIndex8kHz
	SampleRateIndex7kHz
	sampleRateIndexReserved0
	sampleRateIndexReserved1
	SampleRateIndexForbidden
)

// mpegSamplingRates maps SampleRateIndex to Hz, index 0-12 only valid.
var mpegSamplingRates = [13]int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// ToHz converts the sampling frequency index to Hz, or 0 if reserved/forbidden.
func (v SampleRateIndex) ToHz() int {
	if int(v) >= len(mpegSamplingRates) {
		return 0
	}
	return mpegSamplingRates[v]
}

// Channels is the 4-bit channelConfiguration field of an AudioSpecificConfig.
// Refer to @doc ISO_IEC_14496-3-AAC-2001.pdf, @page 34, @section 1.6.3.4 Channel Configuration
type Channels uint8

const (
	ChannelForbidden Channels = iota
	ChannelMono
	ChannelStereo
	Channel3
	Channel4
	Channel5
	Channel5_1
	Channel7_1
)

func (v Channels) String() string {
	switch v {
	case ChannelMono:
		return "Mono"
	case ChannelStereo:
		return "Stereo"
	case Channel3:
		return "3"
	case Channel4:
		return "4"
	case Channel5:
		return "5"
	case Channel5_1:
		return "5.1"
	case Channel7_1:
		return "7.1"
	default:
		return "Forbidden"
	}
}

// Count returns the number of discrete audio channels this configuration carries.
func (v Channels) Count() int {
	switch v {
	case ChannelMono:
		return 1
	case ChannelStereo:
		return 2
	case Channel3:
		return 3
	case Channel4:
		return 4
	case Channel5:
		return 5
	case Channel5_1:
		return 6
	case Channel7_1:
		return 8
	default:
		return 0
	}
}

// AudioSpecificConfig is the decoded form of the 2+ byte AAC config
// blob carried in the FLV AACPacketType=0 tag body.
// Refer to @doc ISO_IEC_14496-3-AAC-2001.pdf, @page 33, @section 1.6.2.1 AudioSpecificConfig
type AudioSpecificConfig struct {
	ObjectType      ObjectType
	SampleRateIndex SampleRateIndex
	SampleRate      int
	Channels        Channels

	// SBR fields, only populated when ObjectType == ObjectTypeHE (AOT 5).
	HasSBR            bool
	ExtensionSampleIdx SampleRateIndex
	ExtensionObjectType ObjectType
}

// ParseAudioSpecificConfig decodes an AudioSpecificConfig blob. This
// mirrors the non-browser-specific decode path: no user-agent based
// SBR promotion, since this is a server-side library with no DOM.
func ParseAudioSpecificConfig(p []byte) (*AudioSpecificConfig, error) {
	if len(p) < 2 {
		return nil, errDataNotEnough
	}

	objectType := ObjectType(p[0] >> 3)
	sampleRateIdx := SampleRateIndex(((p[0] & 0x07) << 1) | (p[1] >> 7))
	if int(sampleRateIdx) >= len(mpegSamplingRates) {
		return nil, fmt.Errorf("aac: invalid sampling frequency index %d", sampleRateIdx)
	}

	channelConfig := Channels((p[1] & 0x78) >> 3)
	if channelConfig >= 8 {
		return nil, fmt.Errorf("aac: invalid channel configuration %d", channelConfig)
	}

	asc := &AudioSpecificConfig{
		ObjectType:      objectType,
		SampleRateIndex: sampleRateIdx,
		SampleRate:      mpegSamplingRates[sampleRateIdx],
		Channels:        channelConfig,
	}

	if objectType == ObjectTypeHE && len(p) >= 3 {
		asc.HasSBR = true
		asc.ExtensionSampleIdx = SampleRateIndex(((p[1] & 0x07) << 1) | (p[2] >> 7))
		asc.ExtensionObjectType = ObjectType((p[2] & 0x7c) >> 2)
	}

	return asc, nil
}

// Encode serializes the AudioSpecificConfig back to its 2-byte (or
// 4-byte, with SBR extension) wire form.
func (v *AudioSpecificConfig) Encode() []byte {
	if !v.HasSBR {
		p := make([]byte, 2)
		p[0] = byte(v.ObjectType)<<3 | byte(v.SampleRateIndex)>>1
		p[1] = byte(v.SampleRateIndex)<<7 | byte(v.Channels)<<3
		return p
	}

	p := make([]byte, 4)
	p[0] = byte(v.ObjectType)<<3 | byte(v.SampleRateIndex)>>1
	p[1] = byte(v.SampleRateIndex)<<7 | byte(v.Channels)<<3 | byte(v.ExtensionSampleIdx)>>1
	p[2] = byte(v.ExtensionSampleIdx)<<7 | byte(v.ExtensionObjectType)<<2
	return p
}
