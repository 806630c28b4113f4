package aac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAudioSpecificConfigRoundTrip(t *testing.T) {
	asc := &AudioSpecificConfig{
		ObjectType:      ObjectTypeLC,
		SampleRateIndex: SampleRateIndex44kHz,
		Channels:        ChannelStereo,
	}
	encoded := asc.Encode()
	require.Equal(t, []byte{0x12, 0x10}, encoded)

	decoded, err := ParseAudioSpecificConfig(encoded)
	require.NoError(t, err)
	require.Equal(t, ObjectTypeLC, decoded.ObjectType)
	require.Equal(t, SampleRateIndex44kHz, decoded.SampleRateIndex)
	require.Equal(t, 44100, decoded.SampleRate)
	require.Equal(t, ChannelStereo, decoded.Channels)
	require.False(t, decoded.HasSBR)
}

func TestAudioSpecificConfigSBRRoundTrip(t *testing.T) {
	asc := &AudioSpecificConfig{
		ObjectType:          ObjectTypeHE,
		SampleRateIndex:     SampleRateIndex48kHz,
		Channels:            ChannelStereo,
		HasSBR:              true,
		ExtensionSampleIdx:  SampleRateIndex24kHz,
		ExtensionObjectType: ObjectTypeLC,
	}
	encoded := asc.Encode()
	require.Equal(t, []byte{0x29, 0x93, 0x08, 0x00}, encoded)

	decoded, err := ParseAudioSpecificConfig(encoded)
	require.NoError(t, err)
	require.Equal(t, ObjectTypeHE, decoded.ObjectType)
	require.Equal(t, SampleRateIndex48kHz, decoded.SampleRateIndex)
	require.Equal(t, ChannelStereo, decoded.Channels)
	require.True(t, decoded.HasSBR)
	require.Equal(t, SampleRateIndex24kHz, decoded.ExtensionSampleIdx)
	require.Equal(t, ObjectTypeLC, decoded.ExtensionObjectType)
}

func TestParseAudioSpecificConfigTooShort(t *testing.T) {
	_, err := ParseAudioSpecificConfig([]byte{0x12})
	require.Error(t, err)
}

func TestChannelsCountAndString(t *testing.T) {
	require.Equal(t, 1, ChannelMono.Count())
	require.Equal(t, "Mono", ChannelMono.String())
	require.Equal(t, 2, ChannelStereo.Count())
	require.Equal(t, "Stereo", ChannelStereo.String())
	require.Equal(t, 6, Channel5_1.Count())
	require.Equal(t, 0, ChannelForbidden.Count())
	require.Equal(t, "Forbidden", ChannelForbidden.String())
}

func TestSampleRateIndexToHz(t *testing.T) {
	require.Equal(t, 44100, SampleRateIndex44kHz.ToHz())
	require.Equal(t, 48000, SampleRateIndex48kHz.ToHz())
	require.Equal(t, 0, SampleRateIndexForbidden.ToHz())
}

func TestADTSEncodeDecodeRoundTrip(t *testing.T) {
	enc, err := NewADTS()
	require.NoError(t, err)
	require.NoError(t, enc.SetASC([]byte{0x12, 0x10}))

	raw := []byte{0xAA, 0xBB, 0xCC}
	frame, err := enc.Encode(raw)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xf1, 0x50, 0x80, 0x01, 0x40, 0xfc, 0xAA, 0xBB, 0xCC}, frame)

	dec, err := NewADTS()
	require.NoError(t, err)
	decodedRaw, err := dec.Decode(frame)
	require.NoError(t, err)
	require.Equal(t, raw, decodedRaw)
	require.Equal(t, []byte{0x12, 0x10}, dec.ASC())
}

func TestADTSDecodeRejectsBadSyncword(t *testing.T) {
	dec, err := NewADTS()
	require.NoError(t, err)
	_, err = dec.Decode([]byte{0x00, 0xf1, 0x50, 0x80, 0x01, 0x40, 0xfc})
	require.Error(t, err)
}

func TestSilentFrame(t *testing.T) {
	require.NotNil(t, SilentFrame(1))
	require.NotNil(t, SilentFrame(2))
	require.Nil(t, SilentFrame(6))

	// The returned slice must be a copy, not shared backing storage.
	f := SilentFrame(1)
	f[0] = 0xff
	require.NotEqual(t, f[0], SilentFrame(1)[0])
}
