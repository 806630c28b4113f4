package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	opts := FromViper(v)
	require.Equal(t, Options{
		IsLive:               false,
		FixAudioTimestampGap: true,
		FillSilentAfterSeek:  true,
		EnableConstVideoView: false,
		ConstVideoViewWidth:  0,
		ConstVideoViewHeight: 0,
		LogLevel:             "info",
	}, opts)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	v.Set("is_live", true)
	v.Set("enable_const_video_view_size", true)
	v.Set("const_video_view_width", 1280)
	v.Set("const_video_view_height", 720)
	v.Set("log_level", "debug")

	opts := FromViper(v)
	require.True(t, opts.IsLive)
	require.True(t, opts.EnableConstVideoView)
	require.EqualValues(t, 1280, opts.ConstVideoViewWidth)
	require.EqualValues(t, 720, opts.ConstVideoViewHeight)
	require.Equal(t, "debug", opts.LogLevel)
}
