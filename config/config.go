// Package config carries the spec's runtime options, loaded via viper
// from a config file, environment variables, and CLI flags, in that
// order of increasing precedence.
package config

import "github.com/spf13/viper"

// Options is the pipeline's full set of runtime knobs, per spec.md §6.
type Options struct {
	IsLive               bool
	FixAudioTimestampGap bool
	FillSilentAfterSeek  bool
	EnableConstVideoView bool
	ConstVideoViewWidth  uint32
	ConstVideoViewHeight uint32

	LogLevel string
}

// SetDefaults installs this package's defaults into v, before any
// config file or environment variable is read.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("is_live", false)
	v.SetDefault("fix_audio_timestamp_gap", true)
	v.SetDefault("fill_silent_after_seek", true)
	v.SetDefault("enable_const_video_view_size", false)
	v.SetDefault("const_video_view_width", 0)
	v.SetDefault("const_video_view_height", 0)
	v.SetDefault("log_level", "info")
}

// FromViper reads Options out of a populated viper instance.
func FromViper(v *viper.Viper) Options {
	return Options{
		IsLive:               v.GetBool("is_live"),
		FixAudioTimestampGap: v.GetBool("fix_audio_timestamp_gap"),
		FillSilentAfterSeek:  v.GetBool("fill_silent_after_seek"),
		EnableConstVideoView: v.GetBool("enable_const_video_view_size"),
		ConstVideoViewWidth:  uint32(v.GetUint("const_video_view_width")),
		ConstVideoViewHeight: uint32(v.GetUint("const_video_view_height")),
		LogLevel:             v.GetString("log_level"),
	}
}
