// Command flvgo-remux demuxes an FLV file and remuxes it into
// fragmented MP4: one init segment and a sequence of media segments
// per track, written to an output directory.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ossrs/flvgo-remux/config"
	"github.com/ossrs/flvgo-remux/flv"
	"github.com/ossrs/flvgo-remux/logger"
	"github.com/ossrs/flvgo-remux/remux"
	"github.com/ossrs/flvgo-remux/track"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	outDir  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flvgo-remux <input.flv>",
		Short: "Demux an FLV file and remux it into fragmented MP4",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: search ./flvgo-remux.yaml)")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory for the init and media segments")
	cmd.Flags().Bool("is-live", false, "treat the input as a live stream (segment-info history is not retained)")
	cmd.Flags().Bool("fix-audio-timestamp-gap", true, "fill AAC dts gaps of three or more frames with silent frames")
	cmd.Flags().Bool("fill-silent-after-seek", true, "prepend a silent audio frame so the first audio segment starts with the video")
	cmd.Flags().Bool("enable-const-video-view-size", false, "force a fixed codec width/height, landscape-normalized")
	cmd.Flags().Uint32("const-video-view-width", 0, "codec width to force when --enable-const-video-view-size is set")
	cmd.Flags().Uint32("const-video-view-height", 0, "codec height to force when --enable-const-video-view-size is set")

	for _, key := range []string{
		"is-live", "fix-audio-timestamp-gap", "fill-silent-after-seek",
		"enable-const-video-view-size", "const-video-view-width", "const-video-view-height",
	} {
		must(viper.BindPFlag(viperKey(key), cmd.Flags().Lookup(key)))
	}

	cobra.OnInitialize(initConfig)
	return cmd
}

func viperKey(flagName string) string {
	key := []byte(flagName)
	for i, c := range key {
		if c == '-' {
			key[i] = '_'
		}
	}
	return string(key)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("flvgo-remux")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FLVGO_REMUX")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func run(cmd *cobra.Command, args []string) error {
	opts := config.FromViper(viper.GetViper())

	in, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open input, %w", err)
	}
	defer in.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir, %w", err)
	}

	rmx := remux.New(remux.Config{
		IsLive:               opts.IsLive,
		FixAudioTimestampGap: opts.FixAudioTimestampGap,
		FillSilentAfterSeek:  opts.FillSilentAfterSeek,
		EnableConstVideoView: opts.EnableConstVideoView,
		ConstVideoViewWidth:  opts.ConstVideoViewWidth,
		ConstVideoViewHeight: opts.ConstVideoViewHeight,
	})

	rmx.OnInitSegment = func(kind string, seg remux.InitSegment) {
		writeSegment(outDir, kind, "init.mp4", seg.Data)
	}

	segSeq := map[string]int{}
	rmx.OnMediaSegment = func(kind string, seg remux.MediaSegment) {
		segSeq[kind]++
		writeSegment(outDir, kind, fmt.Sprintf("seg-%04d.m4s", segSeq[kind]), seg.Data)
	}

	demux := flv.NewStatefulDemuxer(flv.StatefulConfig{
		EnableConstVideoView: opts.EnableConstVideoView,
		ConstVideoViewWidth:  opts.ConstVideoViewWidth,
		ConstVideoViewHeight: opts.ConstVideoViewHeight,
	})
	demux.OnTrackMetadata = rmx.OnTrackMetadata
	demux.OnDataAvailable = func(audioTrack, videoTrack *track.Track) {
		rmx.Remux(audioTrack, videoTrack)
	}
	demux.OnError = func(code, msg string) {
		logger.Wf(nil, "[%s] %s: %s", rmx.Cid(), code, msg)
	}
	demux.OnVideoResolutionChanged = func(width, height uint32) {
		logger.Tf(nil, "[%s] video resolution changed to %dx%d", rmx.Cid(), width, height)
	}

	if err := demux.Run(in); err != nil {
		return fmt.Errorf("demux, %w", err)
	}
	rmx.FlushStashedSamples()
	rmx.Destroy()

	return nil
}

func writeSegment(dir, kind, name string, data []byte) {
	if len(data) == 0 {
		return
	}
	path := filepath.Join(dir, kind+"-"+name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Ef(nil, "write %s: %v", path, err)
	}
}
