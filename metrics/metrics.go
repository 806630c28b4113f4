// Package metrics exposes Prometheus instruments for the demux/remux
// pipeline: realtime per-track bitrate gauges and an error-taxonomy
// counter (spec.md §7: FORMAT_ERROR, CODEC_UNSUPPORTED, NETWORK_ERROR).
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// BitrateKbps reports the most recent 1 Hz bitrate sample per track kind.
	BitrateKbps = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "flvgo_remux",
		Name:      "bitrate_kbps",
		Help:      "Most recent realtime bitrate sample, in kbps, per track kind.",
	}, []string{"kind"})

	// Errors counts on_error occurrences by taxonomy code.
	Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flvgo_remux",
		Name:      "errors_total",
		Help:      "Count of demux/remux errors by taxonomy code.",
	}, []string{"code"})

	// SamplesDropped counts samples dropped by the AAC drift corrector.
	// Unsupported-codec tags are counted only in Errors.
	SamplesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flvgo_remux",
		Name:      "samples_dropped_total",
		Help:      "Count of samples dropped during remux, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(BitrateKbps, Errors, SamplesDropped)
}

// Error taxonomy codes, per spec.md §7.
const (
	CodeFormatError      = "FORMAT_ERROR"
	CodeCodecUnsupported = "CODEC_UNSUPPORTED"
	CodeNetworkError     = "NETWORK_ERROR"
)
