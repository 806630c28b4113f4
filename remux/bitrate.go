package remux

import (
	"time"

	"github.com/ossrs/flvgo-remux/metrics"
)

// BitrateSampler accumulates bytes seen for one track kind and reports
// a kbps gauge once per tick, per spec.md §4.D's realtime-bitrate
// accounting (`_calculateRealtimeBitrate` in the original demuxer).
type BitrateSampler struct {
	kind        string
	bytesSince  int64
	lastSampled time.Time
}

// NewBitrateSampler creates a sampler for the given track kind label.
func NewBitrateSampler(kind string) *BitrateSampler {
	return &BitrateSampler{kind: kind, lastSampled: time.Now()}
}

// AddBytes accumulates bytes seen since the last Sample call.
func (b *BitrateSampler) AddBytes(n int) {
	b.bytesSince += int64(n)
}

// Sample computes the current kbps and resets the byte accumulator.
// Elapsed wall-clock time is rounded to whole seconds, floored at 1,
// matching the original's `time_gap_factor = max(1, round(elapsed/1000))`.
func (b *BitrateSampler) Sample(now time.Time) float64 {
	elapsedSeconds := int64((now.Sub(b.lastSampled) + 500*time.Millisecond) / time.Second)
	if elapsedSeconds < 1 {
		elapsedSeconds = 1
	}

	kbps := float64(8*b.bytesSince) / 1024 / float64(elapsedSeconds)

	b.bytesSince = 0
	b.lastSampled = now

	metrics.BitrateKbps.WithLabelValues(b.kind).Set(kbps)
	return kbps
}
