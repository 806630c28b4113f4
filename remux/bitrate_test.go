package remux

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBitrateSamplerComputesKbps(t *testing.T) {
	start := time.Now()
	b := &BitrateSampler{kind: "video", lastSampled: start}

	b.AddBytes(256)
	kbps := b.Sample(start.Add(2 * time.Second))

	// 8*256 bits / 1024 / 2s = 1 kbps.
	require.InDelta(t, 1.0, kbps, 1e-9)
}

func TestBitrateSamplerFloorsElapsedAtOneSecond(t *testing.T) {
	start := time.Now()
	b := &BitrateSampler{kind: "audio", lastSampled: start}

	b.AddBytes(128)
	kbps := b.Sample(start.Add(100 * time.Millisecond))

	// 8*128 bits / 1024 / 1s = 1 kbps, since elapsed floors at 1 second.
	require.InDelta(t, 1.0, kbps, 1e-9)
}

func TestBitrateSamplerResetsAccumulator(t *testing.T) {
	start := time.Now()
	b := &BitrateSampler{kind: "video", lastSampled: start}

	b.AddBytes(1000)
	b.Sample(start.Add(time.Second))

	require.EqualValues(t, 0, b.bytesSince)
}
