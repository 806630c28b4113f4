package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestBitrateKbpsGauge(t *testing.T) {
	BitrateKbps.WithLabelValues("video").Set(1234.5)
	require.Equal(t, 1234.5, testutil.ToFloat64(BitrateKbps.WithLabelValues("video")))
}

func TestErrorsCounter(t *testing.T) {
	before := testutil.ToFloat64(Errors.WithLabelValues(CodeFormatError))
	Errors.WithLabelValues(CodeFormatError).Inc()
	require.Equal(t, before+1, testutil.ToFloat64(Errors.WithLabelValues(CodeFormatError)))
}

func TestSamplesDroppedCounter(t *testing.T) {
	before := testutil.ToFloat64(SamplesDropped.WithLabelValues("aac_drift"))
	SamplesDropped.WithLabelValues("aac_drift").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(SamplesDropped.WithLabelValues("aac_drift")))
}

func TestErrorTaxonomyCodes(t *testing.T) {
	require.Equal(t, "FORMAT_ERROR", CodeFormatError)
	require.Equal(t, "CODEC_UNSUPPORTED", CodeCodecUnsupported)
	require.Equal(t, "NETWORK_ERROR", CodeNetworkError)
}
