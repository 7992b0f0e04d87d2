package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSilenceSession(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDeviceBufferMetrics(registry)
	require.NoError(t, err)

	m.RecordSilenceSession(true)
	m.RecordSilenceSession(true)
	m.RecordSilenceSession(false)

	silence := testutil.ToFloat64(m.recordedOnlyZerosTotal.WithLabelValues(ResultSilence))
	audio := testutil.ToFloat64(m.recordedOnlyZerosTotal.WithLabelValues(ResultAudio))
	assert.Equal(t, float64(2), silence)
	assert.Equal(t, float64(1), audio)
}

func TestRecordBufferResizeAndSize(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDeviceBufferMetrics(registry)
	require.NoError(t, err)

	m.RecordBufferResize(SideRecord)
	m.RecordBufferResize(SidePlay)
	m.RecordBufferResize(SidePlay)
	m.UpdateBufferSize(SidePlay, 480)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.bufferResizesTotal.WithLabelValues(SideRecord)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.bufferResizesTotal.WithLabelValues(SidePlay)))
	assert.Equal(t, float64(480), testutil.ToFloat64(m.bufferSizeGauge.WithLabelValues(SidePlay)))
}

func TestRecordTransportCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDeviceBufferMetrics(registry)
	require.NoError(t, err)

	m.RecordTransportError(SidePlay)
	m.RecordTransportMissing(SideRecord)
	m.RecordTransportMissing(SideRecord)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.transportErrorsTotal.WithLabelValues(SidePlay)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.transportMissingTotal.WithLabelValues(SideRecord)))
}

func TestStatsReportAndLevel(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewDeviceBufferMetrics(registry)
	require.NoError(t, err)

	m.RecordStatsReport(SideRecord)
	m.UpdateAudioLevel(SideRecord, 12345)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.statsReportsTotal.WithLabelValues(SideRecord)))
	assert.Equal(t, float64(12345), testutil.ToFloat64(m.audioLevelGauge.WithLabelValues(SideRecord)))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewDeviceBufferMetrics(registry)
	require.NoError(t, err)

	_, err = NewDeviceBufferMetrics(registry)
	assert.Error(t, err)
}
