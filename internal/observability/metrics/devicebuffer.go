// Package metrics provides device buffer metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DeviceBufferMetrics contains Prometheus metrics for audio device buffer operations
type DeviceBufferMetrics struct {
	registry *prometheus.Registry

	// Session outcome metrics
	recordedOnlyZerosTotal *prometheus.CounterVec
	sessionDuration        *prometheus.HistogramVec

	// Buffer state metrics
	bufferResizesTotal *prometheus.CounterVec
	bufferSizeGauge    *prometheus.GaugeVec

	// Stats reporting metrics
	statsReportsTotal *prometheus.CounterVec
	audioLevelGauge   *prometheus.GaugeVec

	// Transport interaction metrics
	transportErrorsTotal  *prometheus.CounterVec
	transportMissingTotal *prometheus.CounterVec
}

// NewDeviceBufferMetrics creates and registers new device buffer metrics
func NewDeviceBufferMetrics(registry *prometheus.Registry) (*DeviceBufferMetrics, error) {
	m := &DeviceBufferMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *DeviceBufferMetrics) initMetrics() error {
	m.recordedOnlyZerosTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicebuffer_recorded_only_zeros_total",
			Help: "Recording sessions longer than the validity threshold, split by whether any nonzero sample was seen",
		},
		[]string{"result"}, // result: silence, audio
	)

	m.sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "devicebuffer_session_duration_seconds",
			Help:    "Duration of recording and playout sessions",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
		},
		[]string{"side"}, // side: record, play
	)

	m.bufferResizesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicebuffer_buffer_resizes_total",
			Help: "Total number of sample buffer size changes",
		},
		[]string{"side"},
	)

	m.bufferSizeGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devicebuffer_buffer_size_frames",
			Help: "Current sample buffer size in frames per channel",
		},
		[]string{"side"},
	)

	m.statsReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicebuffer_stats_reports_total",
			Help: "Total number of periodic stats reports logged",
		},
		[]string{"side"},
	)

	m.audioLevelGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devicebuffer_audio_level_max_abs",
			Help: "Maximum absolute sample value observed in the last reporting interval",
		},
		[]string{"side"},
	)

	m.transportErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicebuffer_transport_errors_total",
			Help: "Total number of transport callback errors",
		},
		[]string{"direction"}, // direction: record, play
	)

	m.transportMissingTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devicebuffer_transport_missing_total",
			Help: "Total number of data path calls made while no transport was registered",
		},
		[]string{"direction"},
	)

	return nil
}

// Describe implements the prometheus.Collector interface
func (m *DeviceBufferMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.recordedOnlyZerosTotal.Describe(ch)
	m.sessionDuration.Describe(ch)
	m.bufferResizesTotal.Describe(ch)
	m.bufferSizeGauge.Describe(ch)
	m.statsReportsTotal.Describe(ch)
	m.audioLevelGauge.Describe(ch)
	m.transportErrorsTotal.Describe(ch)
	m.transportMissingTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *DeviceBufferMetrics) Collect(ch chan<- prometheus.Metric) {
	m.recordedOnlyZerosTotal.Collect(ch)
	m.sessionDuration.Collect(ch)
	m.bufferResizesTotal.Collect(ch)
	m.bufferSizeGauge.Collect(ch)
	m.statsReportsTotal.Collect(ch)
	m.audioLevelGauge.Collect(ch)
	m.transportErrorsTotal.Collect(ch)
	m.transportMissingTotal.Collect(ch)
}

// RecordSilenceSession records the outcome of a recording session that ran
// long enough for the silence metric to be valid.
func (m *DeviceBufferMetrics) RecordSilenceSession(onlySilence bool) {
	result := ResultAudio
	if onlySilence {
		result = ResultSilence
	}
	m.recordedOnlyZerosTotal.WithLabelValues(result).Inc()
}

// RecordSessionDuration records how long a recording or playout session lasted.
func (m *DeviceBufferMetrics) RecordSessionDuration(side string, seconds float64) {
	m.sessionDuration.WithLabelValues(side).Observe(seconds)
}

// RecordBufferResize counts a sample buffer size change.
func (m *DeviceBufferMetrics) RecordBufferResize(side string) {
	m.bufferResizesTotal.WithLabelValues(side).Inc()
}

// UpdateBufferSize sets the current sample buffer size in frames.
func (m *DeviceBufferMetrics) UpdateBufferSize(side string, frames int) {
	m.bufferSizeGauge.WithLabelValues(side).Set(float64(frames))
}

// RecordStatsReport counts one periodic stats report.
func (m *DeviceBufferMetrics) RecordStatsReport(side string) {
	m.statsReportsTotal.WithLabelValues(side).Inc()
}

// UpdateAudioLevel sets the last reported interval max-abs level.
func (m *DeviceBufferMetrics) UpdateAudioLevel(side string, level int) {
	m.audioLevelGauge.WithLabelValues(side).Set(float64(level))
}

// RecordTransportError counts a transport callback error.
func (m *DeviceBufferMetrics) RecordTransportError(direction string) {
	m.transportErrorsTotal.WithLabelValues(direction).Inc()
}

// RecordTransportMissing counts a data path call made without a registered transport.
func (m *DeviceBufferMetrics) RecordTransportMissing(direction string) {
	m.transportMissingTotal.WithLabelValues(direction).Inc()
}
