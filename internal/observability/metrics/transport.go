// Package metrics provides transport metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// TransportMetrics contains Prometheus metrics for the bundled transport implementations
type TransportMetrics struct {
	registry *prometheus.Registry

	// Loopback ring metrics
	loopbackWriteBytesTotal   *prometheus.CounterVec
	loopbackDroppedBytesTotal *prometheus.CounterVec
	loopbackUnderrunsTotal    *prometheus.CounterVec

	// WAV source metrics
	wavFramesServedTotal *prometheus.CounterVec
	wavSourcesOpenTotal  *prometheus.CounterVec
}

// NewTransportMetrics creates and registers new transport metrics
func NewTransportMetrics(registry *prometheus.Registry) (*TransportMetrics, error) {
	m := &TransportMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *TransportMetrics) initMetrics() error {
	m.loopbackWriteBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_loopback_write_bytes_total",
			Help: "Total bytes written into the loopback ring",
		},
		[]string{"status"}, // status: success, partial
	)

	m.loopbackDroppedBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_loopback_dropped_bytes_total",
			Help: "Total captured bytes dropped because the loopback ring was full",
		},
		[]string{},
	)

	m.loopbackUnderrunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_loopback_underruns_total",
			Help: "Total playout requests that found less data than requested",
		},
		[]string{},
	)

	m.wavFramesServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_wav_frames_served_total",
			Help: "Total PCM frames served from WAV sources",
		},
		[]string{"status"}, // status: audio, silence
	)

	m.wavSourcesOpenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transport_wav_sources_open_total",
			Help: "Total WAV source open attempts",
		},
		[]string{"status"}, // status: success, error
	)

	return nil
}

// Describe implements the prometheus.Collector interface
func (m *TransportMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.loopbackWriteBytesTotal.Describe(ch)
	m.loopbackDroppedBytesTotal.Describe(ch)
	m.loopbackUnderrunsTotal.Describe(ch)
	m.wavFramesServedTotal.Describe(ch)
	m.wavSourcesOpenTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *TransportMetrics) Collect(ch chan<- prometheus.Metric) {
	m.loopbackWriteBytesTotal.Collect(ch)
	m.loopbackDroppedBytesTotal.Collect(ch)
	m.loopbackUnderrunsTotal.Collect(ch)
	m.wavFramesServedTotal.Collect(ch)
	m.wavSourcesOpenTotal.Collect(ch)
}

// RecordLoopbackWrite counts bytes accepted by the loopback ring.
func (m *TransportMetrics) RecordLoopbackWrite(status string, bytes int) {
	m.loopbackWriteBytesTotal.WithLabelValues(status).Add(float64(bytes))
}

// RecordLoopbackDrop counts captured bytes dropped on ring overflow.
func (m *TransportMetrics) RecordLoopbackDrop(bytes int) {
	m.loopbackDroppedBytesTotal.WithLabelValues().Add(float64(bytes))
}

// RecordLoopbackUnderrun counts one short playout request.
func (m *TransportMetrics) RecordLoopbackUnderrun() {
	m.loopbackUnderrunsTotal.WithLabelValues().Inc()
}

// RecordWavFramesServed counts frames served from a WAV source.
func (m *TransportMetrics) RecordWavFramesServed(status string, frames int) {
	m.wavFramesServedTotal.WithLabelValues(status).Add(float64(frames))
}

// RecordWavSourceOpen counts one WAV source open attempt.
func (m *TransportMetrics) RecordWavSourceOpen(status string) {
	m.wavSourcesOpenTotal.WithLabelValues(status).Inc()
}
