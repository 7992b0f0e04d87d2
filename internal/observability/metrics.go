// Package observability provides metrics and monitoring capabilities for the application.
package observability

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/audiodev-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	DeviceBuffer *metrics.DeviceBufferMetrics
	Transport    *metrics.TransportMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	deviceBufferMetrics, err := metrics.NewDeviceBufferMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create DeviceBuffer metrics: %w", err)
	}

	transportMetrics, err := metrics.NewTransportMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Transport metrics: %w", err)
	}

	m := &Metrics{
		registry:     registry,
		DeviceBuffer: deviceBufferMetrics,
		Transport:    transportMetrics,
	}

	return m, nil
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", m.metricsHandler)
}

// metricsHandler is the HTTP handler for the /metrics endpoint.
func (m *Metrics) metricsHandler(w http.ResponseWriter, r *http.Request) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      log.New(os.Stderr, "metrics handler: ", log.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	h.ServeHTTP(w, r)
}
